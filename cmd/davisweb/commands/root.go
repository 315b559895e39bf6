package commands

import (
	"context"
	"davisweb/lib/catalog"
	"davisweb/lib/cas"
	"davisweb/lib/configutil"
	"davisweb/lib/scrapers/registrar"
	"davisweb/lib/scrapers/schedulebuilder"
	"davisweb/lib/scrapers/sisweb"
	"davisweb/lib/session"
	"davisweb/lib/util/serviceutil"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type PortalsConfig struct {
	Cas             string `json:"cas"`
	Sisweb          string `json:"sisweb"`
	ScheduleBuilder string `json:"schedulebuilder"`
	Registrar       string `json:"registrar"`
}

type Config struct {
	Username string        `json:"username"`
	Password string        `json:"password"`
	Portals  PortalsConfig `json:"portals"`
}

var configPath *string

func init() {
	configPath = rootCmd.PersistentFlags().String(
		"config", "config.json5",
		"The credentials and portal base url config to use.",
	)
}

var rootCmd = &cobra.Command{
	Use:   "davisweb",
	Short: "davisweb is a CLI for the university web portals: terms, course search, schedules and registration.",
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type clients struct {
	identity  *session.Identity
	sisweb    *sisweb.Client
	builder   *schedulebuilder.Client
	registrar registrar.Client
}

func createClients() clients {
	cfg, err := configutil.ReadConfig[Config](*configPath)
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}

	identity, err := session.NewIdentity(session.IdentityOptions{
		Credentials: session.Credentials{
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		serviceutil.Fatal("failed to initialize http client", err)
	}

	auth := cas.NewClient(identity, cfg.Portals.Cas)
	sis, err := sisweb.NewClient(identity, cfg.Portals.Sisweb, auth, auth.Host())
	if err != nil {
		serviceutil.Fatal("failed to initialize sisweb client", err)
	}
	builder, err := schedulebuilder.NewClient(identity, cfg.Portals.ScheduleBuilder, auth, auth.Host())
	if err != nil {
		serviceutil.Fatal("failed to initialize schedule builder client", err)
	}

	return clients{
		identity:  identity,
		sisweb:    sis,
		builder:   builder,
		registrar: registrar.NewClient(identity, cfg.Portals.Registrar),
	}
}

func parseTerm(code string) catalog.Term {
	term, err := catalog.ParseCode(code)
	if err != nil {
		serviceutil.Fatal("invalid term code", err)
	}
	return term
}
