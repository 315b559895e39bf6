package commands

import (
	"davisweb/lib/timezone"
	"davisweb/lib/util/serviceutil"
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

var (
	registerTerm     *string
	registerSchedule *string
	registerWaitlist *bool
	registerAt       *string
	registerPass     *int
)

func init() {
	registerTerm = registerCmd.Flags().String("term", "", "The term code, e.g. 201410.")
	registerSchedule = registerCmd.Flags().String("schedule", "", "The saved schedule to register, case sensitive.")
	registerWaitlist = registerCmd.Flags().Bool("waitlist", true, "Register even when it means joining a waitlist.")
	registerAt = registerCmd.Flags().String("at", "", "Wait until this local time before registering, e.g. '2014-11-15 07:00'.")
	registerPass = registerCmd.Flags().Int("pass", 0, "Wait for your pass time (1 or 2) before registering.")
	registerCmd.MarkFlagRequired("term")
	registerCmd.MarkFlagRequired("schedule")
	registerCmd.MarkFlagsMutuallyExclusive("at", "pass")
	rootCmd.AddCommand(registerCmd)
}

var registerCmd = &cobra.Command{
	Use:   "register --term <code> --schedule <name> [--at <time> | --pass <1|2>]",
	Short: "Registers every course in a saved schedule, optionally waiting for a pass time.",
	Run: func(cmd *cobra.Command, args []string) {
		c := createClients()
		term := parseTerm(*registerTerm)

		var at time.Time
		switch {
		case *registerAt != "":
			parsed, err := time.ParseInLocation("2006-01-02 15:04", *registerAt, timezone.Location)
			if err != nil {
				serviceutil.Fatal("invalid --at time", err)
			}
			at = parsed
		case *registerPass != 0:
			if *registerPass != 1 && *registerPass != 2 {
				serviceutil.Fatal("invalid --pass", errors.New("pass must be 1 or 2"))
			}
			pass1, pass2, err := c.builder.PassTimes(cmd.Context(), term)
			if err != nil {
				serviceutil.Fatal("failed to fetch pass times", err)
			}
			at = pass1
			if *registerPass == 2 {
				at = pass2
			}
		}

		if !at.IsZero() {
			slog.Info("waiting to register",
				"at", at.Format(time.RFC1123),
				"in", time.Until(at).Round(time.Second).String())
		}

		err := c.builder.RegisterSchedule(cmd.Context(), term, *registerSchedule, *registerWaitlist, at)
		if err != nil {
			serviceutil.Fatal("registration failed", err)
		}

		registered, err := c.builder.RegisteredCourses(cmd.Context(), term)
		if err != nil {
			serviceutil.Fatal("failed to verify registration", err)
		}
		slog.Info("registration submitted", "registered", registered)
	},
}
