package session

import (
	"davisweb/lib/telemetry"
	"net/http/cookiejar"
	"sync"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_10_1) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/40.0.2214.115 Safari/537.36"

type Credentials struct {
	Username string
	Password string
}

// Identity is one logged-in person: a credential pair plus the live cookie
// jar their session rides on. Portal clients hold a *Identity, so cookies
// set by one portal (the central-auth ticket in particular) are visible to
// every sibling client.
//
// The remote session state (login, selected term) is global to the cookie
// jar, not per-request, so requests made through a Guard are serialized by
// the identity's lock.
type Identity struct {
	Credentials Credentials
	Http        *resty.Client

	mu sync.Mutex
}

type IdentityOptions struct {
	Credentials Credentials
	// defaults to 30 seconds
	Timeout time.Duration
}

func NewIdentity(opts IdentityOptions) (*Identity, error) {
	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.SetHeader("user-agent", userAgent)

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = time.Second * 30
	}
	client.SetTimeout(timeout)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	telemetry.InstrumentResty(client, "session/http")

	return &Identity{
		Credentials: opts.Credentials,
		Http:        client,
	}, nil
}
