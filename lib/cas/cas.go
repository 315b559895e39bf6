package cas

import (
	"bytes"
	"context"
	"davisweb/lib/htmlutil"
	"davisweb/lib/session"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/cas")

const DefaultBaseUrl = "https://cas.ucdavis.edu"

const loginEndpoint = "/cas/login"

// present on the login page once the session holds a valid ticket
const successMarker = `<div id="msg" class="success"`

// Client drives the campus central authentication service (CAS). It
// implements session.Authenticator: each Authenticate call is one complete
// login attempt with no internal retries.
type Client struct {
	Identity *session.Identity
	BaseUrl  string
}

func NewClient(identity *session.Identity, baseUrl string) Client {
	if baseUrl == "" {
		baseUrl = DefaultBaseUrl
	}
	return Client{Identity: identity, BaseUrl: strings.TrimSuffix(baseUrl, "/")}
}

// Host returns the hostname of the auth service, the marker a portal
// redirect lands on when the session is unauthenticated.
func (c Client) Host() string {
	u, err := url.Parse(c.BaseUrl)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// Authenticate fetches the login page, submits the login form with every
// hidden token it carries, and verifies the success marker. If the session
// is already valid (a sibling client sharing this identity logged in first)
// nothing is submitted.
func (c Client) Authenticate(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "cas:Authenticate")
	defer span.End()

	res, err := c.Identity.Http.R().
		SetContext(ctx).
		Get(c.BaseUrl + loginEndpoint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch login page")
		return err
	}
	if strings.Contains(res.String(), successMarker) {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse login page")
		return err
	}

	form := doc.Find("form#fm1")
	action := form.AttrOr("action", "")
	if len(form.Nodes) == 0 || action == "" {
		span.SetStatus(codes.Error, "login form not found")
		return session.ErrAuthFailed
	}

	// the hidden anti-CSRF tokens must be echoed back verbatim
	fields := htmlutil.FormFields(form)
	fields.Set("username", c.Identity.Credentials.Username)
	fields.Set("password", c.Identity.Credentials.Password)

	// the form declares where it submits to, the path is not fixed
	target, err := c.resolveAction(res.RawResponse.Request.URL, action)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to resolve form action")
		return err
	}

	res, err = c.Identity.Http.R().
		SetContext(ctx).
		SetFormDataFromValues(fields).
		Post(target)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit login form")
		return err
	}

	if !strings.Contains(res.String(), successMarker) {
		span.SetStatus(codes.Error, session.ErrAuthFailed.Error())
		return session.ErrAuthFailed
	}
	return nil
}

func (c Client) resolveAction(pageUrl *url.URL, action string) (string, error) {
	actionUrl, err := url.Parse(action)
	if err != nil {
		return "", err
	}
	if pageUrl == nil {
		base, err := url.Parse(c.BaseUrl + loginEndpoint)
		if err != nil {
			return "", err
		}
		pageUrl = base
	}
	return pageUrl.ResolveReference(actionUrl).String(), nil
}
