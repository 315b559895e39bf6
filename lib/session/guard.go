package session

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("session")

// Authenticator performs one complete login attempt against the central
// auth service. It must be a no-op when the session is already valid and
// must not retry internally; retry policy belongs to the Guard.
type Authenticator interface {
	Authenticate(ctx context.Context) error
}

type Request struct {
	Method string
	Path   string
	Query  url.Values
	Form   url.Values
}

// Guard issues requests against one portal origin on behalf of an Identity,
// transparently re-authenticating when the portal answers with a login
// wall.
type Guard struct {
	Identity   *Identity
	BaseUrl    *url.URL
	Auth       Authenticator
	Classifier Classifier
}

// NewGuard builds a guard over `identity` for the portal at `baseUrl`.
// `auth` may be nil for portals with public pages; login walls then surface
// as ErrAuthRequired instead of triggering a login.
func NewGuard(identity *Identity, baseUrl string, auth Authenticator, classifier Classifier) (Guard, error) {
	base, err := url.Parse(baseUrl)
	if err != nil {
		return Guard{}, err
	}
	return Guard{
		Identity:   identity,
		BaseUrl:    base,
		Auth:       auth,
		Classifier: classifier,
	}, nil
}

// Do executes the request, classifies the response, and on a login wall
// re-authenticates and retries exactly once. A second login wall surfaces
// ErrAuthRequired rather than looping against a misbehaving server.
//
// Mutating requests are at-most-once best effort: the portals give no
// transaction ids, so a POST that succeeded silently right before the
// session expired cannot be told apart from one that never ran.
//
// The identity lock is held across attempt, re-auth and retry. On a
// classification failure the response is returned alongside the error for
// callers that want to inspect the body.
func (g Guard) Do(ctx context.Context, req Request) (*resty.Response, error) {
	ctx, span := tracer.Start(ctx, "guard:Do")
	defer span.End()

	g.Identity.mu.Lock()
	defer g.Identity.mu.Unlock()

	res, err := g.send(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, err
	}

	cerr := g.Classifier.Classify(finalUrl(res), res.String())
	if !errors.Is(cerr, ErrAuthRequired) {
		return res, cerr
	}
	if g.Auth == nil {
		span.SetStatus(codes.Error, ErrAuthRequired.Error())
		return res, ErrAuthRequired
	}

	slog.InfoContext(
		ctx, "session expired, re-authenticating",
		"user", g.Identity.Credentials.Username,
		"path", req.Path,
	)
	err = g.Auth.Authenticate(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "re-authentication failed")
		return nil, err
	}

	res, err = g.send(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retried request failed")
		return nil, err
	}

	cerr = g.Classifier.Classify(finalUrl(res), res.String())
	if errors.Is(cerr, ErrAuthRequired) {
		span.SetStatus(codes.Error, "still unauthenticated after re-auth")
		return res, ErrAuthRequired
	}
	return res, cerr
}

func (g Guard) send(ctx context.Context, req Request) (*resty.Response, error) {
	r := g.Identity.Http.R().SetContext(ctx)
	if len(req.Query) > 0 {
		r.SetQueryParamsFromValues(req.Query)
	}
	if len(req.Form) > 0 {
		r.SetFormDataFromValues(req.Form)
	}
	// endpoints carry embedded query strings (Banner loves them), so the
	// target is assembled by concatenation rather than path joining
	target := strings.TrimSuffix(g.BaseUrl.String(), "/") + req.Path
	return r.Execute(req.Method, target)
}

// the URL the response actually came from, after redirects
func finalUrl(res *resty.Response) *url.URL {
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		return res.RawResponse.Request.URL
	}
	return nil
}
