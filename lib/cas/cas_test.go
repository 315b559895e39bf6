package cas

import (
	"context"
	"davisweb/lib/session"
	"davisweb/lib/telemetry"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const loginPage = `<html><body>
<form id="fm1" action="/cas/login;jsessionid=ABC123" method="post">
	<input type="text" name="username" value="" />
	<input type="password" name="password" value="" />
	<input type="hidden" name="lt" value="LT-55-abcdef" />
	<input type="hidden" name="execution" value="e1s1" />
	<input type="hidden" name="_eventId" value="submit" />
	<input type="submit" value="LOGIN" />
</form>
</body></html>`

const successPage = `<html><body>
<div id="msg" class="success">Log In Successful</div>
</body></html>`

// fakeCas accepts exactly one credential pair and requires the login form's
// hidden tokens to be echoed back.
type fakeCas struct {
	mu       sync.Mutex
	loggedIn bool
	posts    int
}

func (f *fakeCas) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /cas/login", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.loggedIn {
			fmt.Fprint(w, successPage)
			return
		}
		fmt.Fprint(w, loginPage)
	})
	mux.HandleFunc("POST /cas/login;jsessionid=ABC123", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.posts++
		r.ParseForm()
		if r.PostForm.Get("lt") != "LT-55-abcdef" ||
			r.PostForm.Get("execution") != "e1s1" ||
			r.PostForm.Get("_eventId") != "submit" {
			http.Error(w, "missing form tokens", http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("username") == "alice" && r.PostForm.Get("password") == "hunter2" {
			f.loggedIn = true
			fmt.Fprint(w, successPage)
			return
		}
		fmt.Fprint(w, loginPage)
	})
	return mux
}

func (f *fakeCas) postCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.posts
}

func newTestIdentity(t *testing.T, username, password string) *session.Identity {
	identity, err := session.NewIdentity(session.IdentityOptions{
		Credentials: session.Credentials{Username: username, Password: password},
		Timeout:     time.Second * 5,
	})
	require.NoError(t, err)
	return identity
}

func TestAuthenticate(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:cas")
	defer cleanup()

	fake := &fakeCas{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := NewClient(newTestIdentity(t, "alice", "hunter2"), srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	require.NoError(t, client.Authenticate(ctx))
	require.Equal(t, 1, fake.postCount())

	// a second call sees the success marker and submits nothing
	require.NoError(t, client.Authenticate(ctx))
	require.Equal(t, 1, fake.postCount())
}

func TestAuthenticateBadCredentials(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:cas")
	defer cleanup()

	fake := &fakeCas{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := NewClient(newTestIdentity(t, "alice", "wrong"), srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	require.ErrorIs(t, client.Authenticate(ctx), session.ErrAuthFailed)
}

func TestAuthenticateMissingForm(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:cas")
	defer cleanup()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>maintenance</body></html>`)
	}))
	defer srv.Close()

	client := NewClient(newTestIdentity(t, "alice", "hunter2"), srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	require.ErrorIs(t, client.Authenticate(ctx), session.ErrAuthFailed)
}

func TestHost(t *testing.T) {
	client := NewClient(nil, "https://cas.example.edu")
	require.Equal(t, "cas.example.edu", client.Host())
}
