package session

import (
	"context"
	"sync"
)

// Navigator remembers the last scope (an academic term, typically) selected
// on the remote session, and issues the scope-selection request only when
// the requested scope differs.
//
// The remembered scope is per-Navigator, but the selection itself lives in
// the shared server-side session: two Navigators over one Identity that
// want different current scopes will fight each other through the cookie
// jar. Callers in that position need separate Identities.
type Navigator struct {
	selectScope func(ctx context.Context, scope string) error

	mu      sync.Mutex
	current string
}

func NewNavigator(selectScope func(ctx context.Context, scope string) error) *Navigator {
	return &Navigator{selectScope: selectScope}
}

// Ensure makes `scope` the session's selected scope, skipping the selection
// request when it already is. The selection is assumed to have taken effect
// if the request does not fail; the portals offer nothing to confirm.
func (n *Navigator) Ensure(ctx context.Context, scope string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.current == scope {
		return nil
	}
	if err := n.selectScope(ctx, scope); err != nil {
		return err
	}
	n.current = scope
	return nil
}

// Current returns the remembered scope, empty when none was ever selected.
func (n *Navigator) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}
