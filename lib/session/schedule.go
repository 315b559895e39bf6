package session

import (
	"context"
	"time"
)

// ExecuteAt blocks until the given instant, then runs the action once.
// Instants in the past run immediately. Cancelling the context abandons a
// pending action; once the action starts it runs to completion.
//
// The identity lock is NOT held during the wait, only the action's own
// requests serialize, so other work on the identity proceeds while a
// registration sits waiting for its pass time. Pass-time windows are
// minute-granularity on the remote; sub-second precision is neither
// guaranteed nor needed.
func ExecuteAt(ctx context.Context, at time.Time, action func(ctx context.Context) error) error {
	delay := time.Until(at)
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return action(ctx)
}
