// Package policy implements turn decision engines. Every engine answers a
// single synchronous call per REQUEST_ACTION; the protocol layer never
// needs to know which one is plugged in.
package policy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brensch/snekline/game"
	"github.com/brensch/snekline/rules"
)

// Policy chooses the action for selfID given the current snapshot.
// selfID may be -1 (unassigned) or absent from the snapshot.
type Policy interface {
	Decide(ctx context.Context, snap game.Snapshot, selfID int) (rules.Action, error)
}

// Func adapts a function to Policy.
type Func func(ctx context.Context, snap game.Snapshot, selfID int) (rules.Action, error)

func (f Func) Decide(ctx context.Context, snap game.Snapshot, selfID int) (rules.Action, error) {
	return f(ctx, snap, selfID)
}

// Straight always goes straight. It is the reference host's stub policy.
type Straight struct{}

func (Straight) Decide(context.Context, game.Snapshot, int) (rules.Action, error) {
	return rules.Straight, nil
}

var ErrInvalidAction = errors.New("policy returned an invalid action")

// Fallback wraps a policy so that a usable action always comes back.
//
// Decide returns Default when the inner policy errors, panics, returns an
// action outside rules.Actions, or overruns Timeout. The error is non-nil
// exactly when Default was substituted, for logging.
type Fallback struct {
	Policy  Policy
	Default rules.Action
	Timeout time.Duration // advisory deadline passed to the inner policy; 0 disables
}

func (f Fallback) Decide(ctx context.Context, snap game.Snapshot, selfID int) (action rules.Action, err error) {
	if f.Policy == nil {
		return f.Default, nil
	}
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			action, err = f.Default, fmt.Errorf("policy panic: %v", r)
		}
	}()

	a, err := f.Policy.Decide(ctx, snap, selfID)
	if err != nil {
		return f.Default, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return f.Default, fmt.Errorf("policy overran deadline: %w", ctxErr)
	}
	if a < rules.Straight || a > rules.TurnRight {
		return f.Default, fmt.Errorf("%w: %d", ErrInvalidAction, int(a))
	}
	return a, nil
}
