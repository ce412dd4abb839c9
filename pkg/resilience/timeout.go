package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// WithTimeout runs fn under a deadline of d derived from ctx. fn must honour
// the context it is given. A deadline hit by fn is reported with the limit;
// cancellation of ctx itself is reported as such. A non-positive d runs fn
// under ctx unchanged.
func WithTimeout(ctx context.Context, d time.Duration, name string, fn func(ctx context.Context) error) error {
	if d <= 0 {
		return fn(ctx)
	}
	bounded, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	err := fn(bounded)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return fmt.Errorf("%s: cancelled: %w", name, ctx.Err())
	case errors.Is(bounded.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%s: exceeded %v: %w", name, d, errors.Join(context.DeadlineExceeded, err))
	}
	return fmt.Errorf("%s: %w", name, err)
}
