// Package readiness waits until a document holds the tables discovery is
// going to work on.
package readiness

import (
	"context"
	"fmt"
	"time"

	"tabcopy/pkg/errors"

	"github.com/rs/zerolog"
)

const DefaultInterval = 500 * time.Millisecond

// Counter reports how many target tables the source currently holds.
type Counter func(ctx context.Context) (int, error)

type Options struct {
	// Timeout bounds the whole wait. Zero means only ctx bounds it.
	Timeout time.Duration
	// Interval between counts. Defaults to DefaultInterval.
	Interval time.Duration
	// MinCount is the number of tables that makes the source ready.
	// Values below 1 are treated as 1.
	MinCount int
	Logger   zerolog.Logger
	// OnPoll is called after every count with the attempt number and count.
	OnPoll func(attempt, count int)
}

// Wait polls counter until it reports at least MinCount tables and returns
// the last count. Counter errors are logged and retried. Wait fails with a
// timeout error once Timeout elapses and with a cancellation error when
// ctx is done.
func Wait(ctx context.Context, counter Counter, opts Options) (int, error) {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	minCount := opts.MinCount
	if minCount < 1 {
		minCount = 1
	}

	parent := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var (
		count   int
		lastErr error
	)
	for attempt := 1; ; attempt++ {
		n, err := counter(ctx)
		if err != nil {
			lastErr = err
			opts.Logger.Debug().Err(err).Int("attempt", attempt).Msg("table count failed")
		} else {
			count = n
			lastErr = nil
			opts.Logger.Debug().Int("attempt", attempt).Int("tables", n).Msg("table count")
		}

		if opts.OnPoll != nil {
			opts.OnPoll(attempt, count)
		}

		if err == nil && count >= minCount {
			return count, nil
		}

		select {
		case <-ctx.Done():
			return count, waitError(parent, count, minCount, lastErr)
		case <-ticker.C:
		}
	}
}

func waitError(parent context.Context, count, minCount int, lastErr error) error {
	if parent.Err() != nil && parent.Err() != context.DeadlineExceeded {
		return errors.CancelledError("waiting for tables")
	}

	e := errors.TimeoutError(fmt.Sprintf("waiting for tables (found %d, need %d)", count, minCount))
	e.Underlying = lastErr
	return e
}
