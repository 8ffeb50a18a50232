package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// permanent marks err as not worth retrying.
func permanent(err error) error { return permanentError{err: err} }

// retry calls fn, then up to retries more times with a fixed delay between
// attempts. It stops early on success, on a permanent error, or when ctx
// is done.
func retry(ctx context.Context, log *zap.Logger, unit string, retries int, delay time.Duration, fn func(context.Context) error) error {
	var err error
	for attempt := 1; attempt <= retries+1; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		var p permanentError
		if errors.As(err, &p) || ctx.Err() != nil || attempt > retries {
			break
		}

		log.Warn("unit failed, retry scheduled",
			zap.String("unit", unit),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", retries+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
	return err
}
