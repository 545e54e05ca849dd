package genesis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const defaultRetryBackoff = 100 * time.Millisecond

// retry runs fn until it succeeds or MaxRetries extra attempts have failed,
// doubling the backoff between attempts. Each failure is logged with the
// attempt number, the next delay and fields.
func (s *Seeder) retry(ctx context.Context, call string, fn func(context.Context) error, fields ...zap.Field) error {
	maxRetries := s.cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	delay := s.cfg.RetryBackoff
	if delay <= 0 {
		delay = defaultRetryBackoff
	}

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt > maxRetries {
			return fmt.Errorf("%s failed after %d attempts: %w", call, attempt, err)
		}

		s.logger.Warn("rpc call failed, retrying", append([]zap.Field{
			zap.String("call", call),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		}, fields...)...)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}
