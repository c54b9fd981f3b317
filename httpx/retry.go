package httpx

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Retry retries a call a fixed number of times with fixed sleeps.
//
// After a 429 the sleep grows linearly with the attempt number.
type Retry struct {
	Attempts int
	Delay    time.Duration
}

// Do calls fn until it succeeds, Attempts is reached or ctx is done.
func (r Retry) Do(ctx context.Context, fn func(context.Context) error) error {
	attempts := max(r.Attempts, 1)
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		zap.L().Info("attempt failed", zap.Int("attempt", i+1), zap.Int("of", attempts), zap.Error(err))
		if i == attempts-1 {
			break
		}
		wait := r.Delay
		if IsRateLimited(err) {
			wait = r.Delay * time.Duration(i+1)
		}
		if err := Sleep(ctx, wait); err != nil {
			return err
		}
	}
	return err
}

// IsRateLimited reports whether err is a 429 response.
func IsRateLimited(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusTooManyRequests
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// MinInterval enforces a minimum time between the end of a call and the start
// of the next one. Concurrent calls are serialized.
type MinInterval struct {
	Interval time.Duration
	mu       sync.Mutex
	last     time.Time
}

// Do waits for the interval to elapse since the previous call, then calls fn.
func (m *MinInterval) Do(ctx context.Context, fn func(context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.last.IsZero() {
		if wait := time.Until(m.last.Add(m.Interval)); wait > 0 {
			zap.L().Debug("waiting before next call", zap.Duration("wait", wait))
			if err := Sleep(ctx, wait); err != nil {
				return err
			}
		}
	}
	err := fn(ctx)
	m.last = time.Now()
	return err
}
