// Package fetch holds the retry and rate-limit plumbing shared by the
// source clients. Backoff lives entirely inside the client boundary so
// the reconciler and feature engine stay pure.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/HrushiSanap/crypto-top100-automation/internal/domain"
)

// Limiter enforces a minimum interval between outgoing requests. Public
// market APIs throttle aggressively; pacing requests is cheaper than
// eating 429s.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

func NewLimiter(interval time.Duration) *Limiter {
	return &Limiter{interval: interval}
}

// Wait blocks until the minimum interval since the previous request has
// elapsed, or the context is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.interval <= 0 {
		return nil
	}

	l.mu.Lock()
	now := time.Now()
	next := l.last.Add(l.interval)
	if next.Before(now) {
		next = now
	}
	l.last = next
	l.mu.Unlock()

	delay := time.Until(next)
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Retry runs op up to maxAttempts times, sleeping baseDelay, 2*baseDelay,
// 4*baseDelay... between attempts. Only transient errors are retried;
// permanent errors and context cancellation return immediately.
func Retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, op func() error) error {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := baseDelay << (attempt - 1)
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}

		err = op()
		if err == nil {
			return nil
		}
		if !domain.IsTransient(err) {
			return err
		}
	}
	return err
}

// ClassifyStatus maps an HTTP status to the source error taxonomy.
// 429 and 5xx are transient (retried with backoff); 404 and other 4xx
// are permanent (the asset or endpoint is unavailable this run).
func ClassifyStatus(op string, status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests || status >= 500:
		return &domain.TransientError{Op: op, Err: fmt.Errorf("HTTP %d", status)}
	case status == http.StatusNotFound:
		return &domain.PermanentError{Op: op, Reason: "not found"}
	default:
		return &domain.PermanentError{Op: op, Reason: fmt.Sprintf("HTTP %d", status)}
	}
}
