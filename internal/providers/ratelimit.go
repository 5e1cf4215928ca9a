package providers

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by requests made after the client was closed.
var ErrClosed = errors.New("client closed")

// rateLimiter hands out up to burst requests at once and adds one token every
// 1/rate seconds. A nil limiter never blocks.
type rateLimiter struct {
	tokens chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newRateLimiter(ratePerSec, burst int) *rateLimiter {
	if ratePerSec <= 0 {
		return nil
	}
	burst = max(burst, 1)

	l := &rateLimiter{
		tokens: make(chan struct{}, burst),
		done:   make(chan struct{}),
	}
	for len(l.tokens) < burst {
		l.tokens <- struct{}{}
	}
	go l.refill(time.Second / time.Duration(ratePerSec))
	return l
}

func (l *rateLimiter) refill(every time.Duration) {
	if every <= 0 {
		every = time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			select {
			case l.tokens <- struct{}{}:
			default:
			}
		}
	}
}

// Wait blocks until a token is free, ctx ends or the limiter is stopped.
func (l *rateLimiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	select {
	case <-l.done:
		return ErrClosed
	default:
	}
	select {
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-l.tokens:
		return nil
	}
}

// Stop ends the refill goroutine. It is safe to call more than once.
func (l *rateLimiter) Stop() {
	if l == nil {
		return
	}
	l.once.Do(func() { close(l.done) })
}
