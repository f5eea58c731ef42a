package llm

import (
	"context"
	"sync"
	"time"

	"k8s.io/klog/v2"

	llmclient "projectarchitect/internal/llm/client"
)

// WindowLimiter admits at most Limit calls per rolling Window. One limiter is
// shared by every caller of a client instance; state is mutated under a short
// critical section and waiting happens outside it.
type WindowLimiter struct {
	limit  int
	window time.Duration

	mu    sync.Mutex
	stamp []time.Time

	now   func() time.Time
	sleep Sleeper
}

// NewWindowLimiter returns nil (no limiting) when limit or window is not
// positive.
func NewWindowLimiter(limit int, window time.Duration) *WindowLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	return &WindowLimiter{limit: limit, window: window, now: time.Now, sleep: sleepCtx}
}

// reserve records a call if the window has room, otherwise returns how long
// until the oldest call leaves the window.
func (l *WindowLimiter) reserve() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.stamp) && !l.stamp[i].After(cutoff) {
		i++
	}
	l.stamp = l.stamp[i:]
	if len(l.stamp) < l.limit {
		l.stamp = append(l.stamp, now)
		return 0, true
	}
	return l.stamp[0].Add(l.window).Sub(now), false
}

// Wait blocks until the call fits the window or ctx is done.
func (l *WindowLimiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		wait, ok := l.reserve()
		if ok {
			return nil
		}
		if wait <= 0 {
			wait = time.Millisecond
		}
		klog.V(4).InfoS("rate limit wait", "phase", PhaseFrom(ctx), "wait", wait)
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// InWindow reports how many calls currently count against the budget.
func (l *WindowLimiter) InWindow() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.window)
	n := 0
	for _, t := range l.stamp {
		if t.After(cutoff) {
			n++
		}
	}
	return n
}

// RateLimit throttles calls through l before they reach the provider.
// A nil limiter disables throttling.
func RateLimit(l *WindowLimiter) Middleware {
	return func(next llmclient.Generator) llmclient.Generator {
		return &rateLimited{next: next, rl: l}
	}
}

type rateLimited struct {
	next llmclient.Generator
	rl   *WindowLimiter
}

func (c *rateLimited) Name() string { return c.next.Name() }
func (c *rateLimited) Close() error { return c.next.Close() }

func (c *rateLimited) Generate(ctx context.Context, req llmclient.Request) (string, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return "", err
	}
	return c.next.Generate(ctx, req)
}
