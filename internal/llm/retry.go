package llm

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"k8s.io/klog/v2"

	llmclient "projectarchitect/internal/llm/client"
)

// RetryPolicy bounds retries of retryable generation failures.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
	// Jitter is the fraction (0..1) of the computed delay that is randomised.
	Jitter float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 4,
		BaseDelay:   500 * time.Millisecond,
		Multiplier:  2,
		MaxDelay:    20 * time.Second,
		Jitter:      0.2,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 300 * time.Millisecond
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Jitter > 1 {
		p.Jitter = 1
	}
	return p
}

// Backoff returns the delay before retry number attempt (1-based: the wait
// after the first failure is Backoff(1, ...)). rnd must return a value in
// [0,1); the delay is spread over [d*(1-Jitter), d*(1+Jitter)] and capped at
// MaxDelay.
func (p RetryPolicy) Backoff(attempt int, rnd float64) time.Duration {
	p = p.normalized()
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.Jitter > 0 {
		d *= 1 + p.Jitter*(2*rnd-1)
	}
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
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

// RetryOption tweaks the retry middleware, mostly for tests.
type RetryOption func(*retrying)

func WithSleeper(s Sleeper) RetryOption {
	return func(r *retrying) { r.sleep = s }
}

func WithRandom(fn func() float64) RetryOption {
	return func(r *retrying) { r.rnd = fn }
}

// Retry retries rate-limit and transient failures according to policy.
// Auth and malformed errors return immediately. A server-requested
// Retry-After longer than the computed backoff wins.
func Retry(policy RetryPolicy, opts ...RetryOption) Middleware {
	policy = policy.normalized()
	return func(next llmclient.Generator) llmclient.Generator {
		r := &retrying{next: next, policy: policy, sleep: sleepCtx, rnd: rand.Float64}
		for _, o := range opts {
			o(r)
		}
		return r
	}
}

type retrying struct {
	next   llmclient.Generator
	policy RetryPolicy
	sleep  Sleeper
	rnd    func() float64
}

func (r *retrying) Name() string { return r.next.Name() }
func (r *retrying) Close() error { return r.next.Close() }

func (r *retrying) Generate(ctx context.Context, req llmclient.Request) (string, error) {
	var last error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		out, err := r.next.Generate(ctx, req)
		if err == nil {
			return out, nil
		}
		if !llmclient.IsRetryable(err) {
			return "", err
		}
		last = err
		if attempt == r.policy.MaxAttempts {
			break
		}
		wait := r.policy.Backoff(attempt, r.rnd())
		if ra := retryAfter(err); ra > wait {
			wait = ra
		}
		klog.V(4).InfoS("generation retry", "client", r.next.Name(), "phase", PhaseFrom(ctx),
			"attempt", attempt, "wait", wait, "err", err)
		if serr := r.sleep(ctx, wait); serr != nil {
			return "", serr
		}
	}
	return "", last
}

func retryAfter(err error) time.Duration {
	if llmclient.KindOf(err) != llmclient.KindRateLimit {
		return 0
	}
	var ge *llmclient.GenerationError
	if errors.As(err, &ge) {
		return ge.RetryAfter
	}
	return 0
}
