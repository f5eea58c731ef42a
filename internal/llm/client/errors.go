package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNoTextContent = errors.New("response has no text content")
	ErrEmptyResponse = errors.New("response is empty")
)

// Kind classifies generation failures.
type Kind int

const (
	KindUnknown Kind = iota
	// KindAuth aborts the run immediately.
	KindAuth
	// KindRateLimit is retried with backoff.
	KindRateLimit
	// KindTransient covers timeouts and 5xx responses. Retried with backoff.
	KindTransient
	// KindMalformed means the payload was structurally unusable.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindRateLimit:
		return "rate_limit"
	case KindTransient:
		return "transient"
	case KindMalformed:
		return "malformed_response"
	default:
		return "unknown"
	}
}

// GenerationError is the only error type providers return for failed calls.
type GenerationError struct {
	Kind     Kind
	Provider string
	Err      error
	// RetryAfter is the server-requested wait for rate-limit errors, if any.
	RetryAfter time.Duration
}

func (e *GenerationError) Error() string {
	msg := "generation failed"
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Provider == "" {
		return fmt.Sprintf("%s error: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s error: %s", e.Provider, e.Kind, msg)
}

func (e *GenerationError) Unwrap() error { return e.Err }

func NewAuthError(provider string, err error) error {
	return &GenerationError{Kind: KindAuth, Provider: provider, Err: err}
}

func NewRateLimitError(provider string, err error, retryAfter time.Duration) error {
	return &GenerationError{Kind: KindRateLimit, Provider: provider, Err: err, RetryAfter: retryAfter}
}

func NewTransientError(provider string, err error) error {
	return &GenerationError{Kind: KindTransient, Provider: provider, Err: err}
}

func NewMalformedError(provider string, err error) error {
	return &GenerationError{Kind: KindMalformed, Provider: provider, Err: err}
}

// KindOf extracts the Kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var ge *GenerationError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether err is a rate-limit or transient failure.
// Context errors are never retryable.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch KindOf(err) {
	case KindRateLimit, KindTransient:
		return true
	}
	return false
}

// ClassifyStatus maps a non-2xx HTTP status onto a GenerationError.
func ClassifyStatus(provider string, status int, err error, retryAfter time.Duration) error {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewAuthError(provider, err)
	case status == http.StatusTooManyRequests:
		return NewRateLimitError(provider, err, retryAfter)
	case status == http.StatusRequestTimeout || status == http.StatusConflict || status >= 500:
		return NewTransientError(provider, err)
	case status >= 400:
		return NewMalformedError(provider, err)
	}
	return NewTransientError(provider, err)
}

// ParseRetryAfter reads a Retry-After value given either in seconds or as an
// HTTP date. Unparseable values yield 0.
func ParseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// classifyContext keeps context errors recognisable as such.
func classifyContext(ctx context.Context, err error) (error, bool) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", ctxErr, err), true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err, true
	}
	return nil, false
}
