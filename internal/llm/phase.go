package llm

import "context"

type ctxKeyPhase struct{}
type ctxKeyRun struct{}

// WithPhase tags ctx with the pipeline stage issuing the call.
func WithPhase(ctx context.Context, phase string) context.Context {
	return context.WithValue(ctx, ctxKeyPhase{}, phase)
}

// PhaseFrom returns the phase string stored in the context.
func PhaseFrom(ctx context.Context) string {
	if v := ctx.Value(ctxKeyPhase{}); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return "unknown"
}

// WithRunID tags ctx with the run issuing the call, for logs and hooks.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRun{}, id)
}

func RunIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyRun{}).(string); ok {
		return v
	}
	return ""
}
