package llm

import (
	"context"

	llmclient "projectarchitect/internal/llm/client"
)

// PromptHook observes every call that reaches it.
type PromptHook interface {
	Before(ctx context.Context, phase string, req llmclient.Request)
	After(ctx context.Context, phase string, out string, err error)
}

// WithHook reports calls to hook. A nil hook is skipped.
func WithHook(hook PromptHook) Middleware {
	if hook == nil {
		return nil
	}
	return func(next llmclient.Generator) llmclient.Generator {
		return &hooked{next: next, hook: hook}
	}
}

type hooked struct {
	next llmclient.Generator
	hook PromptHook
}

func (h *hooked) Name() string { return h.next.Name() }
func (h *hooked) Close() error { return h.next.Close() }

func (h *hooked) Generate(ctx context.Context, req llmclient.Request) (string, error) {
	phase := PhaseFrom(ctx)
	h.hook.Before(ctx, phase, req)
	out, err := h.next.Generate(ctx, req)
	h.hook.After(ctx, phase, out, err)
	return out, err
}
