package llm

import (
	"context"
	"time"

	"k8s.io/klog/v2"

	llmclient "projectarchitect/internal/llm/client"
)

// WithLogging logs request size, latency and errors through klog.
func WithLogging() Middleware {
	return func(next llmclient.Generator) llmclient.Generator {
		return &logging{next: next}
	}
}

type logging struct {
	next llmclient.Generator
}

func (l *logging) Name() string { return l.next.Name() }
func (l *logging) Close() error { return l.next.Close() }

func (l *logging) Generate(ctx context.Context, req llmclient.Request) (string, error) {
	start := time.Now()
	phase := PhaseFrom(ctx)
	klog.V(4).InfoS("generation request", "client", l.next.Name(), "run", RunIDFrom(ctx), "phase", phase,
		"promptBytes", len(req.Prompt), "systemBytes", len(req.System))
	klog.V(6).InfoS("generation prompt", "phase", phase, "prompt", req.Prompt)
	out, err := l.next.Generate(ctx, req)
	if err != nil {
		klog.ErrorS(err, "generation failed", "client", l.next.Name(), "run", RunIDFrom(ctx), "phase", phase,
			"kind", llmclient.KindOf(err).String(), "elapsed", time.Since(start))
		return "", err
	}
	klog.V(4).InfoS("generation done", "client", l.next.Name(), "phase", phase,
		"responseBytes", len(out), "elapsed", time.Since(start))
	klog.V(6).InfoS("generation response", "phase", phase, "response", out)
	return out, nil
}
