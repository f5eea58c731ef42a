package llm

import (
	llmclient "projectarchitect/internal/llm/client"
)

// Middleware decorates a Generator to inject cross-cutting concerns
// (rate limiting, retries, caching, logging, hooks).
type Middleware func(llmclient.Generator) llmclient.Generator

// Wrap applies middlewares in left-to-right order.
// Example: Wrap(inner, A, B) => A(B(inner))
func Wrap(inner llmclient.Generator, mws ...Middleware) llmclient.Generator {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		out = mws[i](out)
	}
	return out
}
