// Package bootstrap assembles the orchestrator from configuration for the
// command-line and server entry points.
package bootstrap

import (
	"context"
	"strings"

	"k8s.io/klog/v2"

	"projectarchitect/internal/config"
	"projectarchitect/internal/demo"
	"projectarchitect/internal/llm"
	llmclient "projectarchitect/internal/llm/client"
	"projectarchitect/internal/pipeline"
)

// Generator builds the generation client chain for cfg. The "fake"
// provider answers from the offline demo script.
func Generator(ctx context.Context, cfg config.LLM) (llmclient.Generator, error) {
	var base llmclient.Generator
	if strings.EqualFold(strings.TrimSpace(cfg.Provider), "fake") {
		base = demo.Client()
	}
	gen, err := llm.NewGenerator(ctx, cfg, base, nil)
	if err != nil {
		return nil, err
	}
	klog.V(1).InfoS("generation client ready", "provider", cfg.Provider, "model", cfg.Model)
	return gen, nil
}

// Orchestrator builds a pipeline orchestrator with the pipeline and
// generation limits of cfg. Extra options are applied last.
func Orchestrator(ctx context.Context, cfg config.Config, opts ...pipeline.Option) (*pipeline.Orchestrator, error) {
	gen, err := Generator(ctx, cfg.LLM)
	if err != nil {
		return nil, err
	}
	temperature := cfg.LLM.Temperature
	base := []pipeline.Option{
		pipeline.WithMaxConcurrentRuns(cfg.Pipeline.MaxConcurrentRuns),
		pipeline.WithMaxDescriptionLength(cfg.Pipeline.MaxDescriptionLength),
		pipeline.WithGenerationParams(cfg.LLM.MaxTokens, &temperature),
	}
	return pipeline.New(gen, append(base, opts...)...), nil
}
