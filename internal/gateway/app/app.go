package app

import (
	"context"
	"errors"
	"fmt"

	"k8s.io/klog/v2"

	"projectarchitect/internal/artifact"
	"projectarchitect/internal/bootstrap"
	"projectarchitect/internal/config"
	"projectarchitect/internal/gateway/handler"
	"projectarchitect/internal/gateway/server"
	"projectarchitect/internal/pipeline"
)

// App wires the orchestrator, artifact store and HTTP server of the API.
type App struct {
	server     *server.Server
	runs       *pipeline.Orchestrator
	closeStore func() error
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	store, closeStore, err := artifact.Open(ctx, cfg.Artifact)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact store: %w", err)
	}
	klog.InfoS("artifact store ready", "backend", cfg.Artifact.Backend)

	runs, err := bootstrap.Orchestrator(ctx, *cfg, pipeline.WithFinishHook(artifact.FinishHook(store)))
	if err != nil {
		_ = closeStore()
		return nil, fmt.Errorf("failed to build orchestrator: %w", err)
	}

	mux := server.NewMux(handler.NewService(runs, store))
	return &App{
		server:     server.New(cfg.Port, mux),
		runs:       runs,
		closeStore: closeStore,
	}, nil
}

func (a *App) Start() error {
	return a.server.Start()
}

// Shutdown stops accepting requests, cancels live runs and releases the
// artifact store.
func (a *App) Shutdown(ctx context.Context) error {
	return errors.Join(
		a.server.Shutdown(ctx),
		a.runs.Shutdown(ctx),
		a.closeStore(),
	)
}
