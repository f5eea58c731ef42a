package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"projectarchitect/internal/config"
)

func TestNewWithFakeProvider(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.Provider = "fake"
	cfg.Port = "127.0.0.1:0"

	a, err := New(context.Background(), &cfg)
	require.NoError(t, err)
	assert.NoError(t, a.Shutdown(context.Background()))
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.Provider = "fake"
	cfg.Artifact.Backend = "tape"
	_, err := New(context.Background(), &cfg)
	assert.ErrorContains(t, err, "tape")
}
