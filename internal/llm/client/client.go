package llmclient

import (
	"context"
	"strings"
)

// Request is one call to a generation service.
type Request struct {
	Prompt string
	System string
	// MaxTokens <= 0 leaves the provider default.
	MaxTokens int
	// Temperature nil leaves the provider default.
	Temperature *float64
}

// Generator defines the interface for text-generation providers. It only
// covers the call itself; rate limiting, retries, caching and logging are
// applied via middleware.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
	Close() error
}

// BlockKind tags a content block of a provider response.
type BlockKind int

const (
	BlockText BlockKind = iota
	BlockOther
)

// Block is one ordered content block of a provider response.
type Block struct {
	Kind BlockKind
	Text string
}

// JoinText concatenates the text blocks in order. A response without a
// non-empty text block is malformed.
func JoinText(provider string, blocks []Block) (string, error) {
	var b strings.Builder
	seen := false
	for _, blk := range blocks {
		if blk.Kind != BlockText {
			continue
		}
		seen = true
		b.WriteString(blk.Text)
	}
	if !seen {
		return "", NewMalformedError(provider, ErrNoTextContent)
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", NewMalformedError(provider, ErrEmptyResponse)
	}
	return b.String(), nil
}

// Float returns a pointer to v, for Request.Temperature.
func Float(v float64) *float64 { return &v }
