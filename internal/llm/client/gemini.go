package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	genai "google.golang.org/genai"
)

// GeminiClient is a thin wrapper around the official genai client.
// It only focuses on the API call itself. Cross-cutting concerns
// (rate limiting, retries, logging, caching) are applied via middleware.
type GeminiClient struct {
	cli   *genai.Client
	model string
}

func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &GeminiClient{cli: cli, model: model}, nil
}

func (g *GeminiClient) Name() string { return "Gemini:" + g.model }
func (g *GeminiClient) Close() error { return nil }

func (g *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature != nil {
		t := float32(*req.Temperature)
		cfg.Temperature = &t
	}

	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: req.Prompt}}}},
		cfg,
	)
	if err != nil {
		return "", g.classify(ctx, err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", NewMalformedError(g.Name(), errors.New("no candidates in response"))
	}
	return JoinText(g.Name(), geminiBlocks(resp.Candidates[0].Content.Parts))
}

// geminiBlocks drops thought parts; they are reasoning traces, not output.
func geminiBlocks(parts []*genai.Part) []Block {
	out := make([]Block, 0, len(parts))
	for _, p := range parts {
		if p == nil || p.Thought {
			continue
		}
		if p.Text != "" {
			out = append(out, Block{Kind: BlockText, Text: p.Text})
			continue
		}
		out = append(out, Block{Kind: BlockOther})
	}
	return out
}

func (g *GeminiClient) classify(ctx context.Context, err error) error {
	if cerr, ok := classifyContext(ctx, err); ok {
		return cerr
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return g.classifyAPI(apiErr, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return g.classifyAPI(*apiErrPtr, err)
	}
	return NewTransientError(g.Name(), err)
}

func (g *GeminiClient) classifyAPI(apiErr genai.APIError, err error) error {
	if apiErr.Code == 0 {
		return NewTransientError(g.Name(), err)
	}
	var retryAfter time.Duration
	if apiErr.Code == http.StatusTooManyRequests {
		retryAfter = geminiRetryDelay(apiErr.Details)
	}
	return ClassifyStatus(g.Name(), apiErr.Code, fmt.Errorf("%s: %w", apiErr.Status, err), retryAfter)
}

// geminiRetryDelay reads google.rpc.RetryInfo ("retryDelay": "12s") from
// error details.
func geminiRetryDelay(details []map[string]any) time.Duration {
	for _, d := range details {
		v, ok := d["retryDelay"].(string)
		if !ok {
			continue
		}
		if dur, err := time.ParseDuration(v); err == nil && dur > 0 {
			return dur
		}
	}
	return 0
}
