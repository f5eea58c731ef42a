package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
	"k8s.io/klog/v2"

	llmclient "projectarchitect/internal/llm/client"
)

// Cache serves identical requests from an LRU of successful responses.
// Prompts are built deterministically, so a repeated request is a repeated
// answer. size <= 0 disables caching.
func Cache(size int) Middleware {
	if size <= 0 {
		return nil
	}
	return func(next llmclient.Generator) llmclient.Generator {
		c, err := lru.New[string, string](size)
		if err != nil {
			klog.ErrorS(err, "response cache disabled")
			return next
		}
		return &caching{next: next, lru: c}
	}
}

type caching struct {
	next llmclient.Generator
	lru  *lru.Cache[string, string]
}

func (c *caching) Name() string { return c.next.Name() }
func (c *caching) Close() error { return c.next.Close() }

func (c *caching) Generate(ctx context.Context, req llmclient.Request) (string, error) {
	key := requestKey(c.next.Name(), req)
	if v, ok := c.lru.Get(key); ok {
		klog.V(4).InfoS("generation cache hit", "client", c.next.Name(), "phase", PhaseFrom(ctx))
		return v, nil
	}
	out, err := c.next.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	c.lru.Add(key, out)
	return out, nil
}

func requestKey(name string, req llmclient.Request) string {
	h := sha256.New()
	write := func(s string) {
		h.Write([]byte(strconv.Itoa(len(s))))
		h.Write([]byte{':'})
		h.Write([]byte(s))
	}
	write(name)
	write(req.System)
	write(req.Prompt)
	write(strconv.Itoa(req.MaxTokens))
	if req.Temperature != nil {
		write(strconv.FormatFloat(*req.Temperature, 'g', -1, 64))
	} else {
		write("-")
	}
	return hex.EncodeToString(h.Sum(nil))
}
