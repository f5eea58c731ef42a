package llmclient

import (
	"context"
	"errors"
	"regexp"
	"strconv"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// OpenAIClient drives any OpenAI-compatible chat completion endpoint through
// the eino ChatModel abstraction.
type OpenAIClient struct {
	chat  model.ToolCallingChatModel
	model string
}

func NewOpenAIClient(ctx context.Context, apiKey, baseURL, modelName string) (*OpenAIClient, error) {
	if modelName == "" {
		modelName = "gpt-4o-mini"
	}
	cfg := &openai.ChatModelConfig{
		APIKey: apiKey,
		Model:  modelName,
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	chat, err := openai.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &OpenAIClient{chat: chat, model: modelName}, nil
}

func newOpenAIClientWith(chat model.ToolCallingChatModel, modelName string) *OpenAIClient {
	return &OpenAIClient{chat: chat, model: modelName}
}

func (c *OpenAIClient) Name() string { return "OpenAI:" + c.model }
func (c *OpenAIClient) Close() error { return nil }

func (c *OpenAIClient) Generate(ctx context.Context, req Request) (string, error) {
	msgs := make([]*schema.Message, 0, 2)
	if req.System != "" {
		msgs = append(msgs, schema.SystemMessage(req.System))
	}
	msgs = append(msgs, schema.UserMessage(req.Prompt))

	var opts []model.Option
	if req.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(req.MaxTokens))
	}
	if req.Temperature != nil {
		opts = append(opts, model.WithTemperature(float32(*req.Temperature)))
	}

	resp, err := c.chat.Generate(ctx, msgs, opts...)
	if err != nil {
		return "", c.classify(ctx, err)
	}
	if resp == nil {
		return "", NewMalformedError(c.Name(), errors.New("nil message"))
	}
	return JoinText(c.Name(), openAIBlocks(resp))
}

func openAIBlocks(msg *schema.Message) []Block {
	var out []Block
	if msg.Content != "" {
		out = append(out, Block{Kind: BlockText, Text: msg.Content})
	}
	for range msg.ToolCalls {
		out = append(out, Block{Kind: BlockOther})
	}
	return out
}

// The eino openai backend surfaces HTTP failures as formatted errors
// ("error, status code: 429, ..."); the status is recovered from the text.
var statusPattern = regexp.MustCompile(`status code:\s*(\d{3})`)

func (c *OpenAIClient) classify(ctx context.Context, err error) error {
	if cerr, ok := classifyContext(ctx, err); ok {
		return cerr
	}
	if m := statusPattern.FindStringSubmatch(err.Error()); m != nil {
		if status, convErr := strconv.Atoi(m[1]); convErr == nil {
			return ClassifyStatus(c.Name(), status, err, 0)
		}
	}
	return NewTransientError(c.Name(), err)
}
