package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	genai "google.golang.org/genai"
)

func TestJoinText(t *testing.T) {
	got, err := JoinText("p", []Block{{Kind: BlockText, Text: "a"}, {Kind: BlockOther}, {Kind: BlockText, Text: "b"}})
	require.NoError(t, err)
	assert.Equal(t, "ab", got)

	_, err = JoinText("p", []Block{{Kind: BlockOther}, {Kind: BlockOther}})
	require.Error(t, err)
	assert.Equal(t, KindMalformed, KindOf(err))
	assert.ErrorIs(t, err, ErrNoTextContent)

	_, err = JoinText("p", nil)
	assert.Equal(t, KindMalformed, KindOf(err))

	_, err = JoinText("p", []Block{{Kind: BlockText, Text: "  \n"}})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		status int
		want   Kind
	}{
		{http.StatusUnauthorized, KindAuth},
		{http.StatusForbidden, KindAuth},
		{http.StatusTooManyRequests, KindRateLimit},
		{http.StatusRequestTimeout, KindTransient},
		{http.StatusConflict, KindTransient},
		{http.StatusInternalServerError, KindTransient},
		{http.StatusServiceUnavailable, KindTransient},
		{http.StatusBadRequest, KindMalformed},
		{http.StatusNotFound, KindMalformed},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.status), func(t *testing.T) {
			err := ClassifyStatus("p", tc.status, nil, 0)
			assert.Equal(t, tc.want, KindOf(err))
		})
	}

	err := ClassifyStatus("p", 429, errors.New("slow down"), 3*time.Second)
	var ge *GenerationError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, 3*time.Second, ge.RetryAfter)
	assert.Contains(t, err.Error(), "slow down")
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewTransientError("p", errors.New("x"))))
	assert.True(t, IsRetryable(NewRateLimitError("p", errors.New("x"), 0)))
	assert.False(t, IsRetryable(NewAuthError("p", errors.New("x"))))
	assert.False(t, IsRetryable(NewMalformedError("p", errors.New("x"))))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(fmt.Errorf("wrapped: %w", NewAuthError("p", nil))))
	assert.True(t, IsRetryable(fmt.Errorf("wrapped: %w", NewTransientError("p", nil))))
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 7*time.Second, ParseRetryAfter("7", now))
	assert.Equal(t, time.Duration(0), ParseRetryAfter("", now))
	assert.Equal(t, time.Duration(0), ParseRetryAfter("-3", now))
	assert.Equal(t, time.Duration(0), ParseRetryAfter("soon", now))
	later := now.Add(90 * time.Second).Format(http.TimeFormat)
	assert.Equal(t, 90*time.Second, ParseRetryAfter(later, now))
}

func TestGeminiBlocksSkipsThoughts(t *testing.T) {
	blocks := geminiBlocks([]*genai.Part{
		{Text: "thinking...", Thought: true},
		{Text: "{\"a\":1}"},
		{InlineData: &genai.Blob{MIMEType: "image/png"}},
		nil,
	})
	require.Len(t, blocks, 2)
	assert.Equal(t, BlockText, blocks[0].Kind)
	assert.Equal(t, BlockOther, blocks[1].Kind)

	_, err := JoinText("g", geminiBlocks([]*genai.Part{{InlineData: &genai.Blob{}}}))
	assert.Equal(t, KindMalformed, KindOf(err))
}

func TestGeminiClassify(t *testing.T) {
	g := &GeminiClient{model: "m"}
	ctx := context.Background()

	err := g.classify(ctx, genai.APIError{Code: 401, Status: "UNAUTHENTICATED"})
	assert.Equal(t, KindAuth, KindOf(err))

	err = g.classify(ctx, genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED", Details: []map[string]any{{"retryDelay": "12s"}}})
	var ge *GenerationError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, KindRateLimit, ge.Kind)
	assert.Equal(t, 12*time.Second, ge.RetryAfter)

	err = g.classify(ctx, genai.APIError{Code: 503})
	assert.Equal(t, KindTransient, KindOf(err))

	err = g.classify(ctx, errors.New("connection reset"))
	assert.Equal(t, KindTransient, KindOf(err))

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	err = g.classify(cctx, errors.New("aborted"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsRetryable(err))
}

type fakeChat struct {
	resp *schema.Message
	err  error
	got  []*schema.Message
	opts *model.Options
}

func (f *fakeChat) Generate(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.got = in
	f.opts = model.GetCommonOptions(&model.Options{}, opts...)
	return f.resp, f.err
}

func (f *fakeChat) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

func (f *fakeChat) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return f, nil
}

func TestOpenAIClientGenerate(t *testing.T) {
	chat := &fakeChat{resp: &schema.Message{Role: schema.Assistant, Content: "hello"}}
	c := newOpenAIClientWith(chat, "gpt-test")

	got, err := c.Generate(context.Background(), Request{Prompt: "p", System: "s", MaxTokens: 99, Temperature: Float(0.5)})
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
	require.Len(t, chat.got, 2)
	assert.Equal(t, schema.System, chat.got[0].Role)
	assert.Equal(t, schema.User, chat.got[1].Role)
	require.NotNil(t, chat.opts.MaxTokens)
	assert.Equal(t, 99, *chat.opts.MaxTokens)
	require.NotNil(t, chat.opts.Temperature)
	assert.InDelta(t, 0.5, *chat.opts.Temperature, 1e-6)
}

func TestOpenAIClientErrors(t *testing.T) {
	chat := &fakeChat{err: errors.New("error, status code: 429, message: too many")}
	c := newOpenAIClientWith(chat, "gpt-test")
	_, err := c.Generate(context.Background(), Request{Prompt: "p"})
	assert.Equal(t, KindRateLimit, KindOf(err))

	chat.err = errors.New("error, status code: 401, message: bad key")
	_, err = c.Generate(context.Background(), Request{Prompt: "p"})
	assert.Equal(t, KindAuth, KindOf(err))

	chat.err = nil
	chat.resp = &schema.Message{Role: schema.Assistant, ToolCalls: []schema.ToolCall{{ID: "1"}}}
	_, err = c.Generate(context.Background(), Request{Prompt: "p"})
	assert.Equal(t, KindMalformed, KindOf(err))
}

func TestScriptedClient(t *testing.T) {
	type keyT struct{}
	s := NewScriptedClient(func(ctx context.Context, _ Request) string {
		v, _ := ctx.Value(keyT{}).(string)
		return v
	})
	s.On("a", Reply{Text: "a1"}, Reply{Text: "a2"})
	s.Then(Reply{Text: "seq"})

	ctx := context.WithValue(context.Background(), keyT{}, "a")
	for _, want := range []string{"a1", "a2", "a2"} {
		got, err := s.Generate(ctx, Request{})
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	got, err := s.Generate(context.Background(), Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "seq", got)

	_, err = s.Generate(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrScriptExhausted)
	assert.Len(t, s.Calls(), 5)
}

func TestScriptedBlankTextIsMalformed(t *testing.T) {
	s := NewScriptedClient(nil).Then(Reply{Text: ""}, Reply{Text: " \n"}, Reply{Err: NewTransientError("x", errors.New("503"))})

	_, err := s.Generate(context.Background(), Request{})
	assert.Equal(t, KindMalformed, KindOf(err))
	assert.ErrorIs(t, err, ErrEmptyResponse)

	_, err = s.Generate(context.Background(), Request{})
	assert.Equal(t, KindMalformed, KindOf(err))

	_, err = s.Generate(context.Background(), Request{})
	assert.Equal(t, KindTransient, KindOf(err))
}
