package llmclient

import (
	"context"
	"errors"
	"sync"
)

// Reply is one canned outcome of a ScriptedClient.
type Reply struct {
	Text string
	Err  error
}

// ScriptedClient returns canned replies for offline runs and tests. Replies
// are looked up by the key returned from KeyFunc (typically the stage name
// from the context); unmatched calls fall through to the Sequence queue.
type ScriptedClient struct {
	mu       sync.Mutex
	ByKey    map[string][]Reply
	Sequence []Reply
	KeyFunc  func(ctx context.Context, req Request) string
	calls    []Request
}

var ErrScriptExhausted = errors.New("scripted client: no reply left")

func NewScriptedClient(keyFn func(ctx context.Context, req Request) string) *ScriptedClient {
	return &ScriptedClient{ByKey: map[string][]Reply{}, KeyFunc: keyFn}
}

// On queues replies for key. The last reply for a key repeats once the
// queue drains.
func (s *ScriptedClient) On(key string, replies ...Reply) *ScriptedClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ByKey == nil {
		s.ByKey = map[string][]Reply{}
	}
	s.ByKey[key] = append(s.ByKey[key], replies...)
	return s
}

// Then appends replies to the key-independent sequence.
func (s *ScriptedClient) Then(replies ...Reply) *ScriptedClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Sequence = append(s.Sequence, replies...)
	return s
}

func (s *ScriptedClient) Name() string { return "Scripted" }
func (s *ScriptedClient) Close() error { return nil }

func (s *ScriptedClient) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)

	if s.KeyFunc != nil {
		key := s.KeyFunc(ctx, req)
		if q := s.ByKey[key]; len(q) > 0 {
			r := q[0]
			if len(q) > 1 {
				s.ByKey[key] = q[1:]
			}
			return s.answer(r)
		}
	}
	if len(s.Sequence) == 0 {
		return "", NewMalformedError(s.Name(), ErrScriptExhausted)
	}
	r := s.Sequence[0]
	s.Sequence = s.Sequence[1:]
	return s.answer(r)
}

// answer treats canned text like a provider's single text block, so blank
// text is a malformed response.
func (s *ScriptedClient) answer(r Reply) (string, error) {
	if r.Err != nil {
		return "", r.Err
	}
	return JoinText(s.Name(), []Block{{Kind: BlockText, Text: r.Text}})
}

// Calls returns a copy of the requests seen so far.
func (s *ScriptedClient) Calls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.calls...)
}
