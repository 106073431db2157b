package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// ScriptedProvider replays a fixed list of responses, for tests. It records
// every message sequence it was called with.
type ScriptedProvider struct {
	mu        sync.Mutex
	responses []string
	next      int

	Calls [][]Message
}

// NewScriptedProvider returns a provider that answers with the given responses
// in order.
func NewScriptedProvider(responses ...string) *ScriptedProvider {
	return &ScriptedProvider{responses: responses}
}

// Complete returns the next scripted response.
func (p *ScriptedProvider) Complete(_ context.Context, messages []Message) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, messages)
	if p.next >= len(p.responses) {
		return "", fmt.Errorf("no scripted response for call %d", p.next+1)
	}
	resp := p.responses[p.next]
	p.next++
	return resp, nil
}

// Stream delivers the next scripted response word by word.
func (p *ScriptedProvider) Stream(ctx context.Context, messages []Message, fn func(string) error) error {
	resp, err := p.Complete(ctx, messages)
	if err != nil {
		return err
	}
	words := strings.SplitAfter(resp, " ")
	for _, w := range words {
		if err := fn(w); err != nil {
			return err
		}
	}
	return nil
}
