package ai

import (
	"context"
	"encoding/json"
	"io"

	"hotorbot/internal/domain/ports/adapter"
)

var (
	_ adapter.AIAdapter     = (*NoopAIAdapter)(nil)
	_ adapter.VisionAdapter = (*NoopAIAdapter)(nil)
)

// NoopAIAdapter is a stand-in for local runs without API keys.
type NoopAIAdapter struct{}

func NewNoopAIAdapter() *NoopAIAdapter { return &NoopAIAdapter{} }

func (a *NoopAIAdapter) Complete(ctx context.Context, messages []adapter.Message, opts adapter.ChatOptions) (string, error) {
	return "noop reply", nil
}

func (a *NoopAIAdapter) CompleteStructured(ctx context.Context, messages []adapter.Message, tool adapter.ToolSpec, opts adapter.ChatOptions) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

func (a *NoopAIAdapter) CompleteStream(ctx context.Context, messages []adapter.Message, opts adapter.ChatOptions) (adapter.TokenStream, error) {
	return &noopStream{tokens: []string{"<voice>", "noop ", "reply", "<progress>", "10"}}, nil
}

func (a *NoopAIAdapter) CountTokens(messages []adapter.Message) (int, error) {
	n := 0
	for _, m := range messages {
		n += len(m.Content) / 4
	}
	return n, nil
}

func (a *NoopAIAdapter) DescribePhoto(ctx context.Context, data []byte, mimeType string) (string, error) {
	return "a photo", nil
}

type noopStream struct {
	tokens []string
	pos    int
}

func (s *noopStream) Recv() (string, error) {
	if s.pos >= len(s.tokens) {
		return "", io.EOF
	}
	t := s.tokens[s.pos]
	s.pos++
	return t, nil
}

func (s *noopStream) Close() error { return nil }
