package speech

import (
	"context"
	"io"
	"strings"

	"hotorbot/internal/domain/ports/adapter"
)

var (
	_ adapter.Synthesizer = (*NoopSpeech)(nil)
	_ adapter.Transcriber = (*NoopSpeech)(nil)
)

// NoopSpeech is a stand-in for local runs without speech API keys.
type NoopSpeech struct{}

func NewNoopSpeech() *NoopSpeech { return &NoopSpeech{} }

func (n *NoopSpeech) Synthesize(ctx context.Context, text string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func (n *NoopSpeech) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	return "noop transcription", nil
}
