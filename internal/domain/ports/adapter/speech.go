package adapter

import (
	"context"
	"io"
)

// Synthesizer is the port for text-to-speech. The returned reader streams
// raw audio bytes as the provider produces them; the caller owns closing it.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (io.ReadCloser, error)
}

// Transcriber is the port for speech-to-text on an uploaded audio turn.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
}
