package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"hotorbot/internal/domain"
	"hotorbot/internal/domain/ports/adapter"
)

var _ adapter.Transcriber = (*WhisperTranscriber)(nil)

// WhisperTranscriber implements adapter.Transcriber on the OpenAI audio API.
type WhisperTranscriber struct {
	client openai.Client
	model  string
}

func NewWhisperTranscriber(apiKey, model string) (*WhisperTranscriber, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if model == "" {
		model = "whisper-1"
	}
	return &WhisperTranscriber{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

func (t *WhisperTranscriber) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	resp, err := t.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  openai.File(audio, filename, "application/octet-stream"),
		Model: openai.AudioModel(t.model),
	})
	if err != nil {
		return "", fmt.Errorf("whisper transcribe: %w", err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", domain.ErrEmptyTranscription
	}
	return text, nil
}
