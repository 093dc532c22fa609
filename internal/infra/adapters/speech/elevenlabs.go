package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"hotorbot/internal/domain/ports/adapter"
)

var _ adapter.Synthesizer = (*ElevenLabsSynthesizer)(nil)

// ElevenLabsSynthesizer streams text-to-speech audio from the ElevenLabs API.
// The response body is handed to the caller unread so audio bytes flow out as
// the provider produces them.
type ElevenLabsSynthesizer struct {
	apiKey  string
	voiceID string
	model   string
	base    string
	client  *http.Client
}

func NewElevenLabsSynthesizer(apiKey, voiceID, model string) (*ElevenLabsSynthesizer, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs api key empty")
	}
	if voiceID == "" {
		return nil, errors.New("elevenlabs voice id empty")
	}
	if model == "" {
		model = "eleven_turbo_v2"
	}
	return &ElevenLabsSynthesizer{
		apiKey:  apiKey,
		voiceID: voiceID,
		model:   model,
		base:    "https://api.elevenlabs.io/v1",
		// no overall timeout, synthesis streams for as long as the text runs
		client: &http.Client{Timeout: 0},
	}, nil
}

func (s *ElevenLabsSynthesizer) Synthesize(ctx context.Context, text string) (io.ReadCloser, error) {
	reqBody := struct {
		Text    string `json:"text"`
		ModelID string `json:"model_id"`
	}{Text: text, ModelID: s.model}

	b, _ := json.Marshal(reqBody)
	u := fmt.Sprintf("%s/text-to-speech/%s/stream", s.base, s.voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs synthesize: %w", err)
	}
	if resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("elevenlabs synthesize: http %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// SetBase overrides the API base URL, used by tests.
func (s *ElevenLabsSynthesizer) SetBase(base string, timeout time.Duration) {
	s.base = base
	s.client.Timeout = timeout
}
