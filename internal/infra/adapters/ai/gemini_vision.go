package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"

	"hotorbot/internal/domain/ports/adapter"
	"hotorbot/internal/infra/metrics"
)

var _ adapter.VisionAdapter = (*GeminiVisionAdapter)(nil)

// GeminiVisionAdapter implements adapter.VisionAdapter using the official
// Gemini SDK.
type GeminiVisionAdapter struct {
	client *genai.Client
	model  string
}

const describePrompt = `Describe this dating profile photo in one or two sentences. ` +
	`Mention the setting, what the person is doing and anything distinctive. ` +
	`Do not guess names or make judgements about attractiveness.`

func NewGeminiVisionAdapter(ctx context.Context, apiKey, baseURL, model string) (*GeminiVisionAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiVisionAdapter{client: c, model: model}, nil
}

func (g *GeminiVisionAdapter) DescribePhoto(ctx context.Context, data []byte, mimeType string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(data, mimeType),
			genai.NewPartFromText(describePrompt),
		}, genai.RoleUser),
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	metrics.ObserveAICall("gemini", g.model, int(time.Since(start).Milliseconds()), err == nil)
	if err != nil {
		return "", fmt.Errorf("gemini describe photo: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("gemini describe photo: empty response")
	}
	return text, nil
}
