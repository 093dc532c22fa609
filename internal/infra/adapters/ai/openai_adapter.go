package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/ssestream"
	"github.com/openai/openai-go/v2/shared"
	"github.com/pkoukk/tiktoken-go"

	"hotorbot/internal/domain"
	"hotorbot/internal/domain/ports/adapter"
	"hotorbot/internal/infra/metrics"
)

var _ adapter.AIAdapter = (*OpenAIAdapter)(nil)

// OpenAIAdapter implements adapter.AIAdapter on the Chat Completions API.
type OpenAIAdapter struct {
	client       openai.Client
	defaultModel string
}

func NewOpenAIAdapter(apiKey, defaultModel string) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if defaultModel == "" {
		defaultModel = "gpt-4-turbo-preview"
	}
	return &OpenAIAdapter{
		client:       openai.NewClient(option.WithAPIKey(apiKey)),
		defaultModel: defaultModel,
	}, nil
}

func (o *OpenAIAdapter) Complete(ctx context.Context, messages []adapter.Message, opts adapter.ChatOptions) (string, error) {
	params := o.buildParams(messages, opts)

	start := time.Now()
	resp, err := o.client.Chat.Completions.New(ctx, params)
	metrics.ObserveAICall("openai", params.Model, int(time.Since(start).Milliseconds()), err == nil)
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai completion: no choices")
	}
	metrics.AddAITokens("openai", params.Model, int(resp.Usage.PromptTokens), int(resp.Usage.CompletionTokens))
	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAIAdapter) CompleteStructured(ctx context.Context, messages []adapter.Message, tool adapter.ToolSpec, opts adapter.ChatOptions) (json.RawMessage, error) {
	params := o.buildParams(messages, opts)
	params.Tools = []openai.ChatCompletionToolUnionParam{
		openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        tool.Name,
			Description: openai.String(tool.Description),
			Parameters:  shared.FunctionParameters(tool.Parameters),
		}),
	}
	params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
		OfFunctionToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
			Function: openai.ChatCompletionNamedToolChoiceFunctionParam{Name: tool.Name},
		},
	}

	start := time.Now()
	resp, err := o.client.Chat.Completions.New(ctx, params)
	metrics.ObserveAICall("openai", params.Model, int(time.Since(start).Milliseconds()), err == nil)
	if err != nil {
		return nil, fmt.Errorf("openai structured completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai structured completion: no choices")
	}
	metrics.AddAITokens("openai", params.Model, int(resp.Usage.PromptTokens), int(resp.Usage.CompletionTokens))

	calls := resp.Choices[0].Message.ToolCalls
	for _, c := range calls {
		if c.Function.Name == tool.Name && c.Function.Arguments != "" {
			return json.RawMessage(c.Function.Arguments), nil
		}
	}
	return nil, fmt.Errorf("%w: expected %s tool call", domain.ErrMalformedModelOutput, tool.Name)
}

func (o *OpenAIAdapter) CompleteStream(ctx context.Context, messages []adapter.Message, opts adapter.ChatOptions) (adapter.TokenStream, error) {
	params := o.buildParams(messages, opts)
	stream := o.client.Chat.Completions.NewStreaming(ctx, params)
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("openai stream open: %w", err)
	}
	return &openaiStream{inner: stream}, nil
}

func (o *OpenAIAdapter) CountTokens(messages []adapter.Message) (int, error) {
	enc, err := tiktoken.EncodingForModel(o.defaultModel)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return 0, fmt.Errorf("tiktoken encoding: %w", err)
		}
	}
	total := 0
	for _, m := range messages {
		// per-message framing overhead, approximated at 4 tokens
		total += len(enc.Encode(m.Content, nil, nil)) + 4
	}
	return total, nil
}

func (o *OpenAIAdapter) buildParams(messages []adapter.Message, opts adapter.ChatOptions) openai.ChatCompletionNewParams {
	model := opts.Model
	if model == "" {
		model = o.defaultModel
	}
	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: toOpenAIMessages(messages),
	}
	if opts.Temperature > 0 {
		params.Temperature = openai.Float(opts.Temperature)
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}
	return params
}

func toOpenAIMessages(messages []adapter.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

type openaiStream struct {
	inner *ssestream.Stream[openai.ChatCompletionChunk]
}

func (s *openaiStream) Recv() (string, error) {
	for s.inner.Next() {
		chunk := s.inner.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			return delta, nil
		}
	}
	if err := s.inner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (s *openaiStream) Close() error { return s.inner.Close() }
