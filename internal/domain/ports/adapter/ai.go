package adapter

import (
	"context"
	"encoding/json"
)

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// ChatOptions tune a single completion call. Zero values defer to the
// adapter's defaults.
type ChatOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// ToolSpec describes a function tool the model is forced to call when a
// structured response is required.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON schema
}

// TokenStream delivers assistant text incrementally. Recv returns io.EOF on
// natural stream end; Close releases the underlying connection and is safe
// to call more than once.
type TokenStream interface {
	Recv() (string, error)
	Close() error
}

// AIAdapter is the port for generative completions.
type AIAdapter interface {
	// Complete returns the assistant text for a plain chat call.
	Complete(ctx context.Context, messages []Message, opts ChatOptions) (string, error)

	// CompleteStructured forces the given tool and returns its raw JSON
	// arguments. A plain-text reply where a tool call was required is
	// surfaced as an error, never silently accepted.
	CompleteStructured(ctx context.Context, messages []Message, tool ToolSpec, opts ChatOptions) (json.RawMessage, error)

	// CompleteStream opens a token-by-token completion stream.
	CompleteStream(ctx context.Context, messages []Message, opts ChatOptions) (TokenStream, error)

	// CountTokens returns prompt tokens for the provided messages
	// (provider-specific counting; best-effort when exact isn't available).
	CountTokens(messages []Message) (int, error)
}

// VisionAdapter is the port for photo understanding.
type VisionAdapter interface {
	// DescribePhoto returns a short natural-language description of the image.
	DescribePhoto(ctx context.Context, data []byte, mimeType string) (string, error)
}

// PhotoStore fetches photo bytes from object storage by key.
type PhotoStore interface {
	Fetch(ctx context.Context, key string) (data []byte, mimeType string, err error)
}
