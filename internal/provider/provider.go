// Package provider adapts vendor LLM APIs to one canonical chat interface.
// Messages cross the boundary as content blocks (text, tool_use,
// tool_result); each adapter translates to and from its vendor's wire
// format over plain HTTP.
package provider

import (
	"context"
	"errors"
	"fmt"

	"taskpilot/internal/types"
)

// Request is one chat completion request.
type Request struct {
	System    string
	Messages  []types.Message
	Tools     []types.ToolDefinition
	MaxTokens int
}

// StreamChunk is one unit of streamed output. TextDelta carries
// incremental assistant text; the final chunk sets Result with the
// complete parsed response, tool calls included.
type StreamChunk struct {
	TextDelta string
	Result    *types.ChatResult
}

// Provider is a chat-capable LLM backend.
type Provider interface {
	// Name returns the vendor name.
	Name() string

	// Chat performs one blocking completion.
	Chat(ctx context.Context, req Request) (*types.ChatResult, error)

	// ChatStream performs one completion, streaming text deltas as they
	// arrive. Both channels are closed when the call finishes; at most
	// one error is sent.
	ChatStream(ctx context.Context, req Request) (<-chan StreamChunk, <-chan error)
}

// ErrAuth indicates a rejected or missing API key. Never retried.
var ErrAuth = errors.New("authentication failed")

// APIError is a non-2xx response from a vendor API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Message)
}

// statusError classifies an HTTP status into an error. 401/403 map to
// ErrAuth so callers can fail fast.
func statusError(status int, body string) error {
	if status == 401 || status == 403 {
		return fmt.Errorf("%w: status %d: %s", ErrAuth, status, body)
	}
	return &APIError{StatusCode: status, Message: body}
}
