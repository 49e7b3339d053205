// Package types defines the canonical conversation model shared by the
// agent loop, the provider adapters, and memory. Anthropic-style content
// blocks (text / tool_use / tool_result) are the lingua franca; each
// provider adapter translates to its own wire format.
package types

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a conversation message.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Content block types.
const (
	BlockText       = "text"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
)

// ContentBlock is one part of a multi-part message.
type ContentBlock struct {
	Type string `json:"type"`

	// Text for "text" blocks.
	Text string `json:"text,omitempty"`

	// ID, Name, Input for "tool_use" blocks.
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`

	// ToolUseID, Content for "tool_result" blocks. Content is the tool's
	// result serialized to JSON text.
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

// TextBlock builds a plain text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// ToolUseBlock builds a tool invocation block.
func ToolUseBlock(id, name string, input map[string]any) ContentBlock {
	return ContentBlock{Type: BlockToolUse, ID: id, Name: name, Input: input}
}

// ToolResultBlock builds a tool result block. The result is JSON-encoded
// so every provider sees the same canonical text form.
func ToolResultBlock(toolUseID string, result map[string]any) ContentBlock {
	data, err := json.Marshal(result)
	if err != nil {
		data = []byte(`{"error":"unserializable tool result"}`)
	}
	return ContentBlock{Type: BlockToolResult, ToolUseID: toolUseID, Content: string(data)}
}

// Message is one turn in the conversation handed to a provider. Plain
// turns carry a single text block; tool turns carry tool_use or
// tool_result blocks.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// UserText builds a plain user message.
func UserText(text string) Message {
	return Message{Role: RoleUser, Content: []ContentBlock{TextBlock(text)}}
}

// AssistantText builds a plain assistant message.
func AssistantText(text string) Message {
	return Message{Role: RoleAssistant, Content: []ContentBlock{TextBlock(text)}}
}

// PlainText returns the concatenated text blocks of the message.
func (m Message) PlainText() string {
	var out string
	for _, b := range m.Content {
		if b.Type == BlockText {
			out += b.Text
		}
	}
	return out
}

// ToolDefinition describes a tool the LLM may invoke. InputSchema is a
// JSON Schema object; required fields are enforced by the schema, not by
// the tool body.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// ToolCall is one tool invocation requested by the LLM in a single turn.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolCallRecord is the externally visible audit entry for one executed
// tool call, persisted alongside the assistant message that triggered it.
type ToolCallRecord struct {
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
	Result    map[string]any `json:"result"`
}

// UsageMetadata captures token usage reported by a provider.
type UsageMetadata struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ChatResult is the normalized response from any provider.
type ChatResult struct {
	Content    string        `json:"content"`
	ToolCalls  []ToolCall    `json:"tool_calls"`
	StopReason string        `json:"stop_reason"`
	Usage      UsageMetadata `json:"usage"`
}

// StoredMessage is a persisted chat row. ToolCalls is non-nil only for
// assistant messages that executed tools during their run.
type StoredMessage struct {
	ID        string
	ProjectID string
	Role      string
	Content   string
	ToolCalls []ToolCallRecord
	CreatedAt time.Time
}
