package agent

import "taskpilot/internal/types"

// Stream event types. Tool-internal progress events pass through with
// their own type (e.g. "task_created") and the tool name attached.
const (
	EventThinking  = "thinking"
	EventTextDelta = "text_delta"
	EventToolStart = "tool_start"
	EventToolEnd   = "tool_end"
	EventResponse  = "response"
	EventError     = "error"
)

// Event is one emission from RunStream. The stream terminates after
// exactly one response event, or an error event if the run failed.
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
	Err  error          `json:"-"`
}

// Result is the terminal outcome of a run: the assistant's final
// message plus the audit log of every tool call executed on the way.
type Result struct {
	Message   string                 `json:"message"`
	ToolCalls []types.ToolCallRecord `json:"tool_calls,omitempty"`
}
