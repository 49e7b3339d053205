// Package tools defines the tool-calling surface the agent exposes to
// the model: a Tool interface, a streaming variant for tools that emit
// progress, and a registry with a stable definition order.
package tools

import (
	"context"
	"fmt"
)

// Tool is one callable capability. Execute never returns a Go error:
// failures come back as a result map with an "error" key so the model
// can read them.
type Tool interface {
	// Name returns the tool name as exposed to the model.
	Name() string

	// Description returns the usage guidance shown to the model.
	Description() string

	// Parameters returns the JSON schema of the tool's arguments.
	Parameters() map[string]any

	// Execute runs the tool with decoded JSON arguments.
	Execute(ctx context.Context, args map[string]any) map[string]any
}

// EventResult terminates every streaming execution. Its Data field
// carries the tool's final result map.
const EventResult = "result"

// Event is one progress or result emission from a streaming tool.
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// StreamingTool is implemented by tools that report progress while they
// run. The channel closes after exactly one EventResult.
type StreamingTool interface {
	Tool

	// ExecuteStreaming runs the tool, emitting progress events followed
	// by one terminal result event.
	ExecuteStreaming(ctx context.Context, args map[string]any) <-chan Event
}

// Stream runs any tool as a stream. Non-streaming tools produce a
// single result event.
func Stream(ctx context.Context, t Tool, args map[string]any) <-chan Event {
	if st, ok := t.(StreamingTool); ok {
		return st.ExecuteStreaming(ctx, args)
	}

	events := make(chan Event, 1)
	go func() {
		defer close(events)
		events <- Event{Type: EventResult, Data: t.Execute(ctx, args)}
	}()
	return events
}

// drainResult runs a streaming execution to completion and returns the
// terminal result. Used by streaming tools to satisfy plain Execute.
func drainResult(events <-chan Event) map[string]any {
	var result map[string]any
	for evt := range events {
		if evt.Type == EventResult {
			result = evt.Data
		}
	}
	if result == nil {
		result = Errorf("tool produced no result")
	}
	return result
}

// Errorf builds the standard error result shape.
func Errorf(format string, args ...any) map[string]any {
	return map[string]any{"error": fmt.Sprintf(format, args...)}
}
