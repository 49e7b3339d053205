package agent

import (
	"context"
	"fmt"

	"taskpilot/internal/logging"
	"taskpilot/internal/provider"
	"taskpilot/internal/tools"
	"taskpilot/internal/types"
)

// RunStream processes one user message like Run, emitting observability
// events as it goes: a thinking event before each model call, live text
// deltas, tool_start/tool_end around each dispatch with any
// tool-internal progress events forwarded in between, and exactly one
// terminal response event. Cancelling ctx stops the stream; mutations
// already committed stand.
func (a *Agent) RunStream(ctx context.Context, userMessage string) <-chan Event {
	events := make(chan Event, 16)

	go func() {
		defer close(events)

		emit := func(evt Event) bool {
			select {
			case events <- evt:
				return true
			case <-ctx.Done():
				return false
			}
		}
		fail := func(err error) {
			emit(Event{Type: EventError, Err: err, Data: map[string]any{"message": err.Error()}})
		}

		messages, defs, err := a.prepare(ctx, userMessage)
		if err != nil {
			fail(err)
			return
		}

		var callLog []types.ToolCallRecord
		lastTool := ""

		for iteration := 1; iteration <= maxIterations; iteration++ {
			if !emit(Event{Type: EventThinking, Data: map[string]any{
				"iteration":      iteration,
				"has_tool_calls": len(callLog) > 0,
				"last_tool":      lastTool,
			}}) {
				return
			}

			resp, err := a.streamOnce(ctx, messages, defs, emit)
			if err != nil {
				fail(err)
				return
			}

			if len(resp.ToolCalls) == 0 {
				if err := a.memory.SaveMessage(ctx, types.RoleAssistant, resp.Content, callLog); err != nil {
					fail(fmt.Errorf("failed to save assistant message: %w", err))
					return
				}
				emit(Event{Type: EventResponse, Data: map[string]any{
					"message":    resp.Content,
					"tool_calls": callLog,
				}})
				return
			}

			var results []execResult
			for _, call := range resp.ToolCalls {
				if !emit(Event{Type: EventToolStart, Data: map[string]any{
					"tool_name": call.Name,
					"arguments": call.Arguments,
				}}) {
					return
				}

				result := a.executeCallStreaming(ctx, call, emit)
				results = append(results, execResult{id: call.ID, result: result})
				callLog = append(callLog, types.ToolCallRecord{
					ToolName:  call.Name,
					Arguments: call.Arguments,
					Result:    result,
				})
				lastTool = call.Name

				if !emit(Event{Type: EventToolEnd, Data: map[string]any{
					"tool_name": call.Name,
					"result":    result,
				}}) {
					return
				}
			}
			messages = append(messages, assistantTurn(resp), toolResultTurn(results))
		}

		logging.AgentWarn("iteration ceiling reached on stream, returning degraded response")
		emit(Event{Type: EventResponse, Data: map[string]any{
			"message":    apologyMessage,
			"tool_calls": callLog,
		}})
	}()

	return events
}

// streamOnce performs one streaming provider call, forwarding text
// deltas and returning the final parsed result.
func (a *Agent) streamOnce(ctx context.Context, messages []types.Message, defs []types.ToolDefinition, emit func(Event) bool) (*types.ChatResult, error) {
	chunks, errs := a.provider.ChatStream(ctx, provider.Request{
		System:    a.systemPrompt,
		Messages:  messages,
		Tools:     defs,
		MaxTokens: a.maxTokens,
	})

	var final *types.ChatResult
	for chunk := range chunks {
		if chunk.TextDelta != "" {
			if !emit(Event{Type: EventTextDelta, Data: map[string]any{"text": chunk.TextDelta}}) {
				return nil, ctx.Err()
			}
		}
		if chunk.Result != nil {
			final = chunk.Result
		}
	}
	if err := <-errs; err != nil {
		return nil, fmt.Errorf("provider stream failed: %w", err)
	}
	if final == nil {
		return nil, fmt.Errorf("provider stream ended without a result")
	}
	return final, nil
}

// executeCallStreaming dispatches one tool call in streaming mode:
// tool-internal progress events are forwarded verbatim with the tool
// name attached, and only the terminal result is returned for the
// protocol continuation.
func (a *Agent) executeCallStreaming(ctx context.Context, call types.ToolCall, emit func(Event) bool) map[string]any {
	tool, err := a.registry.Get(call.Name)
	if err != nil {
		logging.AgentWarn("unknown tool requested: %s", call.Name)
		return map[string]any{"error": fmt.Sprintf("Unknown tool: %s", call.Name)}
	}

	var result map[string]any
	for evt := range streamSafely(ctx, tool, call.Arguments) {
		if evt.Type == tools.EventResult {
			result = evt.Data
			continue
		}
		data := make(map[string]any, len(evt.Data)+1)
		for k, v := range evt.Data {
			data[k] = v
		}
		data["tool_name"] = call.Name
		if !emit(Event{Type: evt.Type, Data: data}) {
			break
		}
	}
	if result == nil {
		result = tools.Errorf("tool produced no result")
	}
	return result
}

func streamSafely(ctx context.Context, tool tools.Tool, args map[string]any) (events <-chan tools.Event) {
	defer func() {
		if r := recover(); r != nil {
			logging.AgentError("tool %s panicked: %v", tool.Name(), r)
			ch := make(chan tools.Event, 1)
			ch <- tools.Event{Type: tools.EventResult, Data: tools.Errorf("%v", r)}
			close(ch)
			events = ch
		}
	}()
	return tools.Stream(ctx, tool, args)
}
