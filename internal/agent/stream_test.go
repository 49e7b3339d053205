package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"taskpilot/internal/tools"
	"taskpilot/internal/types"
)

// progressTool streams one progress event before its result.
type progressTool struct{}

func (p *progressTool) Name() string               { return "creator" }
func (p *progressTool) Description() string        { return "streams progress" }
func (p *progressTool) Parameters() map[string]any { return map[string]any{"type": "object"} }

func (p *progressTool) Execute(ctx context.Context, args map[string]any) map[string]any {
	return map[string]any{"success": true}
}

func (p *progressTool) ExecuteStreaming(ctx context.Context, args map[string]any) <-chan tools.Event {
	events := make(chan tools.Event, 2)
	go func() {
		defer close(events)
		events <- tools.Event{Type: "task_created", Data: map[string]any{"task": "x"}}
		events <- tools.Event{Type: tools.EventResult, Data: map[string]any{"success": true, "count": 1}}
	}()
	return events
}

// verifyNoLeaks ignores the database/sql opener goroutine, which lives
// until the store closes in t.Cleanup, and the opencensus stats worker,
// which is started by that package's init and never exits.
func verifyNoLeaks(t *testing.T) {
	goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

func collectEvents(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var events []Event
	for evt := range ch {
		events = append(events, evt)
	}
	return events
}

func eventTypes(events []Event) []string {
	types := make([]string, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}

func TestRunStreamEventSequence(t *testing.T) {
	defer verifyNoLeaks(t)

	registry := tools.NewRegistry()
	registry.MustRegister(&progressTool{})

	p := &scriptedProvider{
		responses: []*types.ChatResult{
			toolResponse("", types.ToolCall{ID: "c1", Name: "creator", Arguments: map[string]any{"n": float64(1)}}),
			textResponse("All done"),
		},
		deltas: [][]string{nil, {"All ", "done"}},
	}
	a, _ := newTestAgent(t, p, registry)

	events := collectEvents(t, a.RunStream(context.Background(), "create something"))

	assert.Equal(t, []string{
		EventThinking,
		EventToolStart,
		"task_created",
		EventToolEnd,
		EventThinking,
		EventTextDelta,
		EventTextDelta,
		EventResponse,
	}, eventTypes(events))

	// First thinking event reflects a fresh run.
	assert.Equal(t, 1, events[0].Data["iteration"])
	assert.Equal(t, false, events[0].Data["has_tool_calls"])
	assert.Equal(t, "", events[0].Data["last_tool"])

	assert.Equal(t, "creator", events[1].Data["tool_name"])
	assert.Equal(t, map[string]any{"n": float64(1)}, events[1].Data["arguments"])

	// Tool progress events pass through with the tool name attached.
	assert.Equal(t, "creator", events[2].Data["tool_name"])
	assert.Equal(t, "x", events[2].Data["task"])

	assert.Equal(t, "creator", events[3].Data["tool_name"])
	assert.Equal(t, map[string]any{"success": true, "count": 1}, events[3].Data["result"])

	// Second thinking event carries the loop state.
	assert.Equal(t, 2, events[4].Data["iteration"])
	assert.Equal(t, true, events[4].Data["has_tool_calls"])
	assert.Equal(t, "creator", events[4].Data["last_tool"])

	assert.Equal(t, "All ", events[5].Data["text"])
	assert.Equal(t, "done", events[6].Data["text"])

	final := events[7]
	assert.Equal(t, "All done", final.Data["message"])
	calls := final.Data["tool_calls"].([]types.ToolCallRecord)
	require.Len(t, calls, 1)
	assert.Equal(t, "creator", calls[0].ToolName)
}

func TestRunStreamDirectAnswer(t *testing.T) {
	defer verifyNoLeaks(t)

	p := &scriptedProvider{
		responses: []*types.ChatResult{textResponse("Hello!")},
		deltas:    [][]string{{"Hello!"}},
	}
	a, s := newTestAgent(t, p, nil)

	events := collectEvents(t, a.RunStream(context.Background(), "hi"))
	assert.Equal(t, []string{EventThinking, EventTextDelta, EventResponse}, eventTypes(events))
	assert.Equal(t, "Hello!", events[2].Data["message"])

	msgs, err := s.Messages.ListRecent(context.Background(), "p1", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hello!", msgs[1].Content)
}

func TestRunStreamUnknownTool(t *testing.T) {
	defer verifyNoLeaks(t)

	p := &scriptedProvider{responses: []*types.ChatResult{
		toolResponse("", types.ToolCall{ID: "c1", Name: "bogus", Arguments: map[string]any{}}),
		textResponse("recovered"),
	}}
	a, _ := newTestAgent(t, p, nil)

	events := collectEvents(t, a.RunStream(context.Background(), "go"))
	require.NotEmpty(t, events)

	final := events[len(events)-1]
	assert.Equal(t, EventResponse, final.Type)
	assert.Equal(t, "recovered", final.Data["message"])

	calls := final.Data["tool_calls"].([]types.ToolCallRecord)
	require.Len(t, calls, 1)
	assert.Equal(t, map[string]any{"error": "Unknown tool: bogus"}, calls[0].Result)
}

func TestRunStreamProviderErrorEmitsErrorEvent(t *testing.T) {
	defer verifyNoLeaks(t)

	p := &scriptedProvider{}
	a, _ := newTestAgent(t, p, nil)

	events := collectEvents(t, a.RunStream(context.Background(), "hi"))
	require.NotEmpty(t, events)

	final := events[len(events)-1]
	assert.Equal(t, EventError, final.Type)
	require.Error(t, final.Err)
	assert.Contains(t, final.Data["message"], "script exhausted")
}

func TestRunStreamIterationCeiling(t *testing.T) {
	defer verifyNoLeaks(t)

	registry := tools.NewRegistry()
	var log []string
	registry.MustRegister(&recordingTool{name: "spin", log: &log})

	var responses []*types.ChatResult
	for i := 0; i < 20; i++ {
		responses = append(responses, toolResponse("", types.ToolCall{ID: "c", Name: "spin", Arguments: map[string]any{}}))
	}
	p := &scriptedProvider{responses: responses}
	a, _ := newTestAgent(t, p, registry)

	events := collectEvents(t, a.RunStream(context.Background(), "loop"))

	var responseEvents []Event
	for _, e := range events {
		if e.Type == EventResponse {
			responseEvents = append(responseEvents, e)
		}
	}
	require.Len(t, responseEvents, 1)
	assert.Equal(t, apologyMessage, responseEvents[0].Data["message"])
	assert.Len(t, log, maxIterations)
}
