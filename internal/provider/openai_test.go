package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskpilot/internal/types"
)

func TestOpenAIBuildMessagesFlattensBlocks(t *testing.T) {
	p := NewOpenAIProvider("k", "gpt-4o", "", time.Second)

	msgs := p.buildMessages(Request{
		System: "be helpful",
		Messages: []types.Message{
			types.UserText("delete task 42"),
			{Role: types.RoleAssistant, Content: []types.ContentBlock{
				types.TextBlock("On it."),
				types.ToolUseBlock("call_1", "delete_task", map[string]any{"task_id": "42"}),
			}},
			{Role: types.RoleUser, Content: []types.ContentBlock{
				types.ToolResultBlock("call_1", map[string]any{"success": true}),
			}},
		},
	})

	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "user", msgs[1].Role)

	assert.Equal(t, "assistant", msgs[2].Role)
	assert.Equal(t, "On it.", msgs[2].Content)
	require.Len(t, msgs[2].ToolCalls, 1)
	assert.Equal(t, "call_1", msgs[2].ToolCalls[0].ID)
	assert.Equal(t, "delete_task", msgs[2].ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"task_id":"42"}`, msgs[2].ToolCalls[0].Function.Arguments)

	assert.Equal(t, "tool", msgs[3].Role)
	assert.Equal(t, "call_1", msgs[3].ToolCallID)
	assert.JSONEq(t, `{"success":true}`, msgs[3].Content)
}

func TestOpenAIChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openaiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 1024, req.MaxTokens)

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{
					"role":    "assistant",
					"content": "",
					"tool_calls": []map[string]any{{
						"id":   "call_abc",
						"type": "function",
						"function": map[string]any{
							"name":      "list_tasks",
							"arguments": `{"status":"todo"}`,
						},
					}},
				},
				"finish_reason": "tool_calls",
			}},
			"usage": map[string]any{"prompt_tokens": 5, "completion_tokens": 7},
		})
	}))
	defer srv.Close()

	p := NewOpenAIProvider("test-key", "gpt-4o", srv.URL, time.Second)
	p.sleep = func(time.Duration) {}

	result, err := p.Chat(context.Background(), Request{
		Messages:  []types.Message{types.UserText("show todo")},
		MaxTokens: 1024,
	})
	require.NoError(t, err)
	assert.Equal(t, "tool_calls", result.StopReason)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "call_abc", result.ToolCalls[0].ID)
	assert.Equal(t, map[string]any{"status": "todo"}, result.ToolCalls[0].Arguments)
	assert.Equal(t, types.UsageMetadata{InputTokens: 5, OutputTokens: 7}, result.Usage)
}

func TestOpenAIChatStreamAssemblesToolCallFragments(t *testing.T) {
	events := []string{
		`{"choices":[{"delta":{"content":"Sure, "}}]}`,
		`{"choices":[{"delta":{"content":"deleting."}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_x","function":{"name":"delete_task","arguments":""}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"task_id\":"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"42\"}"}}]}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, e := range events {
			w.Write([]byte("data: " + e + "\n\n"))
		}
		w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("test-key", "gpt-4o", srv.URL, time.Second)
	chunks, errs := p.ChatStream(context.Background(), Request{Messages: []types.Message{types.UserText("hi")}})

	var text string
	var result *types.ChatResult
	for c := range chunks {
		text += c.TextDelta
		if c.Result != nil {
			result = c.Result
		}
	}
	require.NoError(t, <-errs)

	assert.Equal(t, "Sure, deleting.", text)
	require.NotNil(t, result)
	assert.Equal(t, "tool_calls", result.StopReason)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "call_x", result.ToolCalls[0].ID)
	assert.Equal(t, "delete_task", result.ToolCalls[0].Name)
	assert.Equal(t, map[string]any{"task_id": "42"}, result.ToolCalls[0].Arguments)
}
