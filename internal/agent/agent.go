// Package agent implements the tool-calling conversation loop: persist
// the user message, replay history, call the model, dispatch requested
// tools, feed results back, and repeat until the model answers without
// tools or the iteration ceiling is hit.
package agent

import (
	"context"
	"fmt"

	"taskpilot/internal/logging"
	"taskpilot/internal/provider"
	"taskpilot/internal/tools"
	"taskpilot/internal/types"
)

const (
	maxIterations = 10
	historyLimit  = 10

	apologyMessage = "I apologize, but I wasn't able to complete the request. Please try again."
)

// Agent orchestrates one project's conversation.
type Agent struct {
	provider     provider.Provider
	registry     *tools.Registry
	memory       *Memory
	projectID    string
	systemPrompt string
	maxTokens    int
}

// New creates an agent bound to a project. The registry's tools are
// expected to be scoped to the same project.
func New(p provider.Provider, registry *tools.Registry, memory *Memory, projectID string, maxTokens int) *Agent {
	return &Agent{
		provider:     p,
		registry:     registry,
		memory:       memory,
		projectID:    projectID,
		systemPrompt: SystemPrompt(projectID),
		maxTokens:    maxTokens,
	}
}

// Run processes one user message to completion and returns the final
// response with the accumulated tool-call log.
func (a *Agent) Run(ctx context.Context, userMessage string) (*Result, error) {
	messages, defs, err := a.prepare(ctx, userMessage)
	if err != nil {
		return nil, err
	}

	var callLog []types.ToolCallRecord

	for iteration := 1; iteration <= maxIterations; iteration++ {
		logging.AgentDebug("iteration %d: messages=%d", iteration, len(messages))

		resp, err := a.provider.Chat(ctx, provider.Request{
			System:    a.systemPrompt,
			Messages:  messages,
			Tools:     defs,
			MaxTokens: a.maxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("provider call failed: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			if err := a.memory.SaveMessage(ctx, types.RoleAssistant, resp.Content, callLog); err != nil {
				return nil, fmt.Errorf("failed to save assistant message: %w", err)
			}
			logging.Agent("run complete after %d iteration(s), %d tool call(s)", iteration, len(callLog))
			return &Result{Message: resp.Content, ToolCalls: callLog}, nil
		}

		var results []execResult
		for _, call := range resp.ToolCalls {
			result := a.executeCall(ctx, call)
			results = append(results, execResult{id: call.ID, result: result})
			callLog = append(callLog, types.ToolCallRecord{
				ToolName:  call.Name,
				Arguments: call.Arguments,
				Result:    result,
			})
		}
		messages = append(messages, assistantTurn(resp), toolResultTurn(results))
	}

	logging.AgentWarn("iteration ceiling reached, returning degraded response (%d tool calls)", len(callLog))
	return &Result{Message: apologyMessage, ToolCalls: callLog}, nil
}

// prepare persists the user message and assembles the message list and
// tool catalog shared by both run modes. The catalog is read once per
// run so every model call sees the same tool set.
func (a *Agent) prepare(ctx context.Context, userMessage string) ([]types.Message, []types.ToolDefinition, error) {
	if err := a.memory.SaveMessage(ctx, types.RoleUser, userMessage, nil); err != nil {
		return nil, nil, fmt.Errorf("failed to save user message: %w", err)
	}

	messages, err := a.memory.History(ctx, historyLimit)
	if err != nil {
		return nil, nil, err
	}

	// Guard against double-append when the reconstructed tail already
	// ends with this exact message.
	last := len(messages) - 1
	if last < 0 || messages[last].Role != types.RoleUser || messages[last].PlainText() != userMessage {
		messages = append(messages, types.UserText(userMessage))
	}

	return messages, a.registry.Definitions(), nil
}

type execResult struct {
	id     string
	result map[string]any
}

// executeCall dispatches one tool call. Unknown names and panics come
// back as error results; nothing escapes the loop.
func (a *Agent) executeCall(ctx context.Context, call types.ToolCall) map[string]any {
	tool, err := a.registry.Get(call.Name)
	if err != nil {
		logging.AgentWarn("unknown tool requested: %s", call.Name)
		return map[string]any{"error": fmt.Sprintf("Unknown tool: %s", call.Name)}
	}
	logging.AgentDebug("executing tool: %s", call.Name)
	return safeExecute(ctx, tool, call.Arguments)
}

func safeExecute(ctx context.Context, tool tools.Tool, args map[string]any) (result map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			logging.AgentError("tool %s panicked: %v", tool.Name(), r)
			result = tools.Errorf("%v", r)
		}
	}()
	return tool.Execute(ctx, args)
}

// assistantTurn converts a provider response into the assistant message
// appended to the running conversation.
func assistantTurn(resp *types.ChatResult) types.Message {
	var blocks []types.ContentBlock
	if resp.Content != "" {
		blocks = append(blocks, types.TextBlock(resp.Content))
	}
	for _, call := range resp.ToolCalls {
		blocks = append(blocks, types.ToolUseBlock(call.ID, call.Name, call.Arguments))
	}
	return types.Message{Role: types.RoleAssistant, Content: blocks}
}

// toolResultTurn packages executed results as the user turn the
// protocol requires after tool use.
func toolResultTurn(results []execResult) types.Message {
	blocks := make([]types.ContentBlock, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, types.ToolResultBlock(r.id, r.result))
	}
	return types.Message{Role: types.RoleUser, Content: blocks}
}
