package agent

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"taskpilot/internal/store"
	"taskpilot/internal/types"
)

// Memory reads and writes the persisted conversation for one project.
//
// The persisted form is a flat message log; the provider protocol needs
// tool invocations and their results as distinct turns referencing each
// other by id. History reconstructs that multi-part shape so the model
// still sees that a propose call happened in an earlier turn.
type Memory struct {
	messages  *store.MessageRepo
	projectID string
}

// NewMemory binds memory to a project's message log.
func NewMemory(st *store.Store, projectID string) *Memory {
	return &Memory{messages: st.Messages, projectID: projectID}
}

// History returns the most recent limit messages in chronological
// order, reconstructed to provider shape. An assistant row with
// recorded tool calls expands into an assistant turn (text plus one
// tool_use block per call, with an id synthesized for this load) and a
// user turn carrying the matching tool_result blocks.
func (m *Memory) History(ctx context.Context, limit int) ([]types.Message, error) {
	rows, err := m.messages.ListRecent(ctx, m.projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	var out []types.Message
	for _, row := range rows {
		if row.Role != types.RoleAssistant || len(row.ToolCalls) == 0 {
			out = append(out, types.Message{
				Role:    row.Role,
				Content: []types.ContentBlock{types.TextBlock(row.Content)},
			})
			continue
		}

		var useBlocks []types.ContentBlock
		if row.Content != "" {
			useBlocks = append(useBlocks, types.TextBlock(row.Content))
		}
		resultBlocks := make([]types.ContentBlock, 0, len(row.ToolCalls))
		for _, call := range row.ToolCalls {
			id := "toolu_" + uuid.NewString()
			useBlocks = append(useBlocks, types.ToolUseBlock(id, call.ToolName, call.Arguments))
			resultBlocks = append(resultBlocks, types.ToolResultBlock(id, call.Result))
		}

		out = append(out,
			types.Message{Role: types.RoleAssistant, Content: useBlocks},
			types.Message{Role: types.RoleUser, Content: resultBlocks},
		)
	}
	return out, nil
}

// SaveMessage appends one message row.
func (m *Memory) SaveMessage(ctx context.Context, role, content string, toolCalls []types.ToolCallRecord) error {
	_, err := m.messages.Create(ctx, m.projectID, role, content, toolCalls)
	return err
}

// Clear deletes the project's history and returns the count removed.
func (m *Memory) Clear(ctx context.Context) (int, error) {
	return m.messages.Clear(ctx, m.projectID)
}
