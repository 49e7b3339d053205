package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"taskpilot/internal/types"
)

// MessageRepo persists the flat conversation log.
type MessageRepo struct {
	db *sql.DB
}

// Create appends a message row. Tool calls are stored as a JSON array
// alongside the text content.
func (r *MessageRepo) Create(ctx context.Context, projectID, role, content string, toolCalls []types.ToolCallRecord) (*types.StoredMessage, error) {
	callsJSON := "[]"
	if len(toolCalls) > 0 {
		encoded, err := json.Marshal(toolCalls)
		if err != nil {
			return nil, fmt.Errorf("failed to encode tool calls: %w", err)
		}
		callsJSON = string(encoded)
	}

	msg := &types.StoredMessage{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Role:      role,
		Content:   content,
		ToolCalls: toolCalls,
		CreatedAt: time.Now().UTC(),
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (id, project_id, role, content, tool_calls, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ProjectID, msg.Role, msg.Content, callsJSON, msg.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	return msg, nil
}

// ListRecent returns the most recent limit messages in chronological order.
func (r *MessageRepo) ListRecent(ctx context.Context, projectID string, limit int) ([]*types.StoredMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, role, content, tool_calls, created_at FROM (
			SELECT id, project_id, role, content, tool_calls, created_at
			FROM messages WHERE project_id = ?
			ORDER BY created_at DESC, id DESC LIMIT ?
		) ORDER BY created_at, id`, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var msgs []*types.StoredMessage
	for rows.Next() {
		var m types.StoredMessage
		var callsJSON string
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Role, &m.Content, &callsJSON, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if callsJSON != "" && callsJSON != "[]" {
			if err := json.Unmarshal([]byte(callsJSON), &m.ToolCalls); err != nil {
				return nil, fmt.Errorf("failed to decode tool calls: %w", err)
			}
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

// Clear deletes all messages for a project and returns the count removed.
func (r *MessageRepo) Clear(ctx context.Context, projectID string) (int, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM messages WHERE project_id = ?", projectID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear messages: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
