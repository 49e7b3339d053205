package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"taskpilot/internal/types"
)

const dueDateLayout = "2006-01-02"

// TaskRepo persists tasks.
type TaskRepo struct {
	db *sql.DB
}

// Create inserts a new task and returns it.
func (r *TaskRepo) Create(ctx context.Context, projectID string, data types.TaskCreate) (*types.Task, error) {
	if data.Title == "" {
		return nil, fmt.Errorf("task title is required")
	}
	priority := data.Priority
	if priority == "" {
		priority = types.PriorityMedium
	}

	task := &types.Task{
		ID:           uuid.NewString(),
		ProjectID:    projectID,
		ParentTaskID: data.ParentTaskID,
		Title:        data.Title,
		Description:  data.Description,
		Status:       types.StatusTodo,
		Priority:     priority,
		Assignee:     data.Assignee,
		DueDate:      data.DueDate,
		Order:        data.Order,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks (id, project_id, parent_task_id, title, description, status, priority, assignee, due_date, ord, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.ProjectID, nullStr(task.ParentTaskID), task.Title, task.Description,
		task.Status, task.Priority, task.Assignee, nullDate(task.DueDate), nullInt(task.Order),
		task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return task, nil
}

// GetByID returns a task, or ErrNotFound.
func (r *TaskRepo) GetByID(ctx context.Context, id string) (*types.Task, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, project_id, parent_task_id, title, description, status, priority, assignee, due_date, ord, created_at, updated_at
		FROM tasks WHERE id = ?`, id)
	return scanTask(row)
}

// ListByProject returns top-level ordering by creation time, optionally
// filtered by status and priority.
func (r *TaskRepo) ListByProject(ctx context.Context, projectID string, filter types.TaskFilter) ([]*types.Task, error) {
	query := `
		SELECT id, project_id, parent_task_id, title, description, status, priority, assignee, due_date, ord, created_at, updated_at
		FROM tasks WHERE project_id = ?`
	args := []any{projectID}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.Priority != "" {
		query += " AND priority = ?"
		args = append(args, filter.Priority)
	}
	query += " ORDER BY created_at, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

// ListSubtasks returns the subtasks of a parent, ordered by plan position.
func (r *TaskRepo) ListSubtasks(ctx context.Context, parentTaskID string) ([]*types.Task, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, parent_task_id, title, description, status, priority, assignee, due_date, ord, created_at, updated_at
		FROM tasks WHERE parent_task_id = ?
		ORDER BY COALESCE(ord, 0), created_at`, parentTaskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subtasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

// Update applies the non-nil fields and returns the updated task.
func (r *TaskRepo) Update(ctx context.Context, id string, data types.TaskUpdate) (*types.Task, error) {
	sets := "updated_at = ?"
	args := []any{time.Now().UTC()}
	if data.Title != nil {
		sets += ", title = ?"
		args = append(args, *data.Title)
	}
	if data.Description != nil {
		sets += ", description = ?"
		args = append(args, *data.Description)
	}
	if data.Status != nil {
		sets += ", status = ?"
		args = append(args, *data.Status)
	}
	if data.Priority != nil {
		sets += ", priority = ?"
		args = append(args, *data.Priority)
	}
	if data.Assignee != nil {
		sets += ", assignee = ?"
		args = append(args, *data.Assignee)
	}
	if data.DueDate != nil {
		sets += ", due_date = ?"
		args = append(args, data.DueDate.Format(dueDateLayout))
	}
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, "UPDATE tasks SET "+sets+" WHERE id = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// SetOrder sets the plan position of a task.
func (r *TaskRepo) SetOrder(ctx context.Context, id string, order int) error {
	_, err := r.db.ExecContext(ctx, "UPDATE tasks SET ord = ?, updated_at = ? WHERE id = ?",
		order, time.Now().UTC(), id)
	return err
}

// Delete removes a task. Returns ErrNotFound if no row matched.
func (r *TaskRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*types.Task, error) {
	var t types.Task
	var parent, assignee, due sql.NullString
	var ord sql.NullInt64
	err := row.Scan(&t.ID, &t.ProjectID, &parent, &t.Title, &t.Description,
		&t.Status, &t.Priority, &assignee, &due, &ord, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}
	t.ParentTaskID = parent.String
	t.Assignee = assignee.String
	if due.Valid && due.String != "" {
		if d, perr := time.Parse(dueDateLayout, due.String); perr == nil {
			t.DueDate = &d
		}
	}
	if ord.Valid {
		v := int(ord.Int64)
		t.Order = &v
	}
	return &t, nil
}

func collectTasks(rows *sql.Rows) ([]*types.Task, error) {
	var tasks []*types.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dueDateLayout)
}

func nullInt(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}
