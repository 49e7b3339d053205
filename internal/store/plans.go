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

// PlanRepo persists plan metadata. One plan per parent task.
type PlanRepo struct {
	db *sql.DB
}

// Create inserts a plan row bound to its parent task.
func (r *PlanRepo) Create(ctx context.Context, projectID, parentTaskID, goal string, stepOrder []string) (*types.Plan, error) {
	stepsJSON, err := json.Marshal(stepOrder)
	if err != nil {
		return nil, fmt.Errorf("failed to encode step order: %w", err)
	}

	plan := &types.Plan{
		ID:           uuid.NewString(),
		ProjectID:    projectID,
		ParentTaskID: parentTaskID,
		Goal:         goal,
		Status:       types.PlanActive,
		StepOrder:    stepOrder,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO plans (id, project_id, parent_task_id, goal, status, current_step, step_order, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		plan.ID, plan.ProjectID, plan.ParentTaskID, plan.Goal, plan.Status,
		nullStr(plan.CurrentStep), string(stepsJSON), plan.CreatedAt, plan.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create plan: %w", err)
	}
	return plan, nil
}

// GetByParentTask returns the plan rooted at a parent task, or ErrNotFound.
func (r *PlanRepo) GetByParentTask(ctx context.Context, parentTaskID string) (*types.Plan, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, project_id, parent_task_id, goal, status, current_step, step_order, created_at, updated_at
		FROM plans WHERE parent_task_id = ?`, parentTaskID)
	return scanPlan(row)
}

// ListByProject returns all plans for a project, newest first.
func (r *PlanRepo) ListByProject(ctx context.Context, projectID string) ([]*types.Plan, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, parent_task_id, goal, status, current_step, step_order, created_at, updated_at
		FROM plans WHERE project_id = ? ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var plans []*types.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// SetStatus updates a plan's lifecycle status.
func (r *PlanRepo) SetStatus(ctx context.Context, id, status string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE plans SET status = ?, updated_at = ? WHERE id = ?",
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update plan status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetCurrentStep records the subtask the plan is currently on.
func (r *PlanRepo) SetCurrentStep(ctx context.Context, id, taskID string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE plans SET current_step = ?, updated_at = ? WHERE id = ?",
		taskID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update plan step: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPlan(row rowScanner) (*types.Plan, error) {
	var p types.Plan
	var current sql.NullString
	var stepsJSON string
	err := row.Scan(&p.ID, &p.ProjectID, &p.ParentTaskID, &p.Goal, &p.Status,
		&current, &stepsJSON, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan plan: %w", err)
	}
	p.CurrentStep = current.String
	if stepsJSON != "" {
		if err := json.Unmarshal([]byte(stepsJSON), &p.StepOrder); err != nil {
			return nil, fmt.Errorf("failed to decode step order: %w", err)
		}
	}
	return &p, nil
}
