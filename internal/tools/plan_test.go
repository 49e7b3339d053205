package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskpilot/internal/types"
)

func planArgs(goal string, stepTitles ...string) map[string]any {
	steps := make([]any, 0, len(stepTitles))
	for _, title := range stepTitles {
		steps = append(steps, map[string]any{"title": title})
	}
	return map[string]any{"goal": goal, "steps": steps}
}

func TestProposePlanPersistsNothing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tool := &ProposePlanTool{Store: s, ProjectID: "p1"}

	result := tool.Execute(ctx, planArgs("Build auth", "Design schema", "Implement backend", "Add UI"))
	assert.Equal(t, "plan_proposal", result["type"])
	assert.Equal(t, "Build auth", result["goal"])

	steps := result["steps"].([]map[string]any)
	require.Len(t, steps, 3)
	assert.Equal(t, 1, steps[0]["step_number"])
	assert.Equal(t, "Design schema", steps[0]["title"])
	assert.Equal(t, 3, steps[2]["step_number"])

	stored, err := s.Tasks.ListByProject(ctx, "p1", types.TaskFilter{})
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestProposePlanRequiresGoalAndSteps(t *testing.T) {
	tool := &ProposePlanTool{Store: newTestStore(t), ProjectID: "p1"}
	result := tool.Execute(context.Background(), map[string]any{"goal": "x"})
	assert.Contains(t, result["error"], "goal and steps are required")
}

func TestConfirmPlanCreatesParentAndOrderedSubtasks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tool := &ConfirmPlanTool{Store: s, ProjectID: "p1"}

	var events []Event
	for evt := range tool.ExecuteStreaming(ctx, planArgs("Build auth", "Design schema", "Implement backend", "Add UI")) {
		events = append(events, evt)
	}

	// plan_started, three plan_step_created, then the result.
	require.Len(t, events, 5)
	assert.Equal(t, "plan_started", events[0].Type)
	assert.Equal(t, "Build auth", events[0].Data["plan_goal"])
	assert.Equal(t, 3, events[0].Data["total_steps"])
	for i := 1; i <= 3; i++ {
		assert.Equal(t, "plan_step_created", events[i].Type)
		assert.Equal(t, i, events[i].Data["step_number"])
	}

	result := events[4].Data
	assert.Equal(t, true, result["success"])
	assert.Equal(t, "Created plan 'Build auth' with 3 step(s).", result["message"])

	parentID := result["parent_task_id"].(string)
	parent, err := s.Tasks.GetByID(ctx, parentID)
	require.NoError(t, err)
	assert.Equal(t, "Build auth", parent.Title)
	assert.Equal(t, types.PriorityHigh, parent.Priority)
	assert.Equal(t, "Plan: Build auth", parent.Description)

	subs, err := s.Tasks.ListSubtasks(ctx, parentID)
	require.NoError(t, err)
	require.Len(t, subs, 3)
	assert.Equal(t, "Design schema", subs[0].Title)
	assert.Equal(t, "Implement backend", subs[1].Title)
	assert.Equal(t, "Add UI", subs[2].Title)
	for i, sub := range subs {
		require.NotNil(t, sub.Order)
		assert.Equal(t, i, *sub.Order)
		assert.Equal(t, parentID, sub.ParentTaskID)
	}

	plan, err := s.Plans.GetByParentTask(ctx, parentID)
	require.NoError(t, err)
	assert.Equal(t, "Build auth", plan.Goal)
	assert.Equal(t, types.PlanActive, plan.Status)
	require.Len(t, plan.StepOrder, 3)
	assert.Equal(t, subs[0].ID, plan.StepOrder[0])
	assert.Equal(t, subs[1].ID, plan.StepOrder[1])
	assert.Equal(t, subs[2].ID, plan.StepOrder[2])
}

func TestConfirmPlanResultListsSteps(t *testing.T) {
	s := newTestStore(t)
	tool := &ConfirmPlanTool{Store: s, ProjectID: "p1"}

	result := tool.Execute(context.Background(), planArgs("Ship v1", "Freeze scope", "Cut release"))
	assert.Equal(t, true, result["success"])

	steps := result["steps"].([]map[string]any)
	require.Len(t, steps, 2)
	assert.Equal(t, "Freeze scope", steps[0]["title"])
	assert.Equal(t, 1, steps[0]["step_number"])
	assert.Equal(t, "Cut release", steps[1]["title"])
	assert.NotEmpty(t, steps[0]["task_id"])
}

func TestConfirmPlanRequiresGoalAndSteps(t *testing.T) {
	tool := &ConfirmPlanTool{Store: newTestStore(t), ProjectID: "p1"}
	result := tool.Execute(context.Background(), map[string]any{"steps": []any{}})
	assert.Contains(t, result["error"], "goal and steps are required")
}
