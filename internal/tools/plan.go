package tools

import (
	"context"
	"fmt"
	"strings"

	"taskpilot/internal/logging"
	"taskpilot/internal/store"
	"taskpilot/internal/types"
)

// ProposePlanTool previews an ordered multi-step plan. Nothing is
// persisted until confirm_plan.
type ProposePlanTool struct {
	Store     *store.Store
	ProjectID string
}

func (t *ProposePlanTool) Name() string { return "propose_plan" }

func (t *ProposePlanTool) Description() string {
	return "Propose a multi-step plan for a complex goal. Breaks the goal into " +
		"an ordered sequence of steps. The plan is NOT created until the user approves it. " +
		"After approval, call confirm_plan to create the tasks.\n\n" +
		"AUTOMATICALLY use this (without being asked) when the request involves: " +
		"a high-level goal with 3+ sequential steps, steps that depend on each other, " +
		"work spanning multiple layers, or ambitious goals using words like " +
		"\"build\", \"implement\", \"set up\", \"launch\".\n\n" +
		"Use propose_tasks INSTEAD only for simple unordered, independent task lists."
}

func (t *ProposePlanTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"goal": map[string]any{"type": "string", "description": "The high-level goal to decompose into steps"},
			"steps": map[string]any{
				"type":        "array",
				"description": "Ordered list of steps to achieve the goal",
				"items":       taskItemSchema(),
			},
		},
		"required": []string{"goal", "steps"},
	}
}

func (t *ProposePlanTool) Execute(ctx context.Context, args map[string]any) map[string]any {
	goal := stringArg(args, "goal")
	steps := listArg(args, "steps")
	if goal == "" || len(steps) == 0 {
		return Errorf("goal and steps are required")
	}

	proposed := make([]map[string]any, 0, len(steps))
	for i, step := range steps {
		priority := stringArg(step, "priority")
		if priority == "" {
			priority = types.PriorityMedium
		}
		proposed = append(proposed, map[string]any{
			"step_number": i + 1,
			"title":       stringArg(step, "title"),
			"description": stringArg(step, "description"),
			"priority":    priority,
			"assignee":    stringArg(step, "assignee"),
			"due_date":    stringArg(step, "due_date"),
		})
	}

	return map[string]any{
		"type":    "plan_proposal",
		"message": fmt.Sprintf("Proposed a %d-step plan for: %s. Review and approve to create these as tasks.", len(proposed), goal),
		"goal":    goal,
		"steps":   proposed,
	}
}

// ConfirmPlanTool materializes an approved plan: a parent task for the
// goal, ordered subtasks for the steps, and a plan metadata row.
type ConfirmPlanTool struct {
	Store     *store.Store
	ProjectID string
}

func (t *ConfirmPlanTool) Name() string { return "confirm_plan" }

func (t *ConfirmPlanTool) Description() string {
	return "Create tasks from an approved plan. Only call this AFTER the user " +
		"has explicitly approved the proposed plan. Creates a parent task for the goal " +
		"and subtasks for each step, linked via parent_task_id with proper ordering."
}

func (t *ConfirmPlanTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"goal": map[string]any{"type": "string", "description": "The high-level goal (becomes the parent task title)"},
			"steps": map[string]any{
				"type":        "array",
				"description": "Ordered list of steps to create as subtasks",
				"items":       taskItemSchema(),
			},
		},
		"required": []string{"goal", "steps"},
	}
}

func (t *ConfirmPlanTool) Execute(ctx context.Context, args map[string]any) map[string]any {
	return drainResult(t.ExecuteStreaming(ctx, args))
}

func (t *ConfirmPlanTool) ExecuteStreaming(ctx context.Context, args map[string]any) <-chan Event {
	events := make(chan Event, 8)

	go func() {
		defer close(events)

		goal := stringArg(args, "goal")
		steps := listArg(args, "steps")
		if goal == "" || len(steps) == 0 {
			events <- Event{Type: EventResult, Data: Errorf("goal and steps are required")}
			return
		}

		parent, err := t.Store.Tasks.Create(ctx, t.ProjectID, types.TaskCreate{
			Title:       goal,
			Description: "Plan: " + goal,
			Priority:    types.PriorityHigh,
		})
		if err != nil {
			events <- Event{Type: EventResult, Data: Errorf("failed to create parent task: %v", err)}
			return
		}

		events <- Event{Type: "plan_started", Data: map[string]any{
			"plan_goal":      goal,
			"parent_task_id": parent.ID,
			"total_steps":    len(steps),
		}}

		// Duplicate guard scoped to this parent's subtasks.
		existingSubtasks, err := t.Store.Tasks.ListSubtasks(ctx, parent.ID)
		if err != nil {
			events <- Event{Type: EventResult, Data: Errorf("failed to check existing subtasks: %v", err)}
			return
		}
		existingTitles := make(map[string]bool, len(existingSubtasks))
		for _, sub := range existingSubtasks {
			existingTitles[strings.ToLower(strings.TrimSpace(sub.Title))] = true
		}

		var stepTaskIDs []string
		var stepTitles []string
		var skipped []string

		for i, step := range steps {
			title := strings.TrimSpace(stringArg(step, "title"))
			if existingTitles[strings.ToLower(title)] {
				skipped = append(skipped, title)
				continue
			}

			order := i
			task, err := t.Store.Tasks.Create(ctx, t.ProjectID, types.TaskCreate{
				Title:        title,
				Description:  stringArg(step, "description"),
				Priority:     stringArg(step, "priority"),
				Assignee:     stringArg(step, "assignee"),
				DueDate:      parseDueDate(stringArg(step, "due_date")),
				ParentTaskID: parent.ID,
				Order:        &order,
			})
			if err != nil {
				logging.ToolsError("confirm_plan: step create failed: %v", err)
				events <- Event{Type: EventResult, Data: Errorf("failed to create step '%s': %v", title, err)}
				return
			}
			stepTaskIDs = append(stepTaskIDs, task.ID)
			stepTitles = append(stepTitles, task.Title)

			events <- Event{Type: "plan_step_created", Data: map[string]any{
				"step_number": i + 1,
				"total_steps": len(steps),
				"task":        taskSummary(task),
			}}
		}

		plan, err := t.Store.Plans.Create(ctx, t.ProjectID, parent.ID, goal, stepTaskIDs)
		if err != nil {
			events <- Event{Type: EventResult, Data: Errorf("failed to create plan: %v", err)}
			return
		}

		msg := fmt.Sprintf("Created plan '%s' with %d step(s).", goal, len(stepTaskIDs))
		if len(skipped) > 0 {
			msg += fmt.Sprintf(" Skipped %d duplicate(s): %s.", len(skipped), strings.Join(skipped, ", "))
		}

		stepsOut := make([]map[string]any, 0, len(stepTaskIDs))
		for i, id := range stepTaskIDs {
			stepsOut = append(stepsOut, map[string]any{
				"task_id":     id,
				"title":       stepTitles[i],
				"step_number": i + 1,
			})
		}

		events <- Event{Type: EventResult, Data: map[string]any{
			"success":        true,
			"message":        msg,
			"plan_id":        plan.ID,
			"parent_task_id": parent.ID,
			"steps":          stepsOut,
		}}
	}()

	return events
}
