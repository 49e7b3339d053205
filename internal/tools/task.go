package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"taskpilot/internal/logging"
	"taskpilot/internal/store"
	"taskpilot/internal/types"
)

var priorityEnum = []string{"low", "medium", "high", "critical"}
var statusEnum = []string{"todo", "in_progress", "review", "done"}

// taskItemSchema is the schema of one task entry in propose/confirm
// argument lists.
func taskItemSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":       map[string]any{"type": "string", "description": "Clear, actionable task title"},
			"description": map[string]any{"type": "string", "description": "Detailed description of what needs to be done"},
			"priority":    map[string]any{"type": "string", "enum": priorityEnum, "description": "Task priority (default: medium)"},
			"assignee":    map[string]any{"type": "string", "description": "Person assigned to the task"},
			"due_date":    map[string]any{"type": "string", "description": "Due date in YYYY-MM-DD format"},
		},
		"required": []string{"title"},
	}
}

// ListTasksTool lists a project's tasks with optional filters.
type ListTasksTool struct {
	Store     *store.Store
	ProjectID string
}

func (t *ListTasksTool) Name() string { return "list_tasks" }

func (t *ListTasksTool) Description() string {
	return "List all tasks in the project with optional filters. " +
		"Use to see current tasks, their status, and priorities. " +
		"Returns task IDs which can be used with update_task and delete_task."
}

func (t *ListTasksTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"status":   map[string]any{"type": "string", "enum": statusEnum, "description": "Filter by status"},
			"priority": map[string]any{"type": "string", "enum": priorityEnum, "description": "Filter by priority"},
		},
	}
}

func (t *ListTasksTool) Execute(ctx context.Context, args map[string]any) map[string]any {
	filter := types.TaskFilter{
		Status:   stringArg(args, "status"),
		Priority: stringArg(args, "priority"),
	}

	tasks, err := t.Store.Tasks.ListByProject(ctx, t.ProjectID, filter)
	if err != nil {
		logging.ToolsError("list_tasks failed: %v", err)
		return Errorf("failed to list tasks: %v", err)
	}

	if len(tasks) == 0 {
		return map[string]any{
			"found":   false,
			"message": "No tasks found.",
			"tasks":   []any{},
		}
	}

	out := make([]map[string]any, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, taskDetail(task))
	}
	return map[string]any{
		"found":   true,
		"message": fmt.Sprintf("Found %d tasks.", len(tasks)),
		"tasks":   out,
	}
}

// ProposeTasksTool previews tasks for user approval. Nothing is
// persisted; each entry gets a temp id the model echoes back on
// confirmation.
type ProposeTasksTool struct {
	Store     *store.Store
	ProjectID string
}

func (t *ProposeTasksTool) Name() string { return "propose_tasks" }

func (t *ProposeTasksTool) Description() string {
	return "Propose tasks for the user to review and approve before creation. " +
		"Tasks are NOT created in the database until the user explicitly approves them. " +
		"Always use this instead of directly creating tasks. After user approval, " +
		"use confirm_proposed_tasks to actually create them."
}

func (t *ProposeTasksTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"tasks": map[string]any{
				"type":        "array",
				"description": "List of tasks to propose for approval",
				"items":       taskItemSchema(),
			},
		},
		"required": []string{"tasks"},
	}
}

func (t *ProposeTasksTool) Execute(ctx context.Context, args map[string]any) map[string]any {
	items := listArg(args, "tasks")
	if len(items) == 0 {
		return Errorf("no tasks provided")
	}

	proposed := make([]map[string]any, 0, len(items))
	for i, item := range items {
		priority := stringArg(item, "priority")
		if priority == "" {
			priority = types.PriorityMedium
		}
		proposed = append(proposed, map[string]any{
			"temp_id":     fmt.Sprintf("t%d", i+1),
			"title":       stringArg(item, "title"),
			"description": stringArg(item, "description"),
			"priority":    priority,
			"assignee":    stringArg(item, "assignee"),
			"due_date":    stringArg(item, "due_date"),
		})
	}

	return map[string]any{
		"type": "proposal",
		"message": fmt.Sprintf("Proposed %d task(s) for your approval. These tasks have NOT been created yet. "+
			"When the user approves, you MUST call confirm_proposed_tasks with these exact tasks to actually create them.", len(proposed)),
		"tasks": proposed,
	}
}

// ConfirmProposedTasksTool creates previously proposed tasks after user
// approval, streaming one task_created event per insert.
type ConfirmProposedTasksTool struct {
	Store     *store.Store
	ProjectID string
}

func (t *ConfirmProposedTasksTool) Name() string { return "confirm_proposed_tasks" }

func (t *ConfirmProposedTasksTool) Description() string {
	return "Create tasks that were previously proposed and approved by the user. " +
		"Only call this AFTER the user has explicitly approved the proposed tasks. " +
		"Never call this without prior user approval."
}

func (t *ConfirmProposedTasksTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"tasks": map[string]any{
				"type":        "array",
				"description": "List of approved tasks to create",
				"items":       taskItemSchema(),
			},
		},
		"required": []string{"tasks"},
	}
}

func (t *ConfirmProposedTasksTool) Execute(ctx context.Context, args map[string]any) map[string]any {
	return drainResult(t.ExecuteStreaming(ctx, args))
}

func (t *ConfirmProposedTasksTool) ExecuteStreaming(ctx context.Context, args map[string]any) <-chan Event {
	events := make(chan Event, 8)

	go func() {
		defer close(events)

		items := listArg(args, "tasks")
		if len(items) == 0 {
			events <- Event{Type: EventResult, Data: Errorf("no tasks provided")}
			return
		}

		// Existing titles guard against the model confirming twice.
		existing, err := t.Store.Tasks.ListByProject(ctx, t.ProjectID, types.TaskFilter{})
		if err != nil {
			events <- Event{Type: EventResult, Data: Errorf("failed to check existing tasks: %v", err)}
			return
		}
		existingTitles := make(map[string]bool, len(existing))
		for _, task := range existing {
			existingTitles[strings.ToLower(strings.TrimSpace(task.Title))] = true
		}

		var created []*types.Task
		var skipped []string
		total := len(items)

		for _, item := range items {
			title := strings.TrimSpace(stringArg(item, "title"))
			if existingTitles[strings.ToLower(title)] {
				skipped = append(skipped, title)
				continue
			}

			task, err := t.Store.Tasks.Create(ctx, t.ProjectID, types.TaskCreate{
				Title:       title,
				Description: stringArg(item, "description"),
				Priority:    stringArg(item, "priority"),
				Assignee:    stringArg(item, "assignee"),
				DueDate:     parseDueDate(stringArg(item, "due_date")),
			})
			if err != nil {
				logging.ToolsError("confirm_proposed_tasks: create failed: %v", err)
				events <- Event{Type: EventResult, Data: Errorf("failed to create task '%s': %v", title, err)}
				return
			}
			created = append(created, task)

			events <- Event{Type: "task_created", Data: map[string]any{
				"task": taskSummary(task),
				"progress": map[string]any{
					"current": len(created),
					"total":   total - len(skipped),
				},
			}}
		}

		if len(created) == 0 && len(skipped) > 0 {
			events <- Event{Type: EventResult, Data: map[string]any{
				"success": false,
				"message": fmt.Sprintf("All %d task(s) already exist, nothing created.", len(skipped)),
				"skipped": skipped,
				"count":   0,
				"tasks":   []any{},
			}}
			return
		}

		msg := fmt.Sprintf("Created %d task(s) successfully.", len(created))
		if len(skipped) > 0 {
			msg += fmt.Sprintf(" Skipped %d duplicate(s): %s.", len(skipped), strings.Join(skipped, ", "))
		}

		out := make([]map[string]any, 0, len(created))
		for _, task := range created {
			out = append(out, map[string]any{"id": task.ID, "title": task.Title, "priority": task.Priority})
		}

		result := map[string]any{
			"success": true,
			"message": msg,
			"count":   len(created),
			"tasks":   out,
		}
		if len(skipped) > 0 {
			result["skipped"] = skipped
		}
		events <- Event{Type: EventResult, Data: result}
	}()

	return events
}

// UpdateTaskTool updates a task by id after an ownership check.
type UpdateTaskTool struct {
	Store     *store.Store
	ProjectID string
}

func (t *UpdateTaskTool) Name() string { return "update_task" }

func (t *UpdateTaskTool) Description() string {
	return "Update an existing task by its ID. Use list_tasks first to find the " +
		"task ID, then call this with the ID and the fields to update. " +
		"You can update any combination of: title, description, status, priority, assignee, due_date."
}

func (t *UpdateTaskTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"task_id":     map[string]any{"type": "string", "description": "The ID of the task to update"},
			"title":       map[string]any{"type": "string", "description": "New task title"},
			"description": map[string]any{"type": "string", "description": "New task description"},
			"status":      map[string]any{"type": "string", "enum": statusEnum, "description": "New task status"},
			"priority":    map[string]any{"type": "string", "enum": priorityEnum, "description": "New task priority"},
			"assignee":    map[string]any{"type": "string", "description": "New assignee"},
			"due_date":    map[string]any{"type": "string", "description": "New due date in YYYY-MM-DD format"},
		},
		"required": []string{"task_id"},
	}
}

func (t *UpdateTaskTool) Execute(ctx context.Context, args map[string]any) map[string]any {
	taskID := stringArg(args, "task_id")
	if taskID == "" {
		return Errorf("task_id is required")
	}

	task, err := t.Store.Tasks.GetByID(ctx, taskID)
	if errors.Is(err, store.ErrNotFound) {
		return map[string]any{"success": false, "error": fmt.Sprintf("Task not found: %s", taskID)}
	}
	if err != nil {
		return Errorf("failed to load task: %v", err)
	}
	if task.ProjectID != t.ProjectID {
		return map[string]any{"success": false, "error": "Task does not belong to this project"}
	}

	var update types.TaskUpdate
	empty := true
	if v, ok := args["title"].(string); ok {
		update.Title = &v
		empty = false
	}
	if v, ok := args["description"].(string); ok {
		update.Description = &v
		empty = false
	}
	if v, ok := args["status"].(string); ok {
		update.Status = &v
		empty = false
	}
	if v, ok := args["priority"].(string); ok {
		update.Priority = &v
		empty = false
	}
	if v, ok := args["assignee"].(string); ok {
		update.Assignee = &v
		empty = false
	}
	if v, ok := args["due_date"].(string); ok {
		due := parseDueDate(v)
		if due == nil {
			return map[string]any{"success": false, "error": fmt.Sprintf("Invalid date format: %s", v)}
		}
		update.DueDate = due
		empty = false
	}
	if empty {
		return map[string]any{"success": false, "error": "No fields to update"}
	}

	updated, err := t.Store.Tasks.Update(ctx, taskID, update)
	if err != nil {
		return Errorf("failed to update task: %v", err)
	}

	return map[string]any{
		"success": true,
		"message": fmt.Sprintf("Task '%s' updated successfully.", updated.Title),
		"task":    taskDetail(updated),
	}
}

// DeleteTaskTool deletes a task by id after an ownership check.
type DeleteTaskTool struct {
	Store     *store.Store
	ProjectID string
}

func (t *DeleteTaskTool) Name() string { return "delete_task" }

func (t *DeleteTaskTool) Description() string {
	return "Delete a task by its ID. Use list_tasks first to find the task ID. " +
		"This permanently removes the task from the project."
}

func (t *DeleteTaskTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"task_id": map[string]any{"type": "string", "description": "The ID of the task to delete"},
		},
		"required": []string{"task_id"},
	}
}

func (t *DeleteTaskTool) Execute(ctx context.Context, args map[string]any) map[string]any {
	taskID := stringArg(args, "task_id")
	if taskID == "" {
		return Errorf("task_id is required")
	}

	task, err := t.Store.Tasks.GetByID(ctx, taskID)
	if errors.Is(err, store.ErrNotFound) {
		return map[string]any{"success": false, "error": fmt.Sprintf("Task not found: %s", taskID)}
	}
	if err != nil {
		return Errorf("failed to load task: %v", err)
	}
	if task.ProjectID != t.ProjectID {
		return map[string]any{"success": false, "error": "Task does not belong to this project"}
	}

	if err := t.Store.Tasks.Delete(ctx, taskID); err != nil {
		return Errorf("failed to delete task: %v", err)
	}
	return map[string]any{
		"success": true,
		"message": fmt.Sprintf("Task '%s' deleted successfully.", task.Title),
	}
}
