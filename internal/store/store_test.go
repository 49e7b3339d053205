package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskpilot/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTaskCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	due := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	task, err := s.Tasks.Create(ctx, "p1", types.TaskCreate{
		Title:       "Fix login bug",
		Description: "users get logged out",
		Priority:    types.PriorityHigh,
		Assignee:    "sam",
		DueDate:     &due,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, types.StatusTodo, task.Status)

	got, err := s.Tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fix login bug", got.Title)
	assert.Equal(t, types.PriorityHigh, got.Priority)
	assert.Equal(t, "sam", got.Assignee)
	require.NotNil(t, got.DueDate)
	assert.Equal(t, "2026-09-15", got.DueDate.Format("2006-01-02"))

	newStatus := types.StatusInProgress
	updated, err := s.Tasks.Update(ctx, task.ID, types.TaskUpdate{Status: &newStatus})
	require.NoError(t, err)
	assert.Equal(t, types.StatusInProgress, updated.Status)
	assert.Equal(t, "Fix login bug", updated.Title)

	require.NoError(t, s.Tasks.Delete(ctx, task.ID))
	_, err = s.Tasks.GetByID(ctx, task.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Tasks.Delete(ctx, task.ID), ErrNotFound)
}

func TestTaskDefaultPriority(t *testing.T) {
	s := newTestStore(t)

	task, err := s.Tasks.Create(context.Background(), "p1", types.TaskCreate{Title: "x"})
	require.NoError(t, err)
	assert.Equal(t, types.PriorityMedium, task.Priority)
}

func TestTaskListFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Tasks.Create(ctx, "p1", types.TaskCreate{Title: "a", Priority: types.PriorityLow})
	require.NoError(t, err)
	b, err := s.Tasks.Create(ctx, "p1", types.TaskCreate{Title: "b", Priority: types.PriorityHigh})
	require.NoError(t, err)
	_, err = s.Tasks.Create(ctx, "p2", types.TaskCreate{Title: "other project"})
	require.NoError(t, err)

	done := types.StatusDone
	_, err = s.Tasks.Update(ctx, b.ID, types.TaskUpdate{Status: &done})
	require.NoError(t, err)

	all, err := s.Tasks.ListByProject(ctx, "p1", types.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	high, err := s.Tasks.ListByProject(ctx, "p1", types.TaskFilter{Priority: types.PriorityHigh})
	require.NoError(t, err)
	require.Len(t, high, 1)
	assert.Equal(t, "b", high[0].Title)

	doneTasks, err := s.Tasks.ListByProject(ctx, "p1", types.TaskFilter{Status: types.StatusDone})
	require.NoError(t, err)
	require.Len(t, doneTasks, 1)
	assert.Equal(t, "b", doneTasks[0].Title)
}

func TestSubtaskOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	parent, err := s.Tasks.Create(ctx, "p1", types.TaskCreate{Title: "Build auth"})
	require.NoError(t, err)

	// Insert out of order; listing must come back by ord.
	for _, step := range []struct {
		title string
		ord   int
	}{{"Add UI", 2}, {"Design schema", 0}, {"Implement backend", 1}} {
		ord := step.ord
		_, err := s.Tasks.Create(ctx, "p1", types.TaskCreate{
			Title:        step.title,
			ParentTaskID: parent.ID,
			Order:        &ord,
		})
		require.NoError(t, err)
	}

	subs, err := s.Tasks.ListSubtasks(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, subs, 3)
	assert.Equal(t, "Design schema", subs[0].Title)
	assert.Equal(t, "Implement backend", subs[1].Title)
	assert.Equal(t, "Add UI", subs[2].Title)
}

func TestMessageRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Messages.Create(ctx, "p1", types.RoleUser, "create some tasks", nil)
	require.NoError(t, err)

	calls := []types.ToolCallRecord{{
		ToolName:  "propose_tasks",
		Arguments: map[string]any{"tasks": []any{map[string]any{"title": "Fix login bug"}}},
		Result:    map[string]any{"type": "proposal"},
	}}
	_, err = s.Messages.Create(ctx, "p1", types.RoleAssistant, "Here is a proposal", calls)
	require.NoError(t, err)

	msgs, err := s.Messages.ListRecent(ctx, "p1", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, types.RoleUser, msgs[0].Role)
	require.Len(t, msgs[1].ToolCalls, 1)
	assert.Equal(t, "propose_tasks", msgs[1].ToolCalls[0].ToolName)
	assert.Equal(t, map[string]any{"type": "proposal"}, msgs[1].ToolCalls[0].Result)
}

func TestMessageListRecentWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.Messages.Create(ctx, "p1", types.RoleUser, string(rune('a'+i)), nil)
		require.NoError(t, err)
	}

	msgs, err := s.Messages.ListRecent(ctx, "p1", 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	// Most recent three, oldest first.
	assert.Equal(t, "c", msgs[0].Content)
	assert.Equal(t, "e", msgs[2].Content)
}

func TestMessageClear(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Messages.Create(ctx, "p1", types.RoleUser, "x", nil)
		require.NoError(t, err)
	}
	_, err := s.Messages.Create(ctx, "p2", types.RoleUser, "other", nil)
	require.NoError(t, err)

	n, err := s.Messages.Clear(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	left, err := s.Messages.ListRecent(ctx, "p2", 10)
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestPlanCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	parent, err := s.Tasks.Create(ctx, "p1", types.TaskCreate{Title: "Build auth", Priority: types.PriorityHigh})
	require.NoError(t, err)

	plan, err := s.Plans.Create(ctx, "p1", parent.ID, "Build auth", []string{"id1", "id2"})
	require.NoError(t, err)
	assert.Equal(t, types.PlanActive, plan.Status)

	got, err := s.Plans.GetByParentTask(ctx, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, "Build auth", got.Goal)
	assert.Equal(t, []string{"id1", "id2"}, got.StepOrder)

	require.NoError(t, s.Plans.SetCurrentStep(ctx, plan.ID, "id1"))
	require.NoError(t, s.Plans.SetStatus(ctx, plan.ID, types.PlanCompleted))
	got, err = s.Plans.GetByParentTask(ctx, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, "id1", got.CurrentStep)
	assert.Equal(t, types.PlanCompleted, got.Status)
}

func TestDocumentHashDedupe(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	chunks := []types.Chunk{{Text: "hello world"}}
	embeddings := [][]float32{{0.1, 0.2}}
	doc, err := s.Documents.Create(ctx, "p1", "readme.md", "hash1", chunks, embeddings)
	require.NoError(t, err)

	found, err := s.Documents.FindByHash(ctx, "p1", "hash1")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, found.ID)

	_, err = s.Documents.FindByHash(ctx, "p1", "other")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Documents.FindByHash(ctx, "p2", "hash1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearchChunks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	chunks := []types.Chunk{
		{Text: "auth flow design"},
		{Text: "unrelated content"},
		{Text: "login sequence"},
	}
	embeddings := [][]float32{
		{1, 0},
		{0, 1},
		{0.9, 0.1},
	}
	_, err := s.Documents.Create(ctx, "p1", "design.md", "h", chunks, embeddings)
	require.NoError(t, err)

	results, err := s.SearchChunks(ctx, "p1", []float32{1, 0}, 5, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "auth flow design", results[0].ChunkText)
	assert.Equal(t, "login sequence", results[1].ChunkText)
	assert.Greater(t, results[0].Score, results[1].Score)
	assert.Equal(t, "design.md", results[0].DocumentName)

	topOne, err := s.SearchChunks(ctx, "p1", []float32{1, 0}, 1, 0.5)
	require.NoError(t, err)
	assert.Len(t, topOne, 1)

	none, err := s.SearchChunks(ctx, "p2", []float32{1, 0}, 5, 0.5)
	require.NoError(t, err)
	assert.Empty(t, none)
}
