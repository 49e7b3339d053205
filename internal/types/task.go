package types

import "time"

// Task statuses.
const (
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
	StatusReview     = "review"
	StatusDone       = "done"
)

// Task priorities.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Plan statuses.
const (
	PlanActive    = "active"
	PlanCompleted = "completed"
	PlanCancelled = "cancelled"
)

// Task is a project work item. Order is the 0-based position among plan
// siblings; it is nil for tasks that are not part of a plan.
type Task struct {
	ID           string
	ProjectID    string
	ParentTaskID string // empty for top-level tasks
	Title        string
	Description  string
	Status       string
	Priority     string
	Assignee     string
	DueDate      *time.Time
	Order        *int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TaskCreate carries the fields accepted when creating a task.
type TaskCreate struct {
	Title        string
	Description  string
	Priority     string
	Assignee     string
	DueDate      *time.Time
	ParentTaskID string
	Order        *int
}

// TaskUpdate carries optional field updates; nil means unchanged.
type TaskUpdate struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
	Assignee    *string
	DueDate     *time.Time
}

// TaskFilter narrows list queries.
type TaskFilter struct {
	Status   string
	Priority string
}

// Plan records a confirmed multi-step plan: one parent task plus the
// ordered subtask ids created for its steps.
type Plan struct {
	ID           string
	ProjectID    string
	ParentTaskID string
	Goal         string
	Status       string
	CurrentStep  string // task id of the step in progress, empty before start
	StepOrder    []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Document is an ingested file whose chunks are embedded for search.
type Document struct {
	ID          string
	ProjectID   string
	Name        string
	ContentHash string
	ChunkCount  int
	CreatedAt   time.Time
}

// Chunk is one embedded slice of a document.
type Chunk struct {
	ID         string
	DocumentID string
	Text       string
	Page       int
	Position   int
}

// SearchResult is one ranked hit from vector search. Score is cosine
// similarity in [0,1], results ordered descending.
type SearchResult struct {
	ChunkText    string
	DocumentID   string
	DocumentName string
	Page         int
	Score        float64
}
