package tools

import (
	"time"

	"taskpilot/internal/types"
)

// Argument extraction helpers. Arguments arrive as decoded JSON, so
// every access goes through a type assertion with a zero-value fallback.

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

func listArg(args map[string]any, key string) []map[string]any {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	items := make([]map[string]any, 0, len(raw))
	for _, entry := range raw {
		if m, ok := entry.(map[string]any); ok {
			items = append(items, m)
		}
	}
	return items
}

// parseDueDate parses YYYY-MM-DD leniently: unparseable input is
// treated as no due date.
func parseDueDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &d
}

func formatDueDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format("2006-01-02")
}

// taskSummary is the compact task shape embedded in tool results.
func taskSummary(t *types.Task) map[string]any {
	return map[string]any{
		"id":       t.ID,
		"title":    t.Title,
		"status":   t.Status,
		"priority": t.Priority,
	}
}

func taskDetail(t *types.Task) map[string]any {
	m := taskSummary(t)
	m["assignee"] = t.Assignee
	m["due_date"] = formatDueDate(t.DueDate)
	return m
}
