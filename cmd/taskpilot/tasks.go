package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"taskpilot/internal/types"
)

var (
	tasksStatus   string
	tasksPriority string

	titleStyle  = lipgloss.NewStyle().Bold(true)
	statusStyle = map[string]lipgloss.Style{
		types.StatusTodo:       lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		types.StatusInProgress: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		types.StatusReview:     lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		types.StatusDone:       lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
	}
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List the project's tasks",
	RunE:  runTasks,
}

func init() {
	tasksCmd.Flags().StringVar(&tasksStatus, "status", "", "filter by status (todo, in_progress, review, done)")
	tasksCmd.Flags().StringVar(&tasksPriority, "priority", "", "filter by priority (low, medium, high, critical)")
}

func runTasks(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	tasks, err := st.Tasks.ListByProject(cmd.Context(), projectID, types.TaskFilter{
		Status:   tasksStatus,
		Priority: tasksPriority,
	})
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Println("no tasks")
		return nil
	}

	// Top-level tasks first, subtasks indented under their parent.
	byParent := make(map[string][]*types.Task)
	var roots []*types.Task
	for _, t := range tasks {
		if t.ParentTaskID == "" {
			roots = append(roots, t)
		} else {
			byParent[t.ParentTaskID] = append(byParent[t.ParentTaskID], t)
		}
	}

	for _, t := range roots {
		printTask(t, "")
		for _, sub := range byParent[t.ID] {
			printTask(sub, "    ")
		}
	}
	return nil
}

func printTask(t *types.Task, indent string) {
	status := t.Status
	if style, ok := statusStyle[t.Status]; ok {
		status = style.Render(t.Status)
	}
	line := fmt.Sprintf("%s%s  [%s, %s]", indent, titleStyle.Render(t.Title), status, t.Priority)
	if t.DueDate != nil {
		line += "  due " + t.DueDate.Format("2006-01-02")
	}
	if t.Assignee != "" {
		line += "  @" + t.Assignee
	}
	fmt.Println(line)
	fmt.Println(dimStyle.Render(indent + "  " + t.ID))
}
