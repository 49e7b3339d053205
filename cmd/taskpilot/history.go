package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"taskpilot/internal/agent"
)

var (
	historyClear bool
	historyLimit int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show or clear the chat transcript",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().BoolVar(&historyClear, "clear", false, "delete the project's chat history")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 50, "number of messages to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if historyClear {
		n, err := agent.NewMemory(st, projectID).Clear(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("cleared %d message(s)\n", n)
		return nil
	}

	msgs, err := st.Messages.ListRecent(cmd.Context(), projectID, historyLimit)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		fmt.Println("no messages")
		return nil
	}

	for _, m := range msgs {
		fmt.Printf("%s %s\n", dimStyle.Render(m.CreatedAt.Local().Format("2006-01-02 15:04")), promptStyle.Render(m.Role))
		if m.Content != "" {
			fmt.Println(m.Content)
		}
		for _, call := range m.ToolCalls {
			fmt.Println(toolStyle.Render("  → " + call.ToolName))
		}
		fmt.Println()
	}
	return nil
}
