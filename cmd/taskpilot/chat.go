package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"taskpilot/internal/agent"
	"taskpilot/internal/embedding"
	"taskpilot/internal/logging"
	"taskpilot/internal/provider"
	"taskpilot/internal/tools"
)

var (
	promptStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	toolStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	progressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Starts a streaming REPL with the project assistant.

Type a message and watch the agent think, search documents, and propose
tasks. Use /clear to wipe the conversation history and /quit to exit.`,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	llm, err := provider.New(cfg.LLM)
	if err != nil {
		return err
	}
	engine, err := embedding.NewEngine(cfg.Embedding)
	if err != nil {
		return err
	}

	registry := tools.DefaultRegistry(st, engine, projectID, cfg.Ingest.SimilarityThreshold)
	memory := agent.NewMemory(st, projectID)
	ag := agent.New(llm, registry, memory, projectID, cfg.LLM.MaxTokens)

	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return err
	}

	logging.CLI("chat session started: project=%s provider=%s", projectID, llm.Name())
	fmt.Printf("taskpilot chat (project %s, provider %s, /quit to exit)\n\n", projectID, llm.Name())

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(promptStyle.Render("you> "), "")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/quit", "/exit":
			return nil
		case "/clear":
			n, err := memory.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(dimStyle.Render(fmt.Sprintf("cleared %d message(s)", n)))
			continue
		}

		streamTurn(cmd, ag, renderer, line)
	}
	return scanner.Err()
}

func streamTurn(cmd *cobra.Command, ag *agent.Agent, renderer *glamour.TermRenderer, line string) {
	streamedText := false

	for evt := range ag.RunStream(cmd.Context(), line) {
		switch evt.Type {
		case agent.EventThinking:
			if last, _ := evt.Data["last_tool"].(string); last != "" {
				fmt.Println(dimStyle.Render(fmt.Sprintf("thinking (after %s)...", last)))
			} else {
				fmt.Println(dimStyle.Render("thinking..."))
			}
		case agent.EventTextDelta:
			text, _ := evt.Data["text"].(string)
			fmt.Print(text)
			streamedText = true
		case agent.EventToolStart:
			name, _ := evt.Data["tool_name"].(string)
			fmt.Println(toolStyle.Render("→ " + name))
		case agent.EventToolEnd:
			// tool results reach the model; nothing to show here
		case agent.EventResponse:
			message, _ := evt.Data["message"].(string)
			if streamedText {
				fmt.Println()
			} else if message != "" {
				if out, err := renderer.Render(message); err == nil {
					fmt.Print(out)
				} else {
					fmt.Println(message)
				}
			}
		case agent.EventError:
			fmt.Println(errorStyle.Render("error: " + evt.Err.Error()))
		default:
			// tool-internal progress (task_created, plan_step_created, ...)
			fmt.Println(progressStyle.Render("  " + describeProgress(evt)))
		}
	}
	fmt.Println()
}

func describeProgress(evt agent.Event) string {
	switch evt.Type {
	case "task_created":
		if task, ok := evt.Data["task"].(map[string]any); ok {
			return fmt.Sprintf("✓ created task: %v", task["title"])
		}
	case "plan_started":
		return fmt.Sprintf("plan started: %v (%v steps)", evt.Data["plan_goal"], evt.Data["total_steps"])
	case "plan_step_created":
		if task, ok := evt.Data["task"].(map[string]any); ok {
			return fmt.Sprintf("✓ step %v/%v: %v", evt.Data["step_number"], evt.Data["total_steps"], task["title"])
		}
	}
	return evt.Type
}
