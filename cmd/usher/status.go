package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/usherhq/usher/internal/session"
	"github.com/usherhq/usher/pkg/models"
)

var statusWatch bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current session state",
	Long: `Display the current state of an Usher session.

Shows:
  - Tracked agent dispatches and their status
  - The active pipeline and its task chain
  - Injected skills and prompt history depth
  - Calibration totals across all sessions

With --watch, the display re-renders whenever the session state file
changes on disk.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusWatch, "watch", false, "Re-render on session state changes")
}

func runStatus(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime(resolveSession(), 0)
	if err != nil {
		return err
	}
	defer rt.Close()

	if !statusWatch {
		return renderStatus(rt)
	}

	watcher, err := session.NewWatcher(rt.store)
	if err != nil {
		return fmt.Errorf("watch session state: %w", err)
	}
	defer watcher.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	clearScreen()
	if err := renderStatus(rt); err != nil {
		return err
	}

	for {
		select {
		case id := <-watcher.Changes:
			if id != rt.orch.SessionID() {
				continue
			}
			clearScreen()
			if err := renderStatus(rt); err != nil {
				return err
			}
		case <-interrupt:
			return nil
		}
	}
}

func clearScreen() {
	fmt.Print("\033[2J\033[H")
}

func renderStatus(rt *runtime) error {
	st := rt.orch.State()

	if len(st.ActiveAgents) == 0 && len(st.PromptHistory) == 0 && st.ActivePipeline == nil {
		fmt.Printf("Session %s is empty. Run 'usher classify \"<prompt>\"' to start.\n", rt.orch.SessionID())
		return renderCalibration(rt)
	}

	fmt.Printf("Session: %s\n", st.SessionID)
	if !st.UpdatedAt.IsZero() {
		fmt.Printf("  Updated: %s ago\n", formatDuration(time.Since(st.UpdatedAt)))
	}
	fmt.Printf("  Prompts: %d tracked\n", len(st.PromptHistory))
	if len(st.InjectedSkills) > 0 {
		fmt.Printf("  Skills: %s\n", strings.Join(st.InjectedSkills, ", "))
	}

	if len(st.ActiveAgents) > 0 {
		fmt.Println()
		fmt.Println("Agents:")
		for _, a := range st.ActiveAgents {
			attempt := fmt.Sprintf("attempt %d/%d", a.RetryCount+1, a.MaxRetries)
			if a.Status.Terminal() {
				attempt = fmt.Sprintf("%d retries", a.RetryCount)
			}
			fmt.Printf("  %-28s %s  (confidence %d, %s)\n",
				a.Agent, statusLabel(a.Status), a.Confidence, attempt)
		}
	}

	if p := st.ActivePipeline; p != nil {
		fmt.Println()
		fmt.Printf("Pipeline: %s (%s, %s)\n", p.PipelineID, p.Type, p.Status)
		for _, task := range p.Tasks {
			mark := " "
			if task.Status == models.PipelineTaskDone {
				mark = "x"
			}
			blocked := ""
			if task.BlockedBy != "" {
				blocked = fmt.Sprintf("  (blocked by %s)", task.BlockedBy)
			}
			fmt.Printf("  [%s] %s: %s%s\n", mark, task.TaskID, task.Agent, blocked)
		}
	}

	if c := st.LastClassification; c != nil {
		fmt.Println()
		if top := c.TopAgent(); top != nil {
			fmt.Printf("Last classification: %s (%d, %s)\n", top.Name, top.Confidence, c.Intent)
		} else {
			fmt.Printf("Last classification: no match (%s)\n", c.Intent)
		}
	}

	fmt.Println()
	return renderCalibration(rt)
}

func renderCalibration(rt *runtime) error {
	stats, err := rt.orch.Calibration().Stats()
	if err != nil {
		return fmt.Errorf("read calibration stats: %w", err)
	}
	adjustments, err := rt.orch.Calibration().Adjustments()
	if err != nil {
		return fmt.Errorf("compute adjustments: %w", err)
	}

	if stats.TotalDispatches == 0 {
		fmt.Println("Calibration: no recorded outcomes yet")
		return nil
	}
	fmt.Printf("Calibration: %d outcomes, %.0f%% success, %d active adjustments\n",
		stats.TotalDispatches, stats.SuccessRate*100, len(adjustments))
	return nil
}

// statusLabel colors an agent status for terminal display.
func statusLabel(s models.AgentStatus) string {
	switch s {
	case models.AgentCompleted:
		return color.GreenString("%-11s", string(s))
	case models.AgentFailed:
		return color.RedString("%-11s", string(s))
	case models.AgentRetrying:
		return color.YellowString("%-11s", string(s))
	default:
		return fmt.Sprintf("%-11s", string(s))
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	days := int(d.Hours()) / 24
	return fmt.Sprintf("%dd", days)
}
