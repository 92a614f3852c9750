package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/usherhq/usher/pkg/models"
)

var auditLimit int

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent execution attempts and calibration adjustments",
	Long: `Display the execution audit trail and the current calibration state.

The attempt history comes from the task registry and spans sessions.
The adjustments are what the classifier currently applies on top of the
static signal weights, one per keyword-agent pair with enough samples.

Examples:
  usher audit
  usher audit --limit 50`,
	RunE: runAudit,
}

func init() {
	auditCmd.Flags().IntVar(&auditLimit, "limit", 20, "Maximum attempts to display")
}

func runAudit(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime(resolveSession(), 0)
	if err != nil {
		return err
	}
	defer rt.Close()

	if rt.db == nil {
		fmt.Println("Task registry unavailable; no attempt history.")
	} else {
		attempts, err := rt.db.RecentAttempts(auditLimit)
		if err != nil {
			return fmt.Errorf("read attempts: %w", err)
		}
		renderAttempts(attempts)
	}

	adjustments, err := rt.orch.Calibration().Adjustments()
	if err != nil {
		return fmt.Errorf("compute adjustments: %w", err)
	}
	renderAdjustments(adjustments)
	return nil
}

func renderAttempts(attempts []models.ExecutionAttempt) {
	if len(attempts) == 0 {
		fmt.Println("No recorded attempts.")
		return
	}

	fmt.Printf("Recent attempts (%d):\n", len(attempts))
	for _, a := range attempts {
		outcome := "open"
		switch {
		case a.Outcome == models.OutcomeSuccess:
			outcome = color.GreenString(string(a.Outcome))
		case a.Outcome != "":
			outcome = color.RedString(string(a.Outcome))
		}

		duration := ""
		if a.DurationMs != nil {
			duration = fmt.Sprintf("  %dms", *a.DurationMs)
		}
		errText := ""
		if a.Error != "" {
			errText = fmt.Sprintf("  %q", a.Error)
		}

		fmt.Printf("  %s  %-28s #%d  %s%s%s\n",
			a.StartedAt.Format("2006-01-02 15:04:05"),
			a.Agent, a.AttemptNumber, outcome, duration, errText)
	}
}

func renderAdjustments(adjustments []models.CalibrationAdjustment) {
	fmt.Println()
	if len(adjustments) == 0 {
		fmt.Println("No active calibration adjustments.")
		return
	}

	fmt.Printf("Calibration adjustments (%d):\n", len(adjustments))
	for _, adj := range adjustments {
		fmt.Printf("  %-20s %-28s %+d  (%d samples)\n",
			adj.Keyword, adj.Agent, adj.Adjustment, adj.SampleCount)
	}
}
