package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/usherhq/usher/pkg/models"
)

var (
	outcomeError    string
	outcomeDuration int64
)

var outcomeCmd = &cobra.Command{
	Use:   "outcome <agent> <success|failure|partial|rejected>",
	Short: "Record an agent execution outcome",
	Long: `Record the outcome of a dispatched agent's attempt.

This is the post-execution hook entry point. It completes the open
execution attempt, updates the agent's session status, and feeds the
outcome into the calibration log so future classifications of the same
keywords shift toward agents that deliver.

The error text "null" is treated as no error.

Examples:
  usher outcome backend-system-architect success --duration 42000
  usher outcome test-generator failure --error "exit status 1"`,
	Args: cobra.ExactArgs(2),
	RunE: runOutcome,
}

func init() {
	outcomeCmd.Flags().StringVar(&outcomeError, "error", "", "Error text for failed attempts")
	outcomeCmd.Flags().Int64Var(&outcomeDuration, "duration", 0, "Attempt duration in milliseconds")
}

func runOutcome(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime(resolveSession(), 0)
	if err != nil {
		return err
	}
	defer rt.Close()

	agent := args[0]
	outcome := models.AttemptOutcome(args[1])

	var durationMs *int64
	if outcomeDuration > 0 {
		durationMs = &outcomeDuration
	}

	if err := rt.orch.HandleOutcome(agent, outcome, outcomeError, durationMs); err != nil {
		return err
	}

	fmt.Printf("Recorded %s for %s\n", outcome, agent)
	return nil
}
