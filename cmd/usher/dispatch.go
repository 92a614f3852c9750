package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	dispatchConfidence int
	dispatchTaskID     string
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch <agent>",
	Short: "Track an agent dispatch",
	Long: `Record that an agent was dispatched for the current session.

Tracks the dispatch in session state, registers the task in the registry,
and opens an execution attempt for the audit trail. If no task ID is
given, the dispatch resolves to the agent's pending pipeline task or its
registered task before a fresh one is generated.

Examples:
  usher dispatch backend-system-architect --confidence 85
  usher dispatch test-generator --confidence 70 --task task-a1b2c3d4`,
	Args: cobra.ExactArgs(1),
	RunE: runDispatch,
}

func init() {
	dispatchCmd.Flags().IntVar(&dispatchConfidence, "confidence", 0, "Classifier confidence at dispatch time (0-100)")
	dispatchCmd.Flags().StringVar(&dispatchTaskID, "task", "", "Task ID to link the dispatch to (generated if empty)")
}

func runDispatch(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime(resolveSession(), 0)
	if err != nil {
		return err
	}
	defer rt.Close()

	taskID, err := rt.orch.TrackDispatch(args[0], dispatchConfidence, dispatchTaskID)
	if err != nil {
		return err
	}

	fmt.Printf("Tracked %s (task %s)\n", args[0], taskID)
	return nil
}
