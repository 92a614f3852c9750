package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Reset session state",
	Long: `Reset the session aggregate to empty.

Dispatches, injected skills, prompt history, the cached classification,
and any active pipeline are discarded. The calibration log and the task
registry are cross-session and survive a clear.

Examples:
  usher clear
  usher clear --session sess-42`,
	Args: cobra.NoArgs,
	RunE: runClear,
}

func runClear(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime(resolveSession(), 0)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.orch.ClearSession(); err != nil {
		return err
	}

	fmt.Printf("Cleared session %s\n", rt.orch.SessionID())
	return nil
}
