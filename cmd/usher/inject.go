package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var injectCmd = &cobra.Command{
	Use:   "inject <skill>",
	Short: "Track a skill injection",
	Long: `Record that a skill was injected into the current session.

Each skill is tracked at most once per session; repeat injections are
no-ops, so hook scripts can call this unconditionally.

Examples:
  usher inject sql-optimization
  usher inject react-patterns --session sess-42`,
	Args: cobra.ExactArgs(1),
	RunE: runInject,
}

func runInject(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime(resolveSession(), 0)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.orch.InjectSkill(args[0]); err != nil {
		return err
	}

	fmt.Printf("Injected %s\n", args[0])
	return nil
}
