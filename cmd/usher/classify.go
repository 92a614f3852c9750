package main

import (
	"github.com/spf13/cobra"
)

var classifyPretty bool

var classifyCmd = &cobra.Command{
	Use:   "classify <prompt>",
	Short: "Classify a prompt into agent and skill recommendations",
	Long: `Classify a prompt against the signal index and print the decision.

This is the prompt-submit hook entry point. The full decision flow runs:
  1. Pipeline detection: if a trigger phrase matches and no pipeline is
     already running, a task chain is materialized and registered
  2. Otherwise the prompt is scored against agent and skill signals,
     with context boosts from recent history and calibration adjustments
     from past outcomes

The result is cached in session state and the prompt is appended to the
session history.

Examples:
  usher classify "Fix the login API endpoint"
  usher classify "Build a full-stack feature for comments" --pretty
  usher classify "Add tests" --session sess-42 | jq '.classification'`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().BoolVar(&classifyPretty, "pretty", false, "Indent the JSON output")
}

func runClassify(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime(resolveSession(), 0)
	if err != nil {
		return err
	}
	defer rt.Close()

	decision, err := rt.orch.HandlePrompt(args[0])
	if err != nil {
		return err
	}
	return printJSON(decision, classifyPretty)
}
