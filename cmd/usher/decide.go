package main

import (
	"github.com/spf13/cobra"
)

var (
	decideError      string
	decideMaxRetries int
	decidePretty     bool
)

var decideCmd = &cobra.Command{
	Use:   "decide <agent>",
	Short: "Decide whether to retry a failed agent",
	Long: `Evaluate a failed attempt and print the retry decision as JSON.

The decision considers, in order:
  1. Non-retryable error classes (permissions, auth, missing files,
     quota and rate limits) stop and suggest a fallback agent
  2. Agents reporting the task outside their specialization route to a
     fallback
  3. Exhausted retry budgets stop with "Max retries exceeded"
  4. Everything else retries with exponential backoff and jitter

The attempt number and already-tried agents derive from session state.
A retry verdict transitions the agent to retrying, which advances the
attempt counter for the next call; any other verdict marks it failed.

Examples:
  usher decide test-generator --error "network timeout"
  usher decide debug-specialist --error "permission denied" --pretty
  usher decide devops-engineer --error "exit 1" --max-retries 5`,
	Args: cobra.ExactArgs(1),
	RunE: runDecide,
}

func init() {
	decideCmd.Flags().StringVar(&decideError, "error", "", "Error text from the failed attempt")
	decideCmd.Flags().IntVar(&decideMaxRetries, "max-retries", 0, "Override the retry budget for this decision")
	decideCmd.Flags().BoolVar(&decidePretty, "pretty", false, "Indent the JSON output")
}

func runDecide(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime(resolveSession(), 0)
	if err != nil {
		return err
	}
	defer rt.Close()

	decision, err := rt.orch.DecideRetry(args[0], decideError, decideMaxRetries)
	if err != nil {
		return err
	}
	return printJSON(decision, decidePretty)
}
