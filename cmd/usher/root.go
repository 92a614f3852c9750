package main

import (
	"os"

	"github.com/spf13/cobra"
)

var sessionFlag string

var rootCmd = &cobra.Command{
	Use:   "usher",
	Short: "Agent Dispatch & Calibration Engine",
	Long: `Usher is the decision core for agent orchestration: it classifies
prompts into agent and skill recommendations, detects multi-step pipelines,
decides retries with backoff and fallback agents, and calibrates its own
confidence from recorded outcomes.

It is designed to sit behind editor or assistant hooks: each subcommand is
one hook entry point that reads the prompt or outcome, consults session
state, and prints a decision as JSON.

Core capabilities:
- Scores prompts against a weighted signal index with context boosts
- Materializes pipeline task chains from trigger phrases
- Decides retry vs fallback from error classes and attempt counts
- Learns per keyword-agent confidence adjustments from outcomes`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveSession returns the session ID to operate on: the --session
// flag, then USHER_SESSION, then "default".
func resolveSession() string {
	if sessionFlag != "" {
		return sessionFlag
	}
	if env := os.Getenv("USHER_SESSION"); env != "" {
		return env
	}
	return "default"
}

func init() {
	rootCmd.PersistentFlags().StringVar(&sessionFlag, "session", "", "Session ID to operate on (default: USHER_SESSION or \"default\")")

	// Add subcommands
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(dispatchCmd)
	rootCmd.AddCommand(outcomeCmd)
	rootCmd.AddCommand(decideCmd)
	rootCmd.AddCommand(injectCmd)
	rootCmd.AddCommand(pipelineCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
