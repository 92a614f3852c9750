package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pipelinePretty bool

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Manage the active pipeline execution",
	Long: `Inspect and advance the session's active pipeline.

Pipelines are detected from trigger phrases at classify time and
materialized as a linear task chain. Each task is blocked by the one
before it; completing the final task completes the pipeline.`,
}

var pipelineCompleteCmd = &cobra.Command{
	Use:   "complete <taskId>",
	Short: "Mark a pipeline task as completed",
	Args:  cobra.ExactArgs(1),
	RunE:  runPipelineComplete,
}

var pipelineAbortCmd = &cobra.Command{
	Use:   "abort",
	Short: "Abort the active pipeline",
	Args:  cobra.NoArgs,
	RunE:  runPipelineAbort,
}

var pipelineShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the active pipeline as JSON",
	Args:  cobra.NoArgs,
	RunE:  runPipelineShow,
}

func init() {
	pipelineShowCmd.Flags().BoolVar(&pipelinePretty, "pretty", false, "Indent the JSON output")

	pipelineCmd.AddCommand(pipelineCompleteCmd)
	pipelineCmd.AddCommand(pipelineAbortCmd)
	pipelineCmd.AddCommand(pipelineShowCmd)
}

func runPipelineComplete(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime(resolveSession(), 0)
	if err != nil {
		return err
	}
	defer rt.Close()

	exec, err := rt.orch.CompletePipelineTask(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Completed %s (%s: %s)\n", args[0], exec.PipelineID, exec.Status)
	return nil
}

func runPipelineAbort(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime(resolveSession(), 0)
	if err != nil {
		return err
	}
	defer rt.Close()

	exec, err := rt.orch.AbortPipeline()
	if err != nil {
		return err
	}

	fmt.Printf("Aborted %s\n", exec.PipelineID)
	return nil
}

func runPipelineShow(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime(resolveSession(), 0)
	if err != nil {
		return err
	}
	defer rt.Close()

	st := rt.orch.State()
	if st.ActivePipeline == nil {
		fmt.Println("No pipeline in this session.")
		return nil
	}
	return printJSON(st.ActivePipeline, pipelinePretty)
}
