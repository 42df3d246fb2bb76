package main

import (
	"context"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/surveypath/surveypath-go/utils"
)

var flagNoPersist bool

var runCmd = &cobra.Command{
	Use:   "run <pipeline.yaml>",
	Short: "Execute a pipeline file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := utils.RunPipeline(args[0], DefaultRegistry())
		if err != nil {
			return err
		}

		if !flagNoPersist {
			if err := persistRun(result); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to persist run: %v\n", err)
			}
		}

		printRunResult(result)
		if !result.Success {
			return fmt.Errorf("pipeline %s failed: %s", result.Pipeline, result.Error)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&flagNoPersist, "no-persist", false, "skip writing the run to the results database")
	rootCmd.AddCommand(runCmd)
}

func persistRun(result *utils.PipelineExecutionResult) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.SaveRun(ctx, result); err != nil {
		return err
	}
	for _, key := range result.Context.Keys() {
		value, exists := result.Context.Get(key)
		if !exists {
			continue
		}
		content, ok := value.(map[string]any)
		if !ok {
			continue
		}
		if err := store.SaveResult(ctx, result.RunID, key, content); err != nil {
			return err
		}
	}
	return nil
}

func printRunResult(result *utils.PipelineExecutionResult) {
	fmt.Printf("Pipeline: %s\nRun ID:   %s\n", result.Pipeline, result.RunID)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Step", "Plugin", "Status", "Duration (ms)"})
	for _, step := range result.Steps {
		status := "ok"
		if !step.Succeeded {
			status = "failed: " + step.Error
		}
		table.Append([]string{step.Name, step.Plugin, status, fmt.Sprintf("%d", step.DurationMS)})
	}
	table.Render()

	if result.Success {
		fmt.Printf("Completed in %d ms\n", result.DurationMS)
	}
}
