package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var flagListLimit int

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Inspect persisted pipeline runs",
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		limit := flagListLimit
		if limit <= 0 {
			limit = cfg.MaxListRuns
		}
		runs, err := store.ListRuns(context.Background(), limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded")
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Run ID", "Pipeline", "Executed At", "Status", "Duration (ms)"})
		for _, run := range runs {
			status := "ok"
			if !run.Success {
				status = "failed"
			}
			table.Append([]string{run.RunID, run.Pipeline, run.ExecutedAt, status, fmt.Sprintf("%d", run.DurationMS)})
		}
		table.Render()
		return nil
	},
}

var reportShowCmd = &cobra.Command{
	Use:   "show <run-id> [result-key]",
	Short: "Show one run, or one of its stored results as JSON",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		if len(args) == 2 {
			content, err := store.GetResult(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(content)
		}

		run, err := store.GetRun(ctx, args[0])
		if err != nil {
			return err
		}
		keys, err := store.ListResultKeys(ctx, args[0])
		if err != nil {
			return err
		}
		if err := printJSON(run); err != nil {
			return err
		}
		if len(keys) > 0 {
			fmt.Println("Stored results:")
			for _, key := range keys {
				fmt.Printf("  %s\n", key)
			}
		}
		return nil
	},
}

func printJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func init() {
	reportListCmd.Flags().IntVar(&flagListLimit, "limit", 0, "maximum runs to list")
	reportCmd.AddCommand(reportListCmd)
	reportCmd.AddCommand(reportShowCmd)
	rootCmd.AddCommand(reportCmd)
}
