package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/surveypath/surveypath-go/utils"
)

var validateCmd = &cobra.Command{
	Use:   "validate <pipeline.yaml>",
	Short: "Check a pipeline file without executing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configs, err := utils.ParseAllPipelines(args[0])
		if err != nil {
			return err
		}
		for _, pc := range configs {
			if err := pc.Validate(); err != nil {
				return fmt.Errorf("pipeline %q: %w", pc.Name, err)
			}
			state := "enabled"
			if !pc.Enabled {
				state = "disabled"
			}
			fmt.Printf("%s (%s, %d steps)\n", pc.Name, state, len(pc.Steps))
			for _, step := range pc.Steps {
				fmt.Printf("  %s -> %s", step.Name, step.Plugin)
				if step.Output != "" {
					fmt.Printf(" => %s", step.Output)
				}
				fmt.Println()
			}
		}
		fmt.Println("OK")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
