package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/surveypath/surveypath-go/utils"
)

var flagCronExpr string

var scheduleCmd = &cobra.Command{
	Use:   "schedule <pipeline.yaml>",
	Short: "Run a pipeline on a recurring cron schedule",
	Long: `Runs the given pipeline on a cron schedule until interrupted.
Each run is persisted to the results database. Typical use is a monthly
refresh after new fieldwork lands, e.g. --cron "0 6 1 * *".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		scheduler := utils.NewScheduler(DefaultRegistry(), store)
		name, err := utils.GetPipelineName(args[0])
		if err != nil {
			return err
		}
		if err := scheduler.AddJob("scheduled", name, args[0], flagCronExpr); err != nil {
			return err
		}

		scheduler.Start()
		defer scheduler.Stop()
		fmt.Printf("Scheduling %s with cron %q; press Ctrl-C to stop\n", name, flagCronExpr)

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		fmt.Println("Stopping scheduler")
		return nil
	},
}

func init() {
	scheduleCmd.Flags().StringVar(&flagCronExpr, "cron", "0 6 1 * *", "five-field cron expression")
	rootCmd.AddCommand(scheduleCmd)
}
