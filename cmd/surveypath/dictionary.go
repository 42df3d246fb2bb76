package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/surveypath/surveypath-go/pkg/survey"
)

var flagDictionaryOut string

var dictionaryCmd = &cobra.Command{
	Use:   "dictionary <schema.yaml>",
	Short: "Print or export the data dictionary for a schema file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		schema, err := survey.LoadSchema(args[0])
		if err != nil {
			return err
		}
		entries := survey.SchemaDictionary(schema)

		if flagDictionaryOut != "" {
			if err := writeDictionaryCSV(flagDictionaryOut, entries); err != nil {
				return err
			}
			fmt.Printf("Wrote %d entries to %s\n", len(entries), flagDictionaryOut)
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Variable", "Category", "Scale", "Source"})
		for _, entry := range entries {
			table.Append([]string{entry.Variable, entry.Category, scaleColumn(entry), entry.Source})
		}
		table.Render()
		return nil
	},
}

func scaleColumn(entry survey.DictionaryEntry) string {
	if entry.ScaleInfo != "" {
		return entry.Scale + " (" + entry.ScaleInfo + ")"
	}
	return entry.Scale
}

func writeDictionaryCSV(path string, entries []survey.DictionaryEntry) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create dictionary file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"variable", "category", "scale", "scale_info", "source"}); err != nil {
		return err
	}
	for _, entry := range entries {
		if err := writer.Write([]string{entry.Variable, entry.Category, entry.Scale, entry.ScaleInfo, entry.Source}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func init() {
	dictionaryCmd.Flags().StringVar(&flagDictionaryOut, "out", "", "write the dictionary as CSV to this path")
	rootCmd.AddCommand(dictionaryCmd)
}
