package Output

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/surveypath/surveypath-go/pipelines"
	"github.com/surveypath/surveypath-go/utils"
)

// RespondentCSVPlugin writes the analysis-ready respondent file: one row
// per respondent with identity columns plus the configured variables.
// Missing observations export as empty cells, never as sentinel codes.
type RespondentCSVPlugin struct {
	name    string
	version string
}

// NewRespondentCSVPlugin creates a new respondent CSV output plugin instance
func NewRespondentCSVPlugin() *RespondentCSVPlugin {
	return &RespondentCSVPlugin{
		name:    "RespondentCSVPlugin",
		version: "1.0.0",
	}
}

// ExecuteStep writes the respondent set to the configured path.
func (p *RespondentCSVPlugin) ExecuteStep(ctx context.Context, stepConfig pipelines.StepConfig, globalContext *pipelines.PluginContext) (*pipelines.PluginContext, error) {
	logger := utils.GetLogger()
	config := stepConfig.Config

	if err := p.ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	inputKey := config["input"].(string)
	filePath := config["file_path"].(string)
	variables := variableList(config["variables"])

	set, err := globalContext.GetRespondents(inputKey)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := append([]string{"respondent_code", "wave", "month", "segment"}, variables...)
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for _, r := range set.Respondents {
		row := make([]string, 0, len(header))
		row = append(row, r.Code, strconv.Itoa(r.Wave), r.Month, r.Segment)
		for _, v := range variables {
			row = append(row, r.Get(v).String())
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write respondent %s: %w", r.Code, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush output: %w", err)
	}

	logger.Info("wrote respondent file",
		utils.Component("respondent_csv"),
		utils.String("file", filePath),
		utils.Int("respondents", set.Len()),
		utils.Int("variables", len(variables)))

	result := pipelines.NewPluginContext()
	result.SetTyped(stepConfig.Output, pipelines.NewJSONData(map[string]any{
		"file_path":   filePath,
		"respondents": set.Len(),
		"columns":     len(header),
	}))
	return result, nil
}

// GetPluginType returns the plugin type
func (p *RespondentCSVPlugin) GetPluginType() string {
	return "Output"
}

// GetPluginName returns the plugin name
func (p *RespondentCSVPlugin) GetPluginName() string {
	return "respondent_csv"
}

// ValidateConfig validates the plugin configuration
func (p *RespondentCSVPlugin) ValidateConfig(config map[string]any) error {
	if in, ok := config["input"].(string); !ok || in == "" {
		return fmt.Errorf("input is required and must be a string")
	}
	if fp, ok := config["file_path"].(string); !ok || fp == "" {
		return fmt.Errorf("file_path is required and must be a string")
	}
	if len(variableList(config["variables"])) == 0 {
		return fmt.Errorf("variables is required and must be a non-empty list")
	}
	return nil
}

// variableList coerces a YAML list into strings, nil when absent.
func variableList(raw any) []string {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
