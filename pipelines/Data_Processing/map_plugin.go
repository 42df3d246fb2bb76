package Data_Processing

import (
	"context"
	"fmt"

	"github.com/surveypath/surveypath-go/pipelines"
	"github.com/surveypath/surveypath-go/pkg/survey"
	"github.com/surveypath/surveypath-go/utils"
)

// SurveyMapPlugin turns a raw export table into respondents under a
// versioned schema. Column locations live entirely in the schema file;
// the plugin itself knows nothing about any questionnaire layout.
type SurveyMapPlugin struct {
	name    string
	version string
}

// NewSurveyMapPlugin creates a new survey mapping plugin instance
func NewSurveyMapPlugin() *SurveyMapPlugin {
	return &SurveyMapPlugin{
		name:    "SurveyMapPlugin",
		version: "1.0.0",
	}
}

// ExecuteStep maps the input table to a respondent set.
func (p *SurveyMapPlugin) ExecuteStep(ctx context.Context, stepConfig pipelines.StepConfig, globalContext *pipelines.PluginContext) (*pipelines.PluginContext, error) {
	logger := utils.GetLogger()
	config := stepConfig.Config

	if err := p.ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	schemaPath := config["schema_path"].(string)
	inputKey := config["input"].(string)

	table, err := globalContext.GetTable(inputKey)
	if err != nil {
		return nil, err
	}

	schema, err := survey.LoadSchema(schemaPath)
	if err != nil {
		return nil, err
	}
	mapper, err := survey.NewMapper(schema)
	if err != nil {
		return nil, err
	}

	mapped, err := mapper.MapTable(table.Header, table.Rows)
	if err != nil {
		return nil, fmt.Errorf("mapping %s under schema %s: %w", table.Name, schema.Name, err)
	}

	if mapped.ShortRows > 0 {
		logger.Warn("short rows mapped with missing tails",
			utils.Component("survey_map"),
			utils.Int("short_rows", mapped.ShortRows))
	}
	for _, name := range mapped.UnmatchedVariables {
		logger.Warn("no header matched variable",
			utils.Component("survey_map"),
			utils.String("variable", name))
	}
	if mapped.UnlabeledSegments > 0 {
		logger.Warn("respondents kept raw segment codes",
			utils.Component("survey_map"),
			utils.Int("respondents", mapped.UnlabeledSegments))
	}
	logger.Info("mapped survey table",
		utils.Component("survey_map"),
		utils.String("schema", schema.Name),
		utils.Int("respondents", len(mapped.Respondents)))

	set := pipelines.NewRespondentSetData(schema.Name, mapped.Respondents)
	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("mapped respondent set is invalid: %w", err)
	}

	result := pipelines.NewPluginContext()
	result.SetTyped(stepConfig.Output, set)
	return result, nil
}

// GetPluginType returns the plugin type
func (p *SurveyMapPlugin) GetPluginType() string {
	return "Data_Processing"
}

// GetPluginName returns the plugin name
func (p *SurveyMapPlugin) GetPluginName() string {
	return "survey_map"
}

// ValidateConfig validates the plugin configuration
func (p *SurveyMapPlugin) ValidateConfig(config map[string]any) error {
	if sp, ok := config["schema_path"].(string); !ok || sp == "" {
		return fmt.Errorf("schema_path is required and must be a string")
	}
	if in, ok := config["input"].(string); !ok || in == "" {
		return fmt.Errorf("input is required and must be a string")
	}
	return nil
}
