package ML

import (
	"context"
	"errors"
	"fmt"

	"github.com/surveypath/surveypath-go/pipelines"
	"github.com/surveypath/surveypath-go/pkg/statmodel"
	"github.com/surveypath/surveypath-go/pkg/survey"
	"github.com/surveypath/surveypath-go/utils"
)

// ClusterPlugin groups battery items into perception themes by
// clustering their response profiles, then derives one mean composite
// per theme so the themes can enter later models.
type ClusterPlugin struct {
	name    string
	version string
}

// NewClusterPlugin creates a new item clustering plugin instance
func NewClusterPlugin() *ClusterPlugin {
	return &ClusterPlugin{
		name:    "ClusterPlugin",
		version: "1.0.0",
	}
}

// ExecuteStep clusters the battery items over the complete cases and
// writes a composite score per cluster onto every respondent.
func (p *ClusterPlugin) ExecuteStep(ctx context.Context, stepConfig pipelines.StepConfig, globalContext *pipelines.PluginContext) (*pipelines.PluginContext, error) {
	logger := utils.GetLogger()
	config := stepConfig.Config

	if err := p.ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	inputKey := config["input"].(string)
	batteriesPath := config["batteries_path"].(string)
	batteryName := config["battery"].(string)
	prefix, _ := config["score_prefix"].(string)
	if prefix == "" {
		prefix = "cluster"
	}
	seed := intOr(config["seed"], 42)

	set, err := globalContext.GetRespondents(inputKey)
	if err != nil {
		return nil, err
	}
	batteries, err := survey.LoadBatteries(batteriesPath)
	if err != nil {
		return nil, err
	}
	battery, found := batteries.Get(batteryName)
	if !found {
		return nil, fmt.Errorf("unknown battery %q", batteryName)
	}

	eligible := survey.AnyValid(set.Respondents, battery.Items)
	complete := survey.CompleteCases(set.Respondents, battery.Items)
	rows, err := survey.Matrix(complete, battery.Items)
	if err != nil {
		return nil, err
	}

	summary := map[string]any{
		"battery":    batteryName,
		"n":          len(complete),
		"eligible_n": len(eligible),
	}
	result := pipelines.NewPluginContext()

	solution, err := statmodel.ClusterItems(battery.Items, rows, statmodel.DefaultClusterConfig(int64(seed)))
	if err != nil {
		if errors.Is(err, statmodel.ErrDegenerate) {
			logger.Warn("item clustering skipped",
				utils.Component("cluster"),
				utils.String("battery", batteryName),
				utils.Error(err))
			summary["skipped"] = err.Error()
			result.SetTyped(stepConfig.Output, set)
			result.SetTyped(stepConfig.Output+"_summary", pipelines.NewJSONData(summary))
			return result, nil
		}
		return nil, err
	}

	namer := survey.NewNamer(batteries.LabelRules)
	clusterInfo := make([]any, 0, solution.K)
	for _, c := range solution.Clusters {
		label := namer.Name(c.Items, c.Index)
		scoreVar := fmt.Sprintf("%s_%d", prefix, c.Index)

		for _, r := range set.Respondents {
			r.Set(scoreVar, survey.MeanOfAvailable(r, c.Items))
		}

		clusterInfo = append(clusterInfo, map[string]any{
			"index":          c.Index,
			"name":           label,
			"items":          c.Items,
			"score_variable": scoreVar,
		})
	}

	diagnostics := make([]any, 0, len(solution.Diagnostics))
	for _, d := range solution.Diagnostics {
		diagnostics = append(diagnostics, map[string]any{
			"k":          d.K,
			"silhouette": d.Silhouette,
			"inertia":    d.Inertia,
			"min_size":   d.MinSize,
		})
	}

	logger.Info("item clustering complete",
		utils.Component("cluster"),
		utils.String("battery", batteryName),
		utils.Int("n", len(complete)),
		utils.Int("eligible_n", len(eligible)),
		utils.Int("k", solution.K),
		utils.Bool("fallback", solution.Fallback),
		utils.Float("silhouette", solution.Silhouette))

	summary["k"] = solution.K
	summary["fallback"] = solution.Fallback
	summary["silhouette"] = solution.Silhouette
	summary["components"] = solution.Components
	summary["clusters"] = clusterInfo
	summary["diagnostics"] = diagnostics

	result.SetTyped(stepConfig.Output, pipelines.NewRespondentSetData(set.SchemaName, set.Respondents))
	result.SetTyped(stepConfig.Output+"_summary", pipelines.NewJSONData(summary))
	return result, nil
}

// GetPluginType returns the plugin type
func (p *ClusterPlugin) GetPluginType() string {
	return "ML"
}

// GetPluginName returns the plugin name
func (p *ClusterPlugin) GetPluginName() string {
	return "item_cluster"
}

// ValidateConfig validates the plugin configuration
func (p *ClusterPlugin) ValidateConfig(config map[string]any) error {
	if in, ok := config["input"].(string); !ok || in == "" {
		return fmt.Errorf("input is required and must be a string")
	}
	if bp, ok := config["batteries_path"].(string); !ok || bp == "" {
		return fmt.Errorf("batteries_path is required and must be a string")
	}
	if b, ok := config["battery"].(string); !ok || b == "" {
		return fmt.Errorf("battery is required and must be a string")
	}
	return nil
}
