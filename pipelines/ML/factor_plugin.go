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

// FactorPlugin extracts latent perception dimensions from an attribute
// battery: suitability checks, maximum-likelihood extraction with a
// varimax rotation, keyword-based naming, and factor scores written back
// onto the fitting-sample respondents.
type FactorPlugin struct {
	name    string
	version string
}

// NewFactorPlugin creates a new factor analysis plugin instance
func NewFactorPlugin() *FactorPlugin {
	return &FactorPlugin{
		name:    "FactorPlugin",
		version: "1.0.0",
	}
}

// ExecuteStep runs the factor analysis over the battery's complete
// cases. Unsuitable data (failed KMO and Bartlett checks together) or a
// degenerate fit skips the construct with a warning instead of failing
// the pipeline; downstream models simply see missing factor scores.
func (p *FactorPlugin) ExecuteStep(ctx context.Context, stepConfig pipelines.StepConfig, globalContext *pipelines.PluginContext) (*pipelines.PluginContext, error) {
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
		prefix = "factor"
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

	suitability, err := statmodel.FactorSuitability(rows)
	if err != nil {
		if errors.Is(err, statmodel.ErrDegenerate) {
			logger.Warn("factor analysis skipped",
				utils.Component("factor"),
				utils.String("battery", batteryName),
				utils.Error(err))
			summary["skipped"] = err.Error()
			result.SetTyped(stepConfig.Output, set)
			result.SetTyped(stepConfig.Output+"_summary", pipelines.NewJSONData(summary))
			return result, nil
		}
		return nil, err
	}
	summary["suitability"] = map[string]any{
		"kmo":           suitability.KMOOverall,
		"kmo_label":     suitability.KMOLabel,
		"bartlett_chi2": suitability.BartlettChi2,
		"bartlett_df":   suitability.BartlettDF,
		"bartlett_p":    suitability.BartlettP,
		"suitable":      suitability.Suitable,
	}
	if !suitability.Suitable {
		logger.Warn("battery failed factor suitability",
			utils.Component("factor"),
			utils.String("battery", batteryName),
			utils.Float("kmo", suitability.KMOOverall),
			utils.Float("bartlett_p", suitability.BartlettP))
		summary["skipped"] = "data unsuitable for factor analysis"
		result.SetTyped(stepConfig.Output, set)
		result.SetTyped(stepConfig.Output+"_summary", pipelines.NewJSONData(summary))
		return result, nil
	}

	solution, err := statmodel.FitFactors(battery.Items, rows, statmodel.DefaultFactorConfig(int64(seed)))
	if err != nil {
		if errors.Is(err, statmodel.ErrDegenerate) {
			logger.Warn("factor extraction skipped",
				utils.Component("factor"),
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
	factorInfo := make([]any, 0, solution.NumFactors)
	names := make([]string, solution.NumFactors)
	for j, f := range solution.Factors {
		top := topItemNames(battery.Items, f.TopItems, 3)
		names[j] = namer.Name(top, f.Index)

		loadings := make(map[string]any, len(battery.Items))
		for i, item := range battery.Items {
			loadings[item] = f.Loadings[i]
		}
		factorInfo = append(factorInfo, map[string]any{
			"index":              f.Index,
			"name":               names[j],
			"top_items":          top,
			"variance_explained": f.VarianceExplained,
			"loadings":           loadings,
		})
	}

	// Scores exist only for the fitting sample; everyone else keeps
	// missing for every factor variable.
	scoreVars := make([]string, solution.NumFactors)
	for j := range scoreVars {
		scoreVars[j] = fmt.Sprintf("%s_%d", prefix, j+1)
	}
	for _, r := range set.Respondents {
		for _, v := range scoreVars {
			r.Set(v, survey.MissingValue())
		}
	}
	for i, r := range complete {
		for j, v := range scoreVars {
			r.Set(v, survey.NumericValue(solution.Scores[i][j]))
		}
	}

	logger.Info("factor analysis complete",
		utils.Component("factor"),
		utils.String("battery", batteryName),
		utils.Int("n", solution.N),
		utils.Int("eligible_n", len(eligible)),
		utils.Int("kaiser_count", solution.KaiserCount),
		utils.Int("factors", solution.NumFactors))

	summary["kaiser_count"] = solution.KaiserCount
	summary["num_factors"] = solution.NumFactors
	summary["score_variables"] = scoreVars
	summary["factor_names"] = names
	summary["factors"] = factorInfo

	result.SetTyped(stepConfig.Output, pipelines.NewRespondentSetData(set.SchemaName, set.Respondents))
	result.SetTyped(stepConfig.Output+"_summary", pipelines.NewJSONData(summary))
	return result, nil
}

// GetPluginType returns the plugin type
func (p *FactorPlugin) GetPluginType() string {
	return "ML"
}

// GetPluginName returns the plugin name
func (p *FactorPlugin) GetPluginName() string {
	return "factor_analysis"
}

// ValidateConfig validates the plugin configuration
func (p *FactorPlugin) ValidateConfig(config map[string]any) error {
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

// topItemNames maps ranked item indices to their names, capped at limit.
func topItemNames(items []string, ranked []int, limit int) []string {
	if limit > len(ranked) {
		limit = len(ranked)
	}
	out := make([]string, 0, limit)
	for _, idx := range ranked[:limit] {
		out = append(out, items[idx])
	}
	return out
}

// intOr reads an integer config value with a default. YAML integers
// arrive as int, JSON round trips as float64.
func intOr(raw any, def int) int {
	switch v := raw.(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}
