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

// LogisticPlugin fits penalized logistic regressions of top-box funnel
// outcomes on perception drivers, pooled and optionally per segment.
// Segments below the sample floor are skipped rather than fitted on
// unstable data.
type LogisticPlugin struct {
	name    string
	version string
}

// NewLogisticPlugin creates a new penalized logistic plugin instance
func NewLogisticPlugin() *LogisticPlugin {
	return &LogisticPlugin{
		name:    "LogisticPlugin",
		version: "1.0.0",
	}
}

// ExecuteStep fits one model per configured outcome on the pooled
// complete cases, then per segment when by_segment is set. A single
// class outcome or an undersized sample records a skip, never a fit.
func (p *LogisticPlugin) ExecuteStep(ctx context.Context, stepConfig pipelines.StepConfig, globalContext *pipelines.PluginContext) (*pipelines.PluginContext, error) {
	logger := utils.GetLogger()
	config := stepConfig.Config

	if err := p.ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	inputKey := config["input"].(string)
	outcomes := anyStrings(config["outcomes"])
	predictors := anyStrings(config["predictors"])
	bySegment, _ := config["by_segment"].(bool)
	minSegmentN := intOr(config["min_segment_n"], 50)
	seed := intOr(config["seed"], 42)

	cfg := statmodel.DefaultLogisticConfig(int64(seed))
	if penalty, ok := config["penalty"].(string); ok && penalty != "" {
		cfg.Penalty = penalty
	}

	set, err := globalContext.GetRespondents(inputKey)
	if err != nil {
		return nil, err
	}

	summary := make(map[string]any, len(outcomes))
	for _, outcome := range outcomes {
		entry := map[string]any{}

		pooled, ferr := p.fitOne(outcome, predictors, set.Respondents, cfg)
		if ferr != nil {
			if errors.Is(ferr, statmodel.ErrDegenerate) {
				logger.Warn("logistic model skipped",
					utils.Component("logistic"),
					utils.String("outcome", outcome),
					utils.Error(ferr))
				entry["skipped"] = ferr.Error()
				summary[outcome] = entry
				continue
			}
			return nil, ferr
		}
		entry["pooled"] = logisticSummary(pooled)
		logger.Info("logistic model fitted",
			utils.Component("logistic"),
			utils.String("outcome", outcome),
			utils.Int("n", pooled.N),
			utils.Float("cv_auc", pooled.CVAUCMean))

		if bySegment {
			segments := map[string]any{}
			for _, segment := range survey.Segments(set.Respondents) {
				inSegment := survey.FilterSegment(set.Respondents, segment)
				if len(inSegment) < minSegmentN {
					segments[segment] = map[string]any{
						"skipped": fmt.Sprintf("segment has %d respondents, floor is %d", len(inSegment), minSegmentN),
					}
					continue
				}
				segModel, serr := p.fitOne(outcome, predictors, inSegment, cfg)
				if serr != nil {
					if errors.Is(serr, statmodel.ErrDegenerate) {
						segments[segment] = map[string]any{"skipped": serr.Error()}
						continue
					}
					return nil, serr
				}
				segments[segment] = logisticSummary(segModel)
			}
			entry["by_segment"] = segments
		}
		summary[outcome] = entry
	}

	result := pipelines.NewPluginContext()
	result.SetTyped(stepConfig.Output, pipelines.NewJSONData(map[string]any{
		"predictors": predictors,
		"penalty":    cfg.Penalty,
		"outcomes":   summary,
	}))
	return result, nil
}

// fitOne assembles the complete-case sample for one outcome and fits it.
func (p *LogisticPlugin) fitOne(outcome string, predictors []string, resps []*survey.Respondent, cfg statmodel.LogisticConfig) (*statmodel.LogisticModel, error) {
	vars := append([]string{outcome}, predictors...)
	complete := survey.CompleteCases(resps, vars)
	if len(complete) <= len(predictors)+1 {
		return nil, fmt.Errorf("%w: %d complete cases for %q", statmodel.ErrDegenerate, len(complete), outcome)
	}
	y := survey.NumericColumn(complete, outcome)
	x, err := survey.Matrix(complete, predictors)
	if err != nil {
		return nil, err
	}
	return statmodel.FitPenalizedLogistic(outcome, y, predictors, x, cfg)
}

// GetPluginType returns the plugin type
func (p *LogisticPlugin) GetPluginType() string {
	return "ML"
}

// GetPluginName returns the plugin name
func (p *LogisticPlugin) GetPluginName() string {
	return "penalized_logistic"
}

// ValidateConfig validates the plugin configuration
func (p *LogisticPlugin) ValidateConfig(config map[string]any) error {
	if in, ok := config["input"].(string); !ok || in == "" {
		return fmt.Errorf("input is required and must be a string")
	}
	if len(anyStrings(config["outcomes"])) == 0 {
		return fmt.Errorf("outcomes is required and must be a non-empty list")
	}
	if len(anyStrings(config["predictors"])) == 0 {
		return fmt.Errorf("predictors is required and must be a non-empty list")
	}
	if penalty, ok := config["penalty"].(string); ok {
		switch penalty {
		case statmodel.PenaltyL1, statmodel.PenaltyL2, statmodel.PenaltyElasticNet:
		default:
			return fmt.Errorf("unknown penalty %q", penalty)
		}
	}
	return nil
}

// logisticSummary renders a fitted model for JSON output.
func logisticSummary(m *statmodel.LogisticModel) map[string]any {
	coefs := make([]any, 0, len(m.Coefficients))
	for _, c := range m.Coefficients {
		coefs = append(coefs, map[string]any{
			"name":       c.Name,
			"estimate":   c.Estimate,
			"odds_ratio": c.OddsRatio,
		})
	}
	return map[string]any{
		"n":           m.N,
		"n_positive":  m.NPositive,
		"selected_c":  m.SelectedC,
		"intercept":   m.Intercept,
		"auc":         m.AUC,
		"cv_auc_mean": m.CVAUCMean,
		"cv_auc_std":  m.CVAUCStd,
		"coefficients": coefs,
	}
}
