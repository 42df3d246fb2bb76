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

// PathModelPlugin fits the sequential regressions of a funnel path
// model: each configured model regresses one funnel stage on its
// upstream drivers over that model's own complete-case sample. Nested
// model pairs can be compared with an F-test for the incremental
// contribution of added predictors.
type PathModelPlugin struct {
	name    string
	version string
}

// NewPathModelPlugin creates a new path model plugin instance
func NewPathModelPlugin() *PathModelPlugin {
	return &PathModelPlugin{
		name:    "PathModelPlugin",
		version: "1.0.0",
	}
}

type pathModelSpec struct {
	name       string
	outcome    string
	predictors []string
}

// ExecuteStep fits every configured model. A model with a degenerate
// outcome or too few complete cases is recorded as skipped with its
// reason; the remaining models still run.
func (p *PathModelPlugin) ExecuteStep(ctx context.Context, stepConfig pipelines.StepConfig, globalContext *pipelines.PluginContext) (*pipelines.PluginContext, error) {
	logger := utils.GetLogger()
	config := stepConfig.Config

	if err := p.ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	inputKey := config["input"].(string)
	set, err := globalContext.GetRespondents(inputKey)
	if err != nil {
		return nil, err
	}

	specs, err := parsePathModels(config["models"])
	if err != nil {
		return nil, err
	}
	comparisons := parseComparisons(config["compare"])

	fitted := make(map[string]*statmodel.OLSModel, len(specs))
	models := make(map[string]any, len(specs))
	for _, spec := range specs {
		vars := append([]string{spec.outcome}, spec.predictors...)
		complete := survey.CompleteCases(set.Respondents, vars)

		y := survey.NumericColumn(complete, spec.outcome)
		x, merr := survey.Matrix(complete, spec.predictors)
		if merr != nil {
			return nil, merr
		}

		model, ferr := statmodel.FitOLS(spec.outcome, y, spec.predictors, x)
		if ferr != nil {
			if errors.Is(ferr, statmodel.ErrDegenerate) {
				logger.Warn("path model skipped",
					utils.Component("path_model"),
					utils.String("model", spec.name),
					utils.Error(ferr))
				models[spec.name] = map[string]any{"skipped": ferr.Error()}
				continue
			}
			return nil, ferr
		}

		fitted[spec.name] = model
		models[spec.name] = olsSummary(model)
		logger.Info("path model fitted",
			utils.Component("path_model"),
			utils.String("model", spec.name),
			utils.Int("n", model.N),
			utils.Float("r_squared", model.RSquared))
	}

	compared := make([]any, 0, len(comparisons))
	for _, pair := range comparisons {
		reduced, okR := fitted[pair[0]]
		full, okF := fitted[pair[1]]
		entry := map[string]any{"reduced": pair[0], "full": pair[1]}
		if !okR || !okF {
			entry["skipped"] = "one of the models was not fitted"
			compared = append(compared, entry)
			continue
		}
		ft, cerr := statmodel.CompareNested(reduced, full)
		if cerr != nil {
			entry["skipped"] = cerr.Error()
			compared = append(compared, entry)
			continue
		}
		entry["f_stat"] = ft.FStat
		entry["p_value"] = ft.PValue
		entry["df_numer"] = ft.DFNumer
		entry["df_denom"] = ft.DFDenom
		entry["delta_r2"] = ft.DeltaR2
		entry["significant"] = ft.Significant
		compared = append(compared, entry)
	}

	summary := map[string]any{"models": models}
	if len(compared) > 0 {
		summary["comparisons"] = compared
	}

	result := pipelines.NewPluginContext()
	result.SetTyped(stepConfig.Output, pipelines.NewJSONData(summary))
	return result, nil
}

// GetPluginType returns the plugin type
func (p *PathModelPlugin) GetPluginType() string {
	return "ML"
}

// GetPluginName returns the plugin name
func (p *PathModelPlugin) GetPluginName() string {
	return "path_model"
}

// ValidateConfig validates the plugin configuration
func (p *PathModelPlugin) ValidateConfig(config map[string]any) error {
	if in, ok := config["input"].(string); !ok || in == "" {
		return fmt.Errorf("input is required and must be a string")
	}
	if _, err := parsePathModels(config["models"]); err != nil {
		return err
	}
	return nil
}

func parsePathModels(raw any) ([]pathModelSpec, error) {
	list, ok := raw.([]any)
	if !ok || len(list) == 0 {
		return nil, fmt.Errorf("models is required and must be a non-empty list")
	}
	out := make([]pathModelSpec, 0, len(list))
	seen := make(map[string]struct{}, len(list))
	for i, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("model entry %d must be a mapping", i)
		}
		spec := pathModelSpec{
			predictors: anyStrings(m["predictors"]),
		}
		spec.name, _ = m["name"].(string)
		spec.outcome, _ = m["outcome"].(string)
		if spec.name == "" {
			return nil, fmt.Errorf("model entry %d has no name", i)
		}
		if _, dup := seen[spec.name]; dup {
			return nil, fmt.Errorf("duplicate model name %q", spec.name)
		}
		seen[spec.name] = struct{}{}
		if spec.outcome == "" {
			return nil, fmt.Errorf("model %q has no outcome", spec.name)
		}
		if len(spec.predictors) == 0 {
			return nil, fmt.Errorf("model %q has no predictors", spec.name)
		}
		out = append(out, spec)
	}
	return out, nil
}

// parseComparisons reads nested model pairs: [[reduced, full], ...].
func parseComparisons(raw any) [][2]string {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([][2]string, 0, len(list))
	for _, entry := range list {
		pair := anyStrings(entry)
		if len(pair) == 2 {
			out = append(out, [2]string{pair[0], pair[1]})
		}
	}
	return out
}

// olsSummary renders a fitted model for JSON output.
func olsSummary(m *statmodel.OLSModel) map[string]any {
	coefs := make([]any, 0, len(m.Coefficients))
	for _, c := range m.Coefficients {
		coefs = append(coefs, map[string]any{
			"name":         c.Name,
			"estimate":     c.Estimate,
			"std_error":    c.StdError,
			"t_value":      c.TValue,
			"p_value":      c.PValue,
			"standardized": c.Standardized,
		})
	}
	return map[string]any{
		"outcome":       m.Outcome,
		"n":             m.N,
		"r_squared":     m.RSquared,
		"adj_r_squared": m.AdjRSquared,
		"f_stat":        m.FStat,
		"f_p_value":     m.FPValue,
		"aic":           m.AIC,
		"bic":           m.BIC,
		"coefficients":  coefs,
	}
}
