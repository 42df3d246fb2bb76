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

// MediationPlugin runs Sobel tests over configured X -> M -> Y chains,
// quantifying how much of each funnel relationship flows through its
// mediator.
type MediationPlugin struct {
	name    string
	version string
}

// NewMediationPlugin creates a new mediation plugin instance
func NewMediationPlugin() *MediationPlugin {
	return &MediationPlugin{
		name:    "MediationPlugin",
		version: "1.0.0",
	}
}

type mediationChain struct {
	predictor string
	mediator  string
	outcome   string
}

// ExecuteStep tests every configured chain on its own complete-case
// sample. Chains with too few cases are recorded as skipped.
func (p *MediationPlugin) ExecuteStep(ctx context.Context, stepConfig pipelines.StepConfig, globalContext *pipelines.PluginContext) (*pipelines.PluginContext, error) {
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
	chains, err := parseChains(config["chains"])
	if err != nil {
		return nil, err
	}

	results := make([]any, 0, len(chains))
	for _, chain := range chains {
		key := fmt.Sprintf("%s -> %s -> %s", chain.predictor, chain.mediator, chain.outcome)
		vars := []string{chain.predictor, chain.mediator, chain.outcome}
		complete := survey.CompleteCases(set.Respondents, vars)

		x := survey.NumericColumn(complete, chain.predictor)
		m := survey.NumericColumn(complete, chain.mediator)
		y := survey.NumericColumn(complete, chain.outcome)

		res, serr := statmodel.SobelMediation(chain.predictor, chain.mediator, chain.outcome, x, m, y)
		if serr != nil {
			if errors.Is(serr, statmodel.ErrDegenerate) {
				logger.Warn("mediation chain skipped",
					utils.Component("mediation"),
					utils.String("chain", key),
					utils.Error(serr))
				results = append(results, map[string]any{"chain": key, "skipped": serr.Error()})
				continue
			}
			return nil, serr
		}

		entry := map[string]any{
			"chain":        key,
			"n":            res.N,
			"path_a":       res.PathA,
			"path_b":       res.PathB,
			"path_c":       res.PathC,
			"path_c_prime": res.PathCPrime,
			"indirect":     res.Indirect,
			"sobel_z":      res.SobelZ,
			"sobel_p":      res.SobelP,
			"significant":  res.Significant,
			"kind":         res.Kind,
		}
		if res.HasMediated {
			entry["proportion_mediated"] = res.Mediated
		}
		results = append(results, entry)

		logger.Info("mediation chain tested",
			utils.Component("mediation"),
			utils.String("chain", key),
			utils.Float("sobel_z", res.SobelZ),
			utils.String("kind", res.Kind))
	}

	result := pipelines.NewPluginContext()
	result.SetTyped(stepConfig.Output, pipelines.NewJSONData(map[string]any{
		"chains": results,
	}))
	return result, nil
}

// GetPluginType returns the plugin type
func (p *MediationPlugin) GetPluginType() string {
	return "ML"
}

// GetPluginName returns the plugin name
func (p *MediationPlugin) GetPluginName() string {
	return "mediation"
}

// ValidateConfig validates the plugin configuration
func (p *MediationPlugin) ValidateConfig(config map[string]any) error {
	if in, ok := config["input"].(string); !ok || in == "" {
		return fmt.Errorf("input is required and must be a string")
	}
	_, err := parseChains(config["chains"])
	return err
}

func parseChains(raw any) ([]mediationChain, error) {
	list, ok := raw.([]any)
	if !ok || len(list) == 0 {
		return nil, fmt.Errorf("chains is required and must be a non-empty list")
	}
	out := make([]mediationChain, 0, len(list))
	for i, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("chain entry %d must be a mapping", i)
		}
		c := mediationChain{}
		c.predictor, _ = m["predictor"].(string)
		c.mediator, _ = m["mediator"].(string)
		c.outcome, _ = m["outcome"].(string)
		if c.predictor == "" || c.mediator == "" || c.outcome == "" {
			return nil, fmt.Errorf("chain entry %d needs predictor, mediator, and outcome", i)
		}
		out = append(out, c)
	}
	return out, nil
}
