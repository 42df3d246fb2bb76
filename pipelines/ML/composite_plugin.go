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

// CompositePlugin builds mean composites over attribute batteries and
// checks each composite's internal consistency. Composites are written
// back onto the respondents so later modeling stages can use them like
// any other variable.
type CompositePlugin struct {
	name    string
	version string
}

// NewCompositePlugin creates a new composite plugin instance
func NewCompositePlugin() *CompositePlugin {
	return &CompositePlugin{
		name:    "CompositePlugin",
		version: "1.0.0",
	}
}

// ExecuteStep derives each configured composite as the mean of its
// available items and reports Cronbach's alpha over the complete cases.
// A composite whose reliability cannot be computed is still derived;
// reliability is diagnostic, not gating.
func (p *CompositePlugin) ExecuteStep(ctx context.Context, stepConfig pipelines.StepConfig, globalContext *pipelines.PluginContext) (*pipelines.PluginContext, error) {
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

	composites, err := parseComposites(config)
	if err != nil {
		return nil, err
	}

	reliability := make(map[string]any, len(composites))
	for _, c := range composites {
		for _, r := range set.Respondents {
			r.Set(c.name, survey.MeanOfAvailable(r, c.items))
		}

		eligible := survey.AnyValid(set.Respondents, c.items)
		complete := survey.CompleteCases(set.Respondents, c.items)
		rows, merr := survey.Matrix(complete, c.items)
		if merr != nil {
			return nil, merr
		}
		rel, rerr := statmodel.CronbachAlpha(rows)
		if rerr != nil {
			if errors.Is(rerr, statmodel.ErrDegenerate) {
				logger.Warn("composite reliability skipped",
					utils.Component("composite"),
					utils.String("composite", c.name),
					utils.Error(rerr))
				reliability[c.name] = map[string]any{"skipped": rerr.Error()}
				continue
			}
			return nil, rerr
		}
		logger.Info("composite built",
			utils.Component("composite"),
			utils.String("composite", c.name),
			utils.Int("items", rel.Items),
			utils.Int("n", rel.N),
			utils.Int("eligible_n", len(eligible)),
			utils.Float("alpha", rel.Alpha))
		reliability[c.name] = map[string]any{
			"alpha":      rel.Alpha,
			"label":      rel.Label,
			"items":      rel.Items,
			"n":          rel.N,
			"eligible_n": len(eligible),
		}
	}

	result := pipelines.NewPluginContext()
	result.SetTyped(stepConfig.Output, pipelines.NewRespondentSetData(set.SchemaName, set.Respondents))
	result.SetTyped(stepConfig.Output+"_reliability", pipelines.NewJSONData(map[string]any{
		"composites": reliability,
	}))
	return result, nil
}

// GetPluginType returns the plugin type
func (p *CompositePlugin) GetPluginType() string {
	return "ML"
}

// GetPluginName returns the plugin name
func (p *CompositePlugin) GetPluginName() string {
	return "composite"
}

// ValidateConfig validates the plugin configuration
func (p *CompositePlugin) ValidateConfig(config map[string]any) error {
	if in, ok := config["input"].(string); !ok || in == "" {
		return fmt.Errorf("input is required and must be a string")
	}
	_, err := parseComposites(config)
	return err
}

type compositeSpec struct {
	name    string
	battery string
	items   []string
}

// parseComposites reads the composite definitions. Each names either a
// battery from the battery file or an inline item list.
func parseComposites(config map[string]any) ([]compositeSpec, error) {
	raw, ok := config["composites"].([]any)
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("composites is required and must be a non-empty list")
	}

	var batteries *survey.BatterySet
	if path, ok := config["batteries_path"].(string); ok && path != "" {
		var err error
		batteries, err = survey.LoadBatteries(path)
		if err != nil {
			return nil, err
		}
	}

	out := make([]compositeSpec, 0, len(raw))
	for i, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("composite entry %d must be a mapping", i)
		}
		c := compositeSpec{}
		c.name, _ = m["name"].(string)
		if c.name == "" {
			return nil, fmt.Errorf("composite entry %d has no name", i)
		}
		c.battery, _ = m["battery"].(string)
		c.items = anyStrings(m["items"])

		if c.battery != "" {
			if batteries == nil {
				return nil, fmt.Errorf("composite %q references battery %q but batteries_path is not set", c.name, c.battery)
			}
			b, found := batteries.Get(c.battery)
			if !found {
				return nil, fmt.Errorf("composite %q references unknown battery %q", c.name, c.battery)
			}
			c.items = append(c.items, b.Items...)
		}
		if len(c.items) == 0 {
			return nil, fmt.Errorf("composite %q has no items", c.name)
		}
		out = append(out, c)
	}
	return out, nil
}

// anyStrings coerces a YAML list into strings, nil when absent.
func anyStrings(raw any) []string {
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
