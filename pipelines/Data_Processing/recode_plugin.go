package Data_Processing

import (
	"context"
	"fmt"

	"github.com/surveypath/surveypath-go/pipelines"
	"github.com/surveypath/surveypath-go/pkg/survey"
	"github.com/surveypath/surveypath-go/utils"
)

// RecodePlugin cleans sentinel codes, fills configured fallbacks,
// harmonizes scales, derives top-box flags and funnel composites, and
// drops respondents whose key-variable coverage is too thin to use.
type RecodePlugin struct {
	name    string
	version string
}

// NewRecodePlugin creates a new recode plugin instance
func NewRecodePlugin() *RecodePlugin {
	return &RecodePlugin{
		name:    "RecodePlugin",
		version: "1.0.0",
	}
}

// derivedSpec is one configured derived variable: the mean of whatever
// source variables are available, optionally rescaled onto a new range.
type derivedSpec struct {
	name    string
	meanOf  []string
	rescale bool
	fromLo  float64
	fromHi  float64
	toLo    float64
	toHi    float64
}

// ExecuteStep recodes the input respondent set in a fixed order:
// sentinel cleaning, fallback fill, harmonization, top-box derivation,
// composite derivation, then the coverage drop. The order matters; a
// top-box flag computed before cleaning would count "don't know" as
// not-top-box.
func (p *RecodePlugin) ExecuteStep(ctx context.Context, stepConfig pipelines.StepConfig, globalContext *pipelines.PluginContext) (*pipelines.PluginContext, error) {
	logger := utils.GetLogger()
	config := stepConfig.Config

	if err := p.ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	inputKey := config["input"].(string)
	schemaPath := config["schema_path"].(string)

	set, err := globalContext.GetRespondents(inputKey)
	if err != nil {
		return nil, err
	}
	schema, err := survey.LoadSchema(schemaPath)
	if err != nil {
		return nil, err
	}

	fallbacks := stringMap(config["fallbacks"])
	harmonize := stringSlice(config["harmonize"])
	topbox := stringSlice(config["topbox"])
	keyVars := stringSlice(config["key_variables"])
	derived, err := parseDerived(config["derived"])
	if err != nil {
		return nil, err
	}

	maxMissing := 0.5
	if v, ok := config["max_missing_share"].(float64); ok {
		maxMissing = v
	}

	scaleOf := make(map[string]string, len(schema.Variables))
	for _, v := range schema.Variables {
		scaleOf[v.Name] = v.Scale
	}

	for _, r := range set.Respondents {
		for name, scale := range scaleOf {
			switch scale {
			case survey.ScaleRating:
				r.Set(name, survey.CleanRating(r.Get(name)))
			case survey.ScaleBipolar:
				r.Set(name, survey.CleanBipolar(r.Get(name)))
			case survey.ScaleCount:
				r.Set(name, survey.CleanCount(r.Get(name)))
			}
		}

		for target, source := range fallbacks {
			if !r.Has(target) && r.Has(source) {
				r.Set(target, r.Get(source))
			}
		}

		for _, name := range harmonize {
			r.Set(name+"_7", survey.Harmonize17(r.Get(name)))
		}

		for _, name := range topbox {
			r.Set(name+"_topbox", survey.TopBox(r.Get(name)))
		}

		for _, d := range derived {
			v := survey.MeanOfAvailable(r, d.meanOf)
			if d.rescale {
				v = survey.Rescale(v, d.fromLo, d.fromHi, d.toLo, d.toHi)
			}
			r.Set(d.name, v)
		}
	}

	kept := set.Respondents
	dropped := 0
	if len(keyVars) > 0 {
		kept = make([]*survey.Respondent, 0, len(set.Respondents))
		for _, r := range set.Respondents {
			if r.MissingShare(keyVars) >= maxMissing {
				dropped++
				continue
			}
			kept = append(kept, r)
		}
	}

	logger.Info("recoded respondents",
		utils.Component("recode"),
		utils.Int("input", set.Len()),
		utils.Int("kept", len(kept)),
		utils.Int("dropped_low_coverage", dropped))

	result := pipelines.NewPluginContext()
	result.SetTyped(stepConfig.Output, pipelines.NewRespondentSetData(set.SchemaName, kept))
	return result, nil
}

// GetPluginType returns the plugin type
func (p *RecodePlugin) GetPluginType() string {
	return "Data_Processing"
}

// GetPluginName returns the plugin name
func (p *RecodePlugin) GetPluginName() string {
	return "recode"
}

// ValidateConfig validates the plugin configuration
func (p *RecodePlugin) ValidateConfig(config map[string]any) error {
	if in, ok := config["input"].(string); !ok || in == "" {
		return fmt.Errorf("input is required and must be a string")
	}
	if sp, ok := config["schema_path"].(string); !ok || sp == "" {
		return fmt.Errorf("schema_path is required and must be a string")
	}
	if v, ok := config["max_missing_share"]; ok {
		share, isFloat := v.(float64)
		if !isFloat || share <= 0 || share > 1 {
			return fmt.Errorf("max_missing_share must be a number in (0, 1]")
		}
	}
	if _, err := parseDerived(config["derived"]); err != nil {
		return err
	}
	return nil
}

func parseDerived(raw any) ([]derivedSpec, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("derived must be a list")
	}
	out := make([]derivedSpec, 0, len(list))
	for i, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("derived entry %d must be a mapping", i)
		}
		d := derivedSpec{
			meanOf: stringSlice(m["mean_of"]),
		}
		d.name, _ = m["name"].(string)
		if d.name == "" {
			return nil, fmt.Errorf("derived entry %d has no name", i)
		}
		if len(d.meanOf) == 0 {
			return nil, fmt.Errorf("derived variable %q has no mean_of sources", d.name)
		}
		from := floatPair(m["rescale_from"])
		to := floatPair(m["rescale_to"])
		if (from == nil) != (to == nil) {
			return nil, fmt.Errorf("derived variable %q needs both rescale_from and rescale_to", d.name)
		}
		if from != nil {
			d.rescale = true
			d.fromLo, d.fromHi = from[0], from[1]
			d.toLo, d.toHi = to[0], to[1]
		}
		out = append(out, d)
	}
	return out, nil
}

// stringSlice coerces a YAML list into strings, nil when absent.
func stringSlice(raw any) []string {
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

// stringMap coerces a YAML mapping into string pairs, nil when absent.
func stringMap(raw any) map[string]string {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

// floatPair reads a two-element numeric list, nil when absent or
// malformed.
func floatPair(raw any) []float64 {
	list, ok := raw.([]any)
	if !ok || len(list) != 2 {
		return nil
	}
	out := make([]float64, 2)
	for i, v := range list {
		switch n := v.(type) {
		case float64:
			out[i] = n
		case int:
			out[i] = float64(n)
		default:
			return nil
		}
	}
	return out
}
