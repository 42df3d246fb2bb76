package ML

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surveypath/surveypath-go/pipelines"
	"github.com/surveypath/surveypath-go/pkg/survey"
)

const perceptionBatteriesYAML = `
batteries:
  - name: perceptions
    scale: rating_1_5
    items: [thrill_rides, thrill_shows, thrill_events, relax_gardens, relax_rest, relax_pace]
label_rules:
  - keywords: [thrill]
    label: "Excitement & Thrills"
  - keywords: [relax]
    label: "Relaxation & Comfort"
`

func writePerceptionBatteries(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "batteries.yaml")
	require.NoError(t, os.WriteFile(path, []byte(perceptionBatteriesYAML), 0644))
	return path
}

// twoBlockRespondents draws two latent dimensions, three items each.
func twoBlockRespondents(n int, rng *rand.Rand) []*survey.Respondent {
	items := []string{"thrill_rides", "thrill_shows", "thrill_events", "relax_gardens", "relax_rest", "relax_pace"}
	out := make([]*survey.Respondent, 0, n)
	for i := 0; i < n; i++ {
		r := survey.NewRespondent(i + 1)
		r.Wave = 1
		thrill := rng.NormFloat64()
		relax := rng.NormFloat64()
		for j, item := range items {
			latent := thrill
			if j >= 3 {
				latent = relax
			}
			r.Set(item, survey.NumericValue(3+latent+0.4*rng.NormFloat64()))
		}
		out = append(out, r)
	}
	return out
}

func TestFactorPlugin_ExecuteStep_Success(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	respondents := twoBlockRespondents(150, rng)

	// One respondent with a missing item stays out of the fitting sample.
	partial := survey.NewRespondent(151)
	partial.Set("thrill_rides", survey.NumericValue(4))
	respondents = append(respondents, partial)

	globalContext := pipelines.NewPluginContext()
	globalContext.SetTyped("with_composites", pipelines.NewRespondentSetData("tracker_test", respondents))

	plugin := NewFactorPlugin()
	stepConfig := pipelines.StepConfig{
		Name:   "factors",
		Plugin: "ML.factor_analysis",
		Config: map[string]any{
			"input":          "with_composites",
			"batteries_path": writePerceptionBatteries(t),
			"battery":        "perceptions",
			"score_prefix":   "perception",
			"seed":           7,
		},
		Output: "with_factors",
	}

	result, err := plugin.ExecuteStep(context.Background(), stepConfig, globalContext)
	require.NoError(t, err)

	summary, err := result.GetJSON("with_factors_summary")
	require.NoError(t, err)
	require.NotContains(t, summary, "skipped")
	assert.Equal(t, 150, summary["n"])
	assert.Equal(t, 151, summary["eligible_n"])
	assert.Equal(t, 2, summary["kaiser_count"])
	assert.Equal(t, 3, summary["num_factors"])

	scoreVars, ok := summary["score_variables"].([]string)
	require.True(t, ok)
	assert.Equal(t, []string{"perception_1", "perception_2", "perception_3"}, scoreVars)

	names, ok := summary["factor_names"].([]string)
	require.True(t, ok)
	require.Len(t, names, 3)
	assert.Contains(t, []string{"Excitement & Thrills", "Relaxation & Comfort"}, names[0])

	enriched, err := result.GetRespondents("with_factors")
	require.NoError(t, err)
	fitted := enriched.Respondents[0]
	for _, v := range scoreVars {
		_, ok := fitted.Float(v)
		assert.True(t, ok, "fitted respondent should carry %s", v)
	}
	excluded := enriched.Respondents[150]
	for _, v := range scoreVars {
		assert.False(t, excluded.Has(v), "incomplete respondent should keep %s missing", v)
	}
}

func TestFactorPlugin_ExecuteStep_TooFewCasesSkips(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	respondents := twoBlockRespondents(6, rng)

	globalContext := pipelines.NewPluginContext()
	globalContext.SetTyped("with_composites", pipelines.NewRespondentSetData("tracker_test", respondents))

	plugin := NewFactorPlugin()
	stepConfig := pipelines.StepConfig{
		Name:   "factors",
		Plugin: "ML.factor_analysis",
		Config: map[string]any{
			"input":          "with_composites",
			"batteries_path": writePerceptionBatteries(t),
			"battery":        "perceptions",
		},
		Output: "with_factors",
	}

	result, err := plugin.ExecuteStep(context.Background(), stepConfig, globalContext)
	require.NoError(t, err)

	summary, err := result.GetJSON("with_factors_summary")
	require.NoError(t, err)
	assert.Contains(t, summary, "skipped")

	// The respondent set passes through untouched.
	enriched, err := result.GetRespondents("with_factors")
	require.NoError(t, err)
	assert.Equal(t, 6, enriched.Len())
	assert.False(t, enriched.Respondents[0].Has("factor_1"))
}

func TestFactorPlugin_ExecuteStep_UnknownBattery(t *testing.T) {
	globalContext := pipelines.NewPluginContext()
	globalContext.SetTyped("with_composites", pipelines.NewRespondentSetData("tracker_test", twoBlockRespondents(20, rand.New(rand.NewSource(1)))))

	plugin := NewFactorPlugin()
	stepConfig := pipelines.StepConfig{
		Name:   "factors",
		Plugin: "ML.factor_analysis",
		Config: map[string]any{
			"input":          "with_composites",
			"batteries_path": writePerceptionBatteries(t),
			"battery":        "nope",
		},
		Output: "with_factors",
	}

	_, err := plugin.ExecuteStep(context.Background(), stepConfig, globalContext)
	assert.Error(t, err)
}

func TestFactorPlugin_ValidateConfig(t *testing.T) {
	plugin := NewFactorPlugin()
	assert.Error(t, plugin.ValidateConfig(map[string]any{"battery": "perceptions"}))
	assert.Error(t, plugin.ValidateConfig(map[string]any{
		"input":          "x",
		"batteries_path": "b.yaml",
	}))
	assert.NoError(t, plugin.ValidateConfig(map[string]any{
		"input":          "x",
		"batteries_path": "b.yaml",
		"battery":        "perceptions",
	}))
}
