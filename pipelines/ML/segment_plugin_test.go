package ML

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surveypath/surveypath-go/pipelines"
	"github.com/surveypath/surveypath-go/pkg/survey"
)

// trendingRespondents places two segments across three waves with a
// clear upward drift in intent. The second segment is kept tiny in wave
// 3 so a suppressed cell appears in the table.
func trendingRespondents(rng *rand.Rand) []*survey.Respondent {
	out := []*survey.Respondent{}
	id := 0
	add := func(segment string, wave, n int) {
		for i := 0; i < n; i++ {
			id++
			r := survey.NewRespondent(id)
			r.Wave = wave
			r.Segment = segment
			r.Set("intent_score", survey.NumericValue(2+0.5*float64(wave)+0.2*rng.NormFloat64()))
			out = append(out, r)
		}
	}
	add("Young Families", 1, 30)
	add("Young Families", 2, 30)
	add("Young Families", 3, 30)
	add("Young Adults", 1, 20)
	add("Young Adults", 2, 20)
	add("Young Adults", 3, 4)
	return out
}

func TestSegmentTrendPlugin_ExecuteStep_TrendAndSuppression(t *testing.T) {
	rng := rand.New(rand.NewSource(53))
	set := pipelines.NewRespondentSetData("tracker_test", trendingRespondents(rng))

	globalContext := pipelines.NewPluginContext()
	globalContext.SetTyped("with_themes", set)

	plugin := NewSegmentTrendPlugin()
	stepConfig := pipelines.StepConfig{
		Name:   "trends",
		Plugin: "ML.segment_trend",
		Config: map[string]any{
			"input":      "with_themes",
			"variables":  []any{"intent_score"},
			"min_cell_n": 10,
		},
		Output: "trend_results",
	}

	result, err := plugin.ExecuteStep(context.Background(), stepConfig, globalContext)
	require.NoError(t, err)

	summary, err := result.GetJSON("trend_results")
	require.NoError(t, err)

	waves := summary["waves"].([]int)
	assert.Equal(t, []int{1, 2, 3}, waves)
	segments := summary["segments"].([]string)
	assert.Contains(t, segments, "Young Families")
	assert.Contains(t, segments, "Young Adults")

	variables := summary["variables"].(map[string]any)
	intent := variables["intent_score"].(map[string]any)

	byWave := intent["by_wave"].(map[string]any)
	wave1 := byWave["1"].(map[string]any)
	assert.Equal(t, 50, wave1["n"])
	assert.InDelta(t, 2.5, wave1["mean"].(float64), 0.15)

	trend := intent["trend"].(map[string]any)
	assert.Equal(t, "improving", trend["direction"])
	assert.InDelta(t, 0.5, trend["slope"].(float64), 0.1)
	assert.Less(t, trend["p_value"].(float64), 0.05)

	bySegment := intent["by_segment"].(map[string]any)
	adults := bySegment["Young Adults"].(map[string]any)
	wave3 := adults["3"].(map[string]any)
	assert.Equal(t, 4, wave3["n"])
	assert.NotContains(t, wave3, "mean")
	wave2 := adults["2"].(map[string]any)
	assert.Equal(t, 20, wave2["n"])
	assert.Contains(t, wave2, "mean")
}

func TestSegmentTrendPlugin_ExecuteStep_PooledWaveModel(t *testing.T) {
	rng := rand.New(rand.NewSource(41))
	respondents := []*survey.Respondent{}
	id := 0
	for wave := 1; wave <= 3; wave++ {
		for i := 0; i < 60; i++ {
			id++
			r := survey.NewRespondent(id)
			r.Wave = wave
			r.Segment = "Young Families"
			fam := 3 + rng.NormFloat64()
			r.Set("familiarity_tdl", survey.NumericValue(fam))
			r.Set("intent_score", survey.NumericValue(1+0.8*fam+0.5*float64(wave)+0.2*rng.NormFloat64()))
			respondents = append(respondents, r)
		}
	}

	globalContext := pipelines.NewPluginContext()
	globalContext.SetTyped("with_themes", pipelines.NewRespondentSetData("tracker_test", respondents))

	plugin := NewSegmentTrendPlugin()
	stepConfig := pipelines.StepConfig{
		Name:   "trends",
		Plugin: "ML.segment_trend",
		Config: map[string]any{
			"input":             "with_themes",
			"variables":         []any{"intent_score"},
			"pooled_predictors": []any{"familiarity_tdl"},
		},
		Output: "trend_results",
	}

	result, err := plugin.ExecuteStep(context.Background(), stepConfig, globalContext)
	require.NoError(t, err)

	summary, err := result.GetJSON("trend_results")
	require.NoError(t, err)
	variables := summary["variables"].(map[string]any)
	intent := variables["intent_score"].(map[string]any)

	pooled, ok := intent["pooled_model"].(map[string]any)
	require.True(t, ok)
	require.NotContains(t, pooled, "skipped")
	assert.Equal(t, 180, pooled["n"])

	estimates := map[string]float64{}
	pvalues := map[string]float64{}
	for _, entry := range pooled["coefficients"].([]any) {
		c := entry.(map[string]any)
		estimates[c["name"].(string)] = c["estimate"].(float64)
		pvalues[c["name"].(string)] = c["p_value"].(float64)
	}
	assert.InDelta(t, 0.5, estimates["wave_centered"], 0.1)
	assert.InDelta(t, 0.8, estimates["familiarity_tdl"], 0.1)
	assert.Less(t, pvalues["wave_centered"], 0.05)
}

func TestSegmentTrendPlugin_ExecuteStep_PooledWaveModelSingleWaveSkipped(t *testing.T) {
	rng := rand.New(rand.NewSource(43))
	respondents := []*survey.Respondent{}
	for i := 0; i < 40; i++ {
		r := survey.NewRespondent(i + 1)
		r.Wave = 2
		r.Segment = "Young Adults"
		fam := 3 + rng.NormFloat64()
		r.Set("familiarity_tdl", survey.NumericValue(fam))
		r.Set("intent_score", survey.NumericValue(1+fam+0.2*rng.NormFloat64()))
		respondents = append(respondents, r)
	}

	globalContext := pipelines.NewPluginContext()
	globalContext.SetTyped("with_themes", pipelines.NewRespondentSetData("tracker_test", respondents))

	plugin := NewSegmentTrendPlugin()
	stepConfig := pipelines.StepConfig{
		Name:   "trends",
		Plugin: "ML.segment_trend",
		Config: map[string]any{
			"input":             "with_themes",
			"variables":         []any{"intent_score"},
			"pooled_predictors": []any{"familiarity_tdl"},
		},
		Output: "trend_results",
	}

	result, err := plugin.ExecuteStep(context.Background(), stepConfig, globalContext)
	require.NoError(t, err)

	summary, err := result.GetJSON("trend_results")
	require.NoError(t, err)
	variables := summary["variables"].(map[string]any)
	intent := variables["intent_score"].(map[string]any)

	// A centered wave term over one wave is a zero column, so the
	// pooled fit degenerates and is reported as skipped.
	pooled := intent["pooled_model"].(map[string]any)
	assert.Contains(t, pooled, "skipped")
}

func TestSegmentTrendPlugin_ExecuteStep_SingleWaveTrendSkipped(t *testing.T) {
	respondents := []*survey.Respondent{}
	for i := 0; i < 20; i++ {
		r := survey.NewRespondent(i + 1)
		r.Wave = 1
		r.Segment = "Young Families"
		r.Set("intent_score", survey.NumericValue(float64(1+i%5)))
		respondents = append(respondents, r)
	}

	globalContext := pipelines.NewPluginContext()
	globalContext.SetTyped("with_themes", pipelines.NewRespondentSetData("tracker_test", respondents))

	plugin := NewSegmentTrendPlugin()
	stepConfig := pipelines.StepConfig{
		Name:   "trends",
		Plugin: "ML.segment_trend",
		Config: map[string]any{
			"input":     "with_themes",
			"variables": []any{"intent_score"},
		},
		Output: "trend_results",
	}

	result, err := plugin.ExecuteStep(context.Background(), stepConfig, globalContext)
	require.NoError(t, err)

	summary, err := result.GetJSON("trend_results")
	require.NoError(t, err)
	variables := summary["variables"].(map[string]any)
	intent := variables["intent_score"].(map[string]any)
	trend := intent["trend"].(map[string]any)
	assert.Contains(t, trend, "skipped")
}

func TestSegmentTrendPlugin_ValidateConfig(t *testing.T) {
	plugin := NewSegmentTrendPlugin()
	assert.Error(t, plugin.ValidateConfig(map[string]any{"input": "x"}))
	assert.Error(t, plugin.ValidateConfig(map[string]any{"variables": []any{"a"}}))
	assert.Error(t, plugin.ValidateConfig(map[string]any{
		"input":             "x",
		"variables":         []any{"a"},
		"pooled_predictors": "not-a-list",
	}))
	assert.NoError(t, plugin.ValidateConfig(map[string]any{
		"input":     "x",
		"variables": []any{"a"},
	}))
	assert.NoError(t, plugin.ValidateConfig(map[string]any{
		"input":             "x",
		"variables":         []any{"a"},
		"pooled_predictors": []any{"b"},
	}))
}
