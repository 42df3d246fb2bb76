package Data_Processing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surveypath/surveypath-go/pipelines"
	"github.com/surveypath/surveypath-go/pkg/survey"
)

func recodeFixture() *pipelines.RespondentSetData {
	mk := func(id int, values map[string]float64) *survey.Respondent {
		r := survey.NewRespondent(id)
		r.Wave = 1
		for name, v := range values {
			r.Set(name, survey.NumericValue(v))
		}
		return r
	}
	return pipelines.NewRespondentSetData("tracker_test", []*survey.Respondent{
		mk(1, map[string]float64{
			"familiarity_tdl":      4,
			"opinion_tdl":          5,
			"consideration_tdl":    3,
			"likelihood_visit_tdl": 4,
		}),
		// Sentinel codes and an out-of-range rating.
		mk(2, map[string]float64{
			"familiarity_tdl":      99,
			"opinion_tdl":          0,
			"consideration_tdl":    8,
			"likelihood_visit_tdl": 2,
		}),
		// Fallback source only.
		mk(3, map[string]float64{
			"familiarity_tdl":   3,
			"opinion_tdl":       4,
			"consideration_tdl": 5,
		}),
	})
}

func recodeStepConfig(t *testing.T) pipelines.StepConfig {
	t.Helper()
	return pipelines.StepConfig{
		Name:   "recode",
		Plugin: "Data_Processing.recode",
		Config: map[string]any{
			"input":       "respondents",
			"schema_path": writeSchemaFixture(t),
			"fallbacks": map[string]any{
				"likelihood_visit_tdl": "consideration_tdl",
			},
			"harmonize": []any{"opinion_tdl"},
			"topbox":    []any{"familiarity_tdl", "consideration_tdl"},
			"derived": []any{
				map[string]any{
					"name":    "intent_score",
					"mean_of": []any{"consideration_tdl", "likelihood_visit_tdl"},
				},
				map[string]any{
					"name":         "advocacy_0_10",
					"mean_of":      []any{"opinion_tdl_7"},
					"rescale_from": []any{1, 7},
					"rescale_to":   []any{0, 10},
				},
			},
			"key_variables":     []any{"familiarity_tdl", "opinion_tdl", "consideration_tdl", "likelihood_visit_tdl"},
			"max_missing_share": 0.8,
		},
		Output: "recoded",
	}
}

func TestRecodePlugin_ExecuteStep_Success(t *testing.T) {
	globalContext := pipelines.NewPluginContext()
	globalContext.SetTyped("respondents", recodeFixture())

	plugin := NewRecodePlugin()
	result, err := plugin.ExecuteStep(context.Background(), recodeStepConfig(t), globalContext)
	require.NoError(t, err)

	set, err := result.GetRespondents("recoded")
	require.NoError(t, err)
	require.Equal(t, 3, set.Len())

	first := set.Respondents[0]
	v, ok := first.Float("opinion_tdl_7")
	assert.True(t, ok)
	assert.InDelta(t, 7.0, v, 1e-12)
	v, ok = first.Float("familiarity_tdl_topbox")
	assert.True(t, ok)
	assert.Equal(t, 0.0, v)
	v, ok = first.Float("intent_score")
	assert.True(t, ok)
	assert.InDelta(t, 3.5, v, 1e-12)
	v, ok = first.Float("advocacy_0_10")
	assert.True(t, ok)
	assert.InDelta(t, 10.0, v, 1e-12)

	// Sentinels and out-of-domain codes are missing after cleaning, and
	// derived variables degrade to the available sources.
	second := set.Respondents[1]
	assert.False(t, second.Has("familiarity_tdl"))
	assert.False(t, second.Has("opinion_tdl"))
	assert.False(t, second.Has("consideration_tdl"))
	assert.False(t, second.Has("familiarity_tdl_topbox"))
	assert.False(t, second.Has("opinion_tdl_7"))
	v, ok = second.Float("intent_score")
	assert.True(t, ok)
	assert.Equal(t, 2.0, v)

	// Fallback fills the missing target from its source after cleaning.
	third := set.Respondents[2]
	v, ok = third.Float("likelihood_visit_tdl")
	assert.True(t, ok)
	assert.Equal(t, 5.0, v)
	v, ok = third.Float("consideration_tdl_topbox")
	assert.True(t, ok)
	assert.Equal(t, 1.0, v)
}

func TestRecodePlugin_ExecuteStep_DropsLowCoverage(t *testing.T) {
	globalContext := pipelines.NewPluginContext()
	globalContext.SetTyped("respondents", recodeFixture())

	stepConfig := recodeStepConfig(t)
	stepConfig.Config["max_missing_share"] = 0.5
	delete(stepConfig.Config, "fallbacks")

	plugin := NewRecodePlugin()
	result, err := plugin.ExecuteStep(context.Background(), stepConfig, globalContext)
	require.NoError(t, err)

	set, err := result.GetRespondents("recoded")
	require.NoError(t, err)

	// Respondent 2 loses three of four key variables to cleaning and is
	// dropped at the 0.5 threshold; the others keep full coverage.
	require.Equal(t, 2, set.Len())
	assert.Equal(t, "R00001", set.Respondents[0].Code)
	assert.Equal(t, "R00003", set.Respondents[1].Code)
}

func TestRecodePlugin_ValidateConfig(t *testing.T) {
	plugin := NewRecodePlugin()

	assert.Error(t, plugin.ValidateConfig(map[string]any{"schema_path": "s.yaml"}))
	assert.Error(t, plugin.ValidateConfig(map[string]any{
		"input":             "respondents",
		"schema_path":       "s.yaml",
		"max_missing_share": 1.5,
	}))
	assert.Error(t, plugin.ValidateConfig(map[string]any{
		"input":       "respondents",
		"schema_path": "s.yaml",
		"derived": []any{
			map[string]any{
				"name":         "broken",
				"mean_of":      []any{"a"},
				"rescale_from": []any{1, 7},
			},
		},
	}))
	assert.NoError(t, plugin.ValidateConfig(map[string]any{
		"input":       "respondents",
		"schema_path": "s.yaml",
	}))
}
