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

// SegmentTrendPlugin aggregates outcomes by segment and wave and tests
// each outcome's movement across waves, pooled and per segment.
type SegmentTrendPlugin struct {
	name    string
	version string
}

// NewSegmentTrendPlugin creates a new segment aggregation plugin instance
func NewSegmentTrendPlugin() *SegmentTrendPlugin {
	return &SegmentTrendPlugin{
		name:    "SegmentTrendPlugin",
		version: "1.0.0",
	}
}

// ExecuteStep builds the segment-by-wave means table for every
// configured variable and runs the wave trend test on each. Cells below
// the sample floor report their size but no mean.
func (p *SegmentTrendPlugin) ExecuteStep(ctx context.Context, stepConfig pipelines.StepConfig, globalContext *pipelines.PluginContext) (*pipelines.PluginContext, error) {
	logger := utils.GetLogger()
	config := stepConfig.Config

	if err := p.ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	inputKey := config["input"].(string)
	variables := anyStrings(config["variables"])
	minCellN := intOr(config["min_cell_n"], 10)
	pooledPredictors := anyStrings(config["pooled_predictors"])

	set, err := globalContext.GetRespondents(inputKey)
	if err != nil {
		return nil, err
	}

	waves := survey.Waves(set.Respondents)
	segments := survey.Segments(set.Respondents)

	summary := make(map[string]any, len(variables))
	for _, variable := range variables {
		entry := map[string]any{}

		// Pooled per-wave means and the pooled trend.
		waveMeans := map[string]any{}
		var trendWaves []int
		var trendValues []float64
		for _, w := range waves {
			inWave := survey.FilterWave(set.Respondents, w)
			col := survey.NumericColumn(inWave, variable)
			cell := map[string]any{"n": len(col)}
			if len(col) >= minCellN {
				cell["mean"] = statmodel.Mean(col)
				cell["std_dev"] = statmodel.SampleStdDev(col)
			}
			waveMeans[fmt.Sprintf("%d", w)] = cell
			for _, v := range col {
				trendWaves = append(trendWaves, w)
				trendValues = append(trendValues, v)
			}
		}
		entry["by_wave"] = waveMeans

		trend, terr := statmodel.WaveTrend(variable, trendWaves, trendValues)
		if terr != nil {
			if !errors.Is(terr, statmodel.ErrDegenerate) {
				return nil, terr
			}
			entry["trend"] = map[string]any{"skipped": terr.Error()}
		} else {
			entry["trend"] = map[string]any{
				"slope":     trend.Slope,
				"p_value":   trend.PValue,
				"direction": trend.Direction,
				"n":         trend.N,
				"waves":     trend.Waves,
			}
			logger.Info("wave trend tested",
				utils.Component("segment_trend"),
				utils.String("variable", variable),
				utils.Float("slope", trend.Slope),
				utils.String("direction", trend.Direction))
		}

		if len(pooledPredictors) > 0 {
			pooled, perr := p.pooledWaveModel(set.Respondents, variable, pooledPredictors, logger)
			if perr != nil {
				return nil, perr
			}
			entry["pooled_model"] = pooled
		}

		// Segment-by-wave cells.
		bySegment := map[string]any{}
		for _, segment := range segments {
			inSegment := survey.FilterSegment(set.Respondents, segment)
			segWaves := map[string]any{}
			for _, w := range waves {
				col := survey.NumericColumn(survey.FilterWave(inSegment, w), variable)
				cell := map[string]any{"n": len(col)}
				if len(col) >= minCellN {
					cell["mean"] = statmodel.Mean(col)
				}
				segWaves[fmt.Sprintf("%d", w)] = cell
			}
			bySegment[segment] = segWaves
		}
		entry["by_segment"] = bySegment

		summary[variable] = entry
	}

	result := pipelines.NewPluginContext()
	result.SetTyped(stepConfig.Output, pipelines.NewJSONData(map[string]any{
		"segments":  segments,
		"waves":     waves,
		"variables": summary,
	}))
	return result, nil
}

// pooledWaveModel regresses the outcome on a centered wave term plus
// the configured predictors over pooled complete cases, so the wave
// effect is read net of the funnel.
func (p *SegmentTrendPlugin) pooledWaveModel(resps []*survey.Respondent, outcome string, predictors []string, logger *utils.Logger) (map[string]any, error) {
	needed := append([]string{outcome}, predictors...)
	complete := survey.CompleteCases(resps, needed)

	y := make([]float64, len(complete))
	waves := make([]int, len(complete))
	for i, r := range complete {
		v, _ := r.Float(outcome)
		y[i] = v
		waves[i] = r.Wave
	}
	centered := statmodel.CenterWaves(waves)

	names := append([]string{"wave_centered"}, predictors...)
	x := make([][]float64, len(complete))
	for i, r := range complete {
		row := make([]float64, 0, len(names))
		row = append(row, centered[i])
		for _, name := range predictors {
			pv, _ := r.Float(name)
			row = append(row, pv)
		}
		x[i] = row
	}

	model, err := statmodel.FitOLS(outcome, y, names, x)
	if err != nil {
		if errors.Is(err, statmodel.ErrDegenerate) {
			logger.Warn("pooled wave model skipped",
				utils.Component("segment_trend"),
				utils.String("outcome", outcome),
				utils.Error(err))
			return map[string]any{"skipped": err.Error()}, nil
		}
		return nil, err
	}
	waveCoef, _ := model.Coef("wave_centered")
	logger.Info("pooled wave model fitted",
		utils.Component("segment_trend"),
		utils.String("outcome", outcome),
		utils.Int("n", model.N),
		utils.Float("wave_estimate", waveCoef.Estimate))
	return olsSummary(model), nil
}

// GetPluginType returns the plugin type
func (p *SegmentTrendPlugin) GetPluginType() string {
	return "ML"
}

// GetPluginName returns the plugin name
func (p *SegmentTrendPlugin) GetPluginName() string {
	return "segment_trend"
}

// ValidateConfig validates the plugin configuration
func (p *SegmentTrendPlugin) ValidateConfig(config map[string]any) error {
	if in, ok := config["input"].(string); !ok || in == "" {
		return fmt.Errorf("input is required and must be a string")
	}
	if len(anyStrings(config["variables"])) == 0 {
		return fmt.Errorf("variables is required and must be a non-empty list")
	}
	if _, present := config["pooled_predictors"]; present && len(anyStrings(config["pooled_predictors"])) == 0 {
		return fmt.Errorf("pooled_predictors must be a non-empty list of variable names")
	}
	return nil
}
