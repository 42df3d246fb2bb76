package ML

import (
	"context"
	"fmt"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/surveypath/surveypath-go/pipelines"
	"github.com/surveypath/surveypath-go/pkg/survey"
	"github.com/surveypath/surveypath-go/utils"
)

// DescriptivesPlugin summarizes the configured variables: sample sizes,
// moments, quartiles, and missingness, plus the optional audience and
// attribute breakdowns (tier distributions, top-box rates, attribute
// rankings, bipolar strengths, competitor gaps, outcome correlations,
// segment profile). It runs before the modeling stages so a run's
// report carries the shape of the data the models saw.
type DescriptivesPlugin struct {
	name    string
	version string
}

// NewDescriptivesPlugin creates a new descriptives plugin instance
func NewDescriptivesPlugin() *DescriptivesPlugin {
	return &DescriptivesPlugin{
		name:    "DescriptivesPlugin",
		version: "1.0.0",
	}
}

// ExecuteStep computes the descriptive table for every configured
// variable. A variable with no observations reports only its
// missingness.
func (p *DescriptivesPlugin) ExecuteStep(ctx context.Context, stepConfig pipelines.StepConfig, globalContext *pipelines.PluginContext) (*pipelines.PluginContext, error) {
	logger := utils.GetLogger()
	config := stepConfig.Config

	if err := p.ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	inputKey := config["input"].(string)
	variables := anyStrings(config["variables"])

	set, err := globalContext.GetRespondents(inputKey)
	if err != nil {
		return nil, err
	}
	total := set.Len()

	summary := make(map[string]any, len(variables))
	for _, variable := range variables {
		col := survey.NumericColumn(set.Respondents, variable)
		entry := map[string]any{
			"n":       len(col),
			"missing": total - len(col),
		}
		if total > 0 {
			entry["missing_share"] = float64(total-len(col)) / float64(total)
		}
		if len(col) > 0 {
			data := stats.Float64Data(col)
			mean, _ := data.Mean()
			sd, _ := data.StandardDeviationSample()
			min, _ := data.Min()
			max, _ := data.Max()
			median, _ := data.Median()
			q1, _ := data.Percentile(25)
			q3, _ := data.Percentile(75)
			entry["mean"] = mean
			entry["std_dev"] = sd
			entry["min"] = min
			entry["max"] = max
			entry["median"] = median
			entry["q1"] = q1
			entry["q3"] = q3
		}
		summary[variable] = entry
	}

	out := map[string]any{
		"respondents": total,
		"variables":   summary,
	}
	if tiers := anyStrings(config["tiers"]); len(tiers) > 0 {
		out["tiers"] = tierDistributions(set.Respondents, tiers)
	}
	if topbox := anyStrings(config["topbox"]); len(topbox) > 0 {
		out["topbox"] = topboxRates(set.Respondents, topbox)
	}
	if ranked := anyStrings(config["rank"]); len(ranked) > 0 {
		out["rankings"] = attributeRanking(set.Respondents, ranked)
	}
	if bipolar := anyStrings(config["bipolar"]); len(bipolar) > 0 {
		out["bipolar"] = bipolarStrengths(set.Respondents, bipolar)
	}
	if gaps, ok := config["gaps"].([]any); ok && len(gaps) > 0 {
		out["gaps"] = competitorGaps(set.Respondents, gaps)
	}
	if corr, ok := config["correlate"].(map[string]any); ok {
		out["correlations"] = outcomeCorrelations(set.Respondents, corr, logger)
	}
	if profile, ok := config["profile"].(map[string]any); ok {
		out["segments"] = segmentProfile(set.Respondents, profile)
	}

	logger.Info("descriptives computed",
		utils.Component("descriptives"),
		utils.Int("variables", len(variables)),
		utils.Int("respondents", total))

	result := pipelines.NewPluginContext()
	result.SetTyped(stepConfig.Output, pipelines.NewJSONData(out))
	return result, nil
}

// tierDistributions buckets cleaned 1-5 ratings into high (>=4),
// mid (=3), and low (<=2) shares.
func tierDistributions(resps []*survey.Respondent, variables []string) map[string]any {
	out := make(map[string]any, len(variables))
	for _, variable := range variables {
		col := survey.NumericColumn(resps, variable)
		var high, mid, low int
		for _, v := range col {
			switch {
			case v >= 4:
				high++
			case v == 3:
				mid++
			default:
				low++
			}
		}
		entry := map[string]any{"n": len(col), "high": high, "mid": mid, "low": low}
		if len(col) > 0 {
			n := float64(len(col))
			entry["high_share"] = float64(high) / n
			entry["mid_share"] = float64(mid) / n
			entry["low_share"] = float64(low) / n
		}
		out[variable] = entry
	}
	return out
}

// topboxRates reports n valid, top-box count, and rate per flag variable.
func topboxRates(resps []*survey.Respondent, variables []string) map[string]any {
	out := make(map[string]any, len(variables))
	for _, variable := range variables {
		col := survey.NumericColumn(resps, variable)
		count := 0
		for _, v := range col {
			if v == 1 {
				count++
			}
		}
		entry := map[string]any{"n": len(col), "count": count}
		if len(col) > 0 {
			entry["rate"] = float64(count) / float64(len(col))
		}
		out[variable] = entry
	}
	return out
}

// attributeRanking orders attributes by mean, best first, so report
// consumers can read off the top and bottom performers.
func attributeRanking(resps []*survey.Respondent, variables []string) []any {
	type ranked struct {
		variable string
		mean     float64
		n        int
	}
	list := make([]ranked, 0, len(variables))
	for _, variable := range variables {
		col := survey.NumericColumn(resps, variable)
		if len(col) == 0 {
			continue
		}
		data := stats.Float64Data(col)
		mean, _ := data.Mean()
		list = append(list, ranked{variable, mean, len(col)})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].mean != list[j].mean {
			return list[i].mean > list[j].mean
		}
		return list[i].variable < list[j].variable
	})
	out := make([]any, 0, len(list))
	for _, r := range list {
		out = append(out, map[string]any{"variable": r.variable, "mean": r.mean, "n": r.n})
	}
	return out
}

// bipolarStrengths splits 1-7 bipolar responses around the neutral
// midpoint: below 4 favors the primary park, above 4 the competitor.
func bipolarStrengths(resps []*survey.Respondent, variables []string) map[string]any {
	out := make(map[string]any, len(variables))
	for _, variable := range variables {
		col := survey.NumericColumn(resps, variable)
		var primary, competitor, neutral int
		for _, v := range col {
			switch {
			case v < 4:
				primary++
			case v > 4:
				competitor++
			default:
				neutral++
			}
		}
		entry := map[string]any{"n": len(col)}
		if len(col) > 0 {
			n := float64(len(col))
			data := stats.Float64Data(col)
			mean, _ := data.Mean()
			entry["mean"] = mean
			entry["primary_share"] = float64(primary) / n
			entry["competitor_share"] = float64(competitor) / n
			entry["neutral_share"] = float64(neutral) / n
		}
		out[variable] = entry
	}
	return out
}

// competitorGaps reports mean(primary) - mean(competitor) per metric pair.
func competitorGaps(resps []*survey.Respondent, raw []any) []any {
	out := make([]any, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		primary, _ := m["primary"].(string)
		competitor, _ := m["competitor"].(string)
		if primary == "" || competitor == "" {
			continue
		}
		pCol := survey.NumericColumn(resps, primary)
		cCol := survey.NumericColumn(resps, competitor)
		entry := map[string]any{
			"primary":      primary,
			"competitor":   competitor,
			"primary_n":    len(pCol),
			"competitor_n": len(cCol),
		}
		if len(pCol) > 0 && len(cCol) > 0 {
			pMean, _ := stats.Float64Data(pCol).Mean()
			cMean, _ := stats.Float64Data(cCol).Mean()
			entry["primary_mean"] = pMean
			entry["competitor_mean"] = cMean
			entry["gap"] = pMean - cMean
		}
		out = append(out, entry)
	}
	return out
}

// outcomeCorrelations computes the pairwise Pearson correlation of each
// attribute with the outcome over complete pairs, skipping attributes
// whose paired sample does not clear the minimum.
func outcomeCorrelations(resps []*survey.Respondent, config map[string]any, logger *utils.Logger) map[string]any {
	outcome, _ := config["outcome"].(string)
	attributes := anyStrings(config["attributes"])
	minN := intOr(config["min_n"], 30)

	out := make(map[string]any, len(attributes))
	for _, attribute := range attributes {
		var xs, ys []float64
		for _, r := range resps {
			x, okX := r.Float(attribute)
			y, okY := r.Float(outcome)
			if okX && okY {
				xs = append(xs, x)
				ys = append(ys, y)
			}
		}
		if len(xs) <= minN {
			out[attribute] = map[string]any{"n": len(xs), "skipped": "sample below minimum"}
			logger.Warn("correlation skipped",
				utils.Component("descriptives"),
				utils.String("attribute", attribute),
				utils.Int("n", len(xs)))
			continue
		}
		r, err := stats.Correlation(stats.Float64Data(xs), stats.Float64Data(ys))
		if err != nil {
			out[attribute] = map[string]any{"n": len(xs), "skipped": err.Error()}
			continue
		}
		out[attribute] = map[string]any{"n": len(xs), "r": r}
	}
	return out
}

// segmentProfile summarizes each audience segment: size, share, mean
// age, and share of the configured gender label.
func segmentProfile(resps []*survey.Respondent, config map[string]any) map[string]any {
	ageVar, _ := config["age_variable"].(string)
	genderVar, _ := config["gender_variable"].(string)
	genderLabel, _ := config["gender_label"].(string)

	type bucket struct {
		n      int
		ages   []float64
		gender int
	}
	buckets := make(map[string]*bucket)
	for _, r := range resps {
		segment := r.Segment
		if segment == "" {
			segment = "Unknown"
		}
		b := buckets[segment]
		if b == nil {
			b = &bucket{}
			buckets[segment] = b
		}
		b.n++
		if ageVar != "" {
			if age, ok := r.Float(ageVar); ok {
				b.ages = append(b.ages, age)
			}
		}
		if genderVar != "" && genderLabel != "" {
			if label, ok := r.Label(genderVar); ok && label == genderLabel {
				b.gender++
			}
		}
	}

	total := len(resps)
	out := make(map[string]any, len(buckets))
	for segment, b := range buckets {
		entry := map[string]any{"n": b.n}
		if total > 0 {
			entry["share"] = float64(b.n) / float64(total)
		}
		if len(b.ages) > 0 {
			mean, _ := stats.Float64Data(b.ages).Mean()
			entry["mean_age"] = mean
		}
		if genderVar != "" && genderLabel != "" && b.n > 0 {
			entry["gender_share"] = float64(b.gender) / float64(b.n)
		}
		out[segment] = entry
	}
	return out
}

// GetPluginType returns the plugin type
func (p *DescriptivesPlugin) GetPluginType() string {
	return "ML"
}

// GetPluginName returns the plugin name
func (p *DescriptivesPlugin) GetPluginName() string {
	return "descriptives"
}

// ValidateConfig validates the plugin configuration
func (p *DescriptivesPlugin) ValidateConfig(config map[string]any) error {
	if in, ok := config["input"].(string); !ok || in == "" {
		return fmt.Errorf("input is required and must be a string")
	}
	if len(anyStrings(config["variables"])) == 0 {
		return fmt.Errorf("variables is required and must be a non-empty list")
	}
	if raw, present := config["gaps"]; present {
		list, ok := raw.([]any)
		if !ok {
			return fmt.Errorf("gaps must be a list of primary/competitor pairs")
		}
		for i, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				return fmt.Errorf("gaps entry %d must be a mapping", i)
			}
			if p, _ := m["primary"].(string); p == "" {
				return fmt.Errorf("gaps entry %d is missing primary", i)
			}
			if c, _ := m["competitor"].(string); c == "" {
				return fmt.Errorf("gaps entry %d is missing competitor", i)
			}
		}
	}
	if raw, present := config["correlate"]; present {
		m, ok := raw.(map[string]any)
		if !ok {
			return fmt.Errorf("correlate must be a mapping")
		}
		if outcome, _ := m["outcome"].(string); outcome == "" {
			return fmt.Errorf("correlate requires an outcome variable")
		}
		if len(anyStrings(m["attributes"])) == 0 {
			return fmt.Errorf("correlate requires a non-empty attributes list")
		}
	}
	return nil
}
