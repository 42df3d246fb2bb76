package Output

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/guptarohit/asciigraph"
	"github.com/olekukonko/tablewriter"

	"github.com/surveypath/surveypath-go/pipelines"
	"github.com/surveypath/surveypath-go/utils"
)

// SummaryPlugin persists model results and renders the human-readable
// run report: every configured JSON result is dumped to disk, and
// trend-shaped results additionally get a means table and an ASCII
// chart of the pooled wave movement.
type SummaryPlugin struct {
	name    string
	version string
}

// NewSummaryPlugin creates a new summary output plugin instance
func NewSummaryPlugin() *SummaryPlugin {
	return &SummaryPlugin{
		name:    "SummaryPlugin",
		version: "1.0.0",
	}
}

// ExecuteStep writes one JSON file per input key and appends report
// sections to the report file.
func (p *SummaryPlugin) ExecuteStep(ctx context.Context, stepConfig pipelines.StepConfig, globalContext *pipelines.PluginContext) (*pipelines.PluginContext, error) {
	logger := utils.GetLogger()
	config := stepConfig.Config

	if err := p.ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	inputs := variableList(config["inputs"])
	outputDir := config["output_dir"].(string)
	reportName, _ := config["report_file"].(string)
	if reportName == "" {
		reportName = "report.txt"
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var report strings.Builder
	written := make([]string, 0, len(inputs))
	for _, key := range inputs {
		content, err := globalContext.GetJSON(key)
		if err != nil {
			return nil, err
		}

		path := filepath.Join(outputDir, key+".json")
		raw, err := json.MarshalIndent(content, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", key, err)
		}
		if err := os.WriteFile(path, raw, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, path)

		report.WriteString(fmt.Sprintf("== %s ==\n\n", key))
		renderSection(&report, content)
		report.WriteString("\n")
	}

	reportPath := filepath.Join(outputDir, reportName)
	if err := os.WriteFile(reportPath, []byte(report.String()), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write report: %w", err)
	}

	logger.Info("wrote run summary",
		utils.Component("summary"),
		utils.String("report", reportPath),
		utils.Int("results", len(written)))

	result := pipelines.NewPluginContext()
	result.SetTyped(stepConfig.Output, pipelines.NewJSONData(map[string]any{
		"report_path":  reportPath,
		"result_files": len(written),
	}))
	return result, nil
}

// renderSection renders one result into the report. Trend-shaped
// results get tables and a chart; everything else gets a key count so
// the report stays scannable and the JSON dump carries the detail.
func renderSection(report *strings.Builder, content map[string]any) {
	variables, ok := content["variables"].(map[string]any)
	if !ok {
		report.WriteString(fmt.Sprintf("see JSON dump (%d top-level keys)\n", len(content)))
		return
	}

	names := make([]string, 0, len(variables))
	for name := range variables {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		entry, ok := variables[name].(map[string]any)
		if !ok {
			continue
		}
		byWave, ok := entry["by_wave"].(map[string]any)
		if !ok {
			continue
		}

		report.WriteString(name + "\n")
		renderWaveTable(report, byWave)

		if series := waveMeans(byWave); len(series) >= 2 {
			report.WriteString(asciigraph.Plot(series,
				asciigraph.Height(8),
				asciigraph.Caption(name+" by wave")))
			report.WriteString("\n")
		}

		if trend, ok := entry["trend"].(map[string]any); ok {
			if direction, ok := trend["direction"].(string); ok {
				report.WriteString(fmt.Sprintf("trend: %s (slope %.4f, p %.4f)\n",
					direction, floatAt(trend, "slope"), floatAt(trend, "p_value")))
			}
		}
		report.WriteString("\n")
	}
}

// renderWaveTable writes per-wave n and mean as an aligned table.
func renderWaveTable(report *strings.Builder, byWave map[string]any) {
	table := tablewriter.NewWriter(report)
	table.SetHeader([]string{"Wave", "N", "Mean"})

	for _, wave := range sortedKeys(byWave) {
		cell, ok := byWave[wave].(map[string]any)
		if !ok {
			continue
		}
		mean := "-"
		if _, has := cell["mean"]; has {
			mean = fmt.Sprintf("%.3f", floatAt(cell, "mean"))
		}
		table.Append([]string{wave, fmt.Sprintf("%d", intAt(cell, "n")), mean})
	}
	table.Render()
}

// waveMeans extracts the pooled mean series in wave order, skipping
// suppressed cells.
func waveMeans(byWave map[string]any) []float64 {
	out := make([]float64, 0, len(byWave))
	for _, wave := range sortedKeys(byWave) {
		cell, ok := byWave[wave].(map[string]any)
		if !ok {
			continue
		}
		if _, has := cell["mean"]; !has {
			continue
		}
		out = append(out, floatAt(cell, "mean"))
	}
	return out
}

// sortedKeys orders map keys numerically when they all parse as
// integers (wave numbers past 9 would otherwise sort lexically), and
// lexically otherwise.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	numeric := true
	for k := range m {
		keys = append(keys, k)
		if _, err := strconv.Atoi(k); err != nil {
			numeric = false
		}
	}
	if numeric {
		sort.Slice(keys, func(i, j int) bool {
			a, _ := strconv.Atoi(keys[i])
			b, _ := strconv.Atoi(keys[j])
			return a < b
		})
		return keys
	}
	sort.Strings(keys)
	return keys
}

func floatAt(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

func intAt(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

// GetPluginType returns the plugin type
func (p *SummaryPlugin) GetPluginType() string {
	return "Output"
}

// GetPluginName returns the plugin name
func (p *SummaryPlugin) GetPluginName() string {
	return "summary"
}

// ValidateConfig validates the plugin configuration
func (p *SummaryPlugin) ValidateConfig(config map[string]any) error {
	if len(variableList(config["inputs"])) == 0 {
		return fmt.Errorf("inputs is required and must be a non-empty list")
	}
	if dir, ok := config["output_dir"].(string); !ok || dir == "" {
		return fmt.Errorf("output_dir is required and must be a string")
	}
	return nil
}
