package Input

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"github.com/surveypath/surveypath-go/pipelines"
	"github.com/surveypath/surveypath-go/utils"
)

// defaultEncodings is the detection order for survey exports. Fieldwork
// vendors deliver Shift-JIS or Windows-1252 files without declaring
// either, so UTF-8 is tried first because it is the only one that can
// reject invalid input.
var defaultEncodings = []string{"utf-8", "shift-jis", "windows-1252"}

// SurveyCSVPlugin loads a raw survey export into a TableData. No cell
// interpretation happens here; mapping and recoding are later stages.
type SurveyCSVPlugin struct {
	name    string
	version string
}

// NewSurveyCSVPlugin creates a new survey CSV input plugin instance
func NewSurveyCSVPlugin() *SurveyCSVPlugin {
	return &SurveyCSVPlugin{
		name:    "SurveyCSVPlugin",
		version: "1.0.0",
	}
}

// ExecuteStep reads a survey export file, detects its encoding, and
// stores the raw table under the step's output key.
func (p *SurveyCSVPlugin) ExecuteStep(ctx context.Context, stepConfig pipelines.StepConfig, globalContext *pipelines.PluginContext) (*pipelines.PluginContext, error) {
	logger := utils.GetLogger()
	config := stepConfig.Config

	if err := p.ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	filePath := config["file_path"].(string)

	encodings := defaultEncodings
	if raw, ok := config["encodings"].([]any); ok && len(raw) > 0 {
		encodings = make([]string, 0, len(raw))
		for _, e := range raw {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("encodings must be strings, got %T", e)
			}
			encodings = append(encodings, s)
		}
	}

	delimiter := ','
	if d, ok := config["delimiter"].(string); ok && len(d) == 1 {
		delimiter = rune(d[0])
	}

	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read survey export: %w", err)
	}

	decoded, detected, err := decodeWithDetection(raw, encodings)
	if err != nil {
		return nil, err
	}

	header, rows, err := parseDelimited(decoded, delimiter)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filePath, err)
	}

	logger.Info("loaded survey export",
		utils.Component("survey_csv"),
		utils.String("file", filePath),
		utils.String("encoding", detected),
		utils.Int("rows", len(rows)),
		utils.Int("columns", len(header)))

	table := pipelines.NewTableData(stepConfig.Name, header)
	table.SourcePath = filePath
	table.Encoding = detected
	table.Rows = rows

	result := pipelines.NewPluginContext()
	result.SetTyped(stepConfig.Output, table)
	return result, nil
}

// decodeWithDetection tries each candidate encoding in order and returns
// the first successful decode. Failure to decode under every candidate
// is fatal: guessing a wrong codepage would silently corrupt labels.
func decodeWithDetection(raw []byte, encodings []string) (string, string, error) {
	for _, name := range encodings {
		switch strings.ToLower(name) {
		case "utf-8", "utf8":
			if utf8.Valid(raw) {
				return string(raw), "utf-8", nil
			}
		case "shift-jis", "shift_jis", "sjis":
			if decoded, ok := tryDecode(raw, japanese.ShiftJIS); ok {
				return decoded, "shift-jis", nil
			}
		case "windows-1252", "cp1252":
			if decoded, ok := tryDecode(raw, charmap.Windows1252); ok {
				return decoded, "windows-1252", nil
			}
		default:
			return "", "", fmt.Errorf("unsupported encoding %q", name)
		}
	}
	return "", "", fmt.Errorf("could not decode survey export with any of: %s", strings.Join(encodings, ", "))
}

func tryDecode(raw []byte, enc encoding.Encoding) (string, bool) {
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(raw), enc.NewDecoder()))
	if err != nil {
		return "", false
	}
	// The decoders substitute U+FFFD for bytes they cannot map; treat
	// any substitution as a failed candidate.
	if bytes.ContainsRune(decoded, utf8.RuneError) {
		return "", false
	}
	return string(decoded), true
}

// parseDelimited splits the decoded export into a header and data rows.
// Rows are kept at their native width; the mapper knows how to treat
// short rows.
func parseDelimited(content string, delimiter rune) ([]string, [][]string, error) {
	reader := csv.NewReader(strings.NewReader(content))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("export is empty")
	}
	return records[0], records[1:], nil
}

// GetPluginType returns the plugin type
func (p *SurveyCSVPlugin) GetPluginType() string {
	return "Input"
}

// GetPluginName returns the plugin name
func (p *SurveyCSVPlugin) GetPluginName() string {
	return "survey_csv"
}

// ValidateConfig validates the plugin configuration
func (p *SurveyCSVPlugin) ValidateConfig(config map[string]any) error {
	if fp, ok := config["file_path"].(string); !ok || fp == "" {
		return fmt.Errorf("file_path is required and must be a string")
	}
	if delimiter, ok := config["delimiter"].(string); ok {
		if len(delimiter) != 1 {
			return fmt.Errorf("delimiter must be a single character")
		}
	}
	return nil
}
