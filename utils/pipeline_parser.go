// Parsing and validation of pipeline configuration files. A pipeline
// file either defines a single pipeline or a config file with a
// pipelines array; both forms are accepted everywhere a path is taken.
package utils

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/surveypath/surveypath-go/pipelines"
)

// PipelineConfig represents a parsed pipeline configuration
type PipelineConfig struct {
	Name        string                 `yaml:"name"`
	Enabled     bool                   `yaml:"enabled"`
	Steps       []pipelines.StepConfig `yaml:"steps"`
	Description string                 `yaml:"description,omitempty"`
}

// ConfigFile represents the top-level configuration file structure
type ConfigFile struct {
	Pipelines []PipelineConfig `yaml:"pipelines"`
}

// Validate checks the structural invariants of one pipeline: a name,
// at least one step, and per step a name, a plugin reference, and no
// duplicate step names. Plugin-specific config keys are validated by
// the plugins themselves at execution time.
func (pc *PipelineConfig) Validate() error {
	if pc.Name == "" {
		return fmt.Errorf("pipeline has no name")
	}
	if len(pc.Steps) == 0 {
		return fmt.Errorf("pipeline %q has no steps", pc.Name)
	}
	seen := make(map[string]struct{}, len(pc.Steps))
	for i, step := range pc.Steps {
		if step.Name == "" {
			return fmt.Errorf("pipeline %q: step %d has no name", pc.Name, i)
		}
		if _, dup := seen[step.Name]; dup {
			return fmt.Errorf("pipeline %q: duplicate step name %q", pc.Name, step.Name)
		}
		seen[step.Name] = struct{}{}
		if step.Plugin == "" {
			return fmt.Errorf("pipeline %q: step %q has no plugin", pc.Name, step.Name)
		}
	}
	return nil
}

// ValidatePipelineConfig validates a pipeline configuration file.
// Supports both ConfigFile format (with pipelines array) and single
// PipelineConfig format.
func ValidatePipelineConfig(pipelineFilePath string) (bool, error) {
	configs, err := ParseAllPipelines(pipelineFilePath)
	if err != nil {
		return false, err
	}
	for i := range configs {
		if err := configs[i].Validate(); err != nil {
			return false, err
		}
	}
	return true, nil
}

// ParsePipeline parses a pipeline configuration file. For the config
// file format the first enabled pipeline wins, falling back to the
// first defined one.
func ParsePipeline(pipelinePath string) (*PipelineConfig, error) {
	data, err := os.ReadFile(pipelinePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline file: %w", err)
	}

	// Try to parse as a single pipeline first
	var singlePipeline PipelineConfig
	if err := yaml.Unmarshal(data, &singlePipeline); err == nil && singlePipeline.Name != "" {
		return &singlePipeline, nil
	}

	var configFile ConfigFile
	if err := yaml.Unmarshal(data, &configFile); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline YAML: %w", err)
	}

	for _, pipeline := range configFile.Pipelines {
		if pipeline.Enabled {
			return &pipeline, nil
		}
	}
	if len(configFile.Pipelines) > 0 {
		return &configFile.Pipelines[0], nil
	}
	return nil, fmt.Errorf("no pipelines found in config file")
}

// GetPipelineName extracts the name of a pipeline from its file
func GetPipelineName(pipelinePath string) (string, error) {
	config, err := ParsePipeline(pipelinePath)
	if err != nil {
		return "", err
	}
	return config.Name, nil
}

// GetEnabledPipelines reads the config file and returns enabled pipelines
func GetEnabledPipelines(configPath string) ([]string, error) {
	configs, err := ParseAllPipelines(configPath)
	if err != nil {
		return nil, err
	}
	var enabled []string
	for _, pipeline := range configs {
		if pipeline.Enabled {
			enabled = append(enabled, pipeline.Name)
		}
	}
	return enabled, nil
}

// ParseAllPipelines parses all pipelines from a config file. A single
// pipeline file parses as a one-element list.
func ParseAllPipelines(configPath string) ([]PipelineConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var configFile ConfigFile
	if err := yaml.Unmarshal(data, &configFile); err == nil && len(configFile.Pipelines) > 0 {
		return configFile.Pipelines, nil
	}

	var singlePipeline PipelineConfig
	if err := yaml.Unmarshal(data, &singlePipeline); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline YAML: %w", err)
	}
	if singlePipeline.Name == "" {
		return nil, fmt.Errorf("no pipelines found in %s", configPath)
	}
	return []PipelineConfig{singlePipeline}, nil
}
