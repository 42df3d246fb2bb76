// Responsible for executing a pipeline
package utils

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/surveypath/surveypath-go/pipelines"
)

// StepExecution records the outcome of one executed step.
type StepExecution struct {
	Name       string `json:"name"`
	Plugin     string `json:"plugin"`
	Output     string `json:"output,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Succeeded  bool   `json:"succeeded"`
	Error      string `json:"error,omitempty"`
}

// PipelineExecutionResult represents the result of a pipeline execution
type PipelineExecutionResult struct {
	RunID      string                   `json:"run_id"`
	Pipeline   string                   `json:"pipeline"`
	Success    bool                     `json:"success"`
	Error      string                   `json:"error,omitempty"`
	Context    *pipelines.PluginContext `json:"-"`
	Steps      []StepExecution          `json:"steps"`
	ExecutedAt string                   `json:"executed_at"`
	DurationMS int64                    `json:"duration_ms"`
}

// RunPipeline executes a pipeline file against the given registry.
func RunPipeline(pipeline string, registry *pipelines.PluginRegistry) (*PipelineExecutionResult, error) {
	if pipeline == "" {
		return nil, fmt.Errorf("pipeline path cannot be empty")
	}
	if !strings.HasSuffix(pipeline, ".yaml") && !strings.HasSuffix(pipeline, ".yml") {
		return nil, fmt.Errorf("pipeline path must be a YAML file")
	}

	pipelineConfig, err := ParsePipeline(pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pipeline: %w", err)
	}
	if err := pipelineConfig.Validate(); err != nil {
		return nil, err
	}

	return ExecutePipelineWithRegistry(context.Background(), pipelineConfig, registry)
}

// ExecutePipelineWithRegistry executes a parsed pipeline configuration
// with a specific registry. Step failures stop the run and come back in
// the result with Success=false; only setup problems return an error.
func ExecutePipelineWithRegistry(ctx context.Context, config *PipelineConfig, registry *pipelines.PluginRegistry) (*PipelineExecutionResult, error) {
	logger := GetLogger()
	started := time.Now()

	result := &PipelineExecutionResult{
		RunID:      uuid.New().String(),
		Pipeline:   config.Name,
		Success:    true,
		Context:    pipelines.NewPluginContext(),
		ExecutedAt: started.UTC().Format(time.RFC3339),
	}
	result.Context.SetMetadata("run_id", result.RunID)
	result.Context.SetMetadata("pipeline", config.Name)

	logger.Info("pipeline run started",
		Component("runner"),
		String("pipeline", config.Name),
		String("run_id", result.RunID),
		Int("steps", len(config.Steps)))

	for i, step := range config.Steps {
		stepStart := time.Now()
		stepResult, err := executeStep(ctx, registry, step, result.Context)
		record := StepExecution{
			Name:       step.Name,
			Plugin:     step.Plugin,
			Output:     step.Output,
			DurationMS: time.Since(stepStart).Milliseconds(),
			Succeeded:  err == nil,
		}
		if err != nil {
			record.Error = err.Error()
			result.Steps = append(result.Steps, record)
			result.Success = false
			result.Error = fmt.Sprintf("step %d (%s) failed: %v", i+1, step.Name, err)
			result.DurationMS = time.Since(started).Milliseconds()
			logger.Error("pipeline step failed", err,
				Component("runner"),
				String("pipeline", config.Name),
				String("run_id", result.RunID),
				String("step", step.Name))
			return result, nil
		}
		result.Steps = append(result.Steps, record)

		// Merge step results into the shared context. Typed payloads
		// (tables, respondent sets) must survive the merge intact.
		for _, key := range stepResult.Keys() {
			if value, exists := stepResult.GetTyped(key); exists {
				result.Context.SetTyped(key, value)
			}
		}
	}

	result.DurationMS = time.Since(started).Milliseconds()
	logger.Info("pipeline run finished",
		Component("runner"),
		String("pipeline", config.Name),
		String("run_id", result.RunID),
		Int("steps", len(result.Steps)))
	return result, nil
}

// executeStep executes a single pipeline step
func executeStep(ctx context.Context, registry *pipelines.PluginRegistry, step pipelines.StepConfig, context *pipelines.PluginContext) (*pipelines.PluginContext, error) {
	// Parse plugin reference (e.g., "Input.survey_csv" -> type: "Input", name: "survey_csv")
	pluginParts := strings.Split(step.Plugin, ".")
	if len(pluginParts) != 2 {
		return nil, fmt.Errorf("invalid plugin reference format: %s, expected 'Type.Name'", step.Plugin)
	}
	pluginType := pluginParts[0]
	pluginName := pluginParts[1]

	plugin, err := registry.GetPlugin(pluginType, pluginName)
	if err != nil {
		return nil, fmt.Errorf("failed to get plugin %s: %w", step.Plugin, err)
	}

	if err := plugin.ValidateConfig(step.Config); err != nil {
		return nil, fmt.Errorf("configuration validation failed for plugin %s: %w", step.Plugin, err)
	}

	stepResult, err := plugin.ExecuteStep(ctx, step, context)
	if err != nil {
		return nil, fmt.Errorf("plugin execution failed: %w", err)
	}
	return stepResult, nil
}
