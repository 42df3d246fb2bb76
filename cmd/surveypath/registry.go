package main

import (
	"github.com/surveypath/surveypath-go/pipelines"
	dataprocessing "github.com/surveypath/surveypath-go/pipelines/Data_Processing"
	input "github.com/surveypath/surveypath-go/pipelines/Input"
	ml "github.com/surveypath/surveypath-go/pipelines/ML"
	output "github.com/surveypath/surveypath-go/pipelines/Output"
)

// DefaultRegistry returns a registry with every built-in plugin registered.
func DefaultRegistry() *pipelines.PluginRegistry {
	registry := pipelines.NewPluginRegistry()

	plugins := []pipelines.BasePlugin{
		input.NewSurveyCSVPlugin(),
		dataprocessing.NewSurveyMapPlugin(),
		dataprocessing.NewRecodePlugin(),
		ml.NewDescriptivesPlugin(),
		ml.NewCompositePlugin(),
		ml.NewFactorPlugin(),
		ml.NewClusterPlugin(),
		ml.NewPathModelPlugin(),
		ml.NewLogisticPlugin(),
		ml.NewMediationPlugin(),
		ml.NewSegmentTrendPlugin(),
		output.NewRespondentCSVPlugin(),
		output.NewSummaryPlugin(),
	}
	for _, plugin := range plugins {
		// Registration only fails on duplicates, which cannot happen
		// for the fixed built-in set.
		_ = registry.RegisterPlugin(plugin)
	}
	return registry
}
