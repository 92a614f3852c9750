// Package pipeline detects multi-agent requests and materializes them
// into ordered, dependency-chained task executions.
package pipeline

import "github.com/usherhq/usher/pkg/models"

// DefaultDefinitions returns the built-in pipeline catalog. Definitions
// are matched in order, so broader triggers belong later in the list.
func DefaultDefinitions() []models.PipelineDefinition {
	return []models.PipelineDefinition{
		{
			Type: "product-thinking",
			Triggers: []string{
				"should we build",
				"is it worth building",
				"validate this idea",
				"product idea",
			},
			Steps: []models.PipelineStep{
				{Agent: "product-strategist", Template: "Evaluate the product case for: {prompt}"},
				{Agent: "ux-researcher", Template: "Outline user research and key journeys for: {prompt}"},
				{Agent: "backend-system-architect", Template: "Draft the technical architecture for: {prompt}"},
			},
		},
		{
			Type: "full-stack-feature",
			Triggers: []string{
				"full-stack feature",
				"full stack feature",
				"end-to-end feature",
				"end to end feature",
			},
			Steps: []models.PipelineStep{
				{Agent: "backend-system-architect", Template: "Design the backend and data model for: {prompt}"},
				{Agent: "frontend-ui-developer", Template: "Build the user interface for: {prompt}"},
				{Agent: "test-generator", Template: "Write tests covering: {prompt}"},
			},
		},
	}
}
