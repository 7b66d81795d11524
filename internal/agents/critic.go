package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/smilemakc/floorplan/internal/llm"
	"github.com/smilemakc/floorplan/pkg/models"
)

// CriticAgent reviews a candidate plan against both validators' findings
// and produces a Critique. It never mutates the plan.
type CriticAgent struct {
	calls *llm.CallLayer
	model models.ModelRouteConfig
}

func NewCriticAgent(calls *llm.CallLayer, model models.ModelRouteConfig) *CriticAgent {
	return &CriticAgent{calls: calls, model: model}
}

// Execute scores plan's spatial qualities given the regulatory and cultural
// validator findings for the same iteration.
func (a *CriticAgent) Execute(ctx context.Context, plan models.FloorPlanGraph, regulatory, cultural models.ValidatorResult) (models.Critique, Metadata, error) {
	prompt := buildCriticPrompt(plan, regulatory, cultural)

	result, durationMs, err := timed(func() (*llm.StructuredResult, error) {
		return a.calls.GenerateStructured(ctx, criticInstruction, prompt, a.model, critiqueSchema)
	})
	if err != nil {
		return models.Critique{}, Metadata{}, wrapError(models.AgentCritic, err)
	}

	critique := decodeCritique(result.Data)
	critique.Clamp()
	meta := recordMetadata(string(models.AgentCritic), result.ModelUsed, prompt, durationMs, result.TokenCount)
	return critique, meta, nil
}

const criticInstruction = `You are a residential architecture critic. Your task is to review a candidate floor plan and produce a structured critique.

You MUST output ONLY valid JSON matching the schema below. No markdown, no prose outside JSON.`

const critiqueSchemaDefinition = `## Output JSON Schema

{
  "spatialEfficiency": number in [0,1],
  "circulationQuality": number in [0,1],
  "naturalLighting": number in [0,1],
  "privacyGradient": number in [0,1],
  "aestheticBalance": number in [0,1],
  "overallConfidence": number in [0,1],
  "critiques": [string, at most 5],
  "strengths": [string, at most 5]
}`

func buildCriticPrompt(plan models.FloorPlanGraph, regulatory, cultural models.ValidatorResult) string {
	var b strings.Builder

	b.WriteString(critiqueSchemaDefinition)
	b.WriteString("\n\n")

	b.WriteString("## Rules\n\n")
	b.WriteString("1. Base every score on the room layout and the validator findings below, not on assumptions about rooms not listed.\n")
	b.WriteString("2. List at most 5 critiques and 5 strengths, ordered by how much they affect livability.\n")
	b.WriteString("3. overallConfidence reflects how confident you are in this critique itself, not the plan's quality.\n\n")

	fmt.Fprintf(&b, "## Plan\n\ntotalArea=%.1f builtUpArea=%.1f coverage=%.2f\n", plan.TotalArea, plan.BuiltUpArea, plan.PlotCoverageRatio)
	for _, room := range plan.Rooms {
		fmt.Fprintf(&b, "- %s (%s) sector=%s area=%.1f at (%.1f,%.1f)\n", room.Name, room.Classification, room.Sector, room.Area, room.Rect.X, room.Rect.Y)
	}
	b.WriteString("\n")

	b.WriteString("## Regulatory Findings\n\n")
	for _, v := range regulatory.Violations {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", v.Severity, v.RoomName, v.Message)
	}
	b.WriteString("\n## Cultural Findings\n\n")
	for _, v := range cultural.Violations {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", v.Severity, v.RoomName, v.Message)
	}

	return b.String()
}

var critiqueSchema = &models.LLMJSONSchema{
	Name: "critique",
	Schema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"spatialEfficiency":  map[string]interface{}{"type": "number"},
			"circulationQuality": map[string]interface{}{"type": "number"},
			"naturalLighting":    map[string]interface{}{"type": "number"},
			"privacyGradient":    map[string]interface{}{"type": "number"},
			"aestheticBalance":   map[string]interface{}{"type": "number"},
			"overallConfidence":  map[string]interface{}{"type": "number"},
			"critiques":          map[string]interface{}{"type": "array"},
			"strengths":          map[string]interface{}{"type": "array"},
		},
	},
}

func decodeCritique(data map[string]interface{}) models.Critique {
	critiques := decodeStringList(data["critiques"])
	if len(critiques) > 5 {
		critiques = critiques[:5]
	}
	strengths := decodeStringList(data["strengths"])
	if len(strengths) > 5 {
		strengths = strengths[:5]
	}
	return models.Critique{
		SpatialEfficiency:  asFloat(data["spatialEfficiency"]),
		CirculationQuality: asFloat(data["circulationQuality"]),
		NaturalLighting:    asFloat(data["naturalLighting"]),
		PrivacyGradient:    asFloat(data["privacyGradient"]),
		AestheticBalance:   asFloat(data["aestheticBalance"]),
		OverallConfidence:  asFloat(data["overallConfidence"]),
		Critiques:          critiques,
		Strengths:          strengths,
	}
}
