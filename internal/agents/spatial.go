package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/smilemakc/floorplan/internal/llm"
	"github.com/smilemakc/floorplan/pkg/models"
)

// SpatialAgent produces the first candidate FloorPlanGraph from a
// NormalizedSpec via a single heavy-tier LLM call.
type SpatialAgent struct {
	calls *llm.CallLayer
	model models.ModelRouteConfig
}

func NewSpatialAgent(calls *llm.CallLayer, model models.ModelRouteConfig) *SpatialAgent {
	return &SpatialAgent{calls: calls, model: model}
}

// Execute calls the spatial model with spec, then enriches the returned
// rooms and recomputes every area total server-side — the LLM's reported
// totals, if any, are discarded.
func (a *SpatialAgent) Execute(ctx context.Context, spec models.NormalizedSpec) (models.FloorPlanGraph, Metadata, error) {
	prompt := buildSpatialPrompt(spec)

	result, durationMs, err := timed(func() (*llm.StructuredResult, error) {
		return a.calls.GenerateStructured(ctx, spatialInstruction, prompt, a.model, spatialSchema)
	})
	if err != nil {
		return models.FloorPlanGraph{}, Metadata{}, wrapError(models.AgentSpatial, err)
	}

	rooms := decodeRooms(result.Data["rooms"])
	if len(rooms) == 0 {
		return models.FloorPlanGraph{}, Metadata{}, wrapError(models.AgentSpatial, fmt.Errorf("spatial model returned no rooms"))
	}
	designLog := decodeStringList(result.Data["designLog"])
	if len(designLog) == 0 {
		designLog = []string{"--- Initial Generation ---"}
	}

	graph := buildGraph(rooms, spec.Plot, spec.Adjacencies, designLog)
	meta := recordMetadata(string(models.AgentSpatial), result.ModelUsed, prompt, durationMs, result.TokenCount)
	return graph, meta, nil
}

const spatialInstruction = "You are a residential floor plan layout generator. Given a normalized project " +
	"specification, produce a room layout that fits within the plot and satisfies the requested rooms. " +
	"Respond with JSON: {\"rooms\":[{\"id\",\"name\",\"type\",\"rect\":{\"x\",\"y\",\"width\",\"height\"}," +
	"\"features\":[{\"kind\",\"wall\",\"position\",\"width\"}],\"guidance\",\"floorIndex\"}],\"designLog\":[string]}."

func buildSpatialPrompt(spec models.NormalizedSpec) string {
	encoded, _ := json.Marshal(spec)
	return fmt.Sprintf("Plot: %gm x %gm.\nRoom requirements and constraints:\n%s", spec.Plot.Width, spec.Plot.Depth, encoded)
}

var spatialSchema = &models.LLMJSONSchema{
	Name: "floor_plan",
	Schema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"rooms":     map[string]interface{}{"type": "array"},
			"designLog": map[string]interface{}{"type": "array"},
		},
	},
}
