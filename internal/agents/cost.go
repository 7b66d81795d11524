package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/smilemakc/floorplan/internal/llm"
	"github.com/smilemakc/floorplan/pkg/models"
)

// CostAgent estimates a bill of materials and cost range for the final
// plan. Its failure is non-blocking for convergence: callers should fall
// back to an empty BOM and zero cost range rather than failing the run.
type CostAgent struct {
	calls *llm.CallLayer
	model models.ModelRouteConfig
}

func NewCostAgent(calls *llm.CallLayer, model models.ModelRouteConfig) *CostAgent {
	return &CostAgent{calls: calls, model: model}
}

func (a *CostAgent) Execute(ctx context.Context, spec models.NormalizedSpec, plan models.FloorPlanGraph) ([]models.BOMItem, models.CostRange, Metadata, error) {
	prompt := buildCostPrompt(spec, plan)

	result, durationMs, err := timed(func() (*llm.StructuredResult, error) {
		return a.calls.GenerateStructured(ctx, costInstruction, prompt, a.model, costSchema)
	})
	if err != nil {
		return nil, models.CostRange{}, Metadata{}, wrapError(models.AgentCost, err)
	}

	bom := decodeBOM(result.Data["bom"])
	costRange := decodeCostRange(result.Data["totalCostRange"])
	meta := recordMetadata(string(models.AgentCost), result.ModelUsed, prompt, durationMs, result.TokenCount)
	return bom, costRange, meta, nil
}

const costInstruction = "You are a construction cost estimator. Given a finished floor plan, produce a bill of " +
	"materials and an overall cost range. Respond with JSON: " +
	"{\"bom\":[{\"material\",\"quantity\",\"unit\",\"estimatedCost\"}],\"totalCostRange\":{\"min\",\"max\",\"currency\"}}."

func buildCostPrompt(spec models.NormalizedSpec, plan models.FloorPlanGraph) string {
	roomsEncoded, _ := json.Marshal(plan.Rooms)
	return fmt.Sprintf("builtUpArea=%.1f totalArea=%.1f\nRooms: %s", plan.BuiltUpArea, plan.TotalArea, roomsEncoded)
}

var costSchema = &models.LLMJSONSchema{
	Name: "cost_estimate",
	Schema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"bom":            map[string]interface{}{"type": "array"},
			"totalCostRange": map[string]interface{}{"type": "object"},
		},
	},
}

func decodeBOM(raw interface{}) []models.BOMItem {
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	out := make([]models.BOMItem, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, models.BOMItem{
			Material:      asString(obj["material"]),
			Quantity:      asFloat(obj["quantity"]),
			Unit:          asString(obj["unit"]),
			EstimatedCost: asFloat(obj["estimatedCost"]),
		})
	}
	return out
}

func decodeCostRange(raw interface{}) models.CostRange {
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return models.CostRange{}
	}
	currency := asString(obj["currency"])
	if currency == "" {
		currency = "USD"
	}
	return models.CostRange{Min: asFloat(obj["min"]), Max: asFloat(obj["max"]), Currency: currency}
}
