package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/smilemakc/floorplan/internal/domain/geometry"
	"github.com/smilemakc/floorplan/internal/llm"
	"github.com/smilemakc/floorplan/pkg/models"
)

// RefinementAgent takes a plan plus the spec, violation lists, and critique
// for one iteration and returns a replacement room layout.
type RefinementAgent struct {
	calls *llm.CallLayer
	model models.ModelRouteConfig
	gate  *expressionCache
}

func NewRefinementAgent(calls *llm.CallLayer, model models.ModelRouteConfig) *RefinementAgent {
	return &RefinementAgent{calls: calls, model: model, gate: newExpressionCache(16)}
}

// CacheStats reports the adjacency-drift gate cache's occupancy and
// lifetime hit/miss count, for per-iteration cache-pressure logging.
func (a *RefinementAgent) CacheStats() (size, hits, misses int) {
	return a.gate.stats()
}

// adjacencyDriftTrigger is a declarative gate over a single
// adjacency preference's resolved distance, evaluated after the model
// responds so the design log records only adjacencies worth flagging.
const adjacencyDriftTrigger = `relation == "adjacent" && distance > 5`

// Execute calls the refinement model with the current plan and its
// findings, then re-enriches and recomputes totals over the returned rooms
// (never trusting the model's own totals) and appends the refinement's
// change log, plus any adjacency-drift notes the gate expression flags, to
// the running design log.
func (a *RefinementAgent) Execute(ctx context.Context, spec models.NormalizedSpec, plan models.FloorPlanGraph, regulatory, cultural models.ValidatorResult, critique models.Critique) (models.FloorPlanGraph, Metadata, error) {
	prompt := buildRefinementPrompt(spec, plan, regulatory, cultural, critique)

	result, durationMs, err := timed(func() (*llm.StructuredResult, error) {
		return a.calls.GenerateStructured(ctx, refinementInstruction, prompt, a.model, refinementSchema)
	})
	if err != nil {
		return models.FloorPlanGraph{}, Metadata{}, wrapError(models.AgentRefinement, err)
	}

	rooms := decodeRooms(result.Data["rooms"])
	if len(rooms) == 0 {
		return models.FloorPlanGraph{}, Metadata{}, wrapError(models.AgentRefinement, fmt.Errorf("refinement model returned no rooms"))
	}
	changesApplied := decodeStringList(result.Data["changesApplied"])

	designLog := append(append([]string{}, plan.DesignLog...), "--- Refinement Pass ---")
	designLog = append(designLog, changesApplied...)
	designLog = append(designLog, a.adjacencyDriftNotes(rooms, spec.Plot, spec.Adjacencies)...)

	graph := buildGraph(rooms, spec.Plot, spec.Adjacencies, designLog)
	meta := recordMetadata(string(models.AgentRefinement), result.ModelUsed, prompt, durationMs, result.TokenCount)
	return graph, meta, nil
}

func (a *RefinementAgent) adjacencyDriftNotes(rooms []models.Room, plot models.PlotGeometry, adjacencies []models.AdjacencyPreference) []string {
	if len(adjacencies) == 0 {
		return nil
	}
	enriched := geometry.Enrich(rooms, plot)
	byName := make(map[string]models.EnrichedRoom, len(enriched))
	for _, r := range enriched {
		byName[r.Name] = r
	}

	var notes []string
	for _, pref := range adjacencies {
		roomA, okA := byName[pref.RoomA]
		roomB, okB := byName[pref.RoomB]
		if !okA || !okB {
			continue
		}
		distance := geometry.Distance(roomA.Centroid, roomB.Centroid)
		env := map[string]interface{}{"relation": string(pref.Relation), "distance": distance}
		flagged, err := a.gate.evalBool(adjacencyDriftTrigger, env)
		if err != nil || !flagged {
			continue
		}
		notes = append(notes, fmt.Sprintf("adjacency drift: %s and %s are requested adjacent but %.1fm apart", pref.RoomA, pref.RoomB, distance))
	}
	return notes
}

const refinementInstruction = "You are refining a residential floor plan to resolve the violations and critique below. " +
	"Keep rooms that are already compliant unchanged where possible. " +
	"Respond with JSON: {\"rooms\":[...same shape as the layout above...],\"changesApplied\":[string]}."

func buildRefinementPrompt(spec models.NormalizedSpec, plan models.FloorPlanGraph, regulatory, cultural models.ValidatorResult, critique models.Critique) string {
	plotEncoded, _ := json.Marshal(spec.Plot)
	roomsEncoded, _ := json.Marshal(plan.Rooms)
	regEncoded, _ := json.Marshal(regulatory.Violations)
	vastuEncoded, _ := json.Marshal(cultural.Violations)
	critiqueEncoded, _ := json.Marshal(critique)

	return fmt.Sprintf(
		"Plot: %s\nCurrent rooms: %s\nRegulatory violations: %s\nCultural violations: %s\nCritique: %s\n",
		plotEncoded, roomsEncoded, regEncoded, vastuEncoded, critiqueEncoded,
	)
}

var refinementSchema = &models.LLMJSONSchema{
	Name: "refined_floor_plan",
	Schema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"rooms":          map[string]interface{}{"type": "array"},
			"changesApplied": map[string]interface{}{"type": "array"},
		},
	},
}
