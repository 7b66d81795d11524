package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/smilemakc/floorplan/internal/llm"
	"github.com/smilemakc/floorplan/pkg/models"
)

// optionalRoomRule is one gated entry of the deterministic room-requirement
// skeleton: if expr evaluates true against the derived env, the room is
// added to the NormalizedSpec.
type optionalRoomRule struct {
	classification string
	displayName    string
	minArea        float64
	expr           string
}

var optionalRoomRules = []optionalRoomRule{
	{"dining_room", "Dining Room", 10, "hasDining"},
	{"pooja_room", "Pooja Room", 4, "hasPooja"},
	{"study", "Study", 9, "hasStudy"},
	{"balcony", "Balcony", 6, "hasBalcony"},
	{"storage", "Storage", 4, "hasStorage"},
	{"staircase", "Staircase", 6, "floors > 1"},
	{"parking", "Parking", 15, `parkingTag == "covered" || parkingTag == "garage"`},
	{"parking", "Parking", 12, `parkingTag == "open" || parkingTag == "carport"`},
}

// InputAgent builds a NormalizedSpec from the raw ProjectConfig: a
// deterministic room-requirement skeleton, the resolved municipal profile
// and strictness coefficient, and a best-effort LLM-parsed adjacency list.
type InputAgent struct {
	profiles profileLookup
	calls    *llm.CallLayer
	model    models.ModelRouteConfig
	rules    *expressionCache
}

// profileLookup abstracts the municipal profile registry so the agent does
// not import the validator package's concrete type directly.
type profileLookup interface {
	Lookup(tag string) models.MunicipalProfile
}

// NewInputAgent builds an Input agent. calls may be nil, in which case the
// adjacency-parse step is skipped and an empty list is always produced.
func NewInputAgent(profiles profileLookup, calls *llm.CallLayer, model models.ModelRouteConfig) *InputAgent {
	return &InputAgent{profiles: profiles, calls: calls, model: model, rules: newExpressionCache(32)}
}

// Execute normalizes cfg into a NormalizedSpec and the Metadata of whichever
// LLM call was made (zero-value Metadata if the adjacency parse was
// skipped).
func (a *InputAgent) Execute(ctx context.Context, cfg models.ProjectConfig) (models.NormalizedSpec, Metadata, error) {
	profile := a.profiles.Lookup(cfg.MunicipalTag)

	rooms, err := a.buildRoomRequirements(cfg)
	if err != nil {
		return models.NormalizedSpec{}, Metadata{}, wrapError(models.AgentInput, err)
	}

	spec := models.NormalizedSpec{
		Config:     cfg,
		Plot:       models.PlotGeometry{Width: cfg.PlotWidth, Depth: cfg.PlotDepth},
		Rooms:      rooms,
		Profile:    profile,
		Strictness: models.StrictnessCoefficient(cfg.Strictness),
	}

	adjacencies, meta := a.parseAdjacencies(ctx, cfg.Requirements)
	spec.Adjacencies = adjacencies

	return spec, meta, nil
}

func (a *InputAgent) buildRoomRequirements(cfg models.ProjectConfig) ([]models.RoomRequirement, error) {
	joined := strings.ToLower(strings.Join(cfg.Requirements, " \n "))

	rooms := []models.RoomRequirement{
		{Classification: "master_bedroom", DisplayName: "Master Bedroom", MinArea: 14, Count: 1},
		{Classification: "kitchen", DisplayName: "Kitchen", MinArea: 9, Count: 1},
		{Classification: "living_room", DisplayName: "Living Room", MinArea: 16, Count: 1},
		{Classification: "entrance", DisplayName: "Entrance Foyer", MinArea: 3, Count: 1},
	}

	extraBedrooms := strings.Count(joined, "bedroom")
	if extraBedrooms > 1 {
		rooms = append(rooms, models.RoomRequirement{
			Classification: "bedroom",
			DisplayName:    "Bedroom",
			MinArea:        11,
			Count:          extraBedrooms - 1,
		})
	}

	if cfg.Bathrooms > 0 {
		rooms = append(rooms, models.RoomRequirement{
			Classification: "bathroom",
			DisplayName:    "Bathroom",
			MinArea:        4,
			Count:          cfg.Bathrooms,
		})
	} else {
		rooms = append(rooms, models.RoomRequirement{Classification: "bathroom", DisplayName: "Bathroom", MinArea: 4, Count: 1})
	}

	env := map[string]interface{}{
		"hasDining":  strings.Contains(joined, "dining"),
		"hasPooja":   strings.Contains(joined, "pooja") || strings.Contains(joined, "puja") || strings.Contains(joined, "mandir"),
		"hasStudy":   strings.Contains(joined, "study") || strings.Contains(joined, "office"),
		"hasBalcony": strings.Contains(joined, "balcony") || strings.Contains(joined, "terrace"),
		"hasStorage": strings.Contains(joined, "storage") || strings.Contains(joined, "store room"),
		"floors":     maxInt(cfg.Floors, 1),
		"parkingTag": cfg.ParkingTag,
	}

	for _, rule := range optionalRoomRules {
		ok, err := a.rules.evalBool(rule.expr, env)
		if err != nil {
			return nil, fmt.Errorf("evaluating room trigger %q: %w", rule.expr, err)
		}
		if ok {
			rooms = append(rooms, models.RoomRequirement{
				Classification: rule.classification,
				DisplayName:    rule.displayName,
				MinArea:        rule.minArea,
				Count:          1,
			})
		}
	}

	return rooms, nil
}

func (a *InputAgent) parseAdjacencies(ctx context.Context, requirements []string) ([]models.AdjacencyPreference, Metadata) {
	if a.calls == nil || len(requirements) == 0 {
		return nil, Metadata{}
	}

	prompt := buildAdjacencyPrompt(requirements)
	result, durationMs, err := timed(func() (*llm.StructuredResult, error) {
		return a.calls.GenerateStructured(ctx, adjacencyInstruction, prompt, a.model, adjacencySchema)
	})
	if err != nil {
		// Recoverable: the Input agent's adjacency parse degrades to
		// an empty list rather than failing the run.
		return nil, Metadata{}
	}

	adjacencies := decodeAdjacencies(result.Data)
	return adjacencies, recordMetadata(string(models.AgentInput), result.ModelUsed, prompt, durationMs, result.TokenCount)
}

const adjacencyInstruction = "Extract spatial adjacency preferences between named rooms from free-text requirements. " +
	"Respond with JSON: {\"adjacencies\":[{\"roomA\":string,\"roomB\":string,\"relation\":\"adjacent\"|\"nearby\"|\"separated\"}]}."

func buildAdjacencyPrompt(requirements []string) string {
	return "Requirements:\n- " + strings.Join(requirements, "\n- ")
}

var adjacencySchema = &models.LLMJSONSchema{
	Name: "adjacency_preferences",
	Schema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"adjacencies": map[string]interface{}{"type": "array"},
		},
	},
}

func decodeAdjacencies(data map[string]interface{}) []models.AdjacencyPreference {
	raw, ok := data["adjacencies"].([]interface{})
	if !ok {
		return nil
	}
	out := make([]models.AdjacencyPreference, 0, len(raw))
	for _, item := range raw {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		roomA, _ := entry["roomA"].(string)
		roomB, _ := entry["roomB"].(string)
		relation, _ := entry["relation"].(string)
		if roomA == "" || roomB == "" {
			continue
		}
		rel := models.AdjacencyRelation(relation)
		switch rel {
		case models.AdjacencyAdjacent, models.AdjacencyNearby, models.AdjacencySeparated:
		default:
			rel = models.AdjacencyNearby
		}
		out = append(out, models.AdjacencyPreference{RoomA: roomA, RoomB: roomB, Relation: rel})
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
