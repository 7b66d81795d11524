package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/smilemakc/floorplan/pkg/models"

	"github.com/smilemakc/floorplan/internal/llm"
)

const doorClearance = 0.9 // metres kept clear in front of a door swing

// FurnitureAgent places furniture within the final rooms. It is optional
// and best-effort: a caller should log and drop its error rather than fail
// the run.
type FurnitureAgent struct {
	calls *llm.CallLayer
	model models.ModelRouteConfig
}

func NewFurnitureAgent(calls *llm.CallLayer, model models.ModelRouteConfig) *FurnitureAgent {
	return &FurnitureAgent{calls: calls, model: model}
}

func (a *FurnitureAgent) Execute(ctx context.Context, rooms []models.Room) ([]models.FurnitureItem, Metadata, error) {
	prompt := buildFurniturePrompt(rooms)

	result, durationMs, err := timed(func() (*llm.StructuredResult, error) {
		return a.calls.GenerateStructured(ctx, furnitureInstruction, prompt, a.model, furnitureSchema)
	})
	if err != nil {
		return nil, Metadata{}, wrapError(models.AgentFurniture, err)
	}

	items := decodeFurniture(result.Data["furniture"])
	items = filterDoorClearance(items, rooms)
	meta := recordMetadata(string(models.AgentFurniture), result.ModelUsed, prompt, durationMs, result.TokenCount)
	return items, meta, nil
}

const furnitureInstruction = "You are a residential interior furniture planner. Place furniture inside the given " +
	"rooms using absolute plot coordinates. Leave clearance in front of every door and avoid blocking window " +
	"access. Respond with JSON: {\"furniture\":[{\"roomId\",\"name\",\"x\",\"y\",\"width\",\"height\",\"rotation\"}]}."

func buildFurniturePrompt(rooms []models.Room) string {
	encoded, _ := json.Marshal(rooms)
	return fmt.Sprintf("Rooms: %s", encoded)
}

var furnitureSchema = &models.LLMJSONSchema{
	Name: "furniture_plan",
	Schema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"furniture": map[string]interface{}{"type": "array"},
		},
	},
}

func decodeFurniture(raw interface{}) []models.FurnitureItem {
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	out := make([]models.FurnitureItem, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, models.FurnitureItem{
			RoomID:   asString(obj["roomId"]),
			Name:     asString(obj["name"]),
			X:        asFloat(obj["x"]),
			Y:        asFloat(obj["y"]),
			Width:    asFloat(obj["width"]),
			Height:   asFloat(obj["height"]),
			Rotation: asFloat(obj["rotation"]),
		})
	}
	return out
}

// filterDoorClearance drops any furniture item whose footprint intrudes on
// the clearance zone in front of a door in its own room.
func filterDoorClearance(items []models.FurnitureItem, rooms []models.Room) []models.FurnitureItem {
	roomsByID := make(map[string]models.Room, len(rooms))
	for _, room := range rooms {
		roomsByID[room.ID] = room
	}

	out := make([]models.FurnitureItem, 0, len(items))
	for _, item := range items {
		room, ok := roomsByID[item.RoomID]
		if !ok {
			out = append(out, item)
			continue
		}
		if !intrudesOnDoorClearance(item, room) {
			out = append(out, item)
		}
	}
	return out
}

func intrudesOnDoorClearance(item models.FurnitureItem, room models.Room) bool {
	itemRect := models.Rectangle{X: item.X, Y: item.Y, Width: item.Width, Height: item.Height}
	for _, feature := range room.Features {
		if feature.Kind != models.WallFeatureDoor {
			continue
		}
		if overlapsClearanceZone(itemRect, room.Rect, feature) {
			return true
		}
	}
	return false
}

func overlapsClearanceZone(item, room models.Rectangle, door models.WallFeature) bool {
	var zone models.Rectangle
	switch door.Wall {
	case models.WallTop:
		zone = models.Rectangle{X: room.X + door.Position, Y: room.Y, Width: door.Width, Height: doorClearance}
	case models.WallBottom:
		zone = models.Rectangle{X: room.X + door.Position, Y: room.Y + room.Height - doorClearance, Width: door.Width, Height: doorClearance}
	case models.WallLeft:
		zone = models.Rectangle{X: room.X, Y: room.Y + door.Position, Width: doorClearance, Height: door.Width}
	case models.WallRight:
		zone = models.Rectangle{X: room.X + room.Width - doorClearance, Y: room.Y + door.Position, Width: doorClearance, Height: door.Width}
	default:
		return false
	}

	overlapX := min(item.X+item.Width, zone.X+zone.Width) - max(item.X, zone.X)
	overlapY := min(item.Y+item.Height, zone.Y+zone.Height) - max(item.Y, zone.Y)
	return overlapX > 0 && overlapY > 0
}
