package agents

import (
	"github.com/smilemakc/floorplan/internal/domain/geometry"
	"github.com/smilemakc/floorplan/pkg/models"
)

// buildGraph enriches rooms and recomputes every area total server-side.
// Spatial and Refinement must never trust an LLM-reported total:
// this is the single place totals are derived from room rectangles.
func buildGraph(rooms []models.Room, plot models.PlotGeometry, adjacencies []models.AdjacencyPreference, designLog []string) models.FloorPlanGraph {
	enriched := geometry.Enrich(rooms, plot)

	graph := models.FloorPlanGraph{
		Rooms:       enriched,
		TotalArea:   plot.Width * plot.Depth,
		DesignLog:   designLog,
		Adjacencies: adjacencies,
	}

	for _, room := range enriched {
		switch room.Type {
		case models.RoomTypeRoom, models.RoomTypeService:
			graph.BuiltUpArea += room.Area
		case models.RoomTypeCirculation:
			graph.CirculationArea += room.Area
		case models.RoomTypeSetback:
			graph.SetbackArea += room.Area
		case models.RoomTypeOutdoor:
			graph.OutdoorArea += room.Area
		}
	}

	if graph.TotalArea > 0 {
		graph.PlotCoverageRatio = graph.BuiltUpArea / graph.TotalArea
	}

	return graph
}

// decodeRooms converts the LLM's loosely-typed room array into []models.Room.
func decodeRooms(raw interface{}) []models.Room {
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	rooms := make([]models.Room, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		room := models.Room{
			ID:   asString(obj["id"]),
			Name: asString(obj["name"]),
			Type: models.RoomType(asString(obj["type"])),
			Rect: decodeRect(obj["rect"]),
		}
		if room.Type == "" {
			room.Type = models.RoomTypeRoom
		}
		room.Guidance = asString(obj["guidance"])
		room.FloorIndex = int(asFloat(obj["floorIndex"]))
		room.Features = decodeFeatures(obj["features"])
		rooms = append(rooms, room)
	}
	return rooms
}

func decodeRect(raw interface{}) models.Rectangle {
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return models.Rectangle{}
	}
	return models.Rectangle{
		X:      asFloat(obj["x"]),
		Y:      asFloat(obj["y"]),
		Width:  asFloat(obj["width"]),
		Height: asFloat(obj["height"]),
	}
}

func decodeFeatures(raw interface{}) []models.WallFeature {
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	out := make([]models.WallFeature, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, models.WallFeature{
			Kind:     models.WallFeatureKind(asString(obj["kind"])),
			Wall:     models.WallSide(asString(obj["wall"])),
			Position: asFloat(obj["position"]),
			Width:    asFloat(obj["width"]),
		})
	}
	return out
}

func decodeStringList(raw interface{}) []string {
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}
