// Package geometry computes derived spatial properties of rooms — centroid,
// area, cardinal sector, and name-based classification — with no LLM calls
// and no IO. Every function here is pure and deterministic.
package geometry

import (
	"math"
	"regexp"

	"github.com/smilemakc/floorplan/pkg/models"
)

// classifyRule is one entry of the closed, ordered name→classification table.
// First match wins; order is normative.
type classifyRule struct {
	pattern *regexp.Regexp
	tag     string
}

var classifyRules = []classifyRule{
	{regexp.MustCompile(`(?i)master\s*bed`), "master_bedroom"},
	{regexp.MustCompile(`(?i)pooja|puja|prayer|mandir`), "pooja_room"},
	{regexp.MustCompile(`(?i)toilet|wc|lavatory`), "toilet"},
	{regexp.MustCompile(`(?i)bath`), "bathroom"},
	{regexp.MustCompile(`(?i)kitchen`), "kitchen"},
	{regexp.MustCompile(`(?i)dining`), "dining_room"},
	{regexp.MustCompile(`(?i)living|lounge|family\s*room`), "living_room"},
	{regexp.MustCompile(`(?i)entrance|foyer|porch`), "entrance"},
	{regexp.MustCompile(`(?i)stair`), "staircase"},
	{regexp.MustCompile(`(?i)study|home\s*office`), "study"},
	{regexp.MustCompile(`(?i)balcony|terrace|deck`), "balcony"},
	{regexp.MustCompile(`(?i)store|storage|utility`), "storage"},
	{regexp.MustCompile(`(?i)garage|parking|carport`), "parking"},
	{regexp.MustCompile(`(?i)garden|yard|courtyard`), "garden"},
	{regexp.MustCompile(`(?i)corridor|passage|hallway`), "corridor"},
	{regexp.MustCompile(`(?i)guest\s*room`), "guest_bedroom"},
	{regexp.MustCompile(`(?i)bed`), "bedroom"},
	{regexp.MustCompile(`(?i)server|plant\s*room|meter`), "service_room"},
}

// Classify assigns a classification tag to a room name by the closed,
// ordered regex table above. Unmatched names default to "bedroom".
func Classify(name string) string {
	for _, rule := range classifyRules {
		if rule.pattern.MatchString(name) {
			return rule.tag
		}
	}
	return "bedroom"
}

// Direction locates (centerX, centerY) in a 3x3 grid over the plot and
// returns the corresponding sector. The plot is divided into thirds;
// boundaries are half-open ("<"), so a centroid exactly on a gridline
// falls into the higher-index cell.
func Direction(centerX, centerY, plotW, plotD float64) models.Sector {
	col := thirdIndex(centerX, plotW)
	row := thirdIndex(centerY, plotD)

	grid := [3][3]models.Sector{
		{models.SectorNW, models.SectorN, models.SectorNE},
		{models.SectorW, models.SectorCenter, models.SectorE},
		{models.SectorSW, models.SectorS, models.SectorSE},
	}
	return grid[row][col]
}

func thirdIndex(v, total float64) int {
	if total <= 0 {
		return 0
	}
	third := total / 3
	switch {
	case v < third:
		return 0
	case v < 2*third:
		return 1
	default:
		return 2
	}
}

// Centroid returns the center point of a rectangle.
func Centroid(r models.Rectangle) models.Point {
	return models.Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Area returns the area of a rectangle.
func Area(r models.Rectangle) float64 {
	return r.Width * r.Height
}

// Enrich augments each room with its derived centroid, area, sector, and
// classification. Pure and deterministic; running it twice on
// already-enriched rooms yields the same result.
func Enrich(rooms []models.Room, plot models.PlotGeometry) []models.EnrichedRoom {
	out := make([]models.EnrichedRoom, 0, len(rooms))
	for _, room := range rooms {
		c := Centroid(room.Rect)
		out = append(out, models.EnrichedRoom{
			Room:           room,
			Centroid:       c,
			Area:           Area(room.Rect),
			Sector:         Direction(c.X, c.Y, plot.Width, plot.Depth),
			Classification: Classify(room.Name),
		})
	}
	return out
}

// BoundingBox returns the convex bounding box of a set of enriched rooms.
func BoundingBox(rooms []models.EnrichedRoom) models.Rectangle {
	if len(rooms) == 0 {
		return models.Rectangle{}
	}
	minX, minY := rooms[0].Rect.X, rooms[0].Rect.Y
	maxX, maxY := rooms[0].Rect.X+rooms[0].Rect.Width, rooms[0].Rect.Y+rooms[0].Rect.Height
	for _, r := range rooms[1:] {
		if r.Rect.X < minX {
			minX = r.Rect.X
		}
		if r.Rect.Y < minY {
			minY = r.Rect.Y
		}
		if x2 := r.Rect.X + r.Rect.Width; x2 > maxX {
			maxX = x2
		}
		if y2 := r.Rect.Y + r.Rect.Height; y2 > maxY {
			maxY = y2
		}
	}
	return models.Rectangle{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Distance returns the Euclidean distance between two points.
func Distance(a, b models.Point) float64 {
	dx, dy := a.X-b.X, a.Y-b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Overlaps reports whether two rectangles intersect by more than epsilon
// along both axes.
func Overlaps(a, b models.Rectangle, epsilon float64) bool {
	overlapX := math.Min(a.X+a.Width, b.X+b.Width) - math.Max(a.X, b.X)
	overlapY := math.Min(a.Y+a.Height, b.Y+b.Height) - math.Max(a.Y, b.Y)
	return overlapX > epsilon && overlapY > epsilon
}

// CardinalSectorCenter is the inverse of Direction: it returns the center
// point of the named sector's cell within the plot.
func CardinalSectorCenter(sector models.Sector, plot models.PlotGeometry) models.Point {
	col, row := 1, 1
	switch sector {
	case models.SectorNW:
		col, row = 0, 0
	case models.SectorN:
		col, row = 1, 0
	case models.SectorNE:
		col, row = 2, 0
	case models.SectorW:
		col, row = 0, 1
	case models.SectorCenter:
		col, row = 1, 1
	case models.SectorE:
		col, row = 2, 1
	case models.SectorSW:
		col, row = 0, 2
	case models.SectorS:
		col, row = 1, 2
	case models.SectorSE:
		col, row = 2, 2
	}
	thirdW, thirdD := plot.Width/3, plot.Depth/3
	return models.Point{
		X: (float64(col) + 0.5) * thirdW,
		Y: (float64(row) + 0.5) * thirdD,
	}
}
