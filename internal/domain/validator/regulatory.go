// Package validator implements the two deterministic validators — regulatory
// and cultural — that produce violations, compliance items, and a score
// without ever calling an LLM.
package validator

import (
	"fmt"

	"github.com/smilemakc/floorplan/pkg/models"
)

const setbackTolerance = 0.1

var regulatoryPenalty = map[models.Severity]float64{
	models.SeverityCritical: 0.20,
	models.SeverityMajor:    0.10,
	models.SeverityMinor:    0.03,
}

// Regulatory evaluates a candidate plan against a municipal profile. It is
// pure: same inputs always yield a byte-identical result, order included.
func Regulatory(rooms []models.EnrichedRoom, plot models.PlotGeometry, profile models.MunicipalProfile, setbacks models.SetbackRequirements, floors int) models.ValidatorResult {
	if floors < 1 {
		floors = 1
	}

	var violations []models.Violation
	var items []models.ComplianceItem

	plotArea := plot.Width * plot.Depth
	var builtUpArea float64

	// 1. Setback compliance.
	envelope := models.Rectangle{
		X:      setbacks.Left,
		Y:      setbacks.Front,
		Width:  plot.Width - setbacks.Left - setbacks.Right,
		Height: plot.Depth - setbacks.Front - setbacks.Rear,
	}
	setbackOK := true
	for _, room := range rooms {
		if !isStructural(room.Type) {
			continue
		}
		if room.Rect.X < envelope.X-setbackTolerance ||
			room.Rect.Y < envelope.Y-setbackTolerance ||
			room.Rect.X+room.Rect.Width > envelope.X+envelope.Width+setbackTolerance ||
			room.Rect.Y+room.Rect.Height > envelope.Y+envelope.Height+setbackTolerance {
			setbackOK = false
			v := models.Violation{
				RuleID:         "setback-compliance",
				Severity:       models.SeverityCritical,
				RoomID:         room.ID,
				RoomName:       room.Name,
				Message:        fmt.Sprintf("%s intrudes into the mandatory setback envelope", room.Name),
				Recommendation: "move or shrink the room to stay within the setback-adjusted envelope",
			}
			violations = append(violations, v)
		}
		if room.Type == models.RoomTypeRoom || room.Type == models.RoomTypeService {
			builtUpArea += room.Area
		}
	}
	items = append(items, complianceItem("Setback compliance", setbackOK,
		"all rooms lie within the setback-adjusted envelope",
		"one or more rooms intrude into the mandatory setback envelope",
		"move or shrink the offending rooms"))

	// 2. Floor Area Ratio.
	far := 0.0
	if plotArea > 0 {
		far = (builtUpArea * float64(floors)) / plotArea
	}
	farOK := far <= profile.MaxFAR
	if !farOK {
		violations = append(violations, models.Violation{
			RuleID:         "floor-area-ratio",
			Severity:       models.SeverityCritical,
			Message:        fmt.Sprintf("Floor Area Ratio %.2f exceeds the maximum %.2f", far, profile.MaxFAR),
			Recommendation: "reduce built-up area or floor count",
		})
	}
	items = append(items, complianceItem("Floor Area Ratio", farOK,
		fmt.Sprintf("FAR %.2f is within the maximum %.2f", far, profile.MaxFAR),
		fmt.Sprintf("FAR %.2f exceeds the maximum %.2f", far, profile.MaxFAR),
		"reduce built-up area or floor count"))

	// 3. Ground coverage.
	coverage := 0.0
	if plotArea > 0 {
		coverage = builtUpArea / plotArea
	}
	coverageOK := coverage <= profile.MaxGroundCoverage
	if !coverageOK {
		violations = append(violations, models.Violation{
			RuleID:         "ground-coverage",
			Severity:       models.SeverityMajor,
			Message:        fmt.Sprintf("ground coverage %.0f%% exceeds the maximum %.0f%%", coverage*100, profile.MaxGroundCoverage*100),
			Recommendation: "reduce the ground-floor footprint",
		})
	}
	items = append(items, complianceItem("Ground coverage", coverageOK,
		fmt.Sprintf("ground coverage %.0f%% is within the maximum", coverage*100),
		fmt.Sprintf("ground coverage %.0f%% exceeds the maximum %.0f%%", coverage*100, profile.MaxGroundCoverage*100),
		"reduce the ground-floor footprint"))

	// 4. Minimum room sizes.
	minSizeOK := true
	for _, room := range rooms {
		if room.Type != models.RoomTypeRoom {
			continue
		}
		minArea, ok := profile.MinRoomSizes[room.Classification]
		if !ok {
			continue
		}
		if room.Area < minArea-setbackTolerance {
			minSizeOK = false
			violations = append(violations, models.Violation{
				RuleID:         "minimum-room-size",
				Severity:       models.SeverityMajor,
				RoomID:         room.ID,
				RoomName:       room.Name,
				Message:        fmt.Sprintf("%s area %.1fm² is below the minimum %.1fm² for %s", room.Name, room.Area, minArea, room.Classification),
				Recommendation: "enlarge the room to meet the minimum area",
			})
		}
	}
	items = append(items, complianceItem("Minimum room sizes", minSizeOK,
		"all rooms meet their classification's minimum area",
		"one or more rooms are below their classification's minimum area",
		"enlarge the offending rooms"))

	// 5. Corridor width.
	corridorOK := true
	for _, room := range rooms {
		if room.Type != models.RoomTypeCirculation {
			continue
		}
		width := room.Rect.Width
		if room.Rect.Height < width {
			width = room.Rect.Height
		}
		if width < profile.MinCorridorWidth-0.05 {
			corridorOK = false
			violations = append(violations, models.Violation{
				RuleID:         "corridor-width",
				Severity:       models.SeverityMajor,
				RoomID:         room.ID,
				RoomName:       room.Name,
				Message:        fmt.Sprintf("%s width %.2fm is below the minimum corridor width %.2fm", room.Name, width, profile.MinCorridorWidth),
				Recommendation: "widen the corridor",
			})
		}
	}
	items = append(items, complianceItem("Corridor width", corridorOK,
		"all circulation spaces meet the minimum corridor width",
		"one or more circulation spaces are narrower than the minimum corridor width",
		"widen the offending corridors"))

	// 6. Ventilation (soft, WARN only).
	ventilationOK := true
	for _, room := range rooms {
		if !isHabitable(room.Classification) {
			continue
		}
		var windowWidth float64
		for _, f := range room.Features {
			if f.Kind == models.WallFeatureWindow {
				windowWidth += f.Width
			}
		}
		ventArea := windowWidth * 1.2
		ratio := 0.0
		if room.Area > 0 {
			ratio = ventArea / room.Area
		}
		if windowWidth == 0 {
			ventilationOK = false
			items = append(items, models.ComplianceItem{
				Rule:           "Ventilation",
				Status:         models.ComplianceStatusWarn,
				Message:        fmt.Sprintf("%s has no windows", room.Name),
				Recommendation: "add at least one window",
			})
			continue
		}
		if ratio < profile.MinVentilationRatio {
			ventilationOK = false
			items = append(items, models.ComplianceItem{
				Rule:           "Ventilation",
				Status:         models.ComplianceStatusWarn,
				Message:        fmt.Sprintf("%s ventilation ratio %.2f is below the minimum %.2f", room.Name, ratio, profile.MinVentilationRatio),
				Recommendation: "add or enlarge windows",
			})
		}
	}
	if ventilationOK {
		items = append(items, models.ComplianceItem{
			Rule:    "Ventilation",
			Status:  models.ComplianceStatusPass,
			Message: "all habitable rooms meet the minimum ventilation ratio",
		})
	}

	score := 1.0
	for _, v := range violations {
		score -= regulatoryPenalty[v.Severity]
	}
	if score < 0 {
		score = 0
	}

	return models.ValidatorResult{Violations: violations, Items: items, Score: score}
}

func isStructural(t models.RoomType) bool {
	return t == models.RoomTypeRoom || t == models.RoomTypeCirculation || t == models.RoomTypeService
}

var habitableClassifications = map[string]bool{
	"master_bedroom": true, "bedroom": true, "guest_bedroom": true,
	"living_room": true, "dining_room": true, "study": true, "kitchen": true,
}

func isHabitable(classification string) bool {
	return habitableClassifications[classification]
}

func complianceItem(rule string, pass bool, passMsg, failMsg, recommendation string) models.ComplianceItem {
	if pass {
		return models.ComplianceItem{Rule: rule, Status: models.ComplianceStatusPass, Message: passMsg}
	}
	return models.ComplianceItem{Rule: rule, Status: models.ComplianceStatusFail, Message: failMsg, Recommendation: recommendation}
}
