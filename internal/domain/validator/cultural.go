package validator

import (
	"fmt"

	"github.com/smilemakc/floorplan/pkg/models"
)

// vastuRule is one entry of the closed rule table. Applies is the set of
// classifications the rule governs; Check returns (pass, message,
// recommendation) for a given room. Expressing the table as a slice of
// structs, rather than a chain of conditionals, keeps adding a rule a
// one-line table entry.
type vastuRule struct {
	id      string
	applies map[string]bool
	weight  float64
	check   func(room models.EnrichedRoom) (bool, string, string)
}

func classSet(classifications ...string) map[string]bool {
	set := make(map[string]bool, len(classifications))
	for _, c := range classifications {
		set[c] = true
	}
	return set
}

func sectorSet(sectors ...models.Sector) map[models.Sector]bool {
	set := make(map[models.Sector]bool, len(sectors))
	for _, s := range sectors {
		set[s] = true
	}
	return set
}

func notInSectors(forbidden map[models.Sector]bool, failMsg, recommendation string) func(models.EnrichedRoom) (bool, string, string) {
	return func(room models.EnrichedRoom) (bool, string, string) {
		if forbidden[room.Sector] {
			return false, failMsg, recommendation
		}
		return true, "placement is acceptable", ""
	}
}

func inSectors(allowed map[models.Sector]bool, failMsg, recommendation string) func(models.EnrichedRoom) (bool, string, string) {
	return func(room models.EnrichedRoom) (bool, string, string) {
		if allowed[room.Sector] {
			return true, "placement is acceptable", ""
		}
		return false, failMsg, recommendation
	}
}

var vastuRules = []vastuRule{
	{
		id:      "brahmasthan",
		applies: classSet("kitchen", "bathroom", "toilet", "staircase", "storage"),
		weight:  0.20,
		check: notInSectors(sectorSet(models.SectorCenter),
			"occupies the Brahmasthan (central sector), which must remain open",
			"relocate away from the central sector"),
	},
	{
		id:      "master-sw",
		applies: classSet("master_bedroom"),
		weight:  0.10,
		check: inSectors(sectorSet(models.SectorSW),
			"master bedroom is not in the south-west sector",
			"relocate the master bedroom to the south-west"),
	},
	{
		id:      "kitchen-se-nw",
		applies: classSet("kitchen"),
		weight:  0.10,
		check: inSectors(sectorSet(models.SectorSE, models.SectorNW),
			"kitchen is not in the south-east or north-west sector",
			"relocate the kitchen to the south-east or north-west"),
	},
	{
		id:      "living-ne-n-e",
		applies: classSet("living_room"),
		weight:  0.03,
		check: inSectors(sectorSet(models.SectorNE, models.SectorN, models.SectorE),
			"living room is not in the north, north-east, or east sector",
			"relocate the living room toward the north-east"),
	},
	{
		id:      "pooja-ne",
		applies: classSet("pooja_room"),
		weight:  0.10,
		check: inSectors(sectorSet(models.SectorNE, models.SectorE, models.SectorN),
			"pooja room is not in the north-east quadrant",
			"relocate the pooja room to the north-east"),
	},
	{
		id:      "toilet-not-ne-center",
		applies: classSet("bathroom", "toilet"),
		weight:  0.20,
		check: notInSectors(sectorSet(models.SectorNE, models.SectorCenter),
			"toilet or bathroom occupies the north-east sector or the Brahmasthan",
			"relocate away from the north-east sector and the central sector"),
	},
	{
		id:      "entrance-n-e-ne",
		applies: classSet("entrance"),
		weight:  0.10,
		check: inSectors(sectorSet(models.SectorN, models.SectorE, models.SectorNE),
			"entrance is not in the north, east, or north-east sector",
			"relocate the entrance toward the north-east"),
	},
	{
		id:      "staircase-not-ne-center",
		applies: classSet("staircase"),
		weight:  0.10,
		check: notInSectors(sectorSet(models.SectorNE, models.SectorCenter),
			"staircase occupies the north-east sector or the Brahmasthan",
			"relocate the staircase away from the north-east and central sectors"),
	},
	{
		id:      "dining-w-s",
		applies: classSet("dining_room"),
		weight:  0.03,
		check: inSectors(sectorSet(models.SectorW, models.SectorS),
			"dining room is not in the west or south sector",
			"relocate the dining room toward the west"),
	},
	{
		id:      "study-ne-n",
		applies: classSet("study"),
		weight:  0.03,
		check: inSectors(sectorSet(models.SectorNE, models.SectorN, models.SectorE),
			"study is not in the north-east quadrant",
			"relocate the study toward the north-east"),
	},
	{
		id:      "guest-nw",
		applies: classSet("guest_bedroom"),
		weight:  0.03,
		check: inSectors(sectorSet(models.SectorNW),
			"guest bedroom is not in the north-west sector",
			"relocate the guest bedroom to the north-west"),
	},
	{
		id:      "storage-nw-sw",
		applies: classSet("storage"),
		weight:  0.03,
		check: inSectors(sectorSet(models.SectorNW, models.SectorSW),
			"storage room is not in the north-west or south-west sector",
			"relocate storage toward the north-west or south-west"),
	},
	{
		id:      "parking-nw-ne",
		applies: classSet("parking"),
		weight:  0.03,
		check: inSectors(sectorSet(models.SectorNW, models.SectorNE),
			"parking is not in the north-west or north-east sector",
			"relocate parking toward the north"),
	},
	{
		id:      "balcony-n-e",
		applies: classSet("balcony"),
		weight:  0.03,
		check: inSectors(sectorSet(models.SectorN, models.SectorE),
			"balcony is not in the north or east sector",
			"relocate the balcony toward the north or east"),
	},
}

func severityForWeight(w float64) models.Severity {
	switch {
	case w >= 0.20:
		return models.SeverityCritical
	case w >= 0.10:
		return models.SeverityMajor
	default:
		return models.SeverityMinor
	}
}

// Cultural applies the closed Vastu rule table to every enriched room whose
// classification a rule governs. strictness is the coefficient in [0,1]
// derived from the project's configured strictness level; at s=0 the
// validator short-circuits.
func Cultural(rooms []models.EnrichedRoom, strictness float64) models.ValidatorResult {
	if strictness <= 0 {
		return models.ValidatorResult{
			Score: 1,
			Items: []models.ComplianceItem{{
				Rule:    "vastu-disabled",
				Status:  models.ComplianceStatusPass,
				Message: "Vastu checking is disabled (strictness = None)",
			}},
		}
	}

	var violations []models.Violation
	var items []models.ComplianceItem
	var penalty float64

	for _, rule := range vastuRules {
		for _, room := range rooms {
			if !rule.applies[room.Classification] {
				continue
			}
			pass, msg, recommendation := rule.check(room)
			if pass {
				items = append(items, models.ComplianceItem{
					Rule:    rule.id,
					Status:  models.ComplianceStatusPass,
					Message: fmt.Sprintf("%s: %s", room.Name, msg),
				})
				continue
			}

			penalty += rule.weight * strictness
			severity := severityForWeight(rule.weight)
			status := models.ComplianceStatusFail
			if severity == models.SeverityMinor {
				status = models.ComplianceStatusWarn
			}

			violations = append(violations, models.Violation{
				RuleID:         rule.id,
				Severity:       severity,
				RoomID:         room.ID,
				RoomName:       room.Name,
				Message:        fmt.Sprintf("%s: %s", room.Name, msg),
				Recommendation: recommendation,
			})
			items = append(items, models.ComplianceItem{
				Rule:           rule.id,
				Status:         status,
				Message:        fmt.Sprintf("%s: %s", room.Name, msg),
				Recommendation: recommendation,
			})
		}
	}

	score := 1 - penalty
	if score < 0 {
		score = 0
	}

	return models.ValidatorResult{Violations: violations, Items: items, Score: score}
}
