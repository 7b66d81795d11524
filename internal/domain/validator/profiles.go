package validator

import "github.com/smilemakc/floorplan/pkg/models"

// nationalDefault is the fallback profile used whenever a tag is unrecognized.
var nationalDefault = models.MunicipalProfile{
	AuthorityTag:      "National",
	MaxFAR:            1.5,
	MaxGroundCoverage: 0.65,
	MinRoomSizes: map[string]float64{
		"master_bedroom": 11.0,
		"bedroom":        9.0,
		"guest_bedroom":  9.0,
		"kitchen":        6.0,
		"living_room":    12.0,
		"dining_room":    8.0,
		"bathroom":       3.5,
		"toilet":         1.8,
		"study":          6.0,
		"pooja_room":     2.0,
		"storage":        3.0,
	},
	MinCorridorWidth:    1.0,
	MinVentilationRatio: 0.10,
	DefaultSetbacks:     models.SetbackRequirements{Front: 3, Left: 1.5, Right: 1.5, Rear: 2},
}

// profiles is the closed registry of known municipal authorities, keyed by
// tag. Unknown tags fall back to nationalDefault.
var profiles = map[string]models.MunicipalProfile{
	"National": nationalDefault,
	"Metro": {
		AuthorityTag:        "Metro",
		MaxFAR:              2.0,
		MaxGroundCoverage:   0.60,
		MinRoomSizes:        nationalDefault.MinRoomSizes,
		MinCorridorWidth:    1.1,
		MinVentilationRatio: 0.12,
		DefaultSetbacks:     models.SetbackRequirements{Front: 4.5, Left: 2, Right: 2, Rear: 3},
	},
	"Coastal": {
		AuthorityTag:        "Coastal",
		MaxFAR:              1.2,
		MaxGroundCoverage:   0.55,
		MinRoomSizes:        nationalDefault.MinRoomSizes,
		MinCorridorWidth:    1.0,
		MinVentilationRatio: 0.15,
		DefaultSetbacks:     models.SetbackRequirements{Front: 6, Left: 3, Right: 3, Rear: 4},
	},
	"Heritage": {
		AuthorityTag:        "Heritage",
		MaxFAR:              1.0,
		MaxGroundCoverage:   0.45,
		MinRoomSizes:        nationalDefault.MinRoomSizes,
		MinCorridorWidth:    1.0,
		MinVentilationRatio: 0.10,
		DefaultSetbacks:     models.SetbackRequirements{Front: 6, Left: 2, Right: 2, Rear: 3},
	},
}

// ProfileRegistryFallbackFunc is invoked when Lookup falls back to the
// national default, so the caller can record the fallback without the
// registry depending on a logger.
type ProfileRegistryFallbackFunc func(requestedTag string)

// ProfileRegistry is a read-only lookup of municipal profiles, closed at
// process start.
type ProfileRegistry struct {
	onFallback ProfileRegistryFallbackFunc
}

// NewProfileRegistry constructs the registry. onFallback may be nil.
func NewProfileRegistry(onFallback ProfileRegistryFallbackFunc) *ProfileRegistry {
	return &ProfileRegistry{onFallback: onFallback}
}

// Lookup returns the profile for tag, or the national default on miss.
func (r *ProfileRegistry) Lookup(tag string) models.MunicipalProfile {
	if profile, ok := profiles[tag]; ok {
		return profile
	}
	if r.onFallback != nil {
		r.onFallback(tag)
	}
	return nationalDefault
}
