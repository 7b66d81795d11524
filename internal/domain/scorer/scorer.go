// Package scorer collapses the regulatory, cultural, spatial, and critic
// subscores into a single convergence signal.
package scorer

import "github.com/smilemakc/floorplan/pkg/models"

const (
	weightRegulatory = 0.40
	weightCultural   = 0.30
	weightSpatial    = 0.20
	weightConfidence = 0.10

	// DefaultThreshold is the normative convergence threshold.
	DefaultThreshold = 0.70
)

// Score computes the weighted final score and its breakdown. Each input is
// clamped to [0,1] before weighting.
func Score(regulatory, cultural, spatial, criticConfidence, threshold float64) models.PlanScore {
	regulatory = clamp01(regulatory)
	cultural = clamp01(cultural)
	spatial = clamp01(spatial)
	criticConfidence = clamp01(criticConfidence)

	breakdown := []models.ScoreBreakdownEntry{
		{Category: models.ScoreCategoryRegulatory, Weight: weightRegulatory, RawScore: regulatory, WeightedScore: weightRegulatory * regulatory},
		{Category: models.ScoreCategoryCultural, Weight: weightCultural, RawScore: cultural, WeightedScore: weightCultural * cultural},
		{Category: models.ScoreCategorySpatial, Weight: weightSpatial, RawScore: spatial, WeightedScore: weightSpatial * spatial},
		{Category: models.ScoreCategoryConfidence, Weight: weightConfidence, RawScore: criticConfidence, WeightedScore: weightConfidence * criticConfidence},
	}

	var final float64
	for _, b := range breakdown {
		final += b.WeightedScore
	}

	return models.PlanScore{
		Final:           final,
		Breakdown:       breakdown,
		PassesThreshold: final >= threshold,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
