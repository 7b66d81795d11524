package orchestrator

import (
	"sort"

	"github.com/smilemakc/floorplan/pkg/models"
)

// agentStartPayload is the Data payload of an agent_start event.
type agentStartPayload struct {
	Agent string `json:"agent"`
}

// agentCompletePayload is the Data payload of an agent_complete event.
type agentCompletePayload struct {
	Agent      string `json:"agent"`
	Model      string `json:"model"`
	DurationMs int64  `json:"durationMs"`
	TokenCount int    `json:"tokenCount"`
}

// moeRoutingPayload announces which model the router picked for an agent.
type moeRoutingPayload struct {
	Agent string `json:"agent"`
	Model string `json:"model"`
}

// iterationStartPayload is the Data payload of an iteration_start event.
type iterationStartPayload struct {
	Iteration     int `json:"iteration"`
	MaxIterations int `json:"maxIterations"`
}

// violationUpdatePayload carries one validator's findings for the current
// iteration.
type violationUpdatePayload struct {
	Validator  string                  `json:"validator"`
	Violations []models.Violation      `json:"violations"`
	Items      []models.ComplianceItem `json:"items"`
	Score      float64                 `json:"score"`
}

// scoreUpdatePayload is the Data payload of a score_update event.
type scoreUpdatePayload struct {
	Iteration       int                          `json:"iteration"`
	FinalScore      float64                      `json:"finalScore"`
	Breakdown       []models.ScoreBreakdownEntry `json:"breakdown"`
	PassesThreshold bool                         `json:"passesThreshold"`
}

// completedPayload is the Data payload of the terminal completed event.
type completedPayload struct {
	FinalPlan      models.GeneratedPlan `json:"finalPlan"`
	FinalScore     float64              `json:"finalScore"`
	Converged      bool                 `json:"converged"`
	IterationCount int                  `json:"iterationCount"`
}

// errorPayload is the Data payload of the terminal error event.
type errorPayload struct {
	Message string `json:"message"`
	Reason  string `json:"reason"`
}

// partitionFloors groups rooms by FloorIndex into FloorPartition entries,
// ordered by floor number. A single-floor plan yields at most one partition,
// so callers should only attach the result when it has more than one entry.
func partitionFloors(rooms []models.Room) []models.FloorPartition {
	indices := make([]int, 0)
	seen := make(map[int]int) // floorIndex -> position in indices
	grouped := make(map[int][]models.Room)

	for _, room := range rooms {
		idx := room.FloorIndex
		if _, ok := seen[idx]; !ok {
			seen[idx] = len(indices)
			indices = append(indices, idx)
		}
		grouped[idx] = append(grouped[idx], room)
	}

	sort.Ints(indices)

	partitions := make([]models.FloorPartition, 0, len(indices))
	for _, idx := range indices {
		partitions = append(partitions, models.FloorPartition{
			FloorNumber: idx,
			FloorLabel:  floorLabel(idx),
			Rooms:       grouped[idx],
		})
	}
	return partitions
}

func floorLabel(idx int) string {
	switch idx {
	case 0:
		return "Ground Floor"
	case 1:
		return "First Floor"
	case 2:
		return "Second Floor"
	default:
		return "Upper Floor"
	}
}
