// Package agents implements the five (plus one optional) LLM-backed
// executors the orchestrator drives: each is a thin transform from a typed
// input to a typed output, with timing and token metadata attached.
package agents

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/smilemakc/floorplan/pkg/models"
)

// Metadata is attached to every agent result regardless of role.
type Metadata struct {
	AgentName    string
	ModelUsed    string
	DurationMs   int64
	TokenCount   int
	PromptDigest string
}

// promptDigest returns the hex sha256 of a resolved prompt, recorded on
// Metadata so a run can be audited without re-logging full prompt text.
func promptDigest(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

// timed runs fn and returns its result alongside the elapsed wall time in
// milliseconds.
func timed[T any](fn func() (T, error)) (T, int64, error) {
	start := time.Now()
	out, err := fn()
	return out, time.Since(start).Milliseconds(), err
}

// recordMetadata builds a Metadata for an agent whose underlying call used
// modelUsed and prompt, given the elapsed duration and token count.
func recordMetadata(agentName, modelUsed, prompt string, durationMs int64, tokenCount int) Metadata {
	return Metadata{
		AgentName:    agentName,
		ModelUsed:    modelUsed,
		DurationMs:   durationMs,
		TokenCount:   tokenCount,
		PromptDigest: promptDigest(prompt),
	}
}

// AgentError is returned by an agent's Execute when it cannot produce a
// result. Role names match models.AgentRole so the orchestrator can apply
// the recoverable/fatal split without string comparisons.
func wrapError(role models.AgentRole, err error) error {
	return &models.AgentError{AgentName: string(role), Err: err}
}
