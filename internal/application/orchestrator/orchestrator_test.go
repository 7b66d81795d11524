package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/floorplan/internal/agents"
	"github.com/smilemakc/floorplan/internal/application/jobstore"
	"github.com/smilemakc/floorplan/internal/application/progress"
	"github.com/smilemakc/floorplan/internal/config"
	"github.com/smilemakc/floorplan/internal/infrastructure/logger"
	"github.com/smilemakc/floorplan/internal/llm"
	"github.com/smilemakc/floorplan/pkg/models"
)

type scriptedProvider struct {
	byModel map[string]string
	err     error
}

func (p *scriptedProvider) Execute(_ context.Context, req *models.LLMRequest) (*models.LLMResponse, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &models.LLMResponse{Content: p.byModel[req.Model]}, nil
}

type stubProfiles struct{ profile models.MunicipalProfile }

func (s stubProfiles) Lookup(string) models.MunicipalProfile { return s.profile }

type recordingSink struct {
	mu     sync.Mutex
	events []models.ProgressEvent
}

func (r *recordingSink) Send(event models.ProgressEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) snapshot() []models.ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.ProgressEvent, len(r.events))
	copy(out, r.events)
	return out
}

func testProfile() models.MunicipalProfile {
	return models.MunicipalProfile{
		AuthorityTag:        "generic",
		MaxFAR:              2.0,
		MaxGroundCoverage:   0.7,
		MinRoomSizes:        map[string]float64{},
		MinCorridorWidth:    0.9,
		MinVentilationRatio: 0.1,
		DefaultSetbacks:     models.SetbackRequirements{Front: 1, Left: 1, Right: 1, Rear: 1},
	}
}

func roomsResponse() string {
	return `{"rooms":[
		{"id":"r1","name":"Master Bedroom","type":"room","rect":{"x":1,"y":1,"width":4,"height":4}},
		{"id":"r2","name":"Kitchen","type":"room","rect":{"x":5,"y":1,"width":3,"height":3}}
	],"designLog":["layout drafted"]}`
}

func highScoreCritique() string {
	return `{"spatialEfficiency":0.9,"circulationQuality":0.9,"naturalLighting":0.9,"privacyGradient":0.9,"aestheticBalance":0.9,"overallConfidence":0.9}`
}

func lowScoreCritique() string {
	return `{"spatialEfficiency":0.1,"circulationQuality":0.1,"naturalLighting":0.1,"privacyGradient":0.1,"aestheticBalance":0.1,"overallConfidence":0.1}`
}

func TestRunConvergesOnFirstIterationWhenScoreClearsThreshold(t *testing.T) {
	calls := llm.NewCallLayer(&scriptedProvider{byModel: map[string]string{"gpt-4o": roomsResponse()}}, llm.FallbackTable{}, 0)
	model := models.ModelRouteConfig{Model: "gpt-4o"}
	inputAgent := agents.NewInputAgent(stubProfiles{profile: testProfile()}, calls, model)
	spatialAgent := agents.NewSpatialAgent(calls, model)

	criticCalls := llm.NewCallLayer(&scriptedProvider{byModel: map[string]string{"gpt-4o": highScoreCritique()}}, llm.FallbackTable{}, 0)
	criticAgent := agents.NewCriticAgent(criticCalls, model)
	refinementAgent := agents.NewRefinementAgent(calls, model)

	costCalls := llm.NewCallLayer(&scriptedProvider{byModel: map[string]string{"gpt-4o": `{"bom":[],"totalCostRange":{"min":1000,"max":2000,"currency":"USD"}}`}}, llm.FallbackTable{}, 0)
	costAgent := agents.NewCostAgent(costCalls, model)

	jobs := jobstore.New(10, time.Hour)
	hub := progress.New()
	log := logger.New(config.LoggingConfig{Level: "error", Format: "json"})
	orch := New(inputAgent, spatialAgent, criticAgent, refinementAgent, costAgent, nil, jobs, hub, log, OrchestratorOptions{MaxIterations: 3})

	sink := &recordingSink{}
	hub.Subscribe("job-1", sink)
	jobs.Create("job-1", "user-1")

	orch.Run(context.Background(), "job-1", models.ProjectConfig{
		PlotWidth: 12, PlotDepth: 18, Requirements: []string{"two bedrooms"},
	})

	job, ok := jobs.Get("job-1")
	require.True(t, ok)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	require.NotNil(t, job.Result)
	assert.NotEmpty(t, job.Result.Rooms)

	require.Eventually(t, func() bool {
		for _, e := range sink.snapshot() {
			if e.Type == models.EventCompleted {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)
}

func TestRunExhaustsIterationsWithoutConvergingWhenScoreStaysLow(t *testing.T) {
	model := models.ModelRouteConfig{Model: "gpt-4o"}
	spatialCalls := llm.NewCallLayer(&scriptedProvider{byModel: map[string]string{"gpt-4o": roomsResponse()}}, llm.FallbackTable{}, 0)
	inputAgent := agents.NewInputAgent(stubProfiles{profile: testProfile()}, spatialCalls, model)
	spatialAgent := agents.NewSpatialAgent(spatialCalls, model)

	criticCalls := llm.NewCallLayer(&scriptedProvider{byModel: map[string]string{"gpt-4o": lowScoreCritique()}}, llm.FallbackTable{}, 0)
	criticAgent := agents.NewCriticAgent(criticCalls, model)

	refineCalls := llm.NewCallLayer(&scriptedProvider{byModel: map[string]string{"gpt-4o": roomsResponse()}}, llm.FallbackTable{}, 0)
	refinementAgent := agents.NewRefinementAgent(refineCalls, model)

	costCalls := llm.NewCallLayer(&scriptedProvider{byModel: map[string]string{"gpt-4o": `{"bom":[],"totalCostRange":{"min":1,"max":2,"currency":"USD"}}`}}, llm.FallbackTable{}, 0)
	costAgent := agents.NewCostAgent(costCalls, model)

	jobs := jobstore.New(10, time.Hour)
	hub := progress.New()
	log := logger.New(config.LoggingConfig{Level: "error", Format: "json"})
	// Both validators pass this layout, so the low critique alone only pulls
	// the final score down to 0.73; the raised threshold keeps it unconverged.
	orch := New(inputAgent, spatialAgent, criticAgent, refinementAgent, costAgent, nil, jobs, hub, log, OrchestratorOptions{MaxIterations: 2, ConvergenceThreshold: 0.9})

	jobs.Create("job-2", "user-1")
	orch.Run(context.Background(), "job-2", models.ProjectConfig{PlotWidth: 12, PlotDepth: 18, Requirements: []string{"two bedrooms"}})

	job, ok := jobs.Get("job-2")
	require.True(t, ok)
	assert.Equal(t, models.JobStatusCompleted, job.Status, "exhausting MAX_ITERATIONS still yields the best plan found, not a failure")
	require.NotNil(t, job.Result)
}

func TestRunFailsJobWhenSpatialAgentErrors(t *testing.T) {
	model := models.ModelRouteConfig{Model: "gpt-4o"}
	failingCalls := llm.NewCallLayer(&scriptedProvider{err: assert.AnError}, llm.FallbackTable{}, 0)
	inputAgent := agents.NewInputAgent(stubProfiles{profile: testProfile()}, nil, model)
	spatialAgent := agents.NewSpatialAgent(failingCalls, model)
	criticAgent := agents.NewCriticAgent(failingCalls, model)
	refinementAgent := agents.NewRefinementAgent(failingCalls, model)
	costAgent := agents.NewCostAgent(failingCalls, model)

	jobs := jobstore.New(10, time.Hour)
	hub := progress.New()
	log := logger.New(config.LoggingConfig{Level: "error", Format: "json"})
	orch := New(inputAgent, spatialAgent, criticAgent, refinementAgent, costAgent, nil, jobs, hub, log, OrchestratorOptions{MaxIterations: 2})

	jobs.Create("job-3", "user-1")
	orch.Run(context.Background(), "job-3", models.ProjectConfig{PlotWidth: 12, PlotDepth: 18, Requirements: []string{"two bedrooms"}})

	job, ok := jobs.Get("job-3")
	require.True(t, ok)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.NotEmpty(t, job.Error)
}

func TestCostAgentFailureDegradesRatherThanFailingTheJob(t *testing.T) {
	model := models.ModelRouteConfig{Model: "gpt-4o"}
	spatialCalls := llm.NewCallLayer(&scriptedProvider{byModel: map[string]string{"gpt-4o": roomsResponse()}}, llm.FallbackTable{}, 0)
	inputAgent := agents.NewInputAgent(stubProfiles{profile: testProfile()}, spatialCalls, model)
	spatialAgent := agents.NewSpatialAgent(spatialCalls, model)

	criticCalls := llm.NewCallLayer(&scriptedProvider{byModel: map[string]string{"gpt-4o": highScoreCritique()}}, llm.FallbackTable{}, 0)
	criticAgent := agents.NewCriticAgent(criticCalls, model)
	refinementAgent := agents.NewRefinementAgent(spatialCalls, model)

	failingCostCalls := llm.NewCallLayer(&scriptedProvider{err: assert.AnError}, llm.FallbackTable{}, 0)
	costAgent := agents.NewCostAgent(failingCostCalls, model)

	jobs := jobstore.New(10, time.Hour)
	hub := progress.New()
	log := logger.New(config.LoggingConfig{Level: "error", Format: "json"})
	orch := New(inputAgent, spatialAgent, criticAgent, refinementAgent, costAgent, nil, jobs, hub, log, OrchestratorOptions{MaxIterations: 1})

	jobs.Create("job-4", "user-1")
	orch.Run(context.Background(), "job-4", models.ProjectConfig{PlotWidth: 12, PlotDepth: 18, Requirements: []string{"two bedrooms"}})

	job, ok := jobs.Get("job-4")
	require.True(t, ok)
	assert.Equal(t, models.JobStatusCompleted, job.Status, "a cost-agent failure is recoverable and must not fail the job")
	require.NotNil(t, job.Result)
	assert.Empty(t, job.Result.BOM)
}

func TestCancelStopsAnInFlightRun(t *testing.T) {
	model := models.ModelRouteConfig{Model: "gpt-4o"}
	blockingProvider := &blockingProvider{release: make(chan struct{})}
	calls := llm.NewCallLayer(blockingProvider, llm.FallbackTable{}, 0)
	inputAgent := agents.NewInputAgent(stubProfiles{profile: testProfile()}, nil, model)
	spatialAgent := agents.NewSpatialAgent(calls, model)
	criticAgent := agents.NewCriticAgent(calls, model)
	refinementAgent := agents.NewRefinementAgent(calls, model)
	costAgent := agents.NewCostAgent(calls, model)

	jobs := jobstore.New(10, time.Hour)
	hub := progress.New()
	log := logger.New(config.LoggingConfig{Level: "error", Format: "json"})
	orch := New(inputAgent, spatialAgent, criticAgent, refinementAgent, costAgent, nil, jobs, hub, log, OrchestratorOptions{MaxIterations: 2})

	jobs.Create("job-5", "user-1")

	done := make(chan struct{})
	go func() {
		orch.Run(context.Background(), "job-5", models.ProjectConfig{PlotWidth: 12, PlotDepth: 18, Requirements: []string{"two bedrooms"}})
		close(done)
	}()

	require.Eventually(t, func() bool { return orch.Cancel("job-5") }, time.Second, time.Millisecond)
	close(blockingProvider.release)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run did not observe cancellation")
	}

	job, ok := jobs.Get("job-5")
	require.True(t, ok)
	assert.Equal(t, models.JobStatusFailed, job.Status)
}

// blockingProvider blocks Execute until release is closed, simulating a slow
// spatial call that gives the test time to call Cancel before it returns.
type blockingProvider struct {
	release chan struct{}
}

func (p *blockingProvider) Execute(ctx context.Context, _ *models.LLMRequest) (*models.LLMResponse, error) {
	select {
	case <-p.release:
		return &models.LLMResponse{Content: roomsResponse()}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
