// Package orchestrator wires the geometry, validator, scorer, and agent
// packages into the generate → validate → critique → refine control loop
// and emits progress events for every step.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/smilemakc/floorplan/internal/agents"
	"github.com/smilemakc/floorplan/internal/application/jobstore"
	"github.com/smilemakc/floorplan/internal/application/progress"
	"github.com/smilemakc/floorplan/internal/domain/scorer"
	"github.com/smilemakc/floorplan/internal/domain/validator"
	"github.com/smilemakc/floorplan/internal/infrastructure/logger"
	"github.com/smilemakc/floorplan/pkg/models"
)

// OrchestratorOptions tunes the iteration loop and deadlines.
type OrchestratorOptions struct {
	MaxIterations        int
	ConvergenceThreshold float64
	RunDeadline          time.Duration
	EnableFurnitureAgent bool
}

// Orchestrator drives a single design pass per job. The only per-job state
// it holds itself is the cancel function of each in-flight run; everything
// else about a run lives in the job store and the progress hub, both
// threaded in at construction.
type Orchestrator struct {
	input      *agents.InputAgent
	spatial    *agents.SpatialAgent
	critic     *agents.CriticAgent
	refinement *agents.RefinementAgent
	cost       *agents.CostAgent
	furniture  *agents.FurnitureAgent

	jobs *jobstore.Store
	hub  *progress.Hub
	log  *logger.Logger
	opts OrchestratorOptions

	cancelMu sync.Mutex
	cancels  map[string]context.CancelFunc
}

// New builds an Orchestrator. furniture may be nil, in which case the
// furnishing pass is always skipped regardless of opts.EnableFurnitureAgent.
func New(
	input *agents.InputAgent,
	spatial *agents.SpatialAgent,
	critic *agents.CriticAgent,
	refinement *agents.RefinementAgent,
	cost *agents.CostAgent,
	furniture *agents.FurnitureAgent,
	jobs *jobstore.Store,
	hub *progress.Hub,
	log *logger.Logger,
	opts OrchestratorOptions,
) *Orchestrator {
	if opts.MaxIterations < 1 {
		opts.MaxIterations = 3
	}
	if opts.ConvergenceThreshold <= 0 {
		opts.ConvergenceThreshold = scorer.DefaultThreshold
	}
	return &Orchestrator{
		input: input, spatial: spatial, critic: critic, refinement: refinement,
		cost: cost, furniture: furniture,
		jobs: jobs, hub: hub, log: log, opts: opts,
		cancels: make(map[string]context.CancelFunc),
	}
}

// Cancel cooperatively cancels jobId's run, if it is currently in flight.
// Returns false if no such run is registered (already finished, or never
// started).
func (o *Orchestrator) Cancel(jobId string) bool {
	o.cancelMu.Lock()
	cancel, ok := o.cancels[jobId]
	o.cancelMu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Run executes one full generation pass for jobId and leaves the job store
// in a terminal state. It is safe to call from a dedicated goroutine per
// job (inter-job concurrency); within one call, every step runs
// sequentially (jobs run independently of one another).
func (o *Orchestrator) Run(ctx context.Context, jobId string, cfg models.ProjectConfig) {
	runCtx := ctx
	var cancel context.CancelFunc
	if o.opts.RunDeadline > 0 {
		runCtx, cancel = context.WithTimeout(ctx, o.opts.RunDeadline)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	o.cancelMu.Lock()
	o.cancels[jobId] = cancel
	o.cancelMu.Unlock()
	defer func() {
		cancel()
		o.cancelMu.Lock()
		delete(o.cancels, jobId)
		o.cancelMu.Unlock()
	}()

	o.jobs.Patch(jobId, func(j *models.Job) {
		j.Status = models.JobStatusRunning
		j.Progress = models.JobProgress{Phase: "normalizing", MaxIterations: o.opts.MaxIterations}
	})

	run := &runState{o: o, ctx: runCtx, jobId: jobId}
	run.execute(cfg)
}

// runState carries the mutable per-run bookkeeping (iteration records) that
// must not leak between concurrent jobs.
type runState struct {
	o     *Orchestrator
	ctx   context.Context
	jobId string

	iterations []models.IterationRecord
}

func (r *runState) execute(cfg models.ProjectConfig) {
	spec, err := r.runInput(cfg)
	if err != nil {
		r.fail("input", err)
		return
	}

	plan, err := r.runSpatial(spec)
	if err != nil {
		r.fail("spatial", err)
		return
	}

	finalPlan, finalScore, converged, err := r.iterate(spec, plan)
	if err != nil {
		r.fail("iteration", err)
		return
	}

	bom, costRange := r.runCost(spec, finalPlan)
	furniture := r.runFurniture(finalPlan)

	generated := r.assemble(finalPlan, bom, costRange, furniture)
	r.complete(generated, finalScore, converged)
}

func (r *runState) checkCancelled() error {
	select {
	case <-r.ctx.Done():
		if r.ctx.Err() == context.DeadlineExceeded {
			return models.ErrRunDeadlineExceeded
		}
		return models.ErrJobCancelled
	default:
		return nil
	}
}

func (r *runState) runInput(cfg models.ProjectConfig) (models.NormalizedSpec, error) {
	r.broadcast(models.EventAgentStart, agentStartPayload{Agent: string(models.AgentInput)})
	spec, meta, err := r.o.input.Execute(r.ctx, cfg)
	if err != nil {
		return models.NormalizedSpec{}, err
	}
	r.broadcast(models.EventAgentComplete, agentCompletePayload{
		Agent: string(models.AgentInput), Model: meta.ModelUsed, DurationMs: meta.DurationMs, TokenCount: meta.TokenCount,
	})
	return spec, nil
}

func (r *runState) runSpatial(spec models.NormalizedSpec) (models.FloorPlanGraph, error) {
	if err := r.checkCancelled(); err != nil {
		return models.FloorPlanGraph{}, err
	}
	r.broadcast(models.EventAgentStart, agentStartPayload{Agent: string(models.AgentSpatial)})
	plan, meta, err := r.o.spatial.Execute(r.ctx, spec)
	if err != nil {
		return models.FloorPlanGraph{}, err
	}
	r.broadcast(models.EventAgentComplete, agentCompletePayload{
		Agent: string(models.AgentSpatial), Model: meta.ModelUsed, DurationMs: meta.DurationMs, TokenCount: meta.TokenCount,
	})
	r.broadcast(models.EventMoERouting, moeRoutingPayload{Agent: string(models.AgentSpatial), Model: meta.ModelUsed})
	return plan, nil
}

// iterate runs the validate/critique/score/refine loop until convergence or
// the iteration cap is exhausted.
func (r *runState) iterate(spec models.NormalizedSpec, plan models.FloorPlanGraph) (models.FloorPlanGraph, models.PlanScore, bool, error) {
	maxIterations := r.o.opts.MaxIterations
	var lastScore models.PlanScore

	for i := 1; i <= maxIterations; i++ {
		if err := r.checkCancelled(); err != nil {
			return models.FloorPlanGraph{}, models.PlanScore{}, false, err
		}

		r.o.jobs.Patch(r.jobId, func(j *models.Job) {
			j.Progress.Phase = "iterating"
			j.Progress.Iteration = i
		})
		r.broadcast(models.EventIterationStart, iterationStartPayload{Iteration: i, MaxIterations: maxIterations})
		r.o.log.Trace("iteration started", "job", r.jobId, "iteration", i)

		regulatory := validator.Regulatory(plan.Rooms, spec.Plot, spec.Profile, spec.Profile.DefaultSetbacks, maxInt(spec.Config.Floors, 1))
		r.broadcast(models.EventViolationUpdate, violationUpdatePayload{Validator: "regulatory", Violations: regulatory.Violations, Items: regulatory.Items, Score: regulatory.Score})
		r.o.log.Trace("validator ran", "job", r.jobId, "iteration", i, "validator", "regulatory", "violations", len(regulatory.Violations), "score", regulatory.Score)

		cultural := validator.Cultural(plan.Rooms, spec.Strictness)
		r.broadcast(models.EventViolationUpdate, violationUpdatePayload{Validator: "cultural", Violations: cultural.Violations, Items: cultural.Items, Score: cultural.Score})
		r.o.log.Trace("validator ran", "job", r.jobId, "iteration", i, "validator", "cultural", "violations", len(cultural.Violations), "score", cultural.Score)

		r.broadcast(models.EventAgentStart, agentStartPayload{Agent: string(models.AgentCritic)})
		critique, meta, err := r.o.critic.Execute(r.ctx, plan, regulatory, cultural)
		if err != nil {
			return models.FloorPlanGraph{}, models.PlanScore{}, false, err
		}
		r.broadcast(models.EventAgentComplete, agentCompletePayload{
			Agent: string(models.AgentCritic), Model: meta.ModelUsed, DurationMs: meta.DurationMs, TokenCount: meta.TokenCount,
		})

		score := scorer.Score(regulatory.Score, cultural.Score, critique.SpatialScore(), critique.OverallConfidence, r.o.opts.ConvergenceThreshold)
		r.broadcast(models.EventScoreUpdate, scoreUpdatePayload{Iteration: i, FinalScore: score.Final, Breakdown: score.Breakdown, PassesThreshold: score.PassesThreshold})
		r.o.log.Trace("score computed", "job", r.jobId, "iteration", i, "final_score", score.Final, "passes_threshold", score.PassesThreshold)

		r.iterations = append(r.iterations, models.IterationRecord{
			Iteration: i, Plan: plan, Regulatory: regulatory, Cultural: cultural, Critique: critique, Score: score,
		})
		lastScore = score

		if score.PassesThreshold {
			return plan, score, true, nil
		}
		if i == maxIterations {
			break
		}

		r.broadcast(models.EventAgentStart, agentStartPayload{Agent: string(models.AgentRefinement)})
		refined, refMeta, err := r.o.refinement.Execute(r.ctx, spec, plan, regulatory, cultural, critique)
		if err != nil {
			return models.FloorPlanGraph{}, models.PlanScore{}, false, err
		}
		r.broadcast(models.EventAgentComplete, agentCompletePayload{
			Agent: string(models.AgentRefinement), Model: refMeta.ModelUsed, DurationMs: refMeta.DurationMs, TokenCount: refMeta.TokenCount,
		})
		plan = refined

		size, hits, misses := r.o.refinement.CacheStats()
		r.o.log.Trace("adjacency-drift gate cache", "job", r.jobId, "iteration", i, "cache_size", size, "cache_hits", hits, "cache_misses", misses)
	}

	return plan, lastScore, false, nil
}

func (r *runState) runCost(spec models.NormalizedSpec, plan models.FloorPlanGraph) ([]models.BOMItem, models.CostRange) {
	r.o.jobs.Patch(r.jobId, func(j *models.Job) { j.Progress.Phase = "costing" })
	r.broadcast(models.EventAgentStart, agentStartPayload{Agent: string(models.AgentCost)})

	bom, costRange, meta, err := r.o.cost.Execute(r.ctx, spec, plan)
	if err != nil {
		// Non-blocking for convergence: degrade to an empty
		// BOM and zero cost range rather than failing the run.
		r.o.log.Warn("cost agent failed, continuing with empty BOM", "job", r.jobId, "error", err)
		return nil, models.CostRange{Currency: "USD"}
	}
	r.broadcast(models.EventAgentComplete, agentCompletePayload{
		Agent: string(models.AgentCost), Model: meta.ModelUsed, DurationMs: meta.DurationMs, TokenCount: meta.TokenCount,
	})
	return bom, costRange
}

func (r *runState) runFurniture(plan models.FloorPlanGraph) []models.FurnitureItem {
	if r.o.furniture == nil || !r.o.opts.EnableFurnitureAgent {
		return nil
	}
	r.o.jobs.Patch(r.jobId, func(j *models.Job) { j.Progress.Phase = "furnishing" })
	r.broadcast(models.EventAgentStart, agentStartPayload{Agent: string(models.AgentFurniture)})

	rooms := make([]models.Room, 0, len(plan.Rooms))
	for _, room := range plan.Rooms {
		rooms = append(rooms, room.Room)
	}

	items, meta, err := r.o.furniture.Execute(r.ctx, rooms)
	if err != nil {
		r.o.log.Warn("furniture agent failed, omitting furniture", "job", r.jobId, "error", err)
		return nil
	}
	r.broadcast(models.EventAgentComplete, agentCompletePayload{
		Agent: string(models.AgentFurniture), Model: meta.ModelUsed, DurationMs: meta.DurationMs, TokenCount: meta.TokenCount,
	})
	return items
}

func (r *runState) assemble(plan models.FloorPlanGraph, bom []models.BOMItem, costRange models.CostRange, furniture []models.FurnitureItem) models.GeneratedPlan {
	rooms := make([]models.Room, 0, len(plan.Rooms))
	for _, room := range plan.Rooms {
		rooms = append(rooms, room.Room)
	}

	var compliance models.Compliance
	if n := len(r.iterations); n > 0 {
		last := r.iterations[n-1]
		compliance = models.Compliance{Regulatory: last.Regulatory.Items, Cultural: last.Cultural.Items}
	}

	generated := models.GeneratedPlan{
		DesignLog:         plan.DesignLog,
		Rooms:             rooms,
		TotalArea:         plan.TotalArea,
		BuiltUpArea:       plan.BuiltUpArea,
		PlotCoverageRatio: plan.PlotCoverageRatio,
		Compliance:        compliance,
		BOM:               bom,
		TotalCostRange:    costRange,
		Furniture:         furniture,
	}

	if floors := partitionFloors(rooms); len(floors) > 1 {
		generated.Floors = floors
	}
	return generated
}

func (r *runState) complete(plan models.GeneratedPlan, score models.PlanScore, converged bool) {
	r.o.jobs.Patch(r.jobId, func(j *models.Job) {
		j.Status = models.JobStatusCompleted
		j.Progress.Phase = "done"
		j.Result = &plan
	})
	r.broadcast(models.EventCompleted, completedPayload{
		FinalPlan: plan, FinalScore: score.Final, Converged: converged, IterationCount: len(r.iterations),
	})
}

func (r *runState) fail(stage string, err error) {
	message := err.Error()
	reason := "agent_failure"
	switch {
	case err == models.ErrJobCancelled:
		reason = "cancelled"
	case err == models.ErrRunDeadlineExceeded:
		reason = "timeout"
	}

	r.o.jobs.Patch(r.jobId, func(j *models.Job) {
		j.Status = models.JobStatusFailed
		j.Error = fmt.Sprintf("%s: %s", stage, message)
	})
	r.broadcast(models.EventError, errorPayload{Message: message, Reason: reason})
}

func (r *runState) broadcast(eventType models.ProgressEventType, data interface{}) {
	r.o.hub.Broadcast(r.jobId, models.ProgressEvent{Type: eventType, Data: data})
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
