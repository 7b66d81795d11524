package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/smilemakc/floorplan/internal/application/jobstore"
	"github.com/smilemakc/floorplan/internal/application/orchestrator"
	"github.com/smilemakc/floorplan/internal/application/progress"
	"github.com/smilemakc/floorplan/internal/infrastructure/logger"
	"github.com/smilemakc/floorplan/pkg/models"
)

// GenerateRequest is the external contract for POST /api/v1/generate.
type GenerateRequest struct {
	PlotWidth    float64  `json:"plotWidth" binding:"required,gt=0"`
	PlotDepth    float64  `json:"plotDepth" binding:"required,gt=0"`
	Requirements []string `json:"requirements" binding:"required,min=1"`
	MunicipalTag string   `json:"municipalAuthority" binding:"required"`
	CulturalTag  string   `json:"culturalSystem"`
	Strictness   string   `json:"strictness" binding:"omitempty,oneof=None Slightly Moderately Strictly"`
	Floors       int      `json:"floors" binding:"omitempty,min=1,max=4"`
	Bathrooms    int      `json:"bathrooms" binding:"omitempty,min=0,max=10"`
	ParkingTag   string   `json:"parking" binding:"omitempty,oneof=covered garage open carport"`
}

func (r GenerateRequest) toProjectConfig() models.ProjectConfig {
	return models.ProjectConfig{
		PlotWidth:    r.PlotWidth,
		PlotDepth:    r.PlotDepth,
		Requirements: r.Requirements,
		MunicipalTag: r.MunicipalTag,
		CulturalTag:  r.CulturalTag,
		Strictness:   models.Strictness(r.Strictness),
		Floors:       r.Floors,
		Bathrooms:    r.Bathrooms,
		ParkingTag:   r.ParkingTag,
	}
}

// GenerateResponse is returned immediately on job acceptance.
type GenerateResponse struct {
	JobID  string          `json:"jobId"`
	Status models.JobStatus `json:"status"`
}

// GenerationHandlers exposes the job submission, streaming, and status
// surface. The orchestration itself always runs detached from the request
// that created it: the HTTP handler only starts the run and returns a jobId.
type GenerationHandlers struct {
	jobs  *jobstore.Store
	hub   *progress.Hub
	orch  *orchestrator.Orchestrator
	log   *logger.Logger
}

func NewGenerationHandlers(jobs *jobstore.Store, hub *progress.Hub, orch *orchestrator.Orchestrator, log *logger.Logger) *GenerationHandlers {
	return &GenerationHandlers{jobs: jobs, hub: hub, orch: orch, log: log}
}

// HandleGenerate accepts a project configuration, creates a job, and starts
// the orchestration loop in the background.
func (h *GenerationHandlers) HandleGenerate(c *gin.Context) {
	var req GenerateRequest
	if err := bindJSON(c, &req); err != nil {
		return
	}

	jobID := uuid.New().String()
	userID := c.GetHeader("X-User-ID")
	h.jobs.Create(jobID, userID)

	cfg := req.toProjectConfig()
	go h.orch.Run(context.Background(), jobID, cfg)

	respondJSON(c, http.StatusAccepted, GenerateResponse{JobID: jobID, Status: models.JobStatusPending})
}

// HandleStatus returns the current job snapshot, including the final plan
// once the job has completed.
func (h *GenerationHandlers) HandleStatus(c *gin.Context) {
	jobID, ok := getParam(c, "jobId")
	if !ok {
		return
	}

	job, found := h.jobs.Get(jobID)
	if !found {
		respondAPIErrorWithRequestID(c, models.ErrJobNotFound)
		return
	}
	respondJSON(c, http.StatusOK, job)
}

// HandleStream upgrades to a Server-Sent Events stream of progress events
// for jobId. A late subscriber to an already-terminal job receives a single
// synthesized replay of the terminal event. The handler returns, and the
// connection closes, only when the client disconnects.
func (h *GenerationHandlers) HandleStream(c *gin.Context) {
	jobID, ok := getParam(c, "jobId")
	if !ok {
		return
	}
	if _, found := h.jobs.Get(jobID); !found {
		respondAPIErrorWithRequestID(c, models.ErrJobNotFound)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	sink, ok := newSSESink(c.Writer)
	if !ok {
		respondAPIError(c, ErrInternalServer)
		return
	}

	if err := sink.Send(models.ProgressEvent{Type: models.EventConnected, Data: map[string]string{"jobId": jobID}}); err != nil {
		return
	}

	unsubscribe := h.hub.Subscribe(jobID, sink)
	defer unsubscribe()

	<-c.Request.Context().Done()
}

// HandleWebSocket upgrades to a websocket stream of progress events for the
// jobId query parameter, offered as an alternative transport to SSE for
// clients that prefer a persistent bidirectional connection.
func (h *GenerationHandlers) HandleWebSocket(c *gin.Context) {
	jobID := c.Query("jobId")
	if jobID == "" {
		respondAPIErrorWithRequestID(c, NewAPIError("MISSING_PARAMETER", "jobId is required", http.StatusBadRequest))
		return
	}
	if _, found := h.jobs.Get(jobID); !found {
		respondAPIErrorWithRequestID(c, models.ErrJobNotFound)
		return
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "job", jobID, "error", err)
		return
	}
	defer conn.Close()

	sink := newWebsocketSink(conn)
	_ = sink.Send(models.ProgressEvent{Type: models.EventConnected, Data: map[string]string{"jobId": jobID}})

	closed := make(chan struct{})
	unsubscribe := h.hub.Subscribe(jobID, sink)
	go drain(conn, func() { close(closed) })

	<-closed
	unsubscribe()
}

// HealthHandlers exposes the liveness endpoint.
type HealthHandlers struct{}

func NewHealthHandlers() *HealthHandlers { return &HealthHandlers{} }

func (h *HealthHandlers) HandleHealth(c *gin.Context) {
	respondJSON(c, http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
}

// OutOfScopeHandlers stubs the endpoints named in the external contract that
// this service does not implement: image analysis, plan modification,
// estimation, standalone furniture layout, and alternative generation all
// require capabilities (vision models, diff-based plan editing) this
// orchestrator does not carry.
type OutOfScopeHandlers struct{}

func NewOutOfScopeHandlers() *OutOfScopeHandlers { return &OutOfScopeHandlers{} }

func (h *OutOfScopeHandlers) HandleNotImplemented(c *gin.Context) {
	respondAPIErrorWithRequestID(c, NewAPIError("NOT_IMPLEMENTED", "this endpoint is not implemented", http.StatusNotImplemented))
}
