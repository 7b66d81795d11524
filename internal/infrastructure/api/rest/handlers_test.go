package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/floorplan/internal/agents"
	"github.com/smilemakc/floorplan/internal/application/jobstore"
	"github.com/smilemakc/floorplan/internal/application/orchestrator"
	"github.com/smilemakc/floorplan/internal/application/progress"
	"github.com/smilemakc/floorplan/internal/config"
	"github.com/smilemakc/floorplan/internal/infrastructure/logger"
	"github.com/smilemakc/floorplan/internal/llm"
	"github.com/smilemakc/floorplan/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type scriptedProvider struct {
	content string
}

func (p *scriptedProvider) Execute(_ context.Context, _ *models.LLMRequest) (*models.LLMResponse, error) {
	return &models.LLMResponse{Content: p.content}, nil
}

type stubProfiles struct{}

func (stubProfiles) Lookup(string) models.MunicipalProfile {
	return models.MunicipalProfile{
		AuthorityTag:        "National",
		MaxFAR:              2.0,
		MaxGroundCoverage:   0.7,
		MinCorridorWidth:    0.9,
		MinVentilationRatio: 0.1,
		DefaultSetbacks:     models.SetbackRequirements{Front: 1, Left: 1, Right: 1, Rear: 1},
	}
}

func callLayerFor(content string) *llm.CallLayer {
	return llm.NewCallLayer(&scriptedProvider{content: content}, llm.FallbackTable{}, 0)
}

const roomsFixture = `{"rooms":[{"id":"r1","name":"Master Bedroom","type":"room","rect":{"x":0,"y":0,"width":4,"height":4},"classification":"master_bedroom"},
{"id":"r2","name":"Kitchen","type":"room","rect":{"x":4,"y":0,"width":3,"height":3},"classification":"kitchen"}],"designLog":["layout drafted"]}`

const highScoreCritique = `{"spatialEfficiency":0.9,"circulationQuality":0.9,"naturalLighting":0.9,"privacyGradient":0.9,"aestheticBalance":0.9,"overallConfidence":0.9}`

const costFixture = `{"bom":[],"totalCostRange":{"min":1000,"max":2000,"currency":"USD"}}`

// newTestServer wires a full generation pipeline against scripted LLM
// responses so the handler tests exercise the real request/response path
// end to end rather than stubbing the handlers themselves.
func newTestServer(t *testing.T) (*gin.Engine, *jobstore.Store) {
	t.Helper()

	inputAgent := agents.NewInputAgent(stubProfiles{}, nil, models.ModelRouteConfig{})
	spatialAgent := agents.NewSpatialAgent(callLayerFor(roomsFixture), models.ModelRouteConfig{Model: "gpt-4o"})
	criticAgent := agents.NewCriticAgent(callLayerFor(highScoreCritique), models.ModelRouteConfig{Model: "gpt-4o"})
	refinementAgent := agents.NewRefinementAgent(callLayerFor(roomsFixture), models.ModelRouteConfig{Model: "gpt-4o"})
	costAgent := agents.NewCostAgent(callLayerFor(costFixture), models.ModelRouteConfig{Model: "gpt-4o-mini"})

	jobs := jobstore.New(100, time.Hour)
	hub := progress.New()
	log := logger.New(config.LoggingConfig{Level: "error", Format: "text"})

	orch := orchestrator.New(
		inputAgent, spatialAgent, criticAgent, refinementAgent, costAgent, nil,
		jobs, hub, log,
		orchestrator.OrchestratorOptions{MaxIterations: 3, ConvergenceThreshold: 0.7},
	)

	generationHandlers := NewGenerationHandlers(jobs, hub, orch, log)
	healthHandlers := NewHealthHandlers()
	outOfScopeHandlers := NewOutOfScopeHandlers()

	router := gin.New()
	router.GET("/health", healthHandlers.HandleHealth)
	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/generate", generationHandlers.HandleGenerate)
		apiV1.GET("/generate/:jobId/status", generationHandlers.HandleStatus)
		apiV1.GET("/generate/:jobId/stream", generationHandlers.HandleStream)
		apiV1.POST("/estimate", outOfScopeHandlers.HandleNotImplemented)
	}

	return router, jobs
}

func performRequest(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var bodyBytes []byte
	if body != nil {
		bodyBytes, _ = json.Marshal(body)
	}
	req, _ := http.NewRequest(method, path, bytes.NewBuffer(bodyBytes))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func validGenerateRequest() GenerateRequest {
	return GenerateRequest{
		PlotWidth:    12,
		PlotDepth:    18,
		Requirements: []string{"two bedrooms", "a kitchen"},
		MunicipalTag: "National",
		Strictness:   "None",
	}
}

func TestHandleHealthReportsOKWithTimestamp(t *testing.T) {
	router, _ := newTestServer(t)
	w := performRequest(router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Status    string    `json:"status"`
			Timestamp time.Time `json:"timestamp"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Data.Status)
	assert.False(t, resp.Data.Timestamp.IsZero())
}

func TestHandleGenerateRejectsMissingRequirements(t *testing.T) {
	router, _ := newTestServer(t)
	req := validGenerateRequest()
	req.Requirements = nil

	w := performRequest(router, http.MethodPost, "/api/v1/generate", req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleGenerateAcceptsAndCreatesAJob(t *testing.T) {
	router, jobs := newTestServer(t)

	w := performRequest(router, http.MethodPost, "/api/v1/generate", validGenerateRequest())
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp struct {
		Data GenerateResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Data.JobID)

	_, found := jobs.Get(resp.Data.JobID)
	assert.True(t, found, "the job must already be visible to the store when the request returns")
}

func TestHandleStatusReturnsNotFoundForUnknownJob(t *testing.T) {
	router, _ := newTestServer(t)
	w := performRequest(router, http.MethodGet, "/api/v1/generate/does-not-exist/status", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleStatusEventuallyReportsCompletion(t *testing.T) {
	router, jobs := newTestServer(t)

	w := performRequest(router, http.MethodPost, "/api/v1/generate", validGenerateRequest())
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp struct {
		Data GenerateResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	require.Eventually(t, func() bool {
		job, found := jobs.Get(resp.Data.JobID)
		return found && job.Status == models.JobStatusCompleted
	}, time.Second, 5*time.Millisecond)

	statusW := performRequest(router, http.MethodGet, "/api/v1/generate/"+resp.Data.JobID+"/status", nil)
	assert.Equal(t, http.StatusOK, statusW.Code)
	assert.Contains(t, statusW.Body.String(), `"status":"completed"`)
}

func TestOutOfScopeEndpointRespondsNotImplemented(t *testing.T) {
	router, _ := newTestServer(t)
	w := performRequest(router, http.MethodPost, "/api/v1/estimate", map[string]string{})
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestHandleStreamWritesOneJSONEventPerDataLine(t *testing.T) {
	router, _ := newTestServer(t)

	genW := performRequest(router, http.MethodPost, "/api/v1/generate", validGenerateRequest())
	require.Equal(t, http.StatusAccepted, genW.Code)

	var genResp struct {
		Data GenerateResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(genW.Body.Bytes(), &genResp))

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "/api/v1/generate/"+genResp.Data.JobID+"/stream", nil)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		router.ServeHTTP(w, req)
		close(done)
	}()

	// The connected event is sent synchronously before the handler blocks on
	// the request context, so a short wait is enough for it to land.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream handler did not return after context cancellation")
	}

	body := w.Body.String()
	line, _, found := strings.Cut(body, "\n\n")
	require.True(t, found, "expected at least one data line, got %q", body)
	require.True(t, strings.HasPrefix(line, "data: "), "expected a bare data: line, got %q", line)

	var event struct {
		Type string `json:"type"`
		Data struct {
			JobID string `json:"jobId"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event))
	assert.Equal(t, "connected", event.Type)
	assert.Equal(t, genResp.Data.JobID, event.Data.JobID)
	assert.NotContains(t, body, "event: ", "the wire format is data-only, not a named SSE event")
}
