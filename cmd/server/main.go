// Floor Plan Orchestrator Server
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/smilemakc/floorplan/internal/agents"
	"github.com/smilemakc/floorplan/internal/application/jobstore"
	"github.com/smilemakc/floorplan/internal/application/orchestrator"
	"github.com/smilemakc/floorplan/internal/application/progress"
	"github.com/smilemakc/floorplan/internal/config"
	"github.com/smilemakc/floorplan/internal/domain/validator"
	"github.com/smilemakc/floorplan/internal/infrastructure/api/rest"
	"github.com/smilemakc/floorplan/internal/infrastructure/logger"
	"github.com/smilemakc/floorplan/internal/llm"
	"github.com/smilemakc/floorplan/internal/router"
	"github.com/smilemakc/floorplan/pkg/models"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger := logger.New(cfg.Logging)

	appLogger.Info("Starting floor plan orchestrator",
		"version", "1.0.0",
		"port", cfg.Server.Port,
	)

	provider := llm.NewOpenAIProvider(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.OrgID)
	calls := llm.NewCallLayer(provider, llm.DefaultFallbackTable, cfg.LLM.CallDeadline)
	modelRouter := router.New(cfg.Models)

	profiles := validator.NewProfileRegistry(func(requestedTag string) {
		appLogger.Warn("unrecognized municipal authority tag, falling back to National", "tag", requestedTag)
	})

	inputAgent := agents.NewInputAgent(profiles, calls, modelRouter.Route(models.AgentInput))
	spatialAgent := agents.NewSpatialAgent(calls, modelRouter.Route(models.AgentSpatial))
	criticAgent := agents.NewCriticAgent(calls, modelRouter.Route(models.AgentCritic))
	refinementAgent := agents.NewRefinementAgent(calls, modelRouter.Route(models.AgentRefinement))
	costAgent := agents.NewCostAgent(calls, modelRouter.Route(models.AgentCost))

	var furnitureAgent *agents.FurnitureAgent
	if cfg.Orchestrator.EnableFurnitureAgent {
		furnitureAgent = agents.NewFurnitureAgent(calls, modelRouter.Route(models.AgentFurniture))
	}

	jobs := jobstore.New(cfg.JobStore.MaxSessions, cfg.JobStore.TTL)
	hub := progress.New()

	orch := orchestrator.New(
		inputAgent, spatialAgent, criticAgent, refinementAgent, costAgent, furnitureAgent,
		jobs, hub, appLogger,
		orchestrator.OrchestratorOptions{
			MaxIterations:        cfg.Orchestrator.MaxIterations,
			ConvergenceThreshold: cfg.Orchestrator.ConvergenceThreshold,
			RunDeadline:          cfg.Orchestrator.RunDeadline,
			EnableFurnitureAgent: cfg.Orchestrator.EnableFurnitureAgent,
		},
	)

	appLogger.Info("Agent pipeline initialized",
		"furniture_agent_enabled", cfg.Orchestrator.EnableFurnitureAgent,
		"max_iterations", cfg.Orchestrator.MaxIterations,
	)

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ginRouter := gin.New()

	loggingMiddleware := rest.NewLoggingMiddleware(appLogger)
	recoveryMiddleware := rest.NewRecoveryMiddleware(appLogger)
	bodySizeMiddleware := rest.NewBodySizeMiddleware(appLogger, 1<<20)

	// Middleware order: recovery catches panics first, then every request is
	// logged with its request_id, then CORS, then the per-route limits.
	ginRouter.Use(recoveryMiddleware.Recovery())
	ginRouter.Use(loggingMiddleware.RequestLogger())

	if cfg.Server.CORS {
		ginRouter.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-ID")
			c.Writer.Header().Set("Access-Control-Max-Age", "86400")

			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusNoContent)
				return
			}
			c.Next()
		})
		appLogger.Info("CORS enabled")
	}

	healthHandlers := rest.NewHealthHandlers()
	ginRouter.GET("/health", healthHandlers.HandleHealth)
	ginRouter.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	generationHandlers := rest.NewGenerationHandlers(jobs, hub, orch, appLogger)
	outOfScopeHandlers := rest.NewOutOfScopeHandlers()

	apiV1 := ginRouter.Group("/api/v1")
	{
		apiV1.POST("/generate", bodySizeMiddleware.LimitBodySize(), generationHandlers.HandleGenerate)
		apiV1.GET("/generate/:jobId/status", generationHandlers.HandleStatus)
		apiV1.GET("/generate/:jobId/stream", generationHandlers.HandleStream)

		apiV1.POST("/analyze-image", outOfScopeHandlers.HandleNotImplemented)
		apiV1.POST("/modify/analyze", outOfScopeHandlers.HandleNotImplemented)
		apiV1.POST("/modify/apply", outOfScopeHandlers.HandleNotImplemented)
		apiV1.POST("/estimate", outOfScopeHandlers.HandleNotImplemented)
		apiV1.POST("/furniture", outOfScopeHandlers.HandleNotImplemented)
		apiV1.POST("/generate-alternatives", outOfScopeHandlers.HandleNotImplemented)
	}

	ginRouter.GET("/ws", generationHandlers.HandleWebSocket)

	appLogger.Info("REST API routes registered")

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      ginRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		appLogger.Info("HTTP server starting", "host", cfg.Server.Host, "port", cfg.Server.Port)
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		appLogger.Error("Server error", "error", err)
		os.Exit(1)

	case sig := <-shutdown:
		appLogger.Info("Server shutdown initiated", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			appLogger.Error("Graceful shutdown failed", "error", err)
			if err := server.Close(); err != nil {
				appLogger.Error("Server close failed", "error", err)
			}
		}

		appLogger.Info("Server stopped")
	}
}
