package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"helix-navigator/backend/internal/adapter"
	"helix-navigator/backend/internal/graph"
	"helix-navigator/backend/internal/memory"
	"helix-navigator/backend/internal/workflow"
	"helix-navigator/backend/pkg/config"
	"helix-navigator/backend/pkg/logger"
)

func main() {
	// Initialize logger
	if err := logger.Init("development"); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting HTTP API server...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Connect to Neo4j
	ctx := context.Background()
	driver, err := graph.Connect(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
	if err != nil {
		log.Fatal("Failed to connect to Neo4j", zap.Error(err))
	}
	defer driver.Close(context.Background())

	// Initialize dependencies
	store := graph.NewStore(driver)
	llm := adapter.NewLLMAdapter(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.FastModelID, cfg.DeepModelID)
	sessions := memory.NewManager(cfg.MemoryWindow)
	engine := workflow.NewEngine(llm, store, sessions, workflow.Options{
		ConversationMemory: cfg.ConversationMemory,
		ChainOfThought:     cfg.ChainOfThought,
	})
	engine.SetStageTimeout(cfg.StageTimeout)

	// Setup Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API routes
	api := router.Group("/api")
	{
		// Ask a question; a session id is minted when the client omits one
		api.POST("/ask", func(c *gin.Context) {
			ctx := c.Request.Context()

			var req struct {
				Question  string `json:"question" binding:"required"`
				SessionID string `json:"session_id"`
			}

			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			if req.SessionID == "" {
				req.SessionID = uuid.NewString()
			}

			state := engine.Run(ctx, req.SessionID, req.Question)

			resp := gin.H{
				"session_id":    state.SessionID,
				"question_type": state.QuestionType,
				"entities":      state.Entities,
				"cypher_query":  state.CypherQuery,
				"query_ran":     state.QueryRan,
				"result_count":  len(state.QueryResults),
				"answer":        state.Answer,
			}
			if state.Err != nil {
				resp["degraded"] = true
				resp["degraded_stage"] = state.Err.Stage
			}
			if state.Reasoning != nil {
				resp["reasoning"] = state.Reasoning
			}

			c.JSON(http.StatusOK, resp)
		})

		// Inspect the graph schema; ?refresh=1 forces a re-read
		api.GET("/schema", func(c *gin.Context) {
			ctx := c.Request.Context()

			if c.Query("refresh") == "1" {
				engine.Generator().InvalidateSchema()
			}

			schema, err := engine.Generator().Schema(ctx)
			if err != nil {
				log.Error("Failed to fetch schema", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to fetch schema"})
				return
			}

			c.JSON(http.StatusOK, schema)
		})

		// Session history
		api.GET("/session/:id/history", func(c *gin.Context) {
			turns := sessions.History(c.Param("id"))
			if turns == nil {
				turns = []memory.Turn{}
			}
			c.JSON(http.StatusOK, gin.H{
				"turns":  turns,
				"window": sessions.Window(),
			})
		})

		api.DELETE("/session/:id/history", func(c *gin.Context) {
			sessions.ClearSession(c.Param("id"))
			c.JSON(http.StatusOK, gin.H{"status": "cleared"})
		})

		// Direct graph lookups on the vetted templates, bypassing the LLM
		// pipeline
		api.GET("/disease/:disease/genes", templateRoute(log, "disease", "genes", store.GenesForDisease))
		api.GET("/disease/:disease/drugs", templateRoute(log, "disease", "drugs", store.DrugsForDisease))
		api.GET("/gene/:gene/protein", templateRoute(log, "gene", "protein", store.ProteinForGene))
		api.GET("/protein/:protein/diseases", templateRoute(log, "protein", "diseases", store.DiseasesForProtein))
		api.GET("/drug/:drug/targets", templateRoute(log, "drug", "targets", store.DrugTargets))
		api.GET("/pathway/:disease", templateRoute(log, "disease", "pathways", store.PathwayForDisease))
	}

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.String("port", cfg.Port))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

// templateRoute adapts one of the typed template queries into a handler that
// reads its term from the named path parameter
func templateRoute(log *zap.Logger, param, key string, run func(ctx context.Context, term string) ([]graph.Record, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		records, err := run(c.Request.Context(), c.Param(param))
		if err != nil {
			log.Error("Failed to run template query",
				zap.String("lookup", key),
				zap.Error(err),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to run " + key + " lookup"})
			return
		}
		c.JSON(http.StatusOK, gin.H{key: records})
	}
}

// ginLogger is a custom logger middleware for Gin
func ginLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}
