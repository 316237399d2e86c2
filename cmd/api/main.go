package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pwhittaker/playpulse/internal/config"
	"github.com/pwhittaker/playpulse/internal/database"
)

// API serves the read-only query surface over the event log and the derived
// session table. All writes happen in the tracker daemon.
type API struct {
	db       *database.DB
	events   *database.EventRepository
	sessions *database.SessionRepository
}

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	api := &API{
		db:       db,
		events:   database.NewEventRepository(db),
		sessions: database.NewSessionRepository(db),
	}

	router := setupRouter(api)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting API server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func setupRouter(api *API) *gin.Engine {
	router := gin.Default()

	// Health check
	router.GET("/health", api.healthCheck)

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/sessions", api.listSessions)
		v1.GET("/sessions/stats/devices", api.deviceStats)
		v1.GET("/sessions/stats/media-types", api.mediaTypeStats)
		v1.GET("/events/recent", api.recentEvents)
	}

	return router
}

// Health check endpoint
func (api *API) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := api.db.Health(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}

// List sessions endpoint, newest first
func (api *API) listSessions(c *gin.Context) {
	limit := parseLimit(c.Query("limit"), 50)

	sessions, err := api.sessions.ListRecent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	type sessionView struct {
		DisplayTitle string `json:"display_title"`
		Session      any    `json:"session"`
	}
	views := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, sessionView{DisplayTitle: s.DisplayTitle(), Session: s})
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": views,
		"limit":    limit,
	})
}

// Per-device watch time stats endpoint
func (api *API) deviceStats(c *gin.Context) {
	stats, err := api.sessions.DeviceStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"devices": stats})
}

// Per-media-type watch time stats endpoint
func (api *API) mediaTypeStats(c *gin.Context) {
	stats, err := api.sessions.MediaTypeStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"media_types": stats})
}

// Recent raw events endpoint
func (api *API) recentEvents(c *gin.Context) {
	limit := parseLimit(c.Query("limit"), 100)

	events, err := api.events.RecentEvents(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"limit":  limit,
	})
}

func parseLimit(raw string, def int) int {
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > 1000 {
		return def
	}
	return limit
}
