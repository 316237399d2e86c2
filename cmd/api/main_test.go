package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pwhittaker/playpulse/internal/config"
	"github.com/pwhittaker/playpulse/internal/database"
	"github.com/pwhittaker/playpulse/pkg/models"
)

func newTestAPI(t *testing.T) *API {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.New(config.DatabaseConfig{
		Type:       "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "api_test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &API{
		db:       db,
		events:   database.NewEventRepository(db),
		sessions: database.NewSessionRepository(db),
	}
}

func strPtr(s string) *string { return &s }

func TestHealthCheck(t *testing.T) {
	router := setupRouter(newTestAPI(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestListSessions(t *testing.T) {
	api := newTestAPI(t)
	router := setupRouter(api)

	start := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	require.NoError(t, api.sessions.ReplaceAll(context.Background(), []models.Session{
		{
			DeviceName:       "Living Room",
			Media:            models.MediaIdentity{Title: strPtr("Some Movie")},
			MediaType:        models.MediaTypeVideo,
			SessionStart:     start,
			SessionEnd:       start.Add(90 * time.Minute),
			WatchTimeSeconds: 5400,
			NumEntries:       90,
		},
	}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions?limit=10", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Sessions []struct {
			DisplayTitle string `json:"display_title"`
		} `json:"sessions"`
		Limit int `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Sessions, 1)
	assert.Equal(t, "Some Movie", body.Sessions[0].DisplayTitle)
	assert.Equal(t, 10, body.Limit)
}

func TestDeviceStats(t *testing.T) {
	api := newTestAPI(t)
	router := setupRouter(api)

	start := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	require.NoError(t, api.sessions.ReplaceAll(context.Background(), []models.Session{
		{
			DeviceName:       "Living Room",
			MediaType:        models.MediaTypeVideo,
			SessionStart:     start,
			SessionEnd:       start.Add(time.Hour),
			WatchTimeSeconds: 3600,
			NumEntries:       60,
		},
		{
			DeviceName:       "Living Room",
			MediaType:        models.MediaTypeVideo,
			SessionStart:     start.Add(2 * time.Hour),
			SessionEnd:       start.Add(3 * time.Hour),
			WatchTimeSeconds: 1800,
			NumEntries:       30,
		},
	}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/stats/devices", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Devices []models.DeviceStats `json:"devices"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Devices, 1)
	assert.Equal(t, "Living Room", body.Devices[0].DeviceName)
	assert.Equal(t, 2, body.Devices[0].NumSessions)
	assert.InDelta(t, 1.5, body.Devices[0].TotalHours, 0.001)
}

func TestRecentEvents(t *testing.T) {
	api := newTestAPI(t)
	router := setupRouter(api)

	event := models.NormalizedEvent{
		Timestamp: time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC),
		Source:    models.SourceIdentity{DeviceName: "Living Room", DeviceModel: "AppleTV11,1"},
		State:     models.StatePlaying,
		Media:     models.MediaIdentity{Title: strPtr("Some Movie")},
		MediaType: models.MediaTypeVideo,
	}
	require.NoError(t, api.events.Append(context.Background(), &event))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/recent", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Some Movie")
}

func TestParseLimit(t *testing.T) {
	assert.Equal(t, 50, parseLimit("", 50))
	assert.Equal(t, 25, parseLimit("25", 50))
	assert.Equal(t, 50, parseLimit("0", 50))
	assert.Equal(t, 50, parseLimit("-3", 50))
	assert.Equal(t, 50, parseLimit("garbage", 50))
	assert.Equal(t, 50, parseLimit("100000", 50))
}
