package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/mstgnz/mediapay/infra/response"
)

// Pinger is a storage backend that can report its reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// ProviderLister lists the configured payment gateways
type ProviderLister interface {
	Providers() []string
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db          Pinger
	dbDriver    string
	providers   ProviderLister
	environment string
	startTime   time.Time
}

// HealthStatus represents overall system health
type HealthStatus struct {
	Status      string          `json:"status"`
	Timestamp   time.Time       `json:"timestamp"`
	Uptime      string          `json:"uptime"`
	Environment string          `json:"environment"`
	Database    *DatabaseHealth `json:"database"`
	Providers   []string        `json:"providers"`
	System      *SystemHealth   `json:"system"`
}

// DatabaseHealth represents database health status
type DatabaseHealth struct {
	Status         string `json:"status"`
	Driver         string `json:"driver"`
	Connected      bool   `json:"connected"`
	ResponseTimeMs int64  `json:"response_time_ms"`
	Error          string `json:"error,omitempty"`
}

// SystemHealth represents process resource usage
type SystemHealth struct {
	Alloc      string `json:"alloc"`
	Sys        string `json:"sys"`
	GCRuns     uint32 `json:"gc_runs"`
	GoRoutines int    `json:"goroutines"`
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db Pinger, dbDriver string, providers ProviderLister, environment string) *HealthHandler {
	return &HealthHandler{
		db:          db,
		dbDriver:    dbDriver,
		providers:   providers,
		environment: environment,
		startTime:   time.Now(),
	}
}

// CheckHealth handles GET /health. It answers 503 when the database is unreachable or no
// gateway is configured.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := &HealthStatus{
		Timestamp:   time.Now().UTC(),
		Uptime:      time.Since(h.startTime).Round(time.Second).String(),
		Environment: h.environment,
		Database:    h.checkDatabase(ctx),
		Providers:   []string{},
		System:      checkSystem(),
	}
	if h.providers != nil {
		health.Providers = h.providers.Providers()
	}

	health.Status = "healthy"
	switch {
	case health.Database.Status == "unhealthy", len(health.Providers) == 0:
		health.Status = "unhealthy"
	case health.Database.Status == "degraded":
		health.Status = "degraded"
	}

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	_ = response.WriteJSON(w, statusCode, response.Response{
		Code:    statusCode,
		Success: health.Status != "unhealthy",
		Message: fmt.Sprintf("Service is %s", health.Status),
		Data:    health,
	})
}

func (h *HealthHandler) checkDatabase(ctx context.Context) *DatabaseHealth {
	db := &DatabaseHealth{Status: "unhealthy", Driver: h.dbDriver}
	if h.db == nil {
		db.Error = "database not configured"
		return db
	}

	start := time.Now()
	err := h.db.Ping(ctx)
	elapsed := time.Since(start)
	db.ResponseTimeMs = elapsed.Milliseconds()
	if err != nil {
		db.Error = err.Error()
		return db
	}

	db.Connected = true
	db.Status = "healthy"
	if elapsed > time.Second {
		db.Status = "degraded"
	}
	return db
}

func checkSystem() *SystemHealth {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return &SystemHealth{
		Alloc:      formatBytes(mem.Alloc),
		Sys:        formatBytes(mem.Sys),
		GCRuns:     mem.NumGC,
		GoRoutines: runtime.NumGoroutine(),
	}
}

func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
