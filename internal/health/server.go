// Package health provides health check and monitoring for the watch service.
//
// This package implements:
//   - HTTP health check endpoint
//   - Poll status and pending-ticket tracking
//   - Uptime monitoring
package health

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Status represents the service health status.
//
// Fields:
//   - Status: "healthy", or "degraded" after a failed poll
//   - Uptime: How long the service has been running
//   - LastPollTime: When the last ticket poll completed
//   - LastPollStatus: Status of last poll ("success" or error message)
//   - PendingTickets: Tickets currently tracked as open
type Status struct {
	Status         string `json:"status"`
	Uptime         string `json:"uptime"`
	LastPollTime   string `json:"last_poll_time"`
	LastPollStatus string `json:"last_poll_status"`
	PendingTickets int    `json:"pending_tickets"`
}

// Monitor tracks service health.
//
// Thread-safety:
//   - All fields are protected by RWMutex
//   - Safe for concurrent updates from multiple goroutines
type Monitor struct {
	startTime      time.Time
	lastPollTime   time.Time
	lastPollStatus string
	pending        int
	failed         bool
	refresh        func(context.Context) error
	mu             sync.RWMutex
}

// NewMonitor creates a new health monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		startTime:      time.Now(),
		lastPollStatus: "not started",
	}
}

// RecordPoll stores the outcome of a poll. A nil err means success, in
// which case pending replaces the tracked ticket count.
func (m *Monitor) RecordPoll(pending int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastPollTime = time.Now()
	if err != nil {
		m.lastPollStatus = "error: " + err.Error()
		m.failed = true
		return
	}
	m.lastPollStatus = "success"
	m.failed = false
	m.pending = pending
}

// SetRefresh registers the on-demand poll behind POST /refresh.
func (m *Monitor) SetRefresh(fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresh = fn
}

func (m *Monitor) refreshFunc() func(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refresh
}

// GetStatus returns the current health status.
func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Status{
		Status:         "healthy",
		Uptime:         time.Since(m.startTime).Round(time.Second).String(),
		LastPollStatus: m.lastPollStatus,
		PendingTickets: m.pending,
	}
	if !m.lastPollTime.IsZero() {
		s.LastPollTime = m.lastPollTime.Format("2006-01-02 15:04:05")
	}
	if m.failed {
		s.Status = "degraded"
	}
	return s
}

// NewRouter returns the health HTTP handler.
//
// Endpoints:
//   - GET /health: JSON health status, 503 while degraded
//   - GET /healthz: liveness check
//   - POST /refresh: poll now and return the resulting status
//
// Example response:
//
//	{
//	  "status": "healthy",
//	  "uptime": "1h2m3s",
//	  "last_poll_time": "2026-01-15 10:30:00",
//	  "last_poll_status": "success",
//	  "pending_tickets": 4
//	}
func NewRouter(monitor *Monitor) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, monitor.GetStatus())
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Post("/refresh", func(w http.ResponseWriter, r *http.Request) {
		refresh := monitor.refreshFunc()
		if refresh == nil {
			http.Error(w, "refresh not available", http.StatusNotImplemented)
			return
		}
		log.Printf("🔄 Refresh requested [%s]\n", middleware.GetReqID(r.Context()))
		if err := refresh(r.Context()); err != nil {
			log.Printf("⚠️  Refresh failed: %v\n", err)
		}
		writeStatus(w, monitor.GetStatus())
	})
	return r
}

func writeStatus(w http.ResponseWriter, status Status) {
	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(status)
}

// StartServer starts the health check HTTP server in the background and
// shuts it down when ctx is cancelled.
//
// Parameters:
//   - ctx: Service lifetime
//   - monitor: Health monitor to query for status
//   - port: Port to listen on (e.g., "8080")
func StartServer(ctx context.Context, monitor *Monitor, port string) *http.Server {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           NewRouter(monitor),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("✓ Health check server started on :%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("⚠️  Health check server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	return srv
}
