// Package health serves liveness, readiness and plain-text metrics over HTTP.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/e7canasta/arlink/screen"
)

// StatusSource is the screen being reported on.
type StatusSource interface {
	Status() screen.Status
}

// Status represents the health state of the service
type Status struct {
	Status         string `json:"status"` // "healthy", "degraded", "unhealthy"
	State          string `json:"state"`
	SessionID      string `json:"session_id"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
	FramesOffered  uint64 `json:"frames_offered"`
	FramesTracked  uint64 `json:"frames_tracked"`
	FramesDropped  uint64 `json:"frames_dropped"`
	FramesRendered uint64 `json:"frames_rendered"`
	MQTTEnabled    bool   `json:"mqtt_enabled"`
	MQTTConnected  bool   `json:"mqtt_connected"`
	CloseReason    string `json:"close_reason,omitempty"`
}

// Server is the health HTTP server.
type Server struct {
	instanceID string
	source     StatusSource
	// mqttConnected is nil when MQTT is disabled.
	mqttConnected func() bool
	started       time.Time

	srv *http.Server
}

// NewServer creates a health server. mqttConnected may be nil.
func NewServer(instanceID string, source StatusSource, mqttConnected func() bool) *Server {
	s := &Server{
		instanceID:    instanceID,
		source:        source,
		mqttConnected: mqttConnected,
		started:       time.Now(),
	}
	s.srv = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the mux with all endpoints registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.LivenessHandler)
	mux.HandleFunc("/readiness", s.ReadinessHandler)
	mux.HandleFunc("/metrics", s.MetricsHandler)
	return mux
}

// Check returns the current health status.
func (s *Server) Check() Status {
	st := s.source.Status()
	h := Status{
		Status:         "healthy",
		State:          st.State.String(),
		SessionID:      st.SessionID,
		UptimeSeconds:  int64(st.Uptime.Seconds()),
		FramesOffered:  st.FramesOffered,
		FramesTracked:  st.FramesTracked,
		FramesDropped:  st.FramesDropped,
		FramesRendered: st.FramesRendered,
		MQTTEnabled:    s.mqttConnected != nil,
		CloseReason:    st.CloseReason,
	}
	if h.MQTTEnabled {
		h.MQTTConnected = s.mqttConnected()
	}

	switch {
	case st.State == screen.StateClosed || st.State == screen.StateFinalized:
		h.Status = "unhealthy"
	case st.State != screen.StateVideoRunning:
		h.Status = "degraded"
	case h.MQTTEnabled && !h.MQTTConnected:
		h.Status = "degraded"
	}
	return h
}

// LivenessHandler handles /health: 200 while the process is alive.
func (s *Server) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"status": "alive",
		"uptime": int64(time.Since(s.started).Seconds()),
	})
}

// ReadinessHandler handles /readiness: 503 once the screen is closed or
// finalized, 200 otherwise (including degraded).
func (s *Server) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	h := s.Check()
	code := http.StatusOK
	if h.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(h)
}

// MetricsHandler handles /metrics with counters in text exposition format.
func (s *Server) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)

	st := s.source.Status()
	label := fmt.Sprintf(`{instance=%q}`, s.instanceID)
	metric := func(name string, v any) {
		fmt.Fprintf(w, "arlink_%s%s %v\n", name, label, v)
	}
	metric("uptime_seconds", int64(st.Uptime.Seconds()))
	metric("frames_offered_total", st.FramesOffered)
	metric("frames_processed_total", st.FramesProcessed)
	metric("frames_tracked_total", st.FramesTracked)
	metric("frames_dropped_total", st.FramesDropped)
	metric("frames_rendered_total", st.FramesRendered)
	metric("session_frames_pushed_total", st.Session.FramesPushed)
	metric("session_push_failures_total", st.Session.PushFailures)
	metric("session_detect_failures_total", st.Session.DetectFailures)
	metric("session_frames_rejected_total", st.Session.Rejected)
	metric("render_requests_total", st.Render.Requests)
	metric("render_coalesced_total", st.Render.Coalesced)
	metric("render_skipped_total", st.Render.Skipped)
	metric("screen_state", int(st.State))
}

// Start listens on port and serves in a goroutine.
func (s *Server) Start(port string) error {
	ln, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("health: listen on %s: %w", port, err)
	}

	slog.Info("health: starting server",
		"port", port,
		"endpoints", []string{"/health", "/readiness", "/metrics"},
	)

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("health: server failed", "error", err)
		}
	}()
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
