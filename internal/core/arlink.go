// Package core wires configuration, engine, camera, scene, screen and the
// MQTT planes into the arlink service.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/e7canasta/arlink/engine"
	"github.com/e7canasta/arlink/internal/config"
	"github.com/e7canasta/arlink/internal/control"
	"github.com/e7canasta/arlink/internal/health"
	"github.com/e7canasta/arlink/internal/telemetry"
	"github.com/e7canasta/arlink/render"
	"github.com/e7canasta/arlink/scenes/markerdistance"
	"github.com/e7canasta/arlink/screen"
	"github.com/e7canasta/arlink/session"
)

// statusInterval is how often a StatusEvent is published.
const statusInterval = 10 * time.Second

// Service is the arlink orchestrator
type Service struct {
	cfg *config.Config

	sess   *session.Session
	screen *screen.Screen
	host   *host

	emitter   *telemetry.MQTTEmitter
	publisher telemetry.Publisher
	async     *telemetry.Async
	control   *control.Handler
	health    *health.Server

	started time.Time
	mu      sync.RWMutex
	running bool
}

// Options customises the screen for hosts with a display.
type Options struct {
	// Surface returns the display surface; nil, or a nil result, draws on a
	// recording surface.
	Surface func() render.Surface
	Render  render.Options
}

// NewService creates a service from a validated configuration and an engine.
func NewService(cfg *config.Config, eng engine.Engine, opts Options) (*Service, error) {
	src, err := newSource(cfg.Camera)
	if err != nil {
		return nil, fmt.Errorf("failed to create camera: %w", err)
	}

	s := &Service{cfg: cfg, publisher: telemetry.Discard{}}

	if cfg.MQTT.Broker != "" {
		enc, err := telemetry.ParseEncoding(cfg.MQTT.Encoding)
		if err != nil {
			return nil, err
		}
		s.emitter = telemetry.NewMQTTEmitter(telemetry.MQTTConfig{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Prefix:   cfg.MQTT.Topics.Events,
			Encoding: enc,
			QoS:      cfg.MQTT.QoS,
		})
		s.async = telemetry.NewAsync(s.emitter, 0)
		s.publisher = s.async
	}

	scene := markerdistance.New(markerdistance.Options{
		Reference:     cfg.Markers.Reference,
		Target:        cfg.Markers.Target,
		BorderSize:    cfg.Markers.BorderSize,
		MarkerOptions: markerdistance.MarkerOptions(cfg.Markers.Options),
		Params:        cfg.SessionParams(),
		InstanceID:    cfg.InstanceID,
		Publisher:     s.publisher,
	})

	s.sess = session.New(eng, cfg.SessionOptions())
	s.host = newHost(scene, opts.Surface)
	s.screen = screen.New(s.host, s.sess, src, screen.Options{
		CacheDir: cfg.Screen.CacheDir,
		Delivery: screen.Delivery(cfg.Screen.Delivery),
		Render:   opts.Render,
	})

	var mqttConnected func() bool
	if s.emitter != nil {
		mqttConnected = func() bool { return s.emitter.Stats().Connected }
	}
	s.health = health.NewServer(cfg.InstanceID, s.screen, mqttConnected)

	slog.Info("core: service created",
		"instance_id", cfg.InstanceID,
		"session_id", s.sess.ID(),
		"camera", cfg.Camera.Driver,
		"mqtt", cfg.MQTT.Broker != "",
	)
	return s, nil
}

// Screen returns the managed screen.
func (s *Service) Screen() *screen.Screen { return s.screen }

// StartHealthServer starts the HTTP health server (non-blocking).
func (s *Service) StartHealthServer() error {
	return s.health.Start(s.cfg.Health.Port)
}

// ShutdownTimeout returns the configured graceful shutdown timeout.
func (s *Service) ShutdownTimeout() time.Duration {
	return time.Duration(s.cfg.ShutdownTimeoutS) * time.Second
}

// StartPlanes marks the service running and, when MQTT is configured,
// connects the telemetry emitter and starts the control plane.
func (s *Service) StartPlanes(ctx context.Context) error {
	s.mu.Lock()
	s.started = time.Now()
	s.running = true
	s.mu.Unlock()

	if s.emitter == nil {
		return nil
	}
	if err := s.emitter.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect MQTT: %w", err)
	}
	s.control = control.NewHandler(s.cfg, s.emitter.Client(), s.emitter, s.sess, control.Callbacks{
		OnGetStatus: s.statusData,
	})
	if err := s.control.Start(ctx); err != nil {
		return fmt.Errorf("failed to start control plane: %w", err)
	}
	return nil
}

// Run starts the planes, brings the screen up and blocks until ctx is
// cancelled or the screen closes itself. Status events are published
// periodically.
func (s *Service) Run(ctx context.Context) error {
	if err := s.StartPlanes(ctx); err != nil {
		return err
	}
	if err := s.screen.Start(); err != nil {
		return err
	}
	if err := s.screen.Resume(); err != nil {
		return err
	}

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.screen.Done():
			return fmt.Errorf("screen closed: %s", s.screen.Status().CloseReason)
		case <-ticker.C:
			s.PublishStatus()
		}
	}
}

// PublishStatus publishes one StatusEvent.
func (s *Service) PublishStatus() {
	st := s.screen.Status()
	if err := s.publisher.Publish(telemetry.StatusEvent{
		InstanceID:      s.cfg.InstanceID,
		SessionID:       st.SessionID,
		State:           st.State.String(),
		FramesOffered:   st.FramesOffered,
		FramesProcessed: st.FramesProcessed,
		FramesTracked:   st.FramesTracked,
		FramesDropped:   st.FramesDropped,
		FramesRendered:  st.FramesRendered,
		UptimeSeconds:   int64(st.Uptime.Seconds()),
		Timestamp:       time.Now(),
	}); err != nil {
		slog.Debug("core: status not published", "error", err)
	}
}

func (s *Service) statusData() map[string]any {
	st := s.screen.Status()
	return map[string]any{
		"instance_id":      s.cfg.InstanceID,
		"state":            st.State.String(),
		"frames_offered":   st.FramesOffered,
		"frames_processed": st.FramesProcessed,
		"frames_tracked":   st.FramesTracked,
		"frames_dropped":   st.FramesDropped,
		"frames_rendered":  st.FramesRendered,
		"uptime_seconds":   int64(st.Uptime.Seconds()),
	}
}

// Shutdown stops the screen and the MQTT planes, bounded by ctx.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	slog.Info("core: shutting down")

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.screen.Stop()
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("screen stop: %w", ctx.Err())
	}

	if s.control != nil {
		s.control.Stop()
	}
	if s.async != nil {
		s.async.Close()
	}
	if s.emitter != nil {
		s.emitter.Disconnect()
	}
	if err := s.health.Shutdown(ctx); err != nil {
		slog.Warn("core: health server shutdown", "error", err)
	}

	st := s.screen.Status()
	slog.Info("core: shutdown complete",
		"frames_offered", st.FramesOffered,
		"frames_tracked", st.FramesTracked,
		"frames_rendered", st.FramesRendered,
		"uptime", time.Since(s.started).Round(time.Second),
	)
	return nil
}
