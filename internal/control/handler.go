package control

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/e7canasta/arlink/engine"
	"github.com/e7canasta/arlink/internal/config"
	"github.com/e7canasta/arlink/session"
)

const commandQueueSize = 10

var errNotInitialised = errors.New("session not initialised")

// Command represents a control plane command
type Command struct {
	Command string         `json:"command"`
	Params  map[string]any `json:"params,omitempty"`
}

// Response represents a command response
type Response struct {
	CommandAck string         `json:"command_ack"`
	Status     string         `json:"status"`
	Data       map[string]any `json:"data,omitempty"`
	Error      string         `json:"error,omitempty"`
	Timestamp  string         `json:"timestamp"`
}

// Responder publishes an encoded response payload.
type Responder interface {
	PublishRaw(topic string, qos byte, payload []byte) error
}

// Callbacks contains hooks for commands the session cannot answer alone
type Callbacks struct {
	OnGetStatus func() map[string]any
}

// Handler handles control plane commands
type Handler struct {
	cfg       *config.Config
	client    mqtt.Client
	responder Responder
	sess      *session.Session
	callbacks Callbacks
	commands  chan Command

	// done ends processing; commands is never closed since the MQTT client
	// may still deliver after Stop.
	done     chan struct{}
	stopped  atomic.Bool
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewHandler creates a new control plane handler
func NewHandler(cfg *config.Config, client mqtt.Client, responder Responder, sess *session.Session, callbacks Callbacks) *Handler {
	return &Handler{
		cfg:       cfg,
		client:    client,
		responder: responder,
		sess:      sess,
		callbacks: callbacks,
		commands:  make(chan Command, commandQueueSize),
		done:      make(chan struct{}),
	}
}

// Start subscribes to the control topic and starts processing commands
func (h *Handler) Start(ctx context.Context) error {
	topic := h.cfg.MQTT.Topics.Control
	qos := h.cfg.MQTT.QoS["control"]

	slog.Info("control: subscribing to control plane", "topic", topic, "qos", qos)

	token := h.client.Subscribe(topic, qos, h.messageHandler)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("control: subscription timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("control: subscription failed: %w", err)
	}

	h.run(ctx)
	slog.Info("control: handler started")
	return nil
}

func (h *Handler) run(ctx context.Context) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.processCommands(ctx)
	}()
}

// Stop unsubscribes and waits for the command in flight
func (h *Handler) Stop() {
	h.stopOnce.Do(func() {
		h.stopped.Store(true)
		if h.client != nil && h.client.IsConnected() {
			token := h.client.Unsubscribe(h.cfg.MQTT.Topics.Control)
			token.WaitTimeout(2 * time.Second)
		}
		close(h.done)
		h.wg.Wait()
		slog.Info("control: handler stopped")
	})
}

// messageHandler is called when a control message is received
func (h *Handler) messageHandler(_ mqtt.Client, msg mqtt.Message) {
	if h.stopped.Load() {
		slog.Debug("control: handler stopped, ignoring message", "topic", msg.Topic())
		return
	}

	var cmd Command
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		slog.Error("control: failed to parse command", "error", err)
		h.sendResponse(Response{
			CommandAck: "unknown",
			Status:     "error",
			Error:      "invalid JSON",
		})
		return
	}

	slog.Info("control: command received", "command", cmd.Command)

	select {
	case <-h.done:
	case h.commands <- cmd:
	default:
		slog.Warn("control: command queue full, dropping command", "command", cmd.Command)
	}
}

// processCommands processes commands from the queue
func (h *Handler) processCommands(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case cmd := <-h.commands:
			h.sendResponse(h.handleCommand(cmd))
		}
	}
}

// handleCommand executes a command
func (h *Handler) handleCommand(cmd Command) Response {
	resp := Response{CommandAck: cmd.Command}

	var (
		data map[string]any
		err  error
	)
	switch cmd.Command {
	case "get_status":
		data, err = h.getStatus()
	case "set_threshold":
		data, err = h.setThreshold(cmd.Params)
	case "set_threshold_mode":
		data, err = setMode(h, cmd.Params, "mode", engine.ParseThresholdMode, h.sess.SetThresholdMode, h.sess.ThresholdMode)
	case "set_labeling_mode":
		data, err = setMode(h, cmd.Params, "mode", engine.ParseLabelingMode, h.sess.SetLabelingMode, h.sess.LabelingMode)
	case "set_pattern_detection_mode":
		data, err = setMode(h, cmd.Params, "mode", engine.ParsePatternDetectionMode, h.sess.SetPatternDetectionMode, h.sess.PatternDetectionMode)
	case "set_matrix_code_type":
		data, err = setMode(h, cmd.Params, "type", engine.ParseMatrixCodeType, h.sess.SetMatrixCodeType, h.sess.MatrixCodeType)
	case "set_image_proc_mode":
		data, err = setMode(h, cmd.Params, "mode", engine.ParseImageProcMode, h.sess.SetImageProcMode, h.sess.ImageProcMode)
	case "set_debug_mode":
		data, err = h.setDebugMode(cmd.Params)
	case "set_border_size":
		data, err = h.setBorderSize(cmd.Params)
	case "add_marker":
		data, err = h.addMarker(cmd.Params)
	case "remove_marker":
		data, err = h.removeMarker(cmd.Params)
	case "snapshot_debug_image":
		data, err = h.snapshotDebugImage()
	default:
		err = fmt.Errorf("unknown command: %s", cmd.Command)
	}

	if err != nil {
		resp.Status = "error"
		resp.Error = err.Error()
		slog.Warn("control: command failed", "command", cmd.Command, "error", err)
		return resp
	}
	resp.Status = "success"
	resp.Data = data
	return resp
}

func (h *Handler) getStatus() (map[string]any, error) {
	data := map[string]any{
		"session_id":  h.sess.ID(),
		"initialised": h.sess.Initialised(),
		"running":     h.sess.Running(),
	}
	if h.callbacks.OnGetStatus != nil {
		for k, v := range h.callbacks.OnGetStatus() {
			data[k] = v
		}
	}
	if p, ok := h.sess.CurrentParams(); ok {
		data["params"] = paramsData(p)
	}
	return data, nil
}

func (h *Handler) setThreshold(params map[string]any) (map[string]any, error) {
	if !h.sess.Initialised() {
		return nil, errNotInitialised
	}
	v, ok := params["threshold"].(float64)
	if !ok {
		return nil, fmt.Errorf("missing or invalid 'threshold' parameter (expected number)")
	}
	if v < 0 || v > 255 || v != float64(int(v)) {
		return nil, fmt.Errorf("threshold must be an integer in [0, 255], got %v", v)
	}
	h.sess.SetThreshold(int(v))
	return map[string]any{"threshold": h.sess.Threshold()}, nil
}

func (h *Handler) setDebugMode(params map[string]any) (map[string]any, error) {
	if !h.sess.Initialised() {
		return nil, errNotInitialised
	}
	v, ok := params["enabled"].(bool)
	if !ok {
		return nil, fmt.Errorf("missing or invalid 'enabled' parameter (expected bool)")
	}
	h.sess.SetDebugMode(v)
	return map[string]any{"debug_mode": h.sess.DebugMode()}, nil
}

func (h *Handler) setBorderSize(params map[string]any) (map[string]any, error) {
	if !h.sess.Initialised() {
		return nil, errNotInitialised
	}
	v, ok := params["border_size"].(float64)
	if !ok {
		return nil, fmt.Errorf("missing or invalid 'border_size' parameter (expected number)")
	}
	if v <= 0 || v >= 0.5 {
		return nil, fmt.Errorf("border_size must be in (0, 0.5), got %v", v)
	}
	h.sess.SetBorderSize(float32(v))
	return map[string]any{"border_size": h.sess.BorderSize()}, nil
}

func (h *Handler) addMarker(params map[string]any) (map[string]any, error) {
	if !h.sess.Initialised() {
		return nil, errNotInitialised
	}
	cfg, ok := params["config"].(string)
	if !ok || cfg == "" {
		return nil, fmt.Errorf("missing or invalid 'config' parameter (expected string)")
	}
	uid := h.sess.AddMarker(cfg)
	if uid < 0 {
		return nil, fmt.Errorf("unable to add marker %q", cfg)
	}
	return map[string]any{"uid": uid}, nil
}

func (h *Handler) removeMarker(params map[string]any) (map[string]any, error) {
	if !h.sess.Initialised() {
		return nil, errNotInitialised
	}
	v, ok := params["uid"].(float64)
	if !ok {
		return nil, fmt.Errorf("missing or invalid 'uid' parameter (expected number)")
	}
	uid := int(v)
	if !h.sess.RemoveMarker(uid) {
		return nil, fmt.Errorf("no marker with uid %d", uid)
	}
	return map[string]any{"uid": uid, "removed": true}, nil
}

func (h *Handler) snapshotDebugImage() (map[string]any, error) {
	var buf bytes.Buffer
	if err := h.sess.WriteDebugBMP(&buf); err != nil {
		return nil, err
	}
	return map[string]any{
		"format": "bmp",
		"size":   buf.Len(),
		"image":  base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// setMode parses a named mode parameter, applies it and reads it back.
func setMode[M fmt.Stringer](h *Handler, params map[string]any, key string, parse func(string) (M, error), set func(M), get func() M) (map[string]any, error) {
	if !h.sess.Initialised() {
		return nil, errNotInitialised
	}
	s, ok := params[key].(string)
	if !ok {
		return nil, fmt.Errorf("missing or invalid '%s' parameter (expected string)", key)
	}
	m, err := parse(s)
	if err != nil {
		return nil, err
	}
	set(m)
	return map[string]any{key: get().String()}, nil
}

func paramsData(p session.Params) map[string]any {
	data := make(map[string]any)
	if p.DebugMode != nil {
		data["debug_mode"] = *p.DebugMode
	}
	if p.Threshold != nil {
		data["threshold"] = *p.Threshold
	}
	if p.ThresholdMode != nil {
		data["threshold_mode"] = p.ThresholdMode.String()
	}
	if p.LabelingMode != nil {
		data["labeling_mode"] = p.LabelingMode.String()
	}
	if p.PatternDetectionMode != nil {
		data["pattern_detection_mode"] = p.PatternDetectionMode.String()
	}
	if p.MatrixCodeType != nil {
		data["matrix_code_type"] = p.MatrixCodeType.String()
	}
	if p.BorderSize != nil {
		data["border_size"] = *p.BorderSize
	}
	if p.ImageProcMode != nil {
		data["image_proc_mode"] = p.ImageProcMode.String()
	}
	return data
}

// sendResponse publishes a response to the status topic
func (h *Handler) sendResponse(resp Response) {
	resp.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)

	payload, err := json.Marshal(resp)
	if err != nil {
		slog.Error("control: failed to marshal response", "error", err)
		return
	}

	topic := h.cfg.MQTT.Topics.Status
	qos := h.cfg.MQTT.QoS["status"]

	if err := h.responder.PublishRaw(topic, qos, payload); err != nil {
		slog.Error("control: failed to publish response", "error", err)
		return
	}

	slog.Debug("control: response sent", "command_ack", resp.CommandAck, "status", resp.Status)
}
