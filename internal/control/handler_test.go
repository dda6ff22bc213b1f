package control

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/e7canasta/arlink/camera"
	"github.com/e7canasta/arlink/engine"
	"github.com/e7canasta/arlink/engine/enginetest"
	"github.com/e7canasta/arlink/internal/config"
	"github.com/e7canasta/arlink/session"
)

// message is a minimal mqtt.Message.
type message struct {
	topic   string
	payload []byte
}

func (m message) Duplicate() bool   { return false }
func (m message) Qos() byte         { return 1 }
func (m message) Retained() bool    { return false }
func (m message) Topic() string     { return m.topic }
func (m message) MessageID() uint16 { return 1 }
func (m message) Payload() []byte   { return m.payload }
func (m message) Ack()              {}

type published struct {
	topic   string
	qos     byte
	payload []byte
}

// responder records published responses.
type responder struct {
	mu   sync.Mutex
	sent []published
	ch   chan Response
}

func newResponder() *responder {
	return &responder{ch: make(chan Response, 32)}
}

func (r *responder) PublishRaw(topic string, qos byte, payload []byte) error {
	r.mu.Lock()
	r.sent = append(r.sent, published{topic, qos, payload})
	r.mu.Unlock()

	var resp Response
	if err := json.Unmarshal(payload, &resp); err == nil {
		r.ch <- resp
	}
	return nil
}

func (r *responder) next(t *testing.T) Response {
	t.Helper()
	select {
	case resp := <-r.ch:
		return resp
	case <-time.After(2 * time.Second):
		t.Fatal("no response published")
		return Response{}
	}
}

func testConfig() *config.Config {
	return &config.Config{
		MQTT: config.MQTTConfig{
			Topics: config.MQTTTopics{
				Control: "arlink/control/test",
				Events:  "arlink/events/test",
				Status:  "arlink/status/test",
			},
			QoS: map[string]byte{"control": 1, "status": 0},
		},
	}
}

func newHandler(t *testing.T, running bool) (*Handler, *responder, *session.Session, *enginetest.Fake) {
	t.Helper()
	eng := enginetest.New()
	sess := session.New(eng, session.Options{})
	if err := sess.Initialise(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	if running {
		p := camera.Params{Width: 4, Height: 2, Rate: 30, PixelFormat: camera.PixelFormatNV21}
		if err := sess.StartWithPushedVideo(p); err != nil {
			t.Fatal(err)
		}
	}
	t.Cleanup(sess.StopAndFinal)

	r := newResponder()
	h := NewHandler(testConfig(), nil, r, sess, Callbacks{
		OnGetStatus: func() map[string]any { return map[string]any{"state": "video_running"} },
	})
	return h, r, sess, eng
}

// TestParameterCommands validates each setter command reaches the engine and
// reports the value read back.
func TestParameterCommands(t *testing.T) {
	h, _, sess, _ := newHandler(t, false)

	tests := []struct {
		cmd    Command
		key    string
		want   any
		verify func() bool
	}{
		{
			cmd:    Command{Command: "set_threshold", Params: map[string]any{"threshold": 128.0}},
			key:    "threshold",
			want:   128,
			verify: func() bool { return sess.Threshold() == 128 },
		},
		{
			cmd:    Command{Command: "set_threshold_mode", Params: map[string]any{"mode": "otsu"}},
			key:    "mode",
			want:   "otsu",
			verify: func() bool { return sess.ThresholdMode() == engine.ThresholdModeAutoOtsu },
		},
		{
			cmd:    Command{Command: "set_labeling_mode", Params: map[string]any{"mode": "black"}},
			key:    "mode",
			want:   "black",
			verify: func() bool { return sess.LabelingMode() == engine.LabelingModeBlackRegion },
		},
		{
			cmd:    Command{Command: "set_pattern_detection_mode", Params: map[string]any{"mode": "matrix"}},
			key:    "mode",
			want:   "matrix",
			verify: func() bool { return sess.PatternDetectionMode() == engine.PatternDetectionMatrix },
		},
		{
			cmd:    Command{Command: "set_matrix_code_type", Params: map[string]any{"type": "4x4-bch-13-9-3"}},
			key:    "type",
			want:   "4x4-bch-13-9-3",
			verify: func() bool { return sess.MatrixCodeType() == engine.MatrixCode4x4BCH1393 },
		},
		{
			cmd:    Command{Command: "set_image_proc_mode", Params: map[string]any{"mode": "field"}},
			key:    "mode",
			want:   "field",
			verify: func() bool { return sess.ImageProcMode() == engine.ImageProcField },
		},
		{
			cmd:    Command{Command: "set_debug_mode", Params: map[string]any{"enabled": true}},
			key:    "debug_mode",
			want:   true,
			verify: func() bool { return sess.DebugMode() },
		},
		{
			cmd:    Command{Command: "set_border_size", Params: map[string]any{"border_size": 0.125}},
			key:    "border_size",
			want:   float32(0.125),
			verify: func() bool { return sess.BorderSize() == 0.125 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.cmd.Command, func(t *testing.T) {
			resp := h.handleCommand(tt.cmd)
			if resp.Status != "success" || resp.CommandAck != tt.cmd.Command {
				t.Fatalf("response = %+v", resp)
			}
			if resp.Data[tt.key] != tt.want {
				t.Errorf("data[%q] = %v (%T), want %v", tt.key, resp.Data[tt.key], resp.Data[tt.key], tt.want)
			}
			if !tt.verify() {
				t.Error("engine value not updated")
			}
		})
	}
}

// TestInvalidParameters validates malformed commands are rejected without
// touching the engine.
func TestInvalidParameters(t *testing.T) {
	h, _, _, eng := newHandler(t, false)
	before := eng.Count("SetVideoThreshold") + eng.Count("SetBorderSize") + eng.Count("SetVideoThresholdMode")

	tests := []Command{
		{Command: "set_threshold"},
		{Command: "set_threshold", Params: map[string]any{"threshold": "high"}},
		{Command: "set_threshold", Params: map[string]any{"threshold": 300.0}},
		{Command: "set_threshold", Params: map[string]any{"threshold": 12.5}},
		{Command: "set_threshold_mode", Params: map[string]any{"mode": "magic"}},
		{Command: "set_border_size", Params: map[string]any{"border_size": 0.5}},
		{Command: "set_debug_mode", Params: map[string]any{"enabled": "yes"}},
		{Command: "add_marker", Params: map[string]any{"config": ""}},
		{Command: "remove_marker", Params: map[string]any{"uid": 42.0}},
		{Command: "reboot"},
	}
	for _, cmd := range tests {
		resp := h.handleCommand(cmd)
		if resp.Status != "error" || resp.Error == "" {
			t.Errorf("%s %v: response = %+v, want error", cmd.Command, cmd.Params, resp)
		}
	}

	after := eng.Count("SetVideoThreshold") + eng.Count("SetBorderSize") + eng.Count("SetVideoThresholdMode")
	if after != before {
		t.Errorf("engine setters called %d times on invalid input", after-before)
	}
}

// TestMarkerCommands validates add_marker and remove_marker round trip.
func TestMarkerCommands(t *testing.T) {
	h, _, _, eng := newHandler(t, false)

	resp := h.handleCommand(Command{Command: "add_marker", Params: map[string]any{"config": "single_barcode;0;80"}})
	if resp.Status != "success" {
		t.Fatalf("add_marker = %+v", resp)
	}
	uid := resp.Data["uid"].(int)
	if eng.Markers()[uid] != "single_barcode;0;80" {
		t.Errorf("markers = %v", eng.Markers())
	}

	resp = h.handleCommand(Command{Command: "remove_marker", Params: map[string]any{"uid": float64(uid)}})
	if resp.Status != "success" || len(eng.Markers()) != 0 {
		t.Errorf("remove_marker = %+v, markers %v", resp, eng.Markers())
	}
}

// TestCommandsBeforeInitialise validates setters fail once the session is
// finalised.
func TestCommandsBeforeInitialise(t *testing.T) {
	h, _, sess, _ := newHandler(t, false)
	sess.StopAndFinal()

	resp := h.handleCommand(Command{Command: "set_threshold", Params: map[string]any{"threshold": 10.0}})
	if resp.Status != "error" || resp.Error != errNotInitialised.Error() {
		t.Errorf("response = %+v", resp)
	}

	resp = h.handleCommand(Command{Command: "get_status"})
	if resp.Status != "success" || resp.Data["initialised"] != false {
		t.Errorf("get_status = %+v", resp)
	}
	if _, ok := resp.Data["params"]; ok {
		t.Error("params reported without an initialised session")
	}
}

// TestGetStatus validates session fields, callback data and parameters.
func TestGetStatus(t *testing.T) {
	h, _, sess, _ := newHandler(t, true)

	resp := h.handleCommand(Command{Command: "get_status"})
	if resp.Status != "success" {
		t.Fatalf("get_status = %+v", resp)
	}
	if resp.Data["session_id"] != sess.ID() || resp.Data["running"] != true || resp.Data["state"] != "video_running" {
		t.Errorf("data = %v", resp.Data)
	}
	params, ok := resp.Data["params"].(map[string]any)
	if !ok || params["threshold"] != 100 {
		t.Errorf("params = %v", resp.Data["params"])
	}
}

// TestSnapshotDebugImage validates the base64 BMP payload.
func TestSnapshotDebugImage(t *testing.T) {
	h, _, _, eng := newHandler(t, true)
	eng.SetDebugPattern(func(i int) byte { return byte(i) })

	resp := h.handleCommand(Command{Command: "snapshot_debug_image"})
	if resp.Status != "success" {
		t.Fatalf("snapshot = %+v", resp)
	}
	raw, err := base64.StdEncoding.DecodeString(resp.Data["image"].(string))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(raw), "BM") || len(raw) != resp.Data["size"].(int) {
		t.Errorf("image is not a BMP (%d bytes)", len(raw))
	}

	h2, _, _, _ := newHandler(t, false)
	if resp := h2.handleCommand(Command{Command: "snapshot_debug_image"}); resp.Status != "error" {
		t.Errorf("snapshot without video = %+v", resp)
	}
}

// TestMessageFlow validates MQTT payloads go through the queue and responses
// reach the status topic.
func TestMessageFlow(t *testing.T) {
	h, r, sess, _ := newHandler(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.run(ctx)
	defer h.Stop()

	h.messageHandler(nil, message{topic: "arlink/control/test", payload: []byte(`{"command":"set_threshold","params":{"threshold":42}}`)})
	resp := r.next(t)
	if resp.CommandAck != "set_threshold" || resp.Status != "success" || resp.Timestamp == "" {
		t.Errorf("response = %+v", resp)
	}
	if sess.Threshold() != 42 {
		t.Errorf("Threshold() = %d, want 42", sess.Threshold())
	}

	h.messageHandler(nil, message{payload: []byte(`{not json`)})
	resp = r.next(t)
	if resp.CommandAck != "unknown" || resp.Error != "invalid JSON" {
		t.Errorf("response = %+v", resp)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.sent {
		if p.topic != "arlink/status/test" || p.qos != 0 {
			t.Errorf("published to %s qos %d", p.topic, p.qos)
		}
	}
}

// TestQueueFullDrops validates the bounded queue never blocks the MQTT
// callback.
func TestQueueFullDrops(t *testing.T) {
	h, _, _, _ := newHandler(t, false)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < commandQueueSize*3; i++ {
			h.messageHandler(nil, message{payload: []byte(`{"command":"get_status"}`)})
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("messageHandler blocked on a full queue")
	}
	if len(h.commands) != commandQueueSize {
		t.Errorf("queued %d commands, want %d", len(h.commands), commandQueueSize)
	}
}

// TestMessageAfterStop validates a late delivery from the MQTT client after
// Stop is ignored instead of crashing the callback goroutine.
func TestMessageAfterStop(t *testing.T) {
	h, r, _, _ := newHandler(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.run(ctx)
	h.Stop()

	defer func() {
		if p := recover(); p != nil {
			t.Fatalf("messageHandler after Stop panicked: %v", p)
		}
	}()
	for i := 0; i < commandQueueSize+2; i++ {
		h.messageHandler(nil, message{topic: "arlink/control/test", payload: []byte(`{"command":"get_status"}`)})
	}
	h.Stop()

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) != 0 {
		t.Errorf("published %d responses after Stop, want 0", len(r.sent))
	}
}
