package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ErrNotConnected is returned by Publish while the broker is unreachable.
var ErrNotConnected = errors.New("telemetry: mqtt not connected")

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

// MQTTConfig configures an MQTTEmitter.
type MQTTConfig struct {
	Broker   string
	ClientID string
	// Prefix is the topic prefix; events go to <Prefix>/<type>.
	Prefix   string
	Encoding Encoding
	// QoS per event type; missing types use 0.
	QoS map[string]byte
}

// MQTTEmitter publishes telemetry events to an MQTT broker
type MQTTEmitter struct {
	cfg    MQTTConfig
	client mqtt.Client

	mu        sync.RWMutex
	published map[string]uint64 // count per topic
	errors    uint64
	connected bool
}

// NewMQTTEmitter creates a new MQTT emitter
func NewMQTTEmitter(cfg MQTTConfig) *MQTTEmitter {
	if cfg.Encoding == "" {
		cfg.Encoding = EncodingJSON
	}
	return &MQTTEmitter{
		cfg:       cfg,
		published: make(map[string]uint64),
	}
}

// Connect establishes connection to the MQTT broker
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", e.cfg.Broker))
	opts.SetClientID(e.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.setConnected(true)
		slog.Info("telemetry: mqtt connection established",
			"broker", e.cfg.Broker,
			"client_id", e.cfg.ClientID,
		)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.setConnected(false)
		slog.Warn("telemetry: mqtt connection lost, will auto-reconnect",
			"error", err,
			"broker", e.cfg.Broker,
		)
	}

	e.client = mqtt.NewClient(opts)

	slog.Info("telemetry: connecting to mqtt broker", "broker", e.cfg.Broker)

	token := e.client.Connect()
	select {
	case <-token.Done():
	case <-time.After(connectTimeout):
		return fmt.Errorf("telemetry: mqtt connection timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("telemetry: mqtt connection failed: %w", err)
	}

	e.setConnected(true)
	return nil
}

// Client returns the underlying client, shared with the control plane.
func (e *MQTTEmitter) Client() mqtt.Client { return e.client }

// Topic returns the topic an event type is published to.
func (e *MQTTEmitter) Topic(eventType string) string {
	return fmt.Sprintf("%s/%s", e.cfg.Prefix, eventType)
}

// Publish encodes ev and publishes it to <prefix>/<type>
func (e *MQTTEmitter) Publish(ev Event) error {
	if !e.isConnected() {
		e.countError()
		return ErrNotConnected
	}

	topic := e.Topic(ev.Type())
	payload, err := Encode(e.cfg.Encoding, ev)
	if err != nil {
		e.countError()
		return fmt.Errorf("telemetry: failed to encode %s event: %w", ev.Type(), err)
	}

	return e.PublishRaw(topic, e.qos(ev.Type()), payload)
}

// PublishRaw publishes an already encoded payload
func (e *MQTTEmitter) PublishRaw(topic string, qos byte, payload []byte) error {
	if !e.isConnected() {
		e.countError()
		return ErrNotConnected
	}

	token := e.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		e.countError()
		return fmt.Errorf("telemetry: publish timeout")
	}
	if err := token.Error(); err != nil {
		e.countError()
		return fmt.Errorf("telemetry: publish failed: %w", err)
	}

	e.mu.Lock()
	e.published[topic]++
	e.mu.Unlock()

	slog.Debug("telemetry: published",
		"topic", topic,
		"qos", qos,
		"size", len(payload),
	)
	return nil
}

// Disconnect closes the MQTT connection
func (e *MQTTEmitter) Disconnect() {
	if e.client != nil && e.client.IsConnected() {
		e.client.Disconnect(250)
		slog.Info("telemetry: mqtt disconnected")
	}
	e.setConnected(false)
}

// Stats contains emitter statistics
type Stats struct {
	Connected bool
	Published map[string]uint64
	Errors    uint64
}

// Stats returns emitter statistics
func (e *MQTTEmitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	published := make(map[string]uint64, len(e.published))
	for k, v := range e.published {
		published[k] = v
	}
	return Stats{
		Connected: e.connected,
		Published: published,
		Errors:    e.errors,
	}
}

func (e *MQTTEmitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

func (e *MQTTEmitter) setConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	e.mu.Unlock()
}

func (e *MQTTEmitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}

func (e *MQTTEmitter) qos(eventType string) byte {
	if qos, ok := e.cfg.QoS[eventType]; ok {
		return qos
	}
	return 0
}
