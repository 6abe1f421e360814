package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"reflow_oven/internal/logger"
)

const (
	mqttConnectTimeout = 10 * time.Second
	mqttPublishTimeout = 5 * time.Second
	mqttQueueSize      = 512
)

// Publisher sends raw payloads to a broker.
type Publisher interface {
	Publish(topic string, payload []byte) error
	Close() error
}

// MQTTOptions configures a RealPublisher.
type MQTTOptions struct {
	Broker   string
	ClientID string
	QoS      byte
	Retain   bool
}

// RealPublisher publishes to an actual MQTT broker.
type RealPublisher struct {
	client paho.Client
	qos    byte
	retain bool
}

// NewRealPublisher connects to the broker, retrying in the background after the first attempt.
func NewRealPublisher(o MQTTOptions) (*RealPublisher, error) {
	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("connect to %s: timeout", o.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", o.Broker, err)
	}
	return &RealPublisher{client: client, qos: o.QoS, retain: o.Retain}, nil
}

func (p *RealPublisher) Publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}

// NopPublisher discards everything. Used when the mirror is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(string, []byte) error { return nil }
func (NopPublisher) Close() error                 { return nil }

type mqttMessage struct {
	topic   string
	payload []byte
}

// Mirror is a Sink that republishes telemetry to <prefix>/<kind> from its own goroutine,
// so a slow broker never stalls the engine.
type Mirror struct {
	pub     Publisher
	prefix  string
	log     *logger.Logger
	queue   chan mqttMessage
	dropped atomic.Uint64
}

func NewMirror(pub Publisher, prefix string, log *logger.Logger) *Mirror {
	return &Mirror{
		pub:    pub,
		prefix: strings.TrimSuffix(prefix, "/"),
		log:    log,
		queue:  make(chan mqttMessage, mqttQueueSize),
	}
}

// Topic returns the topic a payload kind is published on.
func (m *Mirror) Topic(kind string) string {
	if m.prefix == "" {
		return kind
	}
	return m.prefix + "/" + kind
}

// Publish implements Sink.
func (m *Mirror) Publish(kind string, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	select {
	case m.queue <- mqttMessage{topic: m.Topic(kind), payload: b}:
	default:
		m.dropped.Add(1)
	}
}

// Dropped reports how many payloads were discarded because the queue was full.
func (m *Mirror) Dropped() uint64 { return m.dropped.Load() }

// Run publishes queued payloads until ctx is cancelled, then closes the publisher.
func (m *Mirror) Run(ctx context.Context) {
	defer func() {
		if err := m.pub.Close(); err != nil && m.log != nil {
			m.log.Warnw("mqtt_close_failed", "err", err)
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-m.queue:
			if err := m.pub.Publish(msg.topic, msg.payload); err != nil && m.log != nil {
				m.log.Warnw("mqtt_publish_failed", "topic", msg.topic, "err", err)
			}
		}
	}
}
