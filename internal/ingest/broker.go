package ingest

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"

	"github.com/agrisense/agrisense/internal/metrics"
	"github.com/agrisense/agrisense/internal/models"
)

// topicPrefix is the topic space devices publish readings to:
// agrisense/plots/{plotID}/readings
const topicPrefix = "agrisense/plots/"

// BrokerConfig holds embedded MQTT broker settings.
type BrokerConfig struct {
	// Address is the TCP listen address (host:port).
	Address string
}

// Broker runs an embedded MQTT broker that feeds published readings
// into the ingest processor.
type Broker struct {
	server    *mqtt.Server
	processor *Processor
	config    *BrokerConfig
	serving   atomic.Bool
}

// NewBroker creates the embedded broker with its hooks and listener
// configured. Call Serve to start it.
func NewBroker(config *BrokerConfig, processor *Processor) (*Broker, error) {
	server := mqtt.New(&mqtt.Options{InlineClient: false})

	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, fmt.Errorf("add auth hook: %w", err)
	}
	if err := server.AddHook(&readingHook{processor: processor}, nil); err != nil {
		return nil, fmt.Errorf("add reading hook: %w", err)
	}

	tcp := listeners.NewTCP(listeners.Config{
		ID:      "ingest",
		Address: config.Address,
	})
	if err := server.AddListener(tcp); err != nil {
		return nil, fmt.Errorf("add TCP listener: %w", err)
	}

	return &Broker{server: server, processor: processor, config: config}, nil
}

// Serve starts the broker listeners.
func (b *Broker) Serve() error {
	if err := b.server.Serve(); err != nil {
		return err
	}
	b.serving.Store(true)
	return nil
}

// Serving reports whether the broker is accepting connections.
func (b *Broker) Serving() bool {
	return b.serving.Load()
}

// Close shuts the broker down.
func (b *Broker) Close() error {
	b.serving.Store(false)
	return b.server.Close()
}

// readingPayload is the JSON devices publish.
type readingPayload struct {
	SensorType string    `json:"sensor_type"`
	Value      float64   `json:"value"`
	Timestamp  time.Time `json:"timestamp"`
	Source     string    `json:"source"`
}

// readingHook feeds published readings into the processor.
type readingHook struct {
	mqtt.HookBase
	processor *Processor
}

func (h *readingHook) ID() string {
	return "reading-ingest"
}

func (h *readingHook) Provides(b byte) bool {
	return b == mqtt.OnPublish || b == mqtt.OnConnect
}

func (h *readingHook) OnConnect(cl *mqtt.Client, pk packets.Packet) error {
	log.Printf("mqtt: device connected: %s", cl.ID)
	return nil
}

func (h *readingHook) OnPublish(cl *mqtt.Client, pk packets.Packet) (packets.Packet, error) {
	plotID, ok := plotFromTopic(pk.TopicName)
	if !ok {
		// Not a readings topic, let it pass through untouched.
		return pk, nil
	}

	metrics.IngestReadingsTotal.WithLabelValues("mqtt").Inc()

	reading, err := parseReading(plotID, cl.ID, pk.Payload)
	if err != nil {
		log.Printf("mqtt: drop malformed reading from %s: %v", cl.ID, err)
		return pk, nil
	}

	if err := h.processor.Process(reading); err != nil {
		log.Printf("mqtt: reject reading from %s: %v", cl.ID, err)
	}
	return pk, nil
}

// plotFromTopic extracts the plot id from agrisense/plots/{id}/readings.
func plotFromTopic(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, topicPrefix)
	if !ok {
		return "", false
	}
	plotID, ok := strings.CutSuffix(rest, "/readings")
	if !ok || plotID == "" || strings.Contains(plotID, "/") {
		return "", false
	}
	return plotID, true
}

// parseReading decodes a device payload into a SensorReading. The
// client id serves as the source when the payload names none.
func parseReading(plotID, clientID string, payload []byte) (*models.SensorReading, error) {
	var p readingPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	sensorType, err := models.ParseSensorType(p.SensorType)
	if err != nil {
		return nil, err
	}

	source := p.Source
	if source == "" {
		source = clientID
	}

	return &models.SensorReading{
		PlotID:    plotID,
		Type:      sensorType,
		Value:     p.Value,
		Timestamp: p.Timestamp,
		Source:    source,
	}, nil
}
