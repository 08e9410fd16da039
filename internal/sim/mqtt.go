// v2
// internal/sim/mqtt.go
package sim

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// SensorReading is the per-tick message published for every virtual sensor.
type SensorReading struct {
	Sensor    string    `json:"sensor"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// ReadingPublisher pushes per-tick sensor readings somewhere external. The
// runtime accepts a nil publisher and simply skips publishing.
type ReadingPublisher interface {
	PublishReading(r SensorReading)
	Close()
}

// MQTTPublisher publishes readings to an MQTT topic, one JSON message per
// sensor per tick.
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
	log    *slog.Logger
}

// NewMQTTPublisher connects to the broker and returns a live publisher.
func NewMQTTPublisher(brokerAddr, topic string, logger *slog.Logger) (*MQTTPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := mqtt.NewClientOptions().AddBroker(brokerAddr)
	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to broker %s: %w", brokerAddr, token.Error())
	}
	return &MQTTPublisher{
		client: c,
		topic:  topic,
		log:    logger.With(slog.String("component", "mqtt")),
	}, nil
}

func (p *MQTTPublisher) PublishReading(r SensorReading) {
	payload, err := json.Marshal(r)
	if err != nil {
		p.log.Error("marshal failed", "err", err)
		return
	}
	p.client.Publish(p.topic, 0, false, payload)
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
