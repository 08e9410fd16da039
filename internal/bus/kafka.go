// v2
// internal/bus/kafka.go
package bus

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// SampleEvent is the wire shape mirrored onto the bus for every telemetry
// row appended to disk. Downstream consumers get the same fields the CSV
// carries, keyed by the entity name so one entity stays on one partition.
type SampleEvent struct {
	Domain    string    `json:"domain"`
	Entity    string    `json:"entity"`
	Timestamp time.Time `json:"timestamp"`
	Fields    []string  `json:"fields"`
}

// Publisher mirrors telemetry samples onto a Kafka topic. It satisfies the
// telemetry sample sink; publishing is best-effort and never blocks the
// poll loop on a broker outage beyond the writer's own timeout.
type Publisher struct {
	w   *kafka.Writer
	log *slog.Logger
}

// NewPublisher builds a publisher over the given brokers and topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			WriteTimeout: 5 * time.Second,
		},
		log: logger.With(slog.String("component", "bus")),
	}
}

// PublishSample mirrors one appended row. Errors are logged and dropped:
// the CSV log on disk stays the source of truth.
func (p *Publisher) PublishSample(ctx context.Context, domain, entity string, row []string, ts time.Time) {
	ev := SampleEvent{Domain: domain, Entity: entity, Timestamp: ts, Fields: row}
	b, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("marshal failed", "err", err)
		return
	}
	err = p.w.WriteMessages(ctx, kafka.Message{Key: []byte(entity), Value: b, Time: ts})
	if err != nil {
		p.log.Warn("kafka write failed", "err", err, "entity", entity)
		return
	}
	p.log.Debug("sample mirrored", "domain", domain, "entity", entity, "ts", ts)
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.w.Close()
}
