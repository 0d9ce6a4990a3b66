package events

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/SeerNT/UniversityAPI/internal/config"
	"github.com/SeerNT/UniversityAPI/internal/metrics"
)

type Type string

const (
	StudentCreated     Type = "created"
	StudentDeleted     Type = "deleted"
	StudentTransferred Type = "transferred"
)

// Event describes a committed change of the student population.
type Event struct {
	Type        Type      `json:"type"`
	StudentID   int       `json:"student_id"`
	MajorID     int       `json:"major_id"`
	FromMajorID int       `json:"from_major_id,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func (e Event) Key() string {
	return strconv.Itoa(e.StudentID)
}

// Publisher delivers events after the originating transaction committed.
// Delivery is best effort; a failed publish never undoes the write.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type noop struct{}

func (noop) Publish(context.Context, Event) error { return nil }
func (noop) Close() error                         { return nil }

func Noop() Publisher {
	return noop{}
}

// New builds the publisher selected by cfg.Events.Driver.
func New(cfg *config.Config, logger *slog.Logger) (Publisher, error) {
	switch cfg.Events.Driver {
	case "", "none":
		return Noop(), nil
	case "nats":
		return NewNATSPublisher(cfg.NATS.URL, cfg.NATS.Subject, logger)
	case "kafka":
		return NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Events.Driver)
	}
}

type instrumented struct {
	Publisher
	broker  string
	metrics *metrics.MessagingMetrics
}

// Instrument records the outcome and latency of every publish under broker.
func Instrument(p Publisher, broker string, m *metrics.MessagingMetrics) Publisher {
	return &instrumented{Publisher: p, broker: broker, metrics: m}
}

func (p *instrumented) Publish(ctx context.Context, event Event) error {
	start := time.Now()
	err := p.Publisher.Publish(ctx, event)
	p.metrics.RecordPublish(ctx, p.broker, string(event.Type), time.Since(start), err)
	return err
}
