package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"
)

type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

func NewNATSPublisher(url string, subject string, logger *slog.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("university-api"))
	if err != nil {
		return nil, err
	}

	logger.Info("NATS publisher initialized", "url", url, "subject", subject)

	return &NATSPublisher{
		conn:    nc,
		subject: subject,
		logger:  logger,
	}, nil
}

// Subject returns the subject an event is published on, e.g.
// "university.students.created".
func (p *NATSPublisher) Subject(event Event) string {
	return SubjectFor(p.subject, event.Type)
}

func SubjectFor(base string, t Type) string {
	return base + "." + string(t)
}

func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to marshal event", "error", err)
		return err
	}

	subject := p.Subject(event)
	if err := p.conn.Publish(subject, payload); err != nil {
		p.logger.ErrorContext(ctx, "failed to publish event to NATS", "subject", subject, "error", err)
		return err
	}

	p.logger.DebugContext(ctx, "event published to NATS", "subject", subject, "student_id", event.StudentID)
	return nil
}

func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
