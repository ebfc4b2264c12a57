package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Domain event types emitted by the services.
const (
	EventGroupJoined        = "group.joined"
	EventSubmissionReceived = "submission.received"
)

// Event describes a domain occurrence published for downstream consumers
// (notification fan-out, analytics). Delivery is best effort and never
// blocks or fails the originating request.
type Event struct {
	Type         string    `json:"type"`
	GroupID      uint      `json:"group_id,omitempty"`
	AssignmentID uint      `json:"assignment_id,omitempty"`
	StudentID    uint      `json:"student_id,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// EventPublisher publishes domain events to NATS. A nil connection disables
// publishing, which keeps the broker optional in development and tests.
type EventPublisher struct {
	conn        *nats.Conn
	subjectBase string
	logger      zerolog.Logger
}

// NewEventPublisher constructs a publisher for the given subject base.
func NewEventPublisher(conn *nats.Conn, subjectBase string, logger zerolog.Logger) *EventPublisher {
	if subjectBase == "" {
		subjectBase = "classdesk"
	}

	return &EventPublisher{
		conn:        conn,
		subjectBase: subjectBase,
		logger:      logger.With().Str("component", "event_publisher").Logger(),
	}
}

// Publish sends the event to <base>.<event type>. Failures are logged and
// swallowed.
func (p *EventPublisher) Publish(_ context.Context, event Event) {
	if p == nil || p.conn == nil {
		return
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn().Err(err).Str("type", event.Type).Msg("failed to encode event")
		return
	}

	subject := fmt.Sprintf("%s.%s", p.subjectBase, event.Type)
	if err := p.conn.Publish(subject, payload); err != nil {
		p.logger.Warn().Err(err).Str("subject", subject).Msg("failed to publish event")
	}
}
