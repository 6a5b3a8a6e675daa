package events

import (
	"context"
	"time"

	"laundry/pkg/kafka"
	"laundry/pkg/logger"
	"laundry/pkg/middleware"
	"laundry/pkg/model"
)

const (
	ReservationCreated   = "reservation.created"
	ReservationUpdated   = "reservation.updated"
	ReservationCancelled = "reservation.cancelled"

	schemaVersion = "1"
	source        = "reservations"
)

// ReservationEvent is the payload published on every reservation change.
type ReservationEvent struct {
	Type        string             `json:"type"`
	Reservation *model.Reservation `json:"reservation"`
	OccurredAt  time.Time          `json:"occurredAt"`
}

// Publisher emits reservation lifecycle events. Publishing is best effort: failures
// are logged and never fail the request that caused them.
type Publisher interface {
	Publish(ctx context.Context, eventType string, reservation *model.Reservation)
}

type kafkaPublisher struct {
	producer kafka.Publisher
	log      *logger.Logger
}

func NewKafkaPublisher(producer kafka.Publisher, log *logger.Logger) Publisher {
	return &kafkaPublisher{producer: producer, log: log}
}

func (p *kafkaPublisher) Publish(ctx context.Context, eventType string, reservation *model.Reservation) {
	msg, err := kafka.NewMessage().
		WithKey(reservation.MachineID).
		WithEventType(eventType).
		WithCorrelationID(middleware.GetRequestID(ctx)).
		WithSchemaVersion(schemaVersion).
		WithSource(source).
		WithValue(ReservationEvent{
			Type:        eventType,
			Reservation: reservation,
			OccurredAt:  time.Now().UTC(),
		}).
		Build()
	if err != nil {
		p.log.Error("Failed to build reservation event", "event_type", eventType, "id", reservation.ID, "error", err)
		return
	}

	// The request context may be cancelled as soon as the response is written.
	if err := p.producer.Publish(context.WithoutCancel(ctx), msg); err != nil {
		p.log.Warn("Failed to publish reservation event",
			"event_type", eventType,
			"id", reservation.ID,
			"machine_id", reservation.MachineID,
			"error", err,
		)
	}
}

type noopPublisher struct{}

func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, string, *model.Reservation) {}
