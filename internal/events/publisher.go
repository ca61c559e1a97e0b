package events

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Publisher fans booking lifecycle events out to the event bus and to the
// per-user and per-driver realtime topics. All publishing is best-effort:
// a failed publish is logged and the booking operation proceeds.
type Publisher struct {
	producer *Producer
	source   string
	logger   *zap.Logger
}

// NewPublisher creates a Publisher identifying itself as source.
func NewPublisher(producer *Producer, source string, logger *zap.Logger) *Publisher {
	return &Publisher{producer: producer, source: source, logger: logger}
}

// PublishLifecycle publishes one lifecycle event, keyed by booking on the
// bus topic and keyed per recipient on the realtime topics.
func (p *Publisher) PublishLifecycle(ctx context.Context, eventType string, data interface{}, bookingID, userID uuid.UUID, driverID *uuid.UUID) {
	event, err := NewCloudEvent(p.source, eventType, data)
	if err != nil {
		p.logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}

	p.publish(ctx, TopicBookingEvents, bookingID.String(), event)
	p.publish(ctx, TopicRealtimeUsers, "user:"+userID.String(), event)
	if driverID != nil {
		p.publish(ctx, TopicRealtimeDrivers, "driver:"+driverID.String(), event)
	}
}

func (p *Publisher) publish(ctx context.Context, topic, key string, event CloudEvent) {
	if err := p.producer.PublishEvent(ctx, topic, key, event); err != nil {
		p.logger.Error("failed to publish event",
			zap.String("topic", topic),
			zap.String("event_type", event.Type),
			zap.Error(err),
		)
	}
}
