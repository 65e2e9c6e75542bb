package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tphakala/petmood/internal/logger"
)

// Publisher sends detection events. Implementations must not block the
// caller for longer than the publish timeout.
type Publisher interface {
	PublishDetection(ctx context.Context, event *DetectionEventDTO) error
}

// NopPublisher drops every event. It is used when MQTT is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishDetection(context.Context, *DetectionEventDTO) error { return nil }

// EventPublisher publishes detection events on <topic>/<species>/<pet_id>.
type EventPublisher struct {
	client Client
	topic  string
	log    logger.Logger
}

// NewEventPublisher creates a publisher on client with base topic.
func NewEventPublisher(client Client, topic string, log logger.Logger) *EventPublisher {
	if log == nil {
		log = logger.NewSlogLogger(nil, logger.LogLevelInfo, nil)
	}
	return &EventPublisher{
		client: client,
		topic:  strings.TrimSuffix(topic, "/"),
		log:    log.Module("mqtt"),
	}
}

// Topic returns the topic an event for species and petID is published on.
func (p *EventPublisher) Topic(species string, petID uint) string {
	return fmt.Sprintf("%s/%s/%d", p.topic, species, petID)
}

// PublishDetection serializes event and publishes it.
func (p *EventPublisher) PublishDetection(ctx context.Context, event *DetectionEventDTO) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal detection event: %w", err)
	}

	topic := p.Topic(event.Species, event.PetID)
	if err := p.client.Publish(ctx, topic, payload); err != nil {
		p.log.WithContext(ctx).Warn("detection event not published",
			logger.String("topic", topic),
			logger.Error(err))
		return err
	}
	return nil
}

var (
	_ Publisher = NopPublisher{}
	_ Publisher = (*EventPublisher)(nil)
)
