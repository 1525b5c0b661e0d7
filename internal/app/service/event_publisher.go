package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sifan077/linkbot/internal/app/model"
	"github.com/sifan077/linkbot/internal/infra/prometheus"
)

// EventPublisher publishes link events to NATS JetStream.
type EventPublisher struct {
	js nats.JetStreamContext
}

// NewEventPublisher creates a publisher and makes sure the stream exists.
func NewEventPublisher(js nats.JetStreamContext) (*EventPublisher, error) {
	if err := ensureLinkStream(js); err != nil {
		return nil, err
	}
	return &EventPublisher{js: js}, nil
}

// Publish assigns an id when missing and publishes the event.
func (p *EventPublisher) Publish(ctx context.Context, event model.LinkEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal link event: %w", err)
	}

	// MsgId lets JetStream drop duplicates within its dedup window.
	if _, err := p.js.Publish(model.LinkEventStreamSubject, data, nats.MsgId(event.ID), nats.Context(ctx)); err != nil {
		prometheus.LinkEventsTotal.WithLabelValues(string(event.Type), "failed").Inc()
		return fmt.Errorf("publish link event: %w", err)
	}

	prometheus.LinkEventsTotal.WithLabelValues(string(event.Type), "published").Inc()
	return nil
}

func ensureLinkStream(js nats.JetStreamContext) error {
	if _, err := js.StreamInfo(model.LinkEventStreamName); err == nil {
		return nil
	}
	_, err := js.AddStream(&nats.StreamConfig{
		Name:     model.LinkEventStreamName,
		Subjects: []string{model.LinkEventStreamSubject},
		MaxBytes: model.LinkEventStreamMaxBytes,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}
