package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/linkbot/internal/app/model"
	apprepository "github.com/sifan077/linkbot/internal/app/repository"
	"github.com/sifan077/linkbot/internal/infra/prometheus"
	"go.uber.org/zap"
)

const (
	fetchBatch = 10
	fetchWait  = 5 * time.Second
	maxDeliver = 20
)

var errMalformedEvent = errors.New("malformed link event")

// ackable is the acknowledgement side of a JetStream message.
type ackable interface {
	Ack(opts ...nats.AckOpt) error
	Nak(opts ...nats.AckOpt) error
	Term(opts ...nats.AckOpt) error
}

// EventConsumer consumes link events from NATS JetStream and stores them
// as the audit trail.
type EventConsumer struct {
	js     nats.JetStreamContext
	logger *zap.Logger
	repo   apprepository.LinkEventRepository
	done   chan struct{}
}

// NewEventConsumer creates a new link event consumer.
func NewEventConsumer(js nats.JetStreamContext, logger *zap.Logger, repo apprepository.LinkEventRepository) *EventConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventConsumer{js: js, logger: logger, repo: repo, done: make(chan struct{})}
}

// Start sets up the durable consumer and consumes until ctx is cancelled.
func (c *EventConsumer) Start(ctx context.Context) error {
	if err := ensureLinkStream(c.js); err != nil {
		return err
	}

	if _, err := c.js.ConsumerInfo(model.LinkEventStreamName, model.LinkEventConsumerName); err != nil {
		_, err = c.js.AddConsumer(model.LinkEventStreamName, &nats.ConsumerConfig{
			Durable:   model.LinkEventConsumerName,
			AckPolicy:  nats.AckExplicitPolicy,
			MaxDeliver: maxDeliver,
		})
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
	}

	sub, err := c.js.PullSubscribe(model.LinkEventStreamSubject, model.LinkEventConsumerName)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go c.consume(ctx, sub)
	return nil
}

// Done is closed once the consume loop has exited.
func (c *EventConsumer) Done() <-chan struct{} {
	return c.done
}

func (c *EventConsumer) consume(ctx context.Context, sub *nats.Subscription) {
	defer close(c.done)
	defer sub.Unsubscribe()

	for {
		if ctx.Err() != nil {
			c.logger.Info("link event consumer stopped")
			return
		}

		fetchCtx, cancel := context.WithTimeout(ctx, fetchWait)
		msgs, err := sub.Fetch(fetchBatch, nats.Context(fetchCtx))
		cancel()
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, nats.ErrTimeout) && !errors.Is(err, context.DeadlineExceeded) {
				c.logger.Error("failed to fetch messages", zap.Error(err))
			}
			continue
		}

		for _, msg := range msgs {
			c.settle(msg, c.handle(ctx, msg.Data))
		}
	}
}

// settle acks a stored event, terminates one that can never be decoded and
// asks for redelivery of the rest.
func (c *EventConsumer) settle(msg ackable, err error) {
	var ackErr error
	switch {
	case err == nil:
		ackErr = msg.Ack()
	case errors.Is(err, errMalformedEvent):
		ackErr = msg.Term()
	default:
		ackErr = msg.Nak()
	}
	if ackErr != nil {
		c.logger.Warn("failed to acknowledge link event", zap.Error(ackErr))
	}
}

func (c *EventConsumer) handle(ctx context.Context, data []byte) error {
	var event model.LinkEvent
	if err := json.Unmarshal(data, &event); err != nil {
		c.logger.Error("failed to unmarshal link event", zap.Error(err))
		prometheus.LinkEventsTotal.WithLabelValues("unknown", "malformed").Inc()
		return fmt.Errorf("%w: %v", errMalformedEvent, err)
	}

	if err := c.repo.Create(ctx, &event); err != nil {
		c.logger.Error("failed to store link event",
			zap.String("id", event.ID),
			zap.Int64("link_id", event.LinkID),
			zap.Error(err))
		prometheus.LinkEventsTotal.WithLabelValues(string(event.Type), "failed").Inc()
		return err
	}

	c.logger.Debug("link event stored",
		zap.String("id", event.ID),
		zap.String("type", string(event.Type)),
		zap.Int64("link_id", event.LinkID),
		zap.Int64("owner_id", event.OwnerID),
		zap.Time("timestamp", event.Timestamp),
	)
	prometheus.LinkEventsTotal.WithLabelValues(string(event.Type), "stored").Inc()
	return nil
}
