package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/linkbot/internal/app/model"
)

type mockLinkEventRepository struct {
	createFn func(ctx context.Context, event *model.LinkEvent) error
}

func (m *mockLinkEventRepository) Create(ctx context.Context, event *model.LinkEvent) error {
	if m.createFn != nil {
		return m.createFn(ctx, event)
	}
	return nil
}

func (m *mockLinkEventRepository) ListByLink(ctx context.Context, linkID int64) ([]model.LinkEvent, error) {
	return nil, nil
}

func TestEventConsumer_Handle(t *testing.T) {
	var stored *model.LinkEvent
	repo := &mockLinkEventRepository{
		createFn: func(ctx context.Context, event *model.LinkEvent) error {
			stored = event
			return nil
		},
	}
	c := NewEventConsumer(nil, nil, repo)

	data, _ := json.Marshal(model.LinkEvent{
		ID:        "evt-1",
		Type:      model.LinkRenamed,
		LinkID:    7,
		OwnerID:   42,
		Title:     "New",
		Timestamp: time.Now(),
	})
	if err := c.handle(context.Background(), data); err != nil {
		t.Fatalf("handle returned error: %v", err)
	}
	if stored == nil || stored.ID != "evt-1" || stored.LinkID != 7 {
		t.Fatalf("unexpected stored event: %+v", stored)
	}
}

func TestEventConsumer_Handle_Errors(t *testing.T) {
	repo := &mockLinkEventRepository{
		createFn: func(ctx context.Context, event *model.LinkEvent) error {
			return errors.New("db down")
		},
	}
	c := NewEventConsumer(nil, nil, repo)

	if err := c.handle(context.Background(), []byte("{not json")); !errors.Is(err, errMalformedEvent) {
		t.Fatalf("expected malformed event error, got %v", err)
	}

	data, _ := json.Marshal(model.LinkEvent{ID: "evt-2", Type: model.LinkDeleted})
	err := c.handle(context.Background(), data)
	if err == nil || errors.Is(err, errMalformedEvent) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

type mockMsg struct {
	acked, naked, termed int
}

func (m *mockMsg) Ack(...nats.AckOpt) error  { m.acked++; return nil }
func (m *mockMsg) Nak(...nats.AckOpt) error  { m.naked++; return nil }
func (m *mockMsg) Term(...nats.AckOpt) error { m.termed++; return nil }

func TestEventConsumer_Settle(t *testing.T) {
	repo := &mockLinkEventRepository{
		createFn: func(ctx context.Context, event *model.LinkEvent) error {
			return errors.New("db down")
		},
	}
	c := NewEventConsumer(nil, nil, repo)

	bad := &mockMsg{}
	c.settle(bad, c.handle(context.Background(), []byte("{not json")))
	if bad.termed != 1 || bad.naked != 0 || bad.acked != 0 {
		t.Fatalf("malformed event should be terminated: %+v", bad)
	}

	data, _ := json.Marshal(model.LinkEvent{ID: "evt-3", Type: model.LinkCreated})
	retry := &mockMsg{}
	c.settle(retry, c.handle(context.Background(), data))
	if retry.naked != 1 || retry.termed != 0 {
		t.Fatalf("storage failure should be redelivered: %+v", retry)
	}

	ok := &mockMsg{}
	c.settle(ok, nil)
	if ok.acked != 1 {
		t.Fatalf("stored event should be acked: %+v", ok)
	}
}
