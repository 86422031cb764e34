package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"sealtrack/internal/domain"
)

func TestBrokerFiltersByDocument(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	one, _ := b.Subscribe(ctx, "doc-1")
	all, _ := b.Subscribe(ctx, "")

	_ = b.Publish(context.Background(), domain.DocumentEvent{Type: domain.EventDocumentUpdated, DocumentID: "doc-2"})
	_ = b.Publish(context.Background(), domain.DocumentEvent{Type: domain.EventSignatureRecorded, DocumentID: "doc-1"})

	got := <-one
	if got.DocumentID != "doc-1" || got.Type != domain.EventSignatureRecorded {
		t.Fatalf("unexpected event %+v", got)
	}
	first, second := <-all, <-all
	if first.DocumentID != "doc-2" || second.DocumentID != "doc-1" {
		t.Fatalf("unexpected order %+v %+v", first, second)
	}
}

func TestBrokerClosesOnCancel(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := b.Subscribe(ctx, "doc-1")
	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("subscription not closed")
	}
	_ = b.Publish(context.Background(), domain.DocumentEvent{DocumentID: "doc-1"})
}

func TestBrokerDropsForSlowSubscriber(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, _ = b.Subscribe(ctx, "doc-1")
	for i := 0; i < subscriberBuffer*2; i++ {
		if err := b.Publish(context.Background(), domain.DocumentEvent{DocumentID: "doc-1"}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
}

type failingPublisher struct{ err error }

func (f failingPublisher) Publish(ctx context.Context, event domain.DocumentEvent) error { return f.err }

func TestFanoutJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, _ := b.Subscribe(ctx, "")

	err := Fanout{b, failingPublisher{err: boom}, nil}.Publish(context.Background(), domain.DocumentEvent{DocumentID: "d"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if got := <-ch; got.DocumentID != "d" {
		t.Fatalf("broker did not receive event")
	}
}

func TestKafkaPublisherValidation(t *testing.T) {
	if _, err := NewKafkaPublisher(nil, "topic"); err == nil {
		t.Fatalf("expected brokers error")
	}
	if _, err := NewKafkaPublisher([]string{"localhost:9092"}, ""); err == nil {
		t.Fatalf("expected topic error")
	}
}

func TestRedisBrokerRequiresClient(t *testing.T) {
	if _, err := NewRedisBroker(nil, nil); err == nil {
		t.Fatalf("expected error")
	}
}
