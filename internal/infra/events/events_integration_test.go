//go:build integration

package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/modules/redpanda"
	"github.com/twmb/franz-go/pkg/kgo"

	"sealtrack/internal/domain"
)

func TestRedisBrokerRoundTrip(t *testing.T) {
	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })
	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	opts, err := redis.ParseURL(uri)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	broker, err := NewRedisBroker(client, nil)
	if err != nil {
		t.Fatalf("broker: %v", err)
	}
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	ch, err := broker.Subscribe(subCtx, "doc-1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	want := domain.DocumentEvent{Type: domain.EventDocumentCompleted, DocumentID: "doc-1", Status: domain.DocumentStatusCompleted, OccurredAt: time.Now().UTC()}
	if err := broker.Publish(ctx, want); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case got := <-ch:
		if got.Type != want.Type || got.DocumentID != want.DocumentID {
			t.Fatalf("unexpected event %+v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("event not received")
	}
}

func TestKafkaPublisherProduces(t *testing.T) {
	ctx := context.Background()
	container, err := redpanda.Run(ctx, "docker.redpanda.com/redpandadata/redpanda:v24.1.7")
	if err != nil {
		t.Fatalf("start redpanda: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })
	broker, err := container.KafkaSeedBroker(ctx)
	if err != nil {
		t.Fatalf("seed broker: %v", err)
	}

	pub, err := NewKafkaPublisher([]string{broker}, "document-events")
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}
	defer pub.Close()
	event := domain.DocumentEvent{Type: domain.EventSignatureRecorded, DocumentID: "doc-9", SignerID: "s1"}
	if err := pub.Publish(ctx, event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	consumer, err := kgo.NewClient(kgo.SeedBrokers(broker), kgo.ConsumeTopics("document-events"), kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()))
	if err != nil {
		t.Fatalf("consumer: %v", err)
	}
	defer consumer.Close()
	pollCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	fetches := consumer.PollFetches(pollCtx)
	if errs := fetches.Errors(); len(errs) > 0 {
		t.Fatalf("poll: %v", errs)
	}
	records := fetches.Records()
	if len(records) != 1 || string(records[0].Key) != "doc-9" {
		t.Fatalf("unexpected records: %d", len(records))
	}
	var got domain.DocumentEvent
	if err := json.Unmarshal(records[0].Value, &got); err != nil || got.SignerID != "s1" {
		t.Fatalf("unexpected payload %s (%v)", records[0].Value, err)
	}
}
