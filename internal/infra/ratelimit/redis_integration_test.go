//go:build integration

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestRedisLimiterSharedWindow(t *testing.T) {
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

	first, _ := NewRedisLimiter(client, nil)
	second, _ := NewRedisLimiter(client, nil)
	if d, err := first.Allow(ctx, "principal:a", 2, time.Minute); err != nil || !d.Allowed {
		t.Fatalf("first: %+v %v", d, err)
	}
	if d, err := second.Allow(ctx, "principal:a", 2, time.Minute); err != nil || !d.Allowed || d.Remaining != 0 {
		t.Fatalf("second: %+v %v", d, err)
	}
	d, err := first.Allow(ctx, "principal:a", 2, time.Minute)
	if err != nil || d.Allowed {
		t.Fatalf("expected the shared window to be exhausted: %+v %v", d, err)
	}
}
