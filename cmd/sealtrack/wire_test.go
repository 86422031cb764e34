package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"sealtrack/internal/config"
	httpinfra "sealtrack/internal/infra/http"
)

func TestBuildInMemory(t *testing.T) {
	cfg := config.Config{
		HTTPAddr:            ":0",
		AppEnv:              "test",
		AuthMode:            config.AuthModeNone,
		LedgerMinReserveWei: "0",
		NotifyQueueSize:     4,
	}
	a, err := build(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer a.close()

	if a.deps.Documents == nil || a.deps.Sign == nil || a.deps.Verify == nil {
		t.Fatalf("use cases not wired: %+v", a.deps)
	}
	if a.deps.Ledger == nil || a.deps.Anchors == nil || a.deps.Feed == nil {
		t.Fatalf("ledger or events not wired")
	}
	if a.deps.Health != nil {
		t.Fatalf("expected no database health checker without a DSN")
	}
	if a.deps.RateLimiter != nil {
		t.Fatalf("expected rate limiting to be disabled")
	}
	if a.deps.Sign.Archive != nil {
		t.Fatalf("expected no archiver without a bucket")
	}

	srv := httpinfra.NewServer(cfg, a.deps)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected healthz 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestBuildJWTMode(t *testing.T) {
	cfg := config.Config{
		AuthMode:            config.AuthModeJWT,
		JWTSigningKey:       "0123456789abcdef0123456789abcdef",
		JWTIssuer:           "sealtrack",
		LedgerMinReserveWei: "0",
		RateLimitRequests:   10,
		RateLimitMaxKeys:    100,
	}
	a, err := build(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer a.close()
	if a.deps.Authenticator == nil {
		t.Fatalf("expected authenticator in jwt mode")
	}
	if a.deps.RateLimiter == nil {
		t.Fatalf("expected in-memory rate limiter")
	}
}

func TestBuildRejectsBadReserve(t *testing.T) {
	cfg := config.Config{AuthMode: config.AuthModeNone, LedgerMinReserveWei: "lots"}
	if _, err := build(context.Background(), cfg, zap.NewNop()); err == nil {
		t.Fatalf("expected error for invalid reserve")
	}
}
