package config

import (
	"strings"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"HTTP_ADDR", "AUTH_MODE", "LEDGER_CONFIRM_TIMEOUT", "EVENTS_KAFKA_BROKERS", "APP_ENV"} {
		t.Setenv(key, "")
	}
	cfg := FromEnv()
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected addr %q", cfg.HTTPAddr)
	}
	if cfg.AuthMode != AuthModeNone {
		t.Fatalf("unexpected auth mode %q", cfg.AuthMode)
	}
	if cfg.LedgerConfirmTimeout != 2*time.Minute {
		t.Fatalf("unexpected confirm timeout %s", cfg.LedgerConfirmTimeout)
	}
	if cfg.EventsKafkaBrokers != nil {
		t.Fatalf("expected no brokers, got %v", cfg.EventsKafkaBrokers)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("LEDGER_CHAIN_ID", "11155111")
	t.Setenv("LEDGER_CONFIRM_TIMEOUT", "45s")
	t.Setenv("ANCHOR_TIMEOUT", "garbage")
	t.Setenv("EVENTS_KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("RATE_LIMIT_FAIL_CLOSED", "yes")

	cfg := FromEnv()
	if cfg.LedgerChainID != 11155111 {
		t.Fatalf("unexpected chain id %d", cfg.LedgerChainID)
	}
	if cfg.LedgerConfirmTimeout != 45*time.Second {
		t.Fatalf("unexpected confirm timeout %s", cfg.LedgerConfirmTimeout)
	}
	if cfg.AnchorTimeout != 3*time.Minute {
		t.Fatalf("invalid duration should fall back, got %s", cfg.AnchorTimeout)
	}
	if len(cfg.EventsKafkaBrokers) != 2 || cfg.EventsKafkaBrokers[1] != "k2:9092" {
		t.Fatalf("unexpected brokers %v", cfg.EventsKafkaBrokers)
	}
	if !cfg.RateLimitFailClosed {
		t.Fatalf("expected fail closed")
	}
}

func TestValidate(t *testing.T) {
	cfg := Config{AuthMode: AuthModeJWT, JWTSigningKey: "short", LedgerMinReserveWei: "0"}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "JWT_SIGNING_KEY") {
		t.Fatalf("expected signing key error, got %v", err)
	}

	cfg = Config{AuthMode: AuthModeNone, AppEnv: "production", LedgerMinReserveWei: "0"}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected production/none error")
	}

	cfg = Config{AuthMode: AuthModeNone, LedgerMinReserveWei: "-1"}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected reserve error")
	}

	cfg = Config{AuthMode: AuthModeNone, LedgerMinReserveWei: "10", LedgerRPCURL: "http://node"}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "LEDGER_CONTRACT_ADDRESS") {
		t.Fatalf("expected contract address error, got %v", err)
	}
}
