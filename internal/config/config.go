package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	AuthModeNone = "none"
	AuthModeJWT  = "jwt"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	LogLevel    string
	AppEnv      string
	PolicyPath  string

	AuthMode      string
	JWTSigningKey string
	JWTIssuer     string

	LedgerRPCURL          string
	LedgerContractAddress string
	LedgerChainID         int64
	LedgerPrivateKeyHex   string
	LedgerMinReserveWei   string
	LedgerConfirmTimeout  time.Duration
	AnchorTimeout         time.Duration

	NotifyWebhookURL string
	NotifyQueueSize  int

	EventsKafkaBrokers []string
	EventsKafkaTopic   string

	ArchiveS3Bucket   string
	ArchiveS3Region   string
	ArchiveS3Endpoint string

	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSSessionToken    string

	RateLimitRequests       int
	RateLimitWindowSeconds  int
	RateLimitIncludeSubject bool
	RateLimitFailClosed     bool
	RateLimitMaxKeys        int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func FromEnv() Config {
	return Config{
		HTTPAddr:                envDefault("HTTP_ADDR", ":8080"),
		PostgresDSN:             os.Getenv("POSTGRES_DSN"),
		LogLevel:                envDefault("LOG_LEVEL", "info"),
		AppEnv:                  envDefault("APP_ENV", "development"),
		PolicyPath:              os.Getenv("POLICY_PATH"),
		AuthMode:                envDefault("AUTH_MODE", AuthModeNone),
		JWTSigningKey:           os.Getenv("JWT_SIGNING_KEY"),
		JWTIssuer:               envDefault("JWT_ISSUER", "sealtrack"),
		LedgerRPCURL:            os.Getenv("LEDGER_RPC_URL"),
		LedgerContractAddress:   os.Getenv("LEDGER_CONTRACT_ADDRESS"),
		LedgerChainID:           int64(envIntDefault("LEDGER_CHAIN_ID", 0)),
		LedgerPrivateKeyHex:     os.Getenv("LEDGER_PRIVATE_KEY_HEX"),
		LedgerMinReserveWei:     envDefault("LEDGER_MIN_RESERVE_WEI", "1000000000000000"),
		LedgerConfirmTimeout:    envDurationDefault("LEDGER_CONFIRM_TIMEOUT", 2*time.Minute),
		AnchorTimeout:           envDurationDefault("ANCHOR_TIMEOUT", 3*time.Minute),
		NotifyWebhookURL:        os.Getenv("NOTIFY_WEBHOOK_URL"),
		NotifyQueueSize:         envIntDefault("NOTIFY_QUEUE_SIZE", 128),
		EventsKafkaBrokers:      envList("EVENTS_KAFKA_BROKERS"),
		EventsKafkaTopic:        envDefault("EVENTS_KAFKA_TOPIC", "sealtrack.document-events"),
		ArchiveS3Bucket:         os.Getenv("ARCHIVE_S3_BUCKET"),
		ArchiveS3Region:         envDefault("ARCHIVE_S3_REGION", envDefault("AWS_REGION", "us-east-1")),
		ArchiveS3Endpoint:       os.Getenv("ARCHIVE_S3_ENDPOINT"),
		AWSAccessKeyID:          os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey:      os.Getenv("AWS_SECRET_ACCESS_KEY"),
		AWSSessionToken:         os.Getenv("AWS_SESSION_TOKEN"),
		RateLimitRequests:       envIntDefault("RATE_LIMIT_REQUESTS", 0),
		RateLimitWindowSeconds:  envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitIncludeSubject: envBoolDefault("RATE_LIMIT_INCLUDE_SUBJECT", false),
		RateLimitFailClosed:     envBoolDefault("RATE_LIMIT_FAIL_CLOSED", false),
		RateLimitMaxKeys:        envIntDefault("RATE_LIMIT_MAX_KEYS", 10000),
		RedisAddr:               os.Getenv("REDIS_ADDR"),
		RedisPassword:           os.Getenv("REDIS_PASSWORD"),
		RedisDB:                 envIntDefault("REDIS_DB", 0),
	}
}

// Validate reports configuration that cannot start a server.
func (c Config) Validate() error {
	var errs []error
	switch c.AuthMode {
	case AuthModeNone:
	case AuthModeJWT:
		if len(c.JWTSigningKey) < 32 {
			errs = append(errs, errors.New("JWT_SIGNING_KEY must be at least 32 bytes when AUTH_MODE=jwt"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported AUTH_MODE %q", c.AuthMode))
	}
	if c.LedgerRPCURL != "" && c.LedgerContractAddress == "" {
		errs = append(errs, errors.New("LEDGER_CONTRACT_ADDRESS is required with LEDGER_RPC_URL"))
	}
	if _, err := c.MinReserveWei(); err != nil {
		errs = append(errs, err)
	}
	if c.AuthMode == AuthModeNone && c.IsProduction() {
		errs = append(errs, errors.New("AUTH_MODE=none is not allowed when APP_ENV=production"))
	}
	return errors.Join(errs...)
}

func (c Config) MinReserveWei() (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(c.LedgerMinReserveWei), 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid LEDGER_MIN_RESERVE_WEI %q", c.LedgerMinReserveWei)
	}
	return v, nil
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "Yes":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "No":
		return false
	default:
		return def
	}
}

func envDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := time.ParseDuration(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
