package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"sealtrack/internal/config"
	"sealtrack/internal/domain"
	"sealtrack/internal/infra/anchor"
	"sealtrack/internal/infra/archive"
	"sealtrack/internal/infra/auth/jwtauth"
	"sealtrack/internal/infra/crypto"
	"sealtrack/internal/infra/db"
	"sealtrack/internal/infra/docmem"
	"sealtrack/internal/infra/events"
	httpinfra "sealtrack/internal/infra/http"
	"sealtrack/internal/infra/ledger"
	"sealtrack/internal/infra/ledgermem"
	"sealtrack/internal/infra/metrics"
	"sealtrack/internal/infra/notify"
	"sealtrack/internal/infra/policyopa"
	"sealtrack/internal/infra/ratelimit"
	"sealtrack/internal/usecase"
)

type app struct {
	deps       httpinfra.ServerDeps
	dispatcher *notify.Dispatcher
	closers    []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// build assembles the service from configuration. Optional backends (Postgres,
// Redis, Kafka, S3, an RPC ledger) fall back to in-process implementations when
// unset.
func build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{}
	m := metrics.New()

	var (
		documents usecase.DocumentRepository
		attempts  domain.AnchorAttemptRepository
		health    httpinfra.HealthChecker
	)
	store, err := db.NewStore(cfg.PostgresDSN, logger)
	if err != nil {
		return nil, err
	}
	if store != nil {
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = store.Close() })
		documents = store.Documents()
		attempts = store.AnchorAttempts()
		health = store
	} else {
		documents = docmem.New()
		attempts = docmem.NewAnchorAttempts()
	}

	commitments, committer, err := buildLedger(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	anchors := anchor.NewService(committer, attempts, anchor.Options{
		Timeout: cfg.AnchorTimeout,
		Logger:  logger,
		Metrics: m,
	})

	var policy *policyopa.Engine
	if cfg.PolicyPath != "" {
		policy, err = policyopa.NewEngineFromPath(ctx, cfg.PolicyPath)
	} else {
		policy, err = policyopa.NewEngine(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("load access policy: %w", err)
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		a.closers = append(a.closers, func() { _ = redisClient.Close() })
	}

	publisher, feed, err := buildEvents(cfg, redisClient, logger, a)
	if err != nil {
		return nil, err
	}

	var sink domain.NotificationSink = notify.LogSink{Logger: logger}
	if cfg.NotifyWebhookURL != "" {
		sink = notify.NewWebhookSink(cfg.NotifyWebhookURL, notify.WebhookOptions{})
	}
	a.dispatcher = notify.NewDispatcher(sink, cfg.NotifyQueueSize, logger, m)

	var archiver usecase.Archiver
	if cfg.ArchiveS3Bucket != "" {
		s3Archiver, err := archive.NewS3(ctx, archive.Config{
			Bucket:          cfg.ArchiveS3Bucket,
			Region:          cfg.ArchiveS3Region,
			Endpoint:        cfg.ArchiveS3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			SessionToken:    cfg.AWSSessionToken,
		})
		if err != nil {
			return nil, err
		}
		archiver = s3Archiver
	}

	var authenticator domain.Authenticator
	if cfg.AuthMode == config.AuthModeJWT {
		authenticator, err = jwtauth.NewAuthenticator(cfg.JWTSigningKey, cfg.JWTIssuer)
		if err != nil {
			return nil, err
		}
	}

	var limiter domain.RateLimiter
	if cfg.RateLimitRequests > 0 {
		if redisClient != nil {
			limiter, err = ratelimit.NewRedisLimiter(redisClient, nil)
			if err != nil {
				return nil, err
			}
		} else {
			limiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{MaxKeys: cfg.RateLimitMaxKeys})
		}
	}

	fingerprints := crypto.NewService()
	a.deps = httpinfra.ServerDeps{
		Documents: &usecase.DocumentService{
			Documents:    documents,
			Policy:       policy,
			Fingerprints: fingerprints,
			Events:       publisher,
			Logger:       logger,
		},
		Sign: &usecase.SignDocument{
			Documents:    documents,
			Policy:       policy,
			Fingerprints: fingerprints,
			Signatures:   ledger.Recoverer{},
			Ledger:       commitments,
			Anchors:      anchors,
			Notifier:     a.dispatcher,
			Archive:      archiver,
			Events:       publisher,
			Logger:       logger,
		},
		Verify: &usecase.VerifyDocument{
			Documents: documents,
			Ledger:    commitments,
			Policy:    policy,
			Events:    publisher,
			Logger:    logger,
		},
		Anchors:       anchors,
		Ledger:        commitments,
		Feed:          feed,
		Health:        health,
		Authenticator: authenticator,
		RateLimiter:   limiter,
		Metrics:       m,
		Logger:        logger,
	}
	return a, nil
}

func buildLedger(ctx context.Context, cfg config.Config, logger *zap.Logger) (usecase.CommitmentStore, anchor.Committer, error) {
	reserve, err := cfg.MinReserveWei()
	if err != nil {
		return nil, nil, err
	}
	if cfg.LedgerRPCURL == "" {
		logger.Warn("LEDGER_RPC_URL not set; anchoring to the in-process ledger")
		chain := ledgermem.New(ledgermem.Options{MinReserve: reserve})
		return chain, chain, nil
	}
	client, err := ledger.Dial(ctx, cfg.LedgerRPCURL, ledger.Config{
		ContractAddress: cfg.LedgerContractAddress,
		ChainID:         cfg.LedgerChainID,
		PrivateKeyHex:   cfg.LedgerPrivateKeyHex,
		MinReserveWei:   reserve,
		ConfirmTimeout:  cfg.LedgerConfirmTimeout,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect ledger: %w", err)
	}
	return client, client, nil
}

// buildEvents returns the publisher used by the use cases and the subscriber
// backing the SSE feed. Redis replaces the in-process broker so every replica
// sees every event; Kafka is an additional outbound sink.
func buildEvents(cfg config.Config, redisClient *redis.Client, logger *zap.Logger, a *app) (domain.EventPublisher, domain.EventSubscriber, error) {
	var publishers events.Fanout
	var feed domain.EventSubscriber
	if redisClient != nil {
		broker, err := events.NewRedisBroker(redisClient, logger)
		if err != nil {
			return nil, nil, err
		}
		publishers = append(publishers, broker)
		feed = broker
	} else {
		broker := events.NewBroker()
		publishers = append(publishers, broker)
		feed = broker
	}
	if len(cfg.EventsKafkaBrokers) > 0 {
		kafka, err := events.NewKafkaPublisher(cfg.EventsKafkaBrokers, cfg.EventsKafkaTopic)
		if err != nil {
			return nil, nil, fmt.Errorf("connect kafka: %w", err)
		}
		a.closers = append(a.closers, kafka.Close)
		publishers = append(publishers, kafka)
	}
	return publishers, feed, nil
}
