package anchor

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"sealtrack/internal/domain"
)

const defaultTimeout = 3 * time.Minute

// Committer writes a hash to a ledger. ledger.Client and ledgermem.Ledger
// both satisfy it.
type Committer interface {
	ProviderName() string
	Write(ctx context.Context, documentID, hash string) (domain.Commitment, error)
}

type Metrics interface {
	ObserveAnchor(provider, status, code string)
}

type Options struct {
	Timeout time.Duration
	Logger  *zap.Logger
	Metrics Metrics
	Now     func() time.Time
}

// Service runs one bounded anchoring attempt per call and records every
// attempt, successful or not. It never returns an error: failures are
// reported through the receipt.
type Service struct {
	committer Committer
	attempts  domain.AnchorAttemptRepository
	timeout   time.Duration
	logger    *zap.Logger
	metrics   Metrics
	now       func() time.Time
}

func NewService(committer Committer, attempts domain.AnchorAttemptRepository, opts Options) *Service {
	s := &Service{
		committer: committer,
		attempts:  attempts,
		timeout:   opts.Timeout,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		now:       opts.Now,
	}
	if s.timeout <= 0 {
		s.timeout = defaultTimeout
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Service) Anchor(ctx context.Context, documentID, hash string) domain.AnchorReceipt {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := otel.Tracer("sealtrack/anchor").Start(ctx, "Anchor")
	span.SetAttributes(attribute.String("document.id", documentID))
	defer span.End()

	if s.committer == nil {
		receipt := domain.AnchorReceipt{
			DocumentID:  documentID,
			Provider:    "anchor",
			Status:      domain.AnchorStatusSkipped,
			Message:     "disabled",
			PayloadHash: hash,
		}
		return s.finish(ctx, receipt)
	}

	providerCtx, cancel := context.WithTimeout(ctx, s.timeout)
	commitment, err := s.committer.Write(providerCtx, documentID, hash)
	deadline := providerCtx.Err() == context.DeadlineExceeded
	cancel()

	receipt := domain.AnchorReceipt{
		DocumentID:  documentID,
		Provider:    s.committer.ProviderName(),
		Status:      domain.AnchorStatusAnchored,
		PayloadHash: hash,
	}
	if err != nil {
		receipt.Status = domain.AnchorStatusFailed
		receipt.ErrorCode = errorCode(err)
		receipt.Message = err.Error()
		if deadline && receipt.ErrorCode == domain.AnchorErrorProviderError {
			receipt.ErrorCode = domain.AnchorErrorTimeout
		}
		span.RecordError(err)
	} else {
		receipt.TxHash = commitment.TxHash
		receipt.ChainID = commitment.ChainID
		receipt.BlockNumber = commitment.BlockNumber
	}
	return s.finish(ctx, receipt)
}

func (s *Service) ListAttempts(ctx context.Context, documentID string) ([]domain.AnchorAttempt, error) {
	if s.attempts == nil {
		return []domain.AnchorAttempt{}, nil
	}
	return s.attempts.ListByDocument(ctx, documentID)
}

func (s *Service) finish(ctx context.Context, receipt domain.AnchorReceipt) domain.AnchorReceipt {
	receipt = s.persistAttempt(ctx, receipt)
	if s.metrics != nil {
		s.metrics.ObserveAnchor(receipt.Provider, receipt.Status, receipt.ErrorCode)
	}
	fields := []zap.Field{
		zap.String("document_id", receipt.DocumentID),
		zap.String("provider", receipt.Provider),
		zap.String("status", receipt.Status),
	}
	if receipt.Status == domain.AnchorStatusFailed {
		s.logger.Warn("anchor attempt failed", append(fields, zap.String("code", receipt.ErrorCode), zap.String("message", receipt.Message))...)
	} else {
		s.logger.Info("anchor attempt", append(fields, zap.String("tx_hash", receipt.TxHash))...)
	}
	return receipt
}

func (s *Service) persistAttempt(ctx context.Context, receipt domain.AnchorReceipt) domain.AnchorReceipt {
	if s.attempts == nil {
		return receipt
	}
	attempt := domain.AnchorAttempt{
		DocumentID:  receipt.DocumentID,
		Provider:    receipt.Provider,
		Status:      receipt.Status,
		ErrorCode:   receipt.ErrorCode,
		Message:     receipt.Message,
		PayloadHash: receipt.PayloadHash,
		TxHash:      receipt.TxHash,
		ChainID:     receipt.ChainID,
		BlockNumber: receipt.BlockNumber,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.attempts.Append(ctx, attempt); err != nil {
		receipt.RecordError = err.Error()
		s.logger.Error("record anchor attempt",
			zap.String("document_id", receipt.DocumentID),
			zap.String("status", receipt.Status),
			zap.String("tx_hash", receipt.TxHash),
			zap.Error(err))
	}
	return receipt
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrWrongNetwork):
		return domain.AnchorErrorWrongNetwork
	case errors.Is(err, domain.ErrLedgerUnavailable):
		return domain.AnchorErrorLedgerUnavailable
	case errors.Is(err, domain.ErrInsufficientFunds):
		return domain.AnchorErrorInsufficientFunds
	case errors.Is(err, domain.ErrNoSigningIdentity):
		return domain.AnchorErrorNoIdentity
	case errors.Is(err, domain.ErrTransactionRejected):
		return domain.AnchorErrorTxRejected
	case errors.Is(err, domain.ErrConfirmationTimeout), errors.Is(err, context.DeadlineExceeded):
		return domain.AnchorErrorTimeout
	default:
		return domain.AnchorErrorProviderError
	}
}
