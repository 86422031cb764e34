package usecase

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"sealtrack/internal/domain"
)

type VerificationStatus string

const (
	VerificationAuthentic VerificationStatus = "authentic"
	VerificationMismatch  VerificationStatus = "mismatch"
	VerificationNotSigned VerificationStatus = "not_signed"
)

type VerifyDocumentRequest struct {
	Principal  domain.Principal
	DocumentID string
}

type VerifyDocumentResponse struct {
	Status         VerificationStatus
	IsAuthentic    *bool
	LastVerifiedAt *time.Time
	Document       domain.Document
}

// VerifyDocument compares the stored blockchain hash with the ledger and
// records the outcome. Each call is a single attempt.
type VerifyDocument struct {
	Documents DocumentRepository
	Ledger    CommitmentStore
	Policy    AccessPolicy
	Events    domain.EventPublisher
	Clock     Clock
	Logger    *zap.Logger
}

func (uc *VerifyDocument) Execute(ctx context.Context, req VerifyDocumentRequest) (resp *VerifyDocumentResponse, err error) {
	ctx, span := tracer.Start(ctx, "VerifyDocument")
	span.SetAttributes(attribute.String("document.id", req.DocumentID))
	defer func() { endSpan(span, err) }()

	doc, err := uc.Documents.Get(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}
	if err := authorizeAccess(ctx, uc.Policy, domain.ActionVerify, req.Principal, *doc); err != nil {
		return nil, err
	}

	if doc.BlockchainHash == nil || *doc.BlockchainHash == "" {
		return &VerifyDocumentResponse{
			Status:         VerificationNotSigned,
			IsAuthentic:    doc.IsAuthentic,
			LastVerifiedAt: doc.LastVerifiedAt,
			Document:       *doc,
		}, nil
	}
	if uc.Ledger == nil {
		return nil, domain.ErrLedgerUnavailable
	}

	expected := *doc.BlockchainHash
	matches, err := uc.Ledger.Read(ctx, doc.ID, expected)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	updated, err := uc.Documents.Update(ctx, doc.ID, func(current *domain.Document) error {
		// A signature landing during the ledger read changes the hash; the
		// verdict no longer describes the stored document.
		if current.BlockchainHash == nil || *current.BlockchainHash != expected {
			return domain.ErrStaleDocument
		}
		current.RecordVerification(matches, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	status := VerificationMismatch
	if matches {
		status = VerificationAuthentic
	}
	logger := loggerOrNop(uc.Logger)
	logger.Info("document verified",
		zap.String("document_id", doc.ID),
		zap.String("status", string(status)))
	publishEvent(ctx, uc.Events, logger, domain.DocumentEvent{
		Type:       domain.EventDocumentVerified,
		DocumentID: updated.ID,
		Status:     updated.Status,
		OccurredAt: now,
	})

	return &VerifyDocumentResponse{
		Status:         status,
		IsAuthentic:    updated.IsAuthentic,
		LastVerifiedAt: updated.LastVerifiedAt,
		Document:       *updated,
	}, nil
}

func (uc *VerifyDocument) now() time.Time {
	if uc.Clock != nil {
		return domain.StampTime(uc.Clock())
	}
	return domain.StampTime(time.Now())
}
