package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"sealtrack/internal/domain"
)

type SignDocumentRequest struct {
	Principal        domain.Principal
	DocumentID       string
	SignatureDataURL string
	SignatureHash    string
	// SignedFingerprint is the fingerprint the wallet signed. When present it
	// must match the document as currently stored.
	SignedFingerprint string
}

type SignDocumentResponse struct {
	Document  domain.Document
	SignerID  string
	Completed bool
	Anchor    *domain.AnchorReceipt
	Archive   string
	Warnings  []string
}

// SignDocument records one signer's commitment and, when that completes the
// document, anchors the final signature hash and notifies the owner. Steps
// after the signature is persisted never undo it.
type SignDocument struct {
	Documents    DocumentRepository
	Policy       AccessPolicy
	Fingerprints Fingerprinter
	Signatures   SignatureRecoverer
	Ledger       CommitmentStore
	Anchors      Anchorer
	Notifier     domain.NotificationSink
	Archive      Archiver
	Events       domain.EventPublisher
	Clock        Clock
	Logger       *zap.Logger
}

func (uc *SignDocument) Execute(ctx context.Context, req SignDocumentRequest) (resp *SignDocumentResponse, err error) {
	ctx, span := tracer.Start(ctx, "SignDocument")
	span.SetAttributes(attribute.String("document.id", req.DocumentID))
	defer func() { endSpan(span, err) }()

	if req.Principal.Email == "" {
		return nil, domain.ErrUnauthorized
	}
	logger := loggerOrNop(uc.Logger)

	var signerID string
	var completed bool
	doc, err := uc.Documents.Update(ctx, req.DocumentID, func(doc *domain.Document) error {
		signer, err := authorizeSigner(doc, req.Principal)
		if err != nil {
			return err
		}
		if err := authorizeAccess(ctx, uc.Policy, domain.ActionSign, req.Principal, *doc); err != nil {
			return err
		}
		if err := uc.capture(*doc, *signer, req); err != nil {
			return err
		}
		signerID = signer.ID
		completed, err = doc.RecordSignature(signer.ID, req.SignatureDataURL, strings.TrimSpace(req.SignatureHash), uc.now())
		if err != nil {
			return err
		}
		return uc.stampHash(doc)
	})
	if err != nil {
		return nil, err
	}

	resp = &SignDocumentResponse{Document: *doc, SignerID: signerID, Completed: completed}
	logger.Info("signature recorded",
		zap.String("document_id", doc.ID),
		zap.String("signer_id", signerID),
		zap.Bool("completed", completed))
	uc.publish(ctx, logger, domain.EventSignatureRecorded, *doc, signerID)

	if !completed {
		return resp, nil
	}
	uc.publish(ctx, logger, domain.EventDocumentCompleted, *doc, signerID)

	uc.anchor(ctx, logger, resp)
	uc.notifyCreator(ctx, logger, resp)
	uc.archive(ctx, logger, resp)
	return resp, nil
}

// authorizeSigner resolves the signer addressed to the principal and checks
// that it may still sign.
func authorizeSigner(doc *domain.Document, principal domain.Principal) (*domain.Signer, error) {
	signer, ok := doc.SignerByEmail(principal.Email)
	if !ok {
		return nil, domain.ErrNotASigner
	}
	if signer.HasSigned {
		return nil, domain.ErrAlreadySigned
	}
	switch doc.Status {
	case domain.DocumentStatusCompleted:
		return nil, domain.ErrDocumentCompleted
	case domain.DocumentStatusRejected:
		return nil, domain.ErrDocumentRejected
	}
	return signer, nil
}

func (uc *SignDocument) capture(doc domain.Document, signer domain.Signer, req SignDocumentRequest) error {
	hash := strings.TrimSpace(req.SignatureHash)
	if hash == "" || strings.TrimSpace(req.SignatureDataURL) == "" {
		return domain.ErrInvalidSignature
	}
	if uc.Fingerprints == nil {
		return nil
	}
	current, err := uc.Fingerprints.Fingerprint(doc)
	if err != nil {
		return err
	}
	if req.SignedFingerprint != "" && !strings.EqualFold(req.SignedFingerprint, current) {
		return domain.ErrStaleDocument
	}
	if uc.Signatures == nil || signer.WalletAddress == "" || !isWalletSignature(hash) {
		return nil
	}
	recovered, err := uc.Signatures.RecoverAddress([]byte(current), hash)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}
	if !strings.EqualFold(recovered, signer.WalletAddress) {
		return fmt.Errorf("%w: signed by %s", domain.ErrInvalidSignature, recovered)
	}
	return nil
}

// isWalletSignature reports whether hash looks like a 65-byte hex encoded
// ECDSA signature.
func isWalletSignature(hash string) bool {
	h := strings.TrimPrefix(strings.TrimPrefix(hash, "0x"), "0X")
	if len(h) != 130 {
		return false
	}
	for _, c := range h {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return false
		}
	}
	return true
}

func (uc *SignDocument) anchor(ctx context.Context, logger *zap.Logger, resp *SignDocumentResponse) {
	if uc.Ledger == nil || uc.Anchors == nil {
		resp.Warnings = append(resp.Warnings, "ledger anchoring is not configured")
		return
	}
	if !uc.Ledger.Exists(ctx) {
		resp.Warnings = append(resp.Warnings, "ledger unavailable: document completed without anchoring")
		logger.Warn("ledger unavailable, skipping anchor", zap.String("document_id", resp.Document.ID))
		return
	}
	receipt := uc.Anchors.Anchor(ctx, resp.Document.ID, *resp.Document.BlockchainHash)
	resp.Anchor = &receipt
	if receipt.RecordError != "" {
		resp.Warnings = append(resp.Warnings, "anchor attempt was not recorded: "+receipt.RecordError)
	}
	if !receipt.Anchored() {
		resp.Warnings = append(resp.Warnings, fmt.Sprintf("anchoring failed (%s): %s", receipt.ErrorCode, receipt.Message))
		logger.Warn("anchor failed",
			zap.String("document_id", resp.Document.ID),
			zap.String("code", receipt.ErrorCode),
			zap.String("message", receipt.Message))
		return
	}
	uc.publish(ctx, logger, domain.EventDocumentAnchored, resp.Document, "")
}

func (uc *SignDocument) notifyCreator(ctx context.Context, logger *zap.Logger, resp *SignDocumentResponse) {
	if uc.Notifier == nil {
		return
	}
	doc := resp.Document
	recipient := doc.OwnerEmail
	if recipient == "" {
		recipient = doc.CreatedBy
	}
	err := uc.Notifier.Notify(ctx, domain.Notification{
		Recipient: recipient,
		Subject:   fmt.Sprintf("%q has been signed by all parties", doc.Title),
		Body:      fmt.Sprintf("All %d signers have signed document %s.", len(doc.Signers), doc.ID),
	})
	if err != nil {
		resp.Warnings = append(resp.Warnings, "owner notification failed")
		logger.Warn("notify creator failed", zap.String("document_id", doc.ID), zap.Error(err))
	}
}

func (uc *SignDocument) archive(ctx context.Context, logger *zap.Logger, resp *SignDocumentResponse) {
	if uc.Archive == nil {
		return
	}
	location, err := uc.Archive.Archive(ctx, resp.Document)
	if err != nil {
		resp.Warnings = append(resp.Warnings, "evidence archive failed")
		logger.Warn("archive failed", zap.String("document_id", resp.Document.ID), zap.Error(err))
		return
	}
	resp.Archive = location
}

func (uc *SignDocument) stampHash(doc *domain.Document) error {
	if uc.Fingerprints == nil {
		return nil
	}
	hash, err := uc.Fingerprints.Fingerprint(*doc)
	if err != nil {
		return err
	}
	doc.DocumentHash = &hash
	return nil
}

func (uc *SignDocument) publish(ctx context.Context, logger *zap.Logger, eventType domain.DocumentEventType, doc domain.Document, signerID string) {
	publishEvent(ctx, uc.Events, logger, domain.DocumentEvent{
		Type:       eventType,
		DocumentID: doc.ID,
		Status:     doc.Status,
		SignerID:   signerID,
		OccurredAt: uc.now(),
	})
}

func (uc *SignDocument) now() time.Time {
	if uc.Clock != nil {
		return domain.StampTime(uc.Clock())
	}
	return domain.StampTime(time.Now())
}
