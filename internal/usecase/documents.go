package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sealtrack/internal/domain"
)

type SignerInput struct {
	Name          string
	Email         string
	WalletAddress string
}

type CreateDocumentRequest struct {
	Principal   domain.Principal
	Title       string
	Description string
	Content     string
	TemplateID  string
	Signers     []SignerInput
}

type UpdateDocumentRequest struct {
	Principal   domain.Principal
	DocumentID  string
	Title       *string
	Description *string
	Content     *string
}

// DocumentService owns document lifecycle operations outside of signing and
// verification. A nil Policy allows every action.
type DocumentService struct {
	Documents    DocumentRepository
	Policy       AccessPolicy
	Fingerprints Fingerprinter
	Events       domain.EventPublisher
	Clock        Clock
	NewID        func() string
	Logger       *zap.Logger
}

func (s *DocumentService) Create(ctx context.Context, req CreateDocumentRequest) (*domain.Document, error) {
	if req.Principal.Subject == "" {
		return nil, domain.ErrUnauthorized
	}
	content := req.Content
	if req.TemplateID != "" {
		tmpl, ok := domain.TemplateByID(req.TemplateID)
		if !ok {
			return nil, domain.ErrUnknownTemplate
		}
		if strings.TrimSpace(content) == "" {
			content = tmpl.Content
		}
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, domain.ErrInvalidDocument
	}

	now := s.now()
	doc := domain.Document{
		ID:          s.newID(),
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Content:     content,
		TemplateID:  req.TemplateID,
		CreatedBy:   req.Principal.Subject,
		OwnerEmail:  domain.NormalizeEmail(req.Principal.Email),
		CreatedAt:   now,
		UpdatedAt:   now,
		Status:      domain.DocumentStatusDraft,
		Signers:     []domain.Signer{},
	}
	for _, in := range req.Signers {
		signer := domain.Signer{
			ID:            s.newID(),
			Name:          strings.TrimSpace(in.Name),
			Email:         domain.NormalizeEmail(in.Email),
			WalletAddress: strings.TrimSpace(in.WalletAddress),
		}
		if err := doc.AddSigner(signer, now); err != nil {
			return nil, err
		}
	}
	doc.Status = domain.InitialStatus(len(doc.Signers))
	if err := s.stampHash(&doc); err != nil {
		return nil, err
	}

	if err := s.Documents.Create(ctx, doc); err != nil {
		return nil, err
	}
	s.publish(ctx, domain.EventDocumentCreated, doc, "")
	return &doc, nil
}

func (s *DocumentService) Get(ctx context.Context, principal domain.Principal, id string) (*domain.Document, error) {
	doc, err := s.Documents.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, domain.ActionView, principal, *doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// List returns documents owned by the principal or addressed to its email.
func (s *DocumentService) List(ctx context.Context, principal domain.Principal) ([]domain.Document, error) {
	if principal.Subject == "" {
		return nil, domain.ErrUnauthorized
	}
	return s.Documents.ListForPrincipal(ctx, principal.Subject, domain.NormalizeEmail(principal.Email))
}

func (s *DocumentService) Update(ctx context.Context, req UpdateDocumentRequest) (*domain.Document, error) {
	updated, err := s.Documents.Update(ctx, req.DocumentID, func(doc *domain.Document) error {
		if err := s.authorize(ctx, domain.ActionEdit, req.Principal, *doc); err != nil {
			return err
		}
		if err := doc.Edit(req.Title, req.Description, req.Content, s.now()); err != nil {
			return err
		}
		return s.stampHash(doc)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, domain.EventDocumentUpdated, *updated, "")
	return updated, nil
}

func (s *DocumentService) AddSigner(ctx context.Context, principal domain.Principal, documentID string, in SignerInput) (*domain.Document, error) {
	signerID := s.newID()
	updated, err := s.Documents.Update(ctx, documentID, func(doc *domain.Document) error {
		if err := s.authorize(ctx, domain.ActionEdit, principal, *doc); err != nil {
			return err
		}
		signer := domain.Signer{
			ID:            signerID,
			Name:          strings.TrimSpace(in.Name),
			Email:         domain.NormalizeEmail(in.Email),
			WalletAddress: strings.TrimSpace(in.WalletAddress),
		}
		if err := doc.AddSigner(signer, s.now()); err != nil {
			return err
		}
		return s.stampHash(doc)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, domain.EventSignerAdded, *updated, signerID)
	return updated, nil
}

func (s *DocumentService) Reject(ctx context.Context, principal domain.Principal, documentID string) (*domain.Document, error) {
	updated, err := s.Documents.Update(ctx, documentID, func(doc *domain.Document) error {
		if err := s.authorize(ctx, domain.ActionReject, principal, *doc); err != nil {
			return err
		}
		return doc.Reject(s.now())
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, domain.EventDocumentRejected, *updated, "")
	return updated, nil
}

// Fingerprint recomputes the document fingerprint and stores it as the
// document hash when it changed.
func (s *DocumentService) Fingerprint(ctx context.Context, principal domain.Principal, documentID string) (string, error) {
	var fingerprint string
	_, err := s.Documents.Update(ctx, documentID, func(doc *domain.Document) error {
		if err := s.authorize(ctx, domain.ActionView, principal, *doc); err != nil {
			return err
		}
		if err := s.stampHash(doc); err != nil {
			return err
		}
		fingerprint = *doc.DocumentHash
		return nil
	})
	if err != nil {
		return "", err
	}
	return fingerprint, nil
}

func (s *DocumentService) Templates() []domain.Template {
	return domain.Templates()
}

func (s *DocumentService) authorize(ctx context.Context, action domain.AccessAction, principal domain.Principal, doc domain.Document) error {
	return authorizeAccess(ctx, s.Policy, action, principal, doc)
}

func (s *DocumentService) stampHash(doc *domain.Document) error {
	if s.Fingerprints == nil {
		return nil
	}
	hash, err := s.Fingerprints.Fingerprint(*doc)
	if err != nil {
		return err
	}
	doc.DocumentHash = &hash
	return nil
}

func (s *DocumentService) publish(ctx context.Context, eventType domain.DocumentEventType, doc domain.Document, signerID string) {
	publishEvent(ctx, s.Events, loggerOrNop(s.Logger), domain.DocumentEvent{
		Type:       eventType,
		DocumentID: doc.ID,
		Status:     doc.Status,
		SignerID:   signerID,
		OccurredAt: s.now(),
	})
}

func (s *DocumentService) now() time.Time {
	if s.Clock != nil {
		return domain.StampTime(s.Clock())
	}
	return domain.StampTime(time.Now())
}

func (s *DocumentService) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func authorizeAccess(ctx context.Context, policy AccessPolicy, action domain.AccessAction, principal domain.Principal, doc domain.Document) error {
	if principal.Subject == "" && principal.Email == "" {
		return domain.ErrUnauthorized
	}
	if policy == nil {
		return nil
	}
	result, err := policy.Evaluate(ctx, domain.NewPolicyInput(action, principal, doc))
	if err != nil {
		return err
	}
	if !result.Allow {
		return domain.ErrForbidden
	}
	return nil
}

func publishEvent(ctx context.Context, events domain.EventPublisher, logger *zap.Logger, event domain.DocumentEvent) {
	if events == nil {
		return
	}
	if err := events.Publish(ctx, event); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("publish document event failed",
			zap.String("document_id", event.DocumentID),
			zap.String("type", string(event.Type)),
			zap.Error(err))
	}
}
