package usecase

import (
	"context"
	"time"

	"sealtrack/internal/domain"
)

type Clock func() time.Time

// DocumentRepository persists documents together with their signer lists.
// Update runs fn against the latest stored state while holding the
// document's write lock and persists the result only when fn returns nil.
type DocumentRepository interface {
	Create(ctx context.Context, doc domain.Document) error
	Get(ctx context.Context, id string) (*domain.Document, error)
	ListForPrincipal(ctx context.Context, ownerID, email string) ([]domain.Document, error)
	Update(ctx context.Context, id string, fn func(doc *domain.Document) error) (*domain.Document, error)
}

// CommitmentStore is the ledger adapter. Exists never returns an error.
type CommitmentStore interface {
	Exists(ctx context.Context) bool
	Write(ctx context.Context, documentID, hash string) (domain.Commitment, error)
	Read(ctx context.Context, documentID, expectedHash string) (bool, error)
	Fetch(ctx context.Context, documentID string) (domain.LedgerRecord, error)
	Status(ctx context.Context) (domain.LedgerStatus, error)
}

type Anchorer interface {
	Anchor(ctx context.Context, documentID, hash string) domain.AnchorReceipt
	ListAttempts(ctx context.Context, documentID string) ([]domain.AnchorAttempt, error)
}

type AccessPolicy interface {
	Evaluate(ctx context.Context, input domain.PolicyInput) (domain.PolicyResult, error)
}

type Fingerprinter interface {
	Fingerprint(doc domain.Document) (string, error)
}

// SignatureRecoverer returns the account address that produced a wallet
// signature over message.
type SignatureRecoverer interface {
	RecoverAddress(message []byte, signature string) (string, error)
}

// Archiver exports a finished document as evidence and returns its location.
type Archiver interface {
	Archive(ctx context.Context, doc domain.Document) (string, error)
}
