package domain

import (
	"context"
	"time"
)

type AnchorAttempt struct {
	ID          string
	DocumentID  string
	Provider    string
	Status      string
	ErrorCode   string
	Message     string
	PayloadHash string
	TxHash      string
	ChainID     string
	BlockNumber uint64
	CreatedAt   time.Time
}

type AnchorReceipt struct {
	DocumentID  string
	Provider    string
	Status      string
	ErrorCode   string
	Message     string
	PayloadHash string
	TxHash      string
	ChainID     string
	BlockNumber uint64
	// RecordError is set when the attempt could not be written to the
	// attempt log. It never changes Status.
	RecordError string
}

func (r AnchorReceipt) Anchored() bool {
	return r.Status == AnchorStatusAnchored
}

const (
	AnchorStatusAnchored = "anchored"
	AnchorStatusFailed   = "failed"
	AnchorStatusSkipped  = "skipped"
)

const (
	AnchorErrorLedgerUnavailable = "LEDGER_UNAVAILABLE"
	AnchorErrorWrongNetwork      = "WRONG_NETWORK"
	AnchorErrorInsufficientFunds = "INSUFFICIENT_FUNDS"
	AnchorErrorNoIdentity        = "NO_IDENTITY"
	AnchorErrorTxRejected        = "TX_REJECTED"
	AnchorErrorTimeout           = "TIMEOUT"
	AnchorErrorProviderError     = "PROVIDER_ERROR"
)

type AnchorAttemptRepository interface {
	Append(ctx context.Context, attempt AnchorAttempt) error
	ListByDocument(ctx context.Context, documentID string) ([]AnchorAttempt, error)
}
