package domain

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")

	ErrInvalidDocument   = errors.New("invalid document")
	ErrDuplicateSigner   = errors.New("duplicate signer")
	ErrSignerNotFound    = errors.New("signer not found")
	ErrAlreadySigned     = errors.New("signer already signed")
	ErrNotASigner        = errors.New("principal is not a signer of this document")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrStaleDocument     = errors.New("document changed since it was read")
	ErrDocumentCompleted = errors.New("document is completed")
	ErrDocumentRejected  = errors.New("document is rejected")
	ErrDocumentLocked    = errors.New("document content is locked by existing signatures")
	ErrUnknownTemplate   = errors.New("unknown template")

	ErrLedgerUnavailable    = errors.New("ledger unavailable")
	ErrWrongNetwork         = errors.New("wrong network")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrNoSigningIdentity    = errors.New("no signing identity connected")
	ErrTransactionRejected  = errors.New("transaction rejected")
	ErrConfirmationTimeout  = errors.New("transaction confirmation timed out")
	ErrLedgerRecordNotFound = errors.New("ledger record not found")
	ErrSigningRejected      = errors.New("signing rejected")
)

type FundsCheck string

const (
	// FundsCheckReserve is the generic minimum-balance check.
	FundsCheckReserve FundsCheck = "reserve"
	// FundsCheckCost compares against the estimated cost of one transaction.
	FundsCheckCost FundsCheck = "cost"
)

// InsufficientFundsError reports a failed balance preflight with the exact
// amounts involved, in wei. The balance must strictly exceed Required, so
// Shortfall is the top-up that makes it do so and is always at least 1.
type InsufficientFundsError struct {
	Check     FundsCheck
	Balance   *big.Int
	Required  *big.Int
	Shortfall *big.Int
}

func NewInsufficientFundsError(check FundsCheck, balance, required *big.Int) *InsufficientFundsError {
	shortfall := new(big.Int).Sub(required, balance)
	shortfall.Add(shortfall, big.NewInt(1))
	if shortfall.Sign() < 1 {
		shortfall.SetInt64(1)
	}
	return &InsufficientFundsError{
		Check:     check,
		Balance:   new(big.Int).Set(balance),
		Required:  new(big.Int).Set(required),
		Shortfall: shortfall,
	}
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds (%s check): balance %s wei, required %s wei, short by %s wei",
		e.Check, e.Balance, e.Required, e.Shortfall)
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}
