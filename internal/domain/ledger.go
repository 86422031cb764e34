package domain

import (
	"math/big"
	"time"
)

// LedgerRecord mirrors one entry of the on-chain document mapping.
type LedgerRecord struct {
	DocumentID string
	Hash       string
	Creator    string
	Timestamp  time.Time
	Exists     bool
}

// Commitment describes a confirmed ledger write.
type Commitment struct {
	DocumentID  string
	Hash        string
	TxHash      string
	BlockNumber uint64
	ChainID     string
	GasUsed     uint64
	Cost        *big.Int
	ConfirmedAt time.Time
}

// LedgerStatus is the connectivity snapshot exposed to operators.
type LedgerStatus struct {
	Provider        string
	ContractAddress string
	ChainID         string
	Exists          bool
	SignerAddress   string
	Balance         *big.Int
}
