package ledgermem

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"sealtrack/internal/domain"
)

const ProviderName = "memory"

type Options struct {
	ChainID     string
	Signer      string
	Balance     *big.Int
	GasPrice    *big.Int
	GasPerWrite uint64
	MinReserve  *big.Int
	Now         func() time.Time
}

// Ledger is an in-process commitment store with the same preconditions as
// the contract adapter, including balance and cost preflight.
type Ledger struct {
	mu          sync.Mutex
	deployed    bool
	chainID     string
	signer      string
	balance     *big.Int
	gasPrice    *big.Int
	gasPerWrite uint64
	minReserve  *big.Int
	records     map[string]domain.LedgerRecord
	block       uint64
	now         func() time.Time
}

func New(opts Options) *Ledger {
	l := &Ledger{
		deployed:    true,
		chainID:     opts.ChainID,
		signer:      opts.Signer,
		balance:     cloneOr(opts.Balance, new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)),
		gasPrice:    cloneOr(opts.GasPrice, big.NewInt(1_000_000_000)),
		gasPerWrite: opts.GasPerWrite,
		minReserve:  cloneOr(opts.MinReserve, new(big.Int)),
		records:     make(map[string]domain.LedgerRecord),
		now:         opts.Now,
	}
	if l.chainID == "" {
		l.chainID = "1337"
	}
	if l.signer == "" {
		l.signer = "0x0000000000000000000000000000000000000001"
	}
	if l.gasPerWrite == 0 {
		l.gasPerWrite = 60_000
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

func (l *Ledger) Exists(ctx context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.deployed
}

func (l *Ledger) Write(ctx context.Context, documentID, hash string) (domain.Commitment, error) {
	if err := ctx.Err(); err != nil {
		return domain.Commitment{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.deployed {
		return domain.Commitment{}, domain.ErrLedgerUnavailable
	}
	if l.signer == "" {
		return domain.Commitment{}, domain.ErrNoSigningIdentity
	}
	if l.balance.Cmp(l.minReserve) <= 0 {
		return domain.Commitment{}, domain.NewInsufficientFundsError(domain.FundsCheckReserve, l.balance, l.minReserve)
	}
	cost := new(big.Int).Mul(new(big.Int).SetUint64(l.gasPerWrite), l.gasPrice)
	if l.balance.Cmp(cost) <= 0 {
		return domain.Commitment{}, domain.NewInsufficientFundsError(domain.FundsCheckCost, l.balance, cost)
	}

	now := l.now().UTC()
	l.block++
	l.balance.Sub(l.balance, cost)
	l.records[documentID] = domain.LedgerRecord{
		DocumentID: documentID,
		Hash:       hash,
		Creator:    l.signer,
		Timestamp:  now.Truncate(time.Second),
		Exists:     true,
	}
	txHash := crypto.Keccak256Hash([]byte(fmt.Sprintf("%s|%s|%d", documentID, hash, l.block)))
	return domain.Commitment{
		DocumentID:  documentID,
		Hash:        hash,
		TxHash:      txHash.Hex(),
		BlockNumber: l.block,
		ChainID:     l.chainID,
		GasUsed:     l.gasPerWrite,
		Cost:        cost,
		ConfirmedAt: now,
	}, nil
}

func (l *Ledger) Read(ctx context.Context, documentID, expectedHash string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.deployed {
		return false, domain.ErrLedgerUnavailable
	}
	record, ok := l.records[documentID]
	return ok && record.Hash == expectedHash, nil
}

func (l *Ledger) Fetch(ctx context.Context, documentID string) (domain.LedgerRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.deployed {
		return domain.LedgerRecord{}, domain.ErrLedgerUnavailable
	}
	record, ok := l.records[documentID]
	if !ok {
		return domain.LedgerRecord{}, domain.ErrLedgerRecordNotFound
	}
	return record, nil
}

func (l *Ledger) Status(ctx context.Context) (domain.LedgerStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return domain.LedgerStatus{
		Provider:      ProviderName,
		ChainID:       l.chainID,
		Exists:        l.deployed,
		SignerAddress: l.signer,
		Balance:       new(big.Int).Set(l.balance),
	}, nil
}

func (l *Ledger) ProviderName() string {
	return ProviderName
}

// SetDeployed toggles contract availability.
func (l *Ledger) SetDeployed(deployed bool) {
	l.mu.Lock()
	l.deployed = deployed
	l.mu.Unlock()
}

func (l *Ledger) SetBalance(balance *big.Int) {
	l.mu.Lock()
	l.balance = new(big.Int).Set(balance)
	l.mu.Unlock()
}

// Overwrite replaces a stored hash without any checks, simulating an
// out-of-band change to the ledger entry.
func (l *Ledger) Overwrite(documentID, hash string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	record := l.records[documentID]
	record.DocumentID = documentID
	record.Hash = hash
	record.Exists = true
	l.records[documentID] = record
}

func cloneOr(v, fallback *big.Int) *big.Int {
	if v == nil {
		return fallback
	}
	return new(big.Int).Set(v)
}
