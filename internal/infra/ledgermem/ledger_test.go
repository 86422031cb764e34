package ledgermem

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"sealtrack/internal/domain"
)

func TestWriteReadFetch(t *testing.T) {
	l := New(Options{})
	ctx := context.Background()

	commitment, err := l.Write(ctx, "doc-1", "0xabc")
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if commitment.TxHash == "" || commitment.BlockNumber != 1 {
		t.Fatalf("unexpected commitment: %+v", commitment)
	}
	ok, err := l.Read(ctx, "doc-1", "0xabc")
	if err != nil || !ok {
		t.Fatalf("expected match, got %v %v", ok, err)
	}
	ok, err = l.Read(ctx, "doc-1", "0xother")
	if err != nil || ok {
		t.Fatalf("expected mismatch without error, got %v %v", ok, err)
	}
	record, err := l.Fetch(ctx, "doc-1")
	if err != nil || record.Hash != "0xabc" || !record.Exists {
		t.Fatalf("unexpected record %+v err=%v", record, err)
	}
	if _, err := l.Fetch(ctx, "missing"); !errors.Is(err, domain.ErrLedgerRecordNotFound) {
		t.Fatalf("expected ErrLedgerRecordNotFound, got %v", err)
	}
}

func TestWriteCostShortfall(t *testing.T) {
	l := New(Options{
		Balance:     big.NewInt(50_000),
		GasPrice:    big.NewInt(1),
		GasPerWrite: 60_000,
		MinReserve:  big.NewInt(10_000),
	})
	_, err := l.Write(context.Background(), "doc-1", "0xabc")
	var funds *domain.InsufficientFundsError
	if !errors.As(err, &funds) {
		t.Fatalf("expected InsufficientFundsError, got %v", err)
	}
	if funds.Check != domain.FundsCheckCost || funds.Shortfall.Int64() != 10_001 {
		t.Fatalf("unexpected funds error: %+v", funds)
	}
	if _, err := l.Fetch(context.Background(), "doc-1"); !errors.Is(err, domain.ErrLedgerRecordNotFound) {
		t.Fatalf("nothing should have been written")
	}
}

func TestWriteReserveShortfall(t *testing.T) {
	l := New(Options{Balance: big.NewInt(5), MinReserve: big.NewInt(10)})
	_, err := l.Write(context.Background(), "doc-1", "0xabc")
	var funds *domain.InsufficientFundsError
	if !errors.As(err, &funds) || funds.Check != domain.FundsCheckReserve {
		t.Fatalf("expected reserve failure, got %v", err)
	}
}

func TestWriteRequiresBalanceToExceedLimits(t *testing.T) {
	tests := []struct {
		name  string
		opts  Options
		check domain.FundsCheck
	}{
		{"reserve", Options{Balance: big.NewInt(10), MinReserve: big.NewInt(10), GasPrice: big.NewInt(1), GasPerWrite: 1}, domain.FundsCheckReserve},
		{"cost", Options{Balance: big.NewInt(100), MinReserve: big.NewInt(1), GasPrice: big.NewInt(1), GasPerWrite: 100}, domain.FundsCheckCost},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(tt.opts)
			_, err := l.Write(context.Background(), "doc-1", "0xabc")
			var funds *domain.InsufficientFundsError
			if !errors.As(err, &funds) || funds.Check != tt.check {
				t.Fatalf("expected %s failure, got %v", tt.check, err)
			}
			if funds.Shortfall.Int64() != 1 {
				t.Fatalf("expected shortfall of 1 wei, got %s", funds.Shortfall)
			}
		})
	}
}

func TestUndeployed(t *testing.T) {
	l := New(Options{})
	l.SetDeployed(false)
	if l.Exists(context.Background()) {
		t.Fatalf("expected not deployed")
	}
	if _, err := l.Write(context.Background(), "d", "h"); !errors.Is(err, domain.ErrLedgerUnavailable) {
		t.Fatalf("expected ErrLedgerUnavailable, got %v", err)
	}
	if _, err := l.Read(context.Background(), "d", "h"); !errors.Is(err, domain.ErrLedgerUnavailable) {
		t.Fatalf("expected ErrLedgerUnavailable, got %v", err)
	}
}

func TestWriteDeductsCost(t *testing.T) {
	l := New(Options{Balance: big.NewInt(1_000_000), GasPrice: big.NewInt(2), GasPerWrite: 100})
	if _, err := l.Write(context.Background(), "d", "h"); err != nil {
		t.Fatalf("write: %v", err)
	}
	status, _ := l.Status(context.Background())
	if status.Balance.Int64() != 999_800 {
		t.Fatalf("unexpected balance %s", status.Balance)
	}
}
