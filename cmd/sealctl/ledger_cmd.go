package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"os"
	"time"

	"go.uber.org/zap"

	"sealtrack/internal/infra/ledger"
)

type ledgerFlags struct {
	rpcURL        string
	contract      string
	chainID       int64
	keyHex        string
	minReserveWei string
	timeout       time.Duration
}

func (f *ledgerFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.rpcURL, "rpc", os.Getenv("LEDGER_RPC_URL"), "JSON-RPC endpoint")
	fs.StringVar(&f.contract, "contract", os.Getenv("LEDGER_CONTRACT_ADDRESS"), "registry contract address")
	fs.Int64Var(&f.chainID, "chain-id", 0, "expected chain id (0 accepts any)")
	fs.StringVar(&f.keyHex, "key-hex", "", "signing key hex")
	fs.StringVar(&f.minReserveWei, "min-reserve-wei", "0", "balance that must remain after a write")
	fs.DurationVar(&f.timeout, "timeout", 2*time.Minute, "overall command timeout")
}

func (f *ledgerFlags) dial(ctx context.Context) (*ledger.Client, error) {
	if f.rpcURL == "" || f.contract == "" {
		return nil, errors.New("--rpc and --contract are required")
	}
	reserve, ok := new(big.Int).SetString(f.minReserveWei, 10)
	if !ok || reserve.Sign() < 0 {
		return nil, fmt.Errorf("invalid --min-reserve-wei %q", f.minReserveWei)
	}
	return ledger.Dial(ctx, f.rpcURL, ledger.Config{
		ContractAddress: f.contract,
		ChainID:         f.chainID,
		PrivateKeyHex:   f.keyHex,
		MinReserveWei:   reserve,
		ConfirmTimeout:  f.timeout,
	}, zap.NewNop())
}

func runLedgerStatus(args []string) int {
	fs := flag.NewFlagSet("ledger status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var lf ledgerFlags
	lf.register(fs)
	if err := fs.Parse(args); err != nil {
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), lf.timeout)
	defer cancel()
	client, err := lf.dial(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect ledger: %v\n", err)
		return 1
	}
	status, err := client.Status(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ledger status: %v\n", err)
		return 1
	}
	out := map[string]any{
		"provider":         status.Provider,
		"contract_address": status.ContractAddress,
		"chain_id":         status.ChainID,
		"exists":           status.Exists,
		"signer_address":   status.SignerAddress,
	}
	if status.Balance != nil {
		out["balance_wei"] = status.Balance.String()
	}
	if err := writeJSON("", out); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}

func runLedgerGet(args []string) int {
	fs := flag.NewFlagSet("ledger get", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var lf ledgerFlags
	var documentID string
	lf.register(fs)
	fs.StringVar(&documentID, "document-id", "", "document id")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if documentID == "" {
		fmt.Fprintln(os.Stderr, "ledger get requires --document-id")
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), lf.timeout)
	defer cancel()
	client, err := lf.dial(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect ledger: %v\n", err)
		return 1
	}
	record, err := client.Fetch(ctx, documentID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fetch record: %v\n", err)
		return 1
	}
	out := map[string]any{
		"document_id": record.DocumentID,
		"hash":        record.Hash,
		"creator":     record.Creator,
		"timestamp":   record.Timestamp.UTC().Format(time.RFC3339),
		"exists":      record.Exists,
	}
	if err := writeJSON("", out); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}

func runLedgerVerify(args []string) int {
	fs := flag.NewFlagSet("ledger verify", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var lf ledgerFlags
	var documentID string
	var hash string
	lf.register(fs)
	fs.StringVar(&documentID, "document-id", "", "document id")
	fs.StringVar(&hash, "hash", "", "expected hash")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if documentID == "" || hash == "" {
		fmt.Fprintln(os.Stderr, "ledger verify requires --document-id and --hash")
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), lf.timeout)
	defer cancel()
	client, err := lf.dial(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect ledger: %v\n", err)
		return 1
	}
	matches, err := client.Read(ctx, documentID, hash)
	if err != nil {
		fmt.Fprintf(os.Stderr, "verify record: %v\n", err)
		return 1
	}
	if !matches {
		fmt.Fprintln(os.Stdout, "mismatch")
		return 2
	}
	fmt.Fprintln(os.Stdout, "authentic")
	return 0
}

func runLedgerStore(args []string) int {
	fs := flag.NewFlagSet("ledger store", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var lf ledgerFlags
	var documentID string
	var hash string
	lf.register(fs)
	fs.StringVar(&documentID, "document-id", "", "document id")
	fs.StringVar(&hash, "hash", "", "hash to commit")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if documentID == "" || hash == "" || lf.keyHex == "" {
		fmt.Fprintln(os.Stderr, "ledger store requires --document-id, --hash and --key-hex")
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), lf.timeout)
	defer cancel()
	client, err := lf.dial(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect ledger: %v\n", err)
		return 1
	}
	commitment, err := client.Write(ctx, documentID, hash)
	if err != nil {
		fmt.Fprintf(os.Stderr, "store hash: %v\n", err)
		return 1
	}
	out := map[string]any{
		"document_id":  commitment.DocumentID,
		"hash":         commitment.Hash,
		"tx_hash":      commitment.TxHash,
		"block_number": commitment.BlockNumber,
		"chain_id":     commitment.ChainID,
		"gas_used":     commitment.GasUsed,
	}
	if commitment.Cost != nil {
		out["cost_wei"] = commitment.Cost.String()
	}
	if err := writeJSON("", out); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}
