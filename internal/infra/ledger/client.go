package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"sealtrack/internal/domain"
)

const ProviderName = "ethereum"

const defaultConfirmTimeout = 2 * time.Minute

// Backend is the subset of *ethclient.Client used by the adapter.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

type Config struct {
	ContractAddress string
	// ChainID is the expected network. Zero accepts whatever the node reports.
	ChainID        int64
	PrivateKeyHex  string
	MinReserveWei  *big.Int
	ConfirmTimeout time.Duration
}

// Client is the commitment store backed by the registry contract. It owns a
// single signing identity, so writes are serialized to keep nonces ordered.
type Client struct {
	backend        Backend
	contract       common.Address
	chainID        *big.Int
	registry       abi.ABI
	key            *ecdsa.PrivateKey
	from           common.Address
	minReserve     *big.Int
	confirmTimeout time.Duration
	logger         *zap.Logger
	now            func() time.Time

	writeMu sync.Mutex
}

func Dial(ctx context.Context, rpcURL string, cfg Config, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(rpcURL) == "" {
		return nil, errors.New("ledger rpc url is required")
	}
	backend, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial ledger rpc: %w", err)
	}
	return New(backend, cfg, logger)
}

func New(backend Backend, cfg Config, logger *zap.Logger) (*Client, error) {
	if backend == nil {
		return nil, errors.New("ledger backend is required")
	}
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", cfg.ContractAddress)
	}
	registry, err := parseRegistryABI()
	if err != nil {
		return nil, fmt.Errorf("parse registry abi: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		backend:        backend,
		contract:       common.HexToAddress(cfg.ContractAddress),
		registry:       registry,
		minReserve:     new(big.Int),
		confirmTimeout: cfg.ConfirmTimeout,
		logger:         logger,
		now:            time.Now,
	}
	if cfg.ChainID != 0 {
		c.chainID = big.NewInt(cfg.ChainID)
	}
	if cfg.MinReserveWei != nil {
		c.minReserve = new(big.Int).Set(cfg.MinReserveWei)
	}
	if c.confirmTimeout <= 0 {
		c.confirmTimeout = defaultConfirmTimeout
	}
	if keyHex := strings.TrimPrefix(strings.TrimSpace(cfg.PrivateKeyHex), "0x"); keyHex != "" {
		key, err := crypto.HexToECDSA(keyHex)
		if err != nil {
			return nil, fmt.Errorf("parse ledger private key: %w", err)
		}
		c.key = key
		c.from = crypto.PubkeyToAddress(key.PublicKey)
	}
	return c, nil
}

func (c *Client) ProviderName() string {
	return ProviderName
}

// SignerAddress is empty when no signing identity is configured.
func (c *Client) SignerAddress() string {
	if c.key == nil {
		return ""
	}
	return c.from.Hex()
}

// Exists reports whether contract code is deployed at the configured address.
// Any RPC failure counts as absent.
func (c *Client) Exists(ctx context.Context) bool {
	code, err := c.backend.CodeAt(ctx, c.contract, nil)
	if err != nil {
		c.logger.Debug("ledger code lookup failed", zap.Error(err))
		return false
	}
	return len(code) > 0
}

func (c *Client) Write(ctx context.Context, documentID, hash string) (domain.Commitment, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	chainID, err := c.checkNetwork(ctx)
	if err != nil {
		return domain.Commitment{}, err
	}
	if !c.Exists(ctx) {
		return domain.Commitment{}, fmt.Errorf("%w: no contract code at %s", domain.ErrLedgerUnavailable, c.contract.Hex())
	}
	if c.key == nil {
		return domain.Commitment{}, domain.ErrNoSigningIdentity
	}

	balance, err := c.backend.BalanceAt(ctx, c.from, nil)
	if err != nil {
		return domain.Commitment{}, fmt.Errorf("%w: balance lookup: %v", domain.ErrLedgerUnavailable, err)
	}
	if balance.Cmp(c.minReserve) <= 0 {
		return domain.Commitment{}, domain.NewInsufficientFundsError(domain.FundsCheckReserve, balance, c.minReserve)
	}

	data, err := c.registry.Pack(methodStore, DocumentKey(documentID), hash)
	if err != nil {
		return domain.Commitment{}, fmt.Errorf("pack %s: %w", methodStore, err)
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return domain.Commitment{}, fmt.Errorf("suggest gas price: %w", err)
	}
	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:     c.from,
		To:       &c.contract,
		GasPrice: gasPrice,
		Data:     data,
	})
	if err != nil {
		return domain.Commitment{}, fmt.Errorf("estimate gas: %w", err)
	}
	cost := new(big.Int).Mul(new(big.Int).SetUint64(gas), gasPrice)
	if balance.Cmp(cost) <= 0 {
		return domain.Commitment{}, domain.NewInsufficientFundsError(domain.FundsCheckCost, balance, cost)
	}

	nonce, err := c.backend.PendingNonceAt(ctx, c.from)
	if err != nil {
		return domain.Commitment{}, fmt.Errorf("pending nonce: %w", err)
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &c.contract,
		Value:    new(big.Int),
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), c.key)
	if err != nil {
		return domain.Commitment{}, fmt.Errorf("sign transaction: %w", err)
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return domain.Commitment{}, fmt.Errorf("send transaction: %w", err)
	}
	c.logger.Info("ledger transaction submitted",
		zap.String("document_id", documentID),
		zap.String("tx_hash", signed.Hash().Hex()),
		zap.Uint64("gas", gas))

	waitCtx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	receipt, err := bind.WaitMined(waitCtx, c.backend, signed)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return domain.Commitment{}, fmt.Errorf("%w: tx %s after %s", domain.ErrConfirmationTimeout, signed.Hash().Hex(), c.confirmTimeout)
		}
		return domain.Commitment{}, fmt.Errorf("wait for receipt: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return domain.Commitment{}, fmt.Errorf("%w: tx %s", domain.ErrTransactionRejected, signed.Hash().Hex())
	}

	commitment := domain.Commitment{
		DocumentID:  documentID,
		Hash:        hash,
		TxHash:      signed.Hash().Hex(),
		ChainID:     chainID.String(),
		GasUsed:     receipt.GasUsed,
		Cost:        new(big.Int).Mul(new(big.Int).SetUint64(receipt.GasUsed), gasPrice),
		ConfirmedAt: c.now().UTC(),
	}
	if receipt.BlockNumber != nil {
		commitment.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return commitment, nil
}

// Read compares expectedHash with the ledger entry. A mismatch is a false
// result, not an error.
func (c *Client) Read(ctx context.Context, documentID, expectedHash string) (bool, error) {
	if err := c.readPreconditions(ctx); err != nil {
		return false, err
	}
	out, err := c.call(ctx, methodVerify, DocumentKey(documentID), expectedHash)
	if err != nil {
		return false, err
	}
	if len(out) != 1 {
		return false, fmt.Errorf("%s: unexpected output arity %d", methodVerify, len(out))
	}
	matches, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("%s: unexpected output type %T", methodVerify, out[0])
	}
	return matches, nil
}

func (c *Client) Fetch(ctx context.Context, documentID string) (domain.LedgerRecord, error) {
	if err := c.readPreconditions(ctx); err != nil {
		return domain.LedgerRecord{}, err
	}
	out, err := c.call(ctx, methodGet, DocumentKey(documentID))
	if err != nil {
		return domain.LedgerRecord{}, err
	}
	if len(out) != 4 {
		return domain.LedgerRecord{}, fmt.Errorf("%s: unexpected output arity %d", methodGet, len(out))
	}
	hash, _ := out[0].(string)
	creator, _ := out[1].(common.Address)
	timestamp, _ := out[2].(*big.Int)
	exists, _ := out[3].(bool)
	if !exists {
		return domain.LedgerRecord{}, domain.ErrLedgerRecordNotFound
	}
	record := domain.LedgerRecord{
		DocumentID: documentID,
		Hash:       hash,
		Creator:    creator.Hex(),
		Exists:     true,
	}
	if timestamp != nil {
		record.Timestamp = time.Unix(timestamp.Int64(), 0).UTC()
	}
	return record, nil
}

func (c *Client) Status(ctx context.Context) (domain.LedgerStatus, error) {
	status := domain.LedgerStatus{
		Provider:        ProviderName,
		ContractAddress: c.contract.Hex(),
		Exists:          c.Exists(ctx),
		SignerAddress:   c.SignerAddress(),
	}
	id, err := c.backend.ChainID(ctx)
	if err != nil {
		return status, fmt.Errorf("%w: %v", domain.ErrLedgerUnavailable, err)
	}
	status.ChainID = id.String()
	if c.key != nil {
		balance, err := c.backend.BalanceAt(ctx, c.from, nil)
		if err != nil {
			return status, fmt.Errorf("%w: balance lookup: %v", domain.ErrLedgerUnavailable, err)
		}
		status.Balance = balance
	}
	return status, nil
}

func (c *Client) readPreconditions(ctx context.Context) error {
	if _, err := c.checkNetwork(ctx); err != nil {
		return err
	}
	if !c.Exists(ctx) {
		return fmt.Errorf("%w: no contract code at %s", domain.ErrLedgerUnavailable, c.contract.Hex())
	}
	return nil
}

// checkNetwork returns the chain id to sign for, failing when the node is on
// a different network than configured.
func (c *Client) checkNetwork(ctx context.Context) (*big.Int, error) {
	id, err := c.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: chain id: %v", domain.ErrLedgerUnavailable, err)
	}
	if c.chainID != nil && id.Cmp(c.chainID) != 0 {
		return nil, fmt.Errorf("%w: node is on chain %s, expected %s", domain.ErrWrongNetwork, id, c.chainID)
	}
	return id, nil
}

func (c *Client) call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := c.registry.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	raw, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	out, err := c.registry.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return out, nil
}
