package ledger

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"sealtrack/internal/domain"
)

// Wallet is a local signing identity that signs document fingerprints with
// the personal-message prefix, the same way browser wallets do.
type Wallet struct {
	key *ecdsa.PrivateKey
}

func NewWallet(privateKeyHex string) (*Wallet, error) {
	keyHex := strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	if keyHex == "" {
		return nil, domain.ErrNoSigningIdentity
	}
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("parse wallet key: %w", err)
	}
	return &Wallet{key: key}, nil
}

func GenerateWallet() (*Wallet, string, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, "", err
	}
	return &Wallet{key: key}, hexutil.Encode(crypto.FromECDSA(key)), nil
}

func (w *Wallet) Address() string {
	return crypto.PubkeyToAddress(w.key.PublicKey).Hex()
}

// Sign returns the 0x-prefixed 65-byte signature over message.
func (w *Wallet) Sign(message []byte) (string, error) {
	if w == nil || w.key == nil {
		return "", domain.ErrSigningRejected
	}
	sig, err := crypto.Sign(accounts.TextHash(message), w.key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrSigningRejected, err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

// RecoverAddress returns the address whose key produced signature over
// message. Both 0/1 and 27/28 recovery ids are accepted.
func RecoverAddress(message []byte, signature string) (string, error) {
	raw := strings.TrimSpace(signature)
	if !strings.HasPrefix(raw, "0x") && !strings.HasPrefix(raw, "0X") {
		raw = "0x" + raw
	}
	sig, err := hexutil.Decode(raw)
	if err != nil {
		return "", fmt.Errorf("decode signature: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return "", errors.New("signature must be 65 bytes")
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash(message), sig)
	if err != nil {
		return "", fmt.Errorf("recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub).Hex(), nil
}

type Recoverer struct{}

func (Recoverer) RecoverAddress(message []byte, signature string) (string, error) {
	return RecoverAddress(message, signature)
}
