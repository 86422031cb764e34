package main

import (
	"flag"
	"fmt"
	"os"

	"sealtrack/internal/infra/crypto"
	"sealtrack/internal/infra/ledger"
)

type walletKey struct {
	Address       string `json:"address"`
	PrivateKeyHex string `json:"private_key_hex"`
}

func runWalletGenerate(args []string) int {
	fs := flag.NewFlagSet("wallet generate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var outPath string
	fs.StringVar(&outPath, "out", "", "output path (default stdout)")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	wallet, keyHex, err := ledger.GenerateWallet()
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate wallet: %v\n", err)
		return 1
	}
	if err := writeJSON(outPath, walletKey{Address: wallet.Address(), PrivateKeyHex: keyHex}); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}

func runWalletAddress(args []string) int {
	fs := flag.NewFlagSet("wallet address", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var keyHex string
	fs.StringVar(&keyHex, "key-hex", "", "secp256k1 private key hex")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	wallet, err := ledger.NewWallet(keyHex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load wallet: %v\n", err)
		return 1
	}
	fmt.Fprintln(os.Stdout, wallet.Address())
	return 0
}

func runWalletSign(args []string) int {
	fs := flag.NewFlagSet("wallet sign", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var keyHex string
	var message string
	var inPath string
	var outPath string
	fs.StringVar(&keyHex, "key-hex", "", "secp256k1 private key hex")
	fs.StringVar(&message, "message", "", "message to sign")
	fs.StringVar(&inPath, "in", "", "document JSON path; its fingerprint is signed")
	fs.StringVar(&outPath, "out", "", "output path (default stdout)")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	payload, ok := signingMessage(message, inPath)
	if !ok {
		return 1
	}
	wallet, err := ledger.NewWallet(keyHex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load wallet: %v\n", err)
		return 1
	}
	sig, err := wallet.Sign(payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign: %v\n", err)
		return 1
	}
	if err := writeOutput(outPath, []byte(sig+"\n")); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}

func runWalletRecover(args []string) int {
	fs := flag.NewFlagSet("wallet recover", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var signature string
	var message string
	var inPath string
	fs.StringVar(&signature, "signature", "", "0x-prefixed 65-byte signature")
	fs.StringVar(&message, "message", "", "signed message")
	fs.StringVar(&inPath, "in", "", "document JSON path; its fingerprint is the message")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if signature == "" {
		fmt.Fprintln(os.Stderr, "wallet recover requires --signature")
		return 1
	}

	payload, ok := signingMessage(message, inPath)
	if !ok {
		return 1
	}
	address, err := ledger.RecoverAddress(payload, signature)
	if err != nil {
		fmt.Fprintf(os.Stderr, "recover address: %v\n", err)
		return 1
	}
	fmt.Fprintln(os.Stdout, address)
	return 0
}

// signingMessage resolves exactly one of a literal message or a document
// whose fingerprint is the message.
func signingMessage(message, inPath string) ([]byte, bool) {
	if (message == "") == (inPath == "") {
		fmt.Fprintln(os.Stderr, "exactly one of --message or --in is required")
		return nil, false
	}
	if message != "" {
		return []byte(message), true
	}
	doc, err := readDocument(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return nil, false
	}
	hash, err := crypto.Fingerprint(doc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fingerprint document: %v\n", err)
		return nil, false
	}
	return []byte(hash), true
}
