package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

func run(args []string) int {
	if len(args) < 2 {
		usage(args)
		return 1
	}

	switch args[1] {
	case "fingerprint":
		return runFingerprint(args[2:])
	case "wallet":
		if len(args) >= 3 {
			switch args[2] {
			case "generate":
				return runWalletGenerate(args[3:])
			case "address":
				return runWalletAddress(args[3:])
			case "sign":
				return runWalletSign(args[3:])
			case "recover":
				return runWalletRecover(args[3:])
			}
		}
	case "ledger":
		if len(args) >= 3 {
			switch args[2] {
			case "status":
				return runLedgerStatus(args[3:])
			case "get":
				return runLedgerGet(args[3:])
			case "verify":
				return runLedgerVerify(args[3:])
			case "store":
				return runLedgerStore(args[3:])
			}
		}
	case "token":
		if len(args) >= 3 && args[2] == "issue" {
			return runTokenIssue(args[3:])
		}
	}

	usage(args)
	return 1
}

func usage(args []string) {
	name := "sealctl"
	if len(args) > 0 && args[0] != "" {
		name = filepath.Base(args[0])
	}
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "  %s fingerprint --in <document.json> [--out <file>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s wallet generate [--out <file>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s wallet address --key-hex <hex>\n", name)
	fmt.Fprintf(os.Stderr, "  %s wallet sign --key-hex <hex> (--message <text>|--in <document.json>) [--out <file>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s wallet recover --signature <hex> (--message <text>|--in <document.json>)\n", name)
	fmt.Fprintf(os.Stderr, "  %s ledger status --rpc <url> --contract <address> [--chain-id <id>] [--key-hex <hex>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s ledger get --rpc <url> --contract <address> --document-id <id>\n", name)
	fmt.Fprintf(os.Stderr, "  %s ledger verify --rpc <url> --contract <address> --document-id <id> --hash <hash>\n", name)
	fmt.Fprintf(os.Stderr, "  %s ledger store --rpc <url> --contract <address> --key-hex <hex> --document-id <id> --hash <hash> [--min-reserve-wei <wei>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s token issue --signing-key <key> --subject <sub> [--email <email>] [--roles <a,b>] [--issuer <iss>] [--ttl <duration>]\n", name)
}

func writeOutput(path string, payload []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(payload)
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

func writeJSON(path string, v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return writeOutput(path, append(payload, '\n'))
}
