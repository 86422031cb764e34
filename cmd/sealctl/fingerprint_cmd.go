package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"sealtrack/internal/domain"
	"sealtrack/internal/infra/crypto"
)

func runFingerprint(args []string) int {
	fs := flag.NewFlagSet("fingerprint", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var inPath string
	var outPath string
	var canonical bool
	fs.StringVar(&inPath, "in", "", "document JSON path")
	fs.StringVar(&outPath, "out", "", "output path (default stdout)")
	fs.BoolVar(&canonical, "canonical", false, "print the canonical payload instead of the hash")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if inPath == "" {
		fmt.Fprintln(os.Stderr, "fingerprint requires --in")
		return 1
	}

	doc, err := readDocument(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	if canonical {
		payload, err := crypto.CanonicalFingerprintPayload(doc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "canonicalize document: %v\n", err)
			return 1
		}
		if err := writeOutput(outPath, append(payload, '\n')); err != nil {
			fmt.Fprintf(os.Stderr, "write output: %v\n", err)
			return 1
		}
		return 0
	}

	hash, err := crypto.Fingerprint(doc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fingerprint document: %v\n", err)
		return 1
	}
	if err := writeOutput(outPath, []byte(hash+"\n")); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}

func readDocument(path string) (domain.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("read document: %w", err)
	}
	var doc domain.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.Document{}, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}
