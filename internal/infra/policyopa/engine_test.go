package policyopa

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"sealtrack/internal/domain"
)

func testDocument() domain.Document {
	return domain.Document{
		ID:        "doc-1",
		CreatedBy: "owner-1",
		Status:    domain.DocumentStatusPending,
		Signers: []domain.Signer{
			{ID: "s1", Name: "Alice", Email: "Alice@Example.com"},
		},
	}
}

func TestAccessPolicy(t *testing.T) {
	engine, err := NewEngine(context.Background())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	ownerP := domain.Principal{Subject: "owner-1", Email: "owner@example.com"}
	signerP := domain.Principal{Subject: "alice", Email: "alice@example.com"}
	adminP := domain.Principal{Subject: "root", Email: "root@example.com", Roles: []string{domain.RoleAdmin}}
	stranger := domain.Principal{Subject: "eve", Email: "eve@example.com"}

	cases := []struct {
		name      string
		principal domain.Principal
		action    domain.AccessAction
		allow     bool
	}{
		{"owner edit", ownerP, domain.ActionEdit, true},
		{"owner reject", ownerP, domain.ActionReject, true},
		{"signer view", signerP, domain.ActionView, true},
		{"signer sign", signerP, domain.ActionSign, true},
		{"signer verify", signerP, domain.ActionVerify, true},
		{"signer edit", signerP, domain.ActionEdit, false},
		{"signer reject", signerP, domain.ActionReject, false},
		{"admin reject", adminP, domain.ActionReject, true},
		{"admin edit", adminP, domain.ActionEdit, false},
		{"stranger view", stranger, domain.ActionView, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := engine.Evaluate(context.Background(), domain.NewPolicyInput(tc.action, tc.principal, testDocument()))
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if result.Allow != tc.allow {
				t.Fatalf("allow = %v, want %v (deny=%+v)", result.Allow, tc.allow, result.Deny)
			}
			if !tc.allow && len(result.Deny) == 0 {
				t.Fatalf("expected deny reasons")
			}
		})
	}
}

func TestStrangerDenyCode(t *testing.T) {
	engine, err := NewEngine(context.Background())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	result, err := engine.Evaluate(context.Background(), domain.NewPolicyInput(domain.ActionView, domain.Principal{Subject: "eve"}, testDocument()))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(result.Deny) != 1 || result.Deny[0].Code != "NOT_PARTICIPANT" {
		t.Fatalf("unexpected deny: %+v", result.Deny)
	}
}

func TestForbiddenBuiltinRejected(t *testing.T) {
	dir := t.TempDir()
	src := "package sealtrack.access\n\nresult := {\"allow\": true, \"deny\": [], \"t\": time.now_ns()}\n"
	if err := os.WriteFile(filepath.Join(dir, "p.rego"), []byte(src), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	if _, err := NewEngineFromPath(context.Background(), dir); err == nil {
		t.Fatalf("expected policy using time.now_ns to be rejected")
	}
}

func TestNilEngine(t *testing.T) {
	var e *Engine
	if _, err := e.Evaluate(context.Background(), domain.PolicyInput{}); err == nil {
		t.Fatalf("expected error from nil engine")
	}
}
