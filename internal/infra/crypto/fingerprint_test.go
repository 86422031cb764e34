package crypto

import (
	"regexp"
	"testing"
	"time"

	"sealtrack/internal/domain"
)

var hexDigest = regexp.MustCompile(`^[0-9a-f]{64}$`)

func fixtureDocument() domain.Document {
	return domain.Document{
		ID:        "8d1c9a5e-0000-4000-8000-000000000001",
		Title:     "Lease",
		Content:   "<p>terms</p>",
		CreatedBy: "owner-1",
		CreatedAt: time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
		Status:    domain.DocumentStatusPending,
		Signers: []domain.Signer{
			{ID: "s1", Name: "Alice", Email: "alice@example.com"},
			{ID: "s2", Name: "Bob", Email: "bob@example.com"},
		},
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	doc := fixtureDocument()
	first, err := Fingerprint(doc)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	second, err := Fingerprint(doc.Clone())
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if first != second {
		t.Fatalf("expected identical fingerprints, got %s and %s", first, second)
	}
	if !hexDigest.MatchString(first) {
		t.Fatalf("expected lowercase hex sha256, got %q", first)
	}
}

func TestFingerprintIgnoresSignerOrder(t *testing.T) {
	doc := fixtureDocument()
	swapped := doc.Clone()
	swapped.Signers[0], swapped.Signers[1] = swapped.Signers[1], swapped.Signers[0]

	a, _ := Fingerprint(doc)
	b, _ := Fingerprint(swapped)
	if a != b {
		t.Fatalf("signer order changed the fingerprint")
	}
}

func TestFingerprintIgnoresNonSignableFields(t *testing.T) {
	doc := fixtureDocument()
	base, _ := Fingerprint(doc)

	other := doc.Clone()
	other.Description = "changed"
	other.Status = domain.DocumentStatusRejected
	other.UpdatedAt = time.Now()
	got, _ := Fingerprint(other)
	if got != base {
		t.Fatalf("description/status/updated_at must not affect the fingerprint")
	}
}

func TestFingerprintSensitiveToSignableFields(t *testing.T) {
	base, _ := Fingerprint(fixtureDocument())
	mutations := map[string]func(d *domain.Document){
		"content": func(d *domain.Document) { d.Content = "<p>other</p>" },
		"title":   func(d *domain.Document) { d.Title = "Lease 2" },
		"signer email": func(d *domain.Document) {
			d.Signers[1].Email = "robert@example.com"
		},
		"signature": func(d *domain.Document) {
			if _, err := d.RecordSignature("s1", "data:x", "0xabc", time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)); err != nil {
				panic(err)
			}
		},
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			doc := fixtureDocument()
			mutate(&doc)
			got, err := Fingerprint(doc)
			if err != nil {
				t.Fatalf("fingerprint: %v", err)
			}
			if got == base {
				t.Fatalf("expected fingerprint to change after %s mutation", name)
			}
		})
	}
}

func TestCanonicalPayloadNullsAndUTC(t *testing.T) {
	doc := fixtureDocument()
	doc.CreatedAt = time.Date(2026, 3, 4, 12, 0, 0, 0, time.FixedZone("CET", 2*3600))
	payload, err := CanonicalFingerprintPayload(doc)
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	want := `{"content":"<p>terms</p>","created_at":"2026-03-04T10:00:00.000000Z","created_by":"owner-1",` +
		`"id":"8d1c9a5e-0000-4000-8000-000000000001","signers":[` +
		`{"email":"alice@example.com","has_signed":false,"id":"s1","name":"Alice","signature_hash":null,"signature_timestamp":null},` +
		`{"email":"bob@example.com","has_signed":false,"id":"s2","name":"Bob","signature_hash":null,"signature_timestamp":null}],` +
		`"title":"Lease"}`
	if string(payload) != want {
		t.Fatalf("unexpected payload\n got %s\nwant %s", payload, want)
	}
}

func TestFingerprintSurvivesStoragePrecision(t *testing.T) {
	doc := fixtureDocument()
	doc.CreatedAt = time.Date(2026, 3, 4, 10, 0, 5, 123456789, time.UTC)
	signedAt := time.Date(2026, 3, 5, 9, 30, 1, 987654321, time.UTC)
	if _, err := doc.RecordSignature("s1", "data:x", "0xabc", signedAt); err != nil {
		t.Fatalf("record signature: %v", err)
	}
	stamped, err := Fingerprint(doc)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}

	stored := doc.Clone()
	stored.CreatedAt = doc.CreatedAt.Truncate(time.Microsecond).In(time.FixedZone("UTC+1", 3600))
	ts := signedAt.Truncate(time.Microsecond)
	stored.Signers[0].SignatureTimestamp = &ts
	recomputed, err := Fingerprint(stored)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if stamped != recomputed {
		t.Fatalf("fingerprint changed after storage round trip: %s != %s", stamped, recomputed)
	}
}
