package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	"sealtrack/internal/domain"
)

const FingerprintAlg = "sha256"

type fingerprintPayload struct {
	ID        string              `json:"id"`
	Title     string              `json:"title"`
	Content   string              `json:"content"`
	CreatedAt string              `json:"created_at"`
	CreatedBy string              `json:"created_by"`
	Signers   []fingerprintSigner `json:"signers"`
}

type fingerprintSigner struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	Email              string  `json:"email"`
	HasSigned          bool    `json:"has_signed"`
	SignatureTimestamp *string `json:"signature_timestamp"`
	SignatureHash      *string `json:"signature_hash"`
}

// Fingerprint returns the hex SHA-256 of the document's signable projection.
// Signers are ordered by id so the result depends only on logical content.
func Fingerprint(doc domain.Document) (string, error) {
	canonical, err := CanonicalFingerprintPayload(doc)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// CanonicalFingerprintPayload exposes the exact bytes that are hashed.
func CanonicalFingerprintPayload(doc domain.Document) ([]byte, error) {
	return CanonicalizeAny(buildFingerprintPayload(doc))
}

func buildFingerprintPayload(doc domain.Document) fingerprintPayload {
	signers := make([]fingerprintSigner, 0, len(doc.Signers))
	for _, s := range doc.Signers {
		signers = append(signers, fingerprintSigner{
			ID:                 s.ID,
			Name:               s.Name,
			Email:              s.Email,
			HasSigned:          s.HasSigned,
			SignatureTimestamp: formatTimePtr(s.SignatureTimestamp),
			SignatureHash:      s.SignatureHash,
		})
	}
	sort.SliceStable(signers, func(i, j int) bool {
		return signers[i].ID < signers[j].ID
	})
	return fingerprintPayload{
		ID:        doc.ID,
		Title:     doc.Title,
		Content:   doc.Content,
		CreatedAt: formatTime(doc.CreatedAt),
		CreatedBy: doc.CreatedBy,
		Signers:   signers,
	}
}

// timestampLayout renders fixed microsecond precision, matching what the
// document store keeps.
const timestampLayout = "2006-01-02T15:04:05.000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return domain.StampTime(t).Format(timestampLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// Service adapts the package functions to the usecase Hasher interface.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

func (s *Service) Fingerprint(doc domain.Document) (string, error) {
	return Fingerprint(doc)
}
