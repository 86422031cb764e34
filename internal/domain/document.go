package domain

import (
	"strings"
	"time"
)

type DocumentStatus string

const (
	DocumentStatusDraft     DocumentStatus = "draft"
	DocumentStatusPending   DocumentStatus = "pending"
	DocumentStatusCompleted DocumentStatus = "completed"
	DocumentStatusRejected  DocumentStatus = "rejected"
)

// TimestampPrecision is the resolution every persisted timestamp keeps.
// Postgres TIMESTAMPTZ stores microseconds, so anything finer would not
// survive a round trip and the fingerprint could not be recomputed.
const TimestampPrecision = time.Microsecond

// StampTime normalizes t to UTC at TimestampPrecision.
func StampTime(t time.Time) time.Time {
	return t.UTC().Truncate(TimestampPrecision)
}

// Terminal reports whether no further edits or signatures are accepted.
func (s DocumentStatus) Terminal() bool {
	return s == DocumentStatusCompleted || s == DocumentStatusRejected
}

func (s DocumentStatus) Valid() bool {
	switch s {
	case DocumentStatusDraft, DocumentStatusPending, DocumentStatusCompleted, DocumentStatusRejected:
		return true
	}
	return false
}

type Signer struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Email              string     `json:"email"`
	WalletAddress      string     `json:"wallet_address,omitempty"`
	HasSigned          bool       `json:"has_signed"`
	SignatureTimestamp *time.Time `json:"signature_timestamp,omitempty"`
	SignatureHash      *string    `json:"signature_hash,omitempty"`
	SignatureDataURL   *string    `json:"signature_data_url,omitempty"`
}

// MatchesEmail compares addresses the way invitations are matched to
// authenticated principals.
func (s Signer) MatchesEmail(email string) bool {
	return NormalizeEmail(s.Email) != "" && NormalizeEmail(s.Email) == NormalizeEmail(email)
}

type Document struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Content        string         `json:"content"`
	TemplateID     string         `json:"template_id,omitempty"`
	CreatedBy      string         `json:"created_by"`
	OwnerEmail     string         `json:"owner_email,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	Status         DocumentStatus `json:"status"`
	Signers        []Signer       `json:"signers"`
	DocumentHash   *string        `json:"document_hash,omitempty"`
	BlockchainHash *string        `json:"blockchain_hash,omitempty"`
	IsAuthentic    *bool          `json:"is_authentic,omitempty"`
	LastVerifiedAt *time.Time     `json:"last_verified_at,omitempty"`
}

// Clone returns a deep copy so repositories never share signer slices or
// pointer fields with callers.
func (d Document) Clone() Document {
	out := d
	out.Signers = make([]Signer, len(d.Signers))
	for i, s := range d.Signers {
		out.Signers[i] = s.clone()
	}
	out.DocumentHash = cloneString(d.DocumentHash)
	out.BlockchainHash = cloneString(d.BlockchainHash)
	out.IsAuthentic = cloneBool(d.IsAuthentic)
	out.LastVerifiedAt = cloneTime(d.LastVerifiedAt)
	return out
}

func (s Signer) clone() Signer {
	out := s
	out.SignatureTimestamp = cloneTime(s.SignatureTimestamp)
	out.SignatureHash = cloneString(s.SignatureHash)
	out.SignatureDataURL = cloneString(s.SignatureDataURL)
	return out
}

func (d *Document) SignerByID(signerID string) (*Signer, bool) {
	for i := range d.Signers {
		if d.Signers[i].ID == signerID {
			return &d.Signers[i], true
		}
	}
	return nil, false
}

func (d *Document) SignerByEmail(email string) (*Signer, bool) {
	for i := range d.Signers {
		if d.Signers[i].MatchesEmail(email) {
			return &d.Signers[i], true
		}
	}
	return nil, false
}

// AllSigned is the completion predicate: a non-empty signer list where every
// entry has signed.
func (d *Document) AllSigned() bool {
	if len(d.Signers) == 0 {
		return false
	}
	for _, s := range d.Signers {
		if !s.HasSigned {
			return false
		}
	}
	return true
}

func (d *Document) AnySigned() bool {
	for _, s := range d.Signers {
		if s.HasSigned {
			return true
		}
	}
	return false
}

func (d *Document) ensureMutable() error {
	switch d.Status {
	case DocumentStatusCompleted:
		return ErrDocumentCompleted
	case DocumentStatusRejected:
		return ErrDocumentRejected
	}
	return nil
}

// AddSigner appends a signer in insertion order and moves the document to
// pending.
func (d *Document) AddSigner(signer Signer, now time.Time) error {
	if err := d.ensureMutable(); err != nil {
		return err
	}
	if signer.ID == "" || strings.TrimSpace(signer.Email) == "" || strings.TrimSpace(signer.Name) == "" {
		return ErrInvalidDocument
	}
	for _, existing := range d.Signers {
		if existing.ID == signer.ID {
			return ErrDuplicateSigner
		}
		if existing.MatchesEmail(signer.Email) {
			return ErrDuplicateSigner
		}
	}
	signer.HasSigned = false
	signer.SignatureTimestamp = nil
	signer.SignatureHash = nil
	signer.SignatureDataURL = nil
	d.Signers = append(d.Signers, signer)
	d.Status = DocumentStatusPending
	d.UpdatedAt = now
	return nil
}

// RecordSignature stamps the signer's commitment exactly once and recomputes
// completion. The returned flag tells the caller whether this signature
// completed the document.
func (d *Document) RecordSignature(signerID, signatureDataURL, signatureHash string, now time.Time) (bool, error) {
	if err := d.ensureMutable(); err != nil {
		return false, err
	}
	signer, ok := d.SignerByID(signerID)
	if !ok {
		return false, ErrSignerNotFound
	}
	if signer.HasSigned {
		return false, ErrAlreadySigned
	}
	if signatureHash == "" || signatureDataURL == "" {
		return false, ErrInvalidSignature
	}
	ts := StampTime(now)
	hash := signatureHash
	dataURL := signatureDataURL
	signer.HasSigned = true
	signer.SignatureTimestamp = &ts
	signer.SignatureHash = &hash
	signer.SignatureDataURL = &dataURL

	anchored := signatureHash
	d.BlockchainHash = &anchored
	d.UpdatedAt = now
	d.refreshStatus()
	return d.Status == DocumentStatusCompleted, nil
}

// Reject moves a non-terminal document to the rejected terminal state.
func (d *Document) Reject(now time.Time) error {
	if err := d.ensureMutable(); err != nil {
		return err
	}
	d.Status = DocumentStatusRejected
	d.UpdatedAt = now
	return nil
}

// Edit replaces the editable fields. Content is frozen once any signature
// exists because signatures commit to it.
func (d *Document) Edit(title, description, content *string, now time.Time) error {
	if err := d.ensureMutable(); err != nil {
		return err
	}
	if content != nil && *content != d.Content && d.AnySigned() {
		return ErrDocumentLocked
	}
	if title != nil {
		if strings.TrimSpace(*title) == "" {
			return ErrInvalidDocument
		}
		d.Title = *title
	}
	if description != nil {
		d.Description = *description
	}
	if content != nil {
		d.Content = *content
	}
	d.UpdatedAt = now
	return nil
}

// RecordVerification stores the outcome of a ledger verification.
func (d *Document) RecordVerification(authentic bool, now time.Time) {
	ts := StampTime(now)
	value := authentic
	d.IsAuthentic = &value
	d.LastVerifiedAt = &ts
}

func (d *Document) refreshStatus() {
	switch {
	case d.AllSigned():
		d.Status = DocumentStatusCompleted
	case len(d.Signers) == 0:
		d.Status = DocumentStatusDraft
	default:
		d.Status = DocumentStatusPending
	}
}

// InitialStatus is the status a freshly created document starts in.
func InitialStatus(signerCount int) DocumentStatus {
	if signerCount == 0 {
		return DocumentStatusDraft
	}
	return DocumentStatusPending
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cloneString(in *string) *string {
	if in == nil {
		return nil
	}
	v := *in
	return &v
}

func cloneBool(in *bool) *bool {
	if in == nil {
		return nil
	}
	v := *in
	return &v
}

func cloneTime(in *time.Time) *time.Time {
	if in == nil {
		return nil
	}
	v := *in
	return &v
}
