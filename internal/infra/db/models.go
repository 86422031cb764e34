package db

import (
	"sort"
	"time"

	"sealtrack/internal/domain"
)

type DocumentModel struct {
	ID             string `gorm:"primaryKey"`
	Title          string `gorm:"not null"`
	Description    string
	Content        string
	TemplateID     *string
	CreatedBy      string `gorm:"index;not null"`
	OwnerEmail     *string
	Status         string `gorm:"not null"`
	DocumentHash   *string
	BlockchainHash *string
	IsAuthentic    *bool
	LastVerifiedAt *time.Time
	CreatedAt      time.Time     `gorm:"not null"`
	UpdatedAt      time.Time     `gorm:"not null"`
	Signers        []SignerModel `gorm:"foreignKey:DocumentID"`
}

func (DocumentModel) TableName() string { return "documents" }

type SignerModel struct {
	ID                 string `gorm:"primaryKey"`
	DocumentID         string `gorm:"index;not null"`
	Position           int    `gorm:"not null"`
	Name               string `gorm:"not null"`
	Email              string `gorm:"index;not null"`
	WalletAddress      *string
	HasSigned          bool `gorm:"not null"`
	SignatureTimestamp *time.Time
	SignatureHash      *string
	SignatureDataURL   *string `gorm:"column:signature_data_url"`
}

func (SignerModel) TableName() string { return "signers" }

type AnchorAttemptModel struct {
	ID          int64  `gorm:"primaryKey"`
	DocumentID  string `gorm:"index;not null"`
	Provider    string `gorm:"not null"`
	Status      string `gorm:"not null"`
	ErrorCode   *string
	Message     *string
	PayloadHash string `gorm:"not null"`
	TxHash      *string
	ChainID     *string
	BlockNumber *int64
	CreatedAt   time.Time `gorm:"not null"`
}

func (AnchorAttemptModel) TableName() string { return "anchor_attempts" }

func documentToModel(doc domain.Document) DocumentModel {
	model := DocumentModel{
		ID:             doc.ID,
		Title:          doc.Title,
		Description:    doc.Description,
		Content:        doc.Content,
		TemplateID:     stringPtrIfNotEmpty(doc.TemplateID),
		CreatedBy:      doc.CreatedBy,
		OwnerEmail:     stringPtrIfNotEmpty(doc.OwnerEmail),
		Status:         string(doc.Status),
		DocumentHash:   cloneStringPtr(doc.DocumentHash),
		BlockchainHash: cloneStringPtr(doc.BlockchainHash),
		LastVerifiedAt: utcPtr(doc.LastVerifiedAt),
		CreatedAt:      doc.CreatedAt.UTC(),
		UpdatedAt:      doc.UpdatedAt.UTC(),
	}
	if doc.IsAuthentic != nil {
		v := *doc.IsAuthentic
		model.IsAuthentic = &v
	}
	model.Signers = make([]SignerModel, 0, len(doc.Signers))
	for i, s := range doc.Signers {
		model.Signers = append(model.Signers, signerToModel(doc.ID, i, s))
	}
	return model
}

func signerToModel(documentID string, position int, s domain.Signer) SignerModel {
	return SignerModel{
		ID:                 s.ID,
		DocumentID:         documentID,
		Position:           position,
		Name:               s.Name,
		Email:              domain.NormalizeEmail(s.Email),
		WalletAddress:      stringPtrIfNotEmpty(s.WalletAddress),
		HasSigned:          s.HasSigned,
		SignatureTimestamp: utcPtr(s.SignatureTimestamp),
		SignatureHash:      cloneStringPtr(s.SignatureHash),
		SignatureDataURL:   cloneStringPtr(s.SignatureDataURL),
	}
}

func documentFromModel(model DocumentModel) domain.Document {
	doc := domain.Document{
		ID:             model.ID,
		Title:          model.Title,
		Description:    model.Description,
		Content:        model.Content,
		TemplateID:     stringValue(model.TemplateID),
		CreatedBy:      model.CreatedBy,
		OwnerEmail:     stringValue(model.OwnerEmail),
		Status:         domain.DocumentStatus(model.Status),
		DocumentHash:   cloneStringPtr(model.DocumentHash),
		BlockchainHash: cloneStringPtr(model.BlockchainHash),
		LastVerifiedAt: utcPtr(model.LastVerifiedAt),
		CreatedAt:      model.CreatedAt.UTC(),
		UpdatedAt:      model.UpdatedAt.UTC(),
		Signers:        make([]domain.Signer, 0, len(model.Signers)),
	}
	if model.IsAuthentic != nil {
		v := *model.IsAuthentic
		doc.IsAuthentic = &v
	}
	for _, s := range sortedSigners(model.Signers) {
		doc.Signers = append(doc.Signers, domain.Signer{
			ID:                 s.ID,
			Name:               s.Name,
			Email:              s.Email,
			WalletAddress:      stringValue(s.WalletAddress),
			HasSigned:          s.HasSigned,
			SignatureTimestamp: utcPtr(s.SignatureTimestamp),
			SignatureHash:      cloneStringPtr(s.SignatureHash),
			SignatureDataURL:   cloneStringPtr(s.SignatureDataURL),
		})
	}
	return doc
}

func sortedSigners(in []SignerModel) []SignerModel {
	out := make([]SignerModel, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}
