package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sealtrack/internal/domain"
)

// DocumentRepository stores documents and their signers in Postgres. Update
// holds a row lock on the document for the whole read-modify-write cycle.
type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc domain.Document) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if doc.ID == "" {
		return domain.ErrInvalidDocument
	}
	model := documentToModel(doc)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&model).Error; err != nil {
			return err
		}
		if len(model.Signers) == 0 {
			return nil
		}
		return tx.Create(&model.Signers).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: document %s already exists", domain.ErrInvalidDocument, doc.ID)
	}
	return err
}

func (r *DocumentRepository) Get(ctx context.Context, id string) (*domain.Document, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model DocumentModel
	err := r.db.WithContext(ctx).
		Preload("Signers", orderByPosition).
		Where("id = ?", id).
		First(&model).Error
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	doc := documentFromModel(model)
	return &doc, nil
}

// ListForPrincipal returns documents created by ownerID or addressed to email,
// newest first.
func (r *DocumentRepository) ListForPrincipal(ctx context.Context, ownerID, email string) ([]domain.Document, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	email = domain.NormalizeEmail(email)
	if ownerID == "" && email == "" {
		return []domain.Document{}, nil
	}
	db := r.db.WithContext(ctx)
	query := db.Preload("Signers", orderByPosition)
	invited := db.Model(&SignerModel{}).Select("document_id").Where("email = ?", email)
	switch {
	case ownerID != "" && email != "":
		query = query.Where("created_by = ? OR id IN (?)", ownerID, invited)
	case ownerID != "":
		query = query.Where("created_by = ?", ownerID)
	default:
		query = query.Where("id IN (?)", invited)
	}
	var models []DocumentModel
	if err := query.Order("created_at DESC, id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Document, 0, len(models))
	for _, model := range models {
		out = append(out, documentFromModel(model))
	}
	return out, nil
}

func (r *DocumentRepository) Update(ctx context.Context, id string, fn func(doc *domain.Document) error) (*domain.Document, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var out domain.Document
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model DocumentModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&model).Error; err != nil {
			if isNotFound(err) {
				return domain.ErrNotFound
			}
			return err
		}
		if err := tx.Where("document_id = ?", id).Order("position ASC").Find(&model.Signers).Error; err != nil {
			return err
		}
		before := documentFromModel(model)
		working := before.Clone()
		if err := fn(&working); err != nil {
			return err
		}
		working.ID = id
		if err := saveDocument(tx, before, working); err != nil {
			return err
		}
		out = working
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func saveDocument(tx *gorm.DB, before, after domain.Document) error {
	model := documentToModel(after)
	err := tx.Model(&DocumentModel{}).Where("id = ?", model.ID).Updates(map[string]any{
		"title":            model.Title,
		"description":      model.Description,
		"content":          model.Content,
		"template_id":      model.TemplateID,
		"owner_email":      model.OwnerEmail,
		"status":           model.Status,
		"document_hash":    model.DocumentHash,
		"blockchain_hash":  model.BlockchainHash,
		"is_authentic":     model.IsAuthentic,
		"last_verified_at": model.LastVerifiedAt,
		"updated_at":       model.UpdatedAt,
	}).Error
	if err != nil {
		return err
	}

	previous := make(map[string]domain.Signer, len(before.Signers))
	for _, s := range before.Signers {
		previous[s.ID] = s
	}
	for _, signer := range model.Signers {
		prior, existed := previous[signer.ID]
		if !existed {
			if err := tx.Create(&signer).Error; err != nil {
				return err
			}
			continue
		}
		if err := saveSigner(tx, prior, signer); err != nil {
			return err
		}
	}
	return nil
}

// saveSigner guards the signed transition on the stored flag so a signature
// is never recorded twice even outside the row lock.
func saveSigner(tx *gorm.DB, prior domain.Signer, signer SignerModel) error {
	query := tx.Model(&SignerModel{}).Where("id = ?", signer.ID)
	if signer.HasSigned && !prior.HasSigned {
		query = query.Where("has_signed = ?", false)
	}
	result := query.Updates(map[string]any{
		"position":            signer.Position,
		"name":                signer.Name,
		"email":               signer.Email,
		"wallet_address":      signer.WalletAddress,
		"has_signed":          signer.HasSigned,
		"signature_timestamp": signer.SignatureTimestamp,
		"signature_hash":      signer.SignatureHash,
		"signature_data_url":  signer.SignatureDataURL,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 && signer.HasSigned && !prior.HasSigned {
		return domain.ErrAlreadySigned
	}
	return nil
}

func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}
