package db

import (
	"context"
	"errors"
	"strconv"
	"time"

	"gorm.io/gorm"

	"sealtrack/internal/domain"
)

type AnchorAttemptRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewAnchorAttemptRepository(db *gorm.DB) *AnchorAttemptRepository {
	return &AnchorAttemptRepository{db: db, now: time.Now}
}

func (r *AnchorAttemptRepository) Append(ctx context.Context, attempt domain.AnchorAttempt) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if attempt.DocumentID == "" {
		return errors.New("document_id is required")
	}
	if attempt.Provider == "" {
		return errors.New("provider is required")
	}
	if attempt.Status == "" {
		return errors.New("status is required")
	}
	if attempt.PayloadHash == "" {
		return errors.New("payload_hash is required")
	}
	model := anchorAttemptToModel(attempt)
	if model.CreatedAt.IsZero() {
		model.CreatedAt = r.now().UTC()
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *AnchorAttemptRepository) ListByDocument(ctx context.Context, documentID string) ([]domain.AnchorAttempt, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	if documentID == "" {
		return nil, errors.New("document_id is required")
	}
	var models []AnchorAttemptModel
	if err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("created_at ASC, id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.AnchorAttempt, 0, len(models))
	for _, model := range models {
		out = append(out, anchorAttemptFromModel(model))
	}
	return out, nil
}

func anchorAttemptToModel(attempt domain.AnchorAttempt) AnchorAttemptModel {
	model := AnchorAttemptModel{
		DocumentID:  attempt.DocumentID,
		Provider:    attempt.Provider,
		Status:      attempt.Status,
		ErrorCode:   stringPtrIfNotEmpty(attempt.ErrorCode),
		Message:     stringPtrIfNotEmpty(attempt.Message),
		PayloadHash: attempt.PayloadHash,
		TxHash:      stringPtrIfNotEmpty(attempt.TxHash),
		ChainID:     stringPtrIfNotEmpty(attempt.ChainID),
		CreatedAt:   attempt.CreatedAt.UTC(),
	}
	if attempt.BlockNumber > 0 {
		n := int64(attempt.BlockNumber)
		model.BlockNumber = &n
	}
	return model
}

func anchorAttemptFromModel(model AnchorAttemptModel) domain.AnchorAttempt {
	attempt := domain.AnchorAttempt{
		ID:          strconv.FormatInt(model.ID, 10),
		DocumentID:  model.DocumentID,
		Provider:    model.Provider,
		Status:      model.Status,
		ErrorCode:   stringValue(model.ErrorCode),
		Message:     stringValue(model.Message),
		PayloadHash: model.PayloadHash,
		TxHash:      stringValue(model.TxHash),
		ChainID:     stringValue(model.ChainID),
		CreatedAt:   model.CreatedAt.UTC(),
	}
	if model.BlockNumber != nil {
		attempt.BlockNumber = uint64(*model.BlockNumber)
	}
	return attempt
}
