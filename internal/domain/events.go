package domain

import (
	"context"
	"time"
)

type DocumentEventType string

const (
	EventDocumentCreated   DocumentEventType = "document.created"
	EventDocumentUpdated   DocumentEventType = "document.updated"
	EventSignerAdded       DocumentEventType = "signer.added"
	EventSignatureRecorded DocumentEventType = "signature.recorded"
	EventDocumentCompleted DocumentEventType = "document.completed"
	EventDocumentRejected  DocumentEventType = "document.rejected"
	EventDocumentVerified  DocumentEventType = "document.verified"
	EventDocumentAnchored  DocumentEventType = "document.anchored"
)

type DocumentEvent struct {
	Type       DocumentEventType `json:"type"`
	DocumentID string            `json:"document_id"`
	Status     DocumentStatus    `json:"status"`
	SignerID   string            `json:"signer_id,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// EventPublisher feeds the change stream used for UI refresh.
type EventPublisher interface {
	Publish(ctx context.Context, event DocumentEvent) error
}

type EventSubscriber interface {
	Subscribe(ctx context.Context, documentID string) (<-chan DocumentEvent, error)
}
