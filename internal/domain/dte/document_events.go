package dte

import (
	"github.com/dte/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Event types for the Document aggregate
const (
	EventTypeDocumentCreated       = "document.created"
	EventTypeDocumentStatusChanged = "document.status_changed"
	EventTypeFolioAssigned         = "document.folio_assigned"
	EventTypeDocumentSubmitted     = "document.submitted"
	EventTypeDocumentResolved      = "document.resolved"
	EventTypeDocumentVoided        = "document.voided"
)

// DocumentCreatedEvent is raised when a draft document is created
type DocumentCreatedEvent struct {
	shared.BaseDomainEvent
	DocumentType DocumentType `json:"document_type"`
}

// NewDocumentCreatedEvent creates a new DocumentCreatedEvent
func NewDocumentCreatedEvent(doc *Document) *DocumentCreatedEvent {
	return &DocumentCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDocumentCreated, "Document", doc.ID, doc.TenantID),
		DocumentType:    doc.DocumentType,
	}
}

// DocumentStatusChangedEvent is raised on every state-machine transition
type DocumentStatusChangedEvent struct {
	shared.BaseDomainEvent
	From DocumentStatus `json:"from"`
	To   DocumentStatus `json:"to"`
}

// NewDocumentStatusChangedEvent creates a new DocumentStatusChangedEvent
func NewDocumentStatusChangedEvent(doc *Document, from, to DocumentStatus) *DocumentStatusChangedEvent {
	return &DocumentStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDocumentStatusChanged, "Document", doc.ID, doc.TenantID),
		From:            from,
		To:              to,
	}
}

// FolioAssignedEvent is raised when a folio is claimed for the document
type FolioAssignedEvent struct {
	shared.BaseDomainEvent
	DocumentType DocumentType `json:"document_type"`
	Folio        int64        `json:"folio"`
}

// NewFolioAssignedEvent creates a new FolioAssignedEvent
func NewFolioAssignedEvent(doc *Document, folio int64) *FolioAssignedEvent {
	return &FolioAssignedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeFolioAssigned, "Document", doc.ID, doc.TenantID),
		DocumentType:    doc.DocumentType,
		Folio:           folio,
	}
}

// DocumentSubmittedEvent is raised after a successful authority upload
type DocumentSubmittedEvent struct {
	shared.BaseDomainEvent
	TrackID string `json:"track_id"`
}

// NewDocumentSubmittedEvent creates a new DocumentSubmittedEvent
func NewDocumentSubmittedEvent(doc *Document, trackID string) *DocumentSubmittedEvent {
	return &DocumentSubmittedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDocumentSubmitted, "Document", doc.ID, doc.TenantID),
		TrackID:         trackID,
	}
}

// DocumentResolvedEvent is raised when the authority accepts or rejects
type DocumentResolvedEvent struct {
	shared.BaseDomainEvent
	Outcome DocumentStatus `json:"outcome"`
	Detail  string         `json:"detail"`
}

// NewDocumentResolvedEvent creates a new DocumentResolvedEvent
func NewDocumentResolvedEvent(doc *Document, outcome DocumentStatus, detail string) *DocumentResolvedEvent {
	return &DocumentResolvedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDocumentResolved, "Document", doc.ID, doc.TenantID),
		Outcome:         outcome,
		Detail:          detail,
	}
}

// DocumentVoidedEvent is raised when an accepted document is voided through
// a linked reversal document
type DocumentVoidedEvent struct {
	shared.BaseDomainEvent
	ReversalDocumentID uuid.UUID `json:"reversal_document_id"`
}

// NewDocumentVoidedEvent creates a new DocumentVoidedEvent
func NewDocumentVoidedEvent(doc *Document, reversalID uuid.UUID) *DocumentVoidedEvent {
	return &DocumentVoidedEvent{
		BaseDomainEvent:    shared.NewBaseDomainEvent(EventTypeDocumentVoided, "Document", doc.ID, doc.TenantID),
		ReversalDocumentID: reversalID,
	}
}
