package dte

import (
	"github.com/dte/backend/internal/domain/shared"
)

// Event types for the CafBlock aggregate
const (
	EventTypeCafBlockImported    = "caf_block.imported"
	EventTypeCafBlockExhausted   = "caf_block.exhausted"
	EventTypeCafBlockDeactivated = "caf_block.deactivated"
)

// CafBlockImportedEvent is raised when a new authorized folio range is imported
type CafBlockImportedEvent struct {
	shared.BaseDomainEvent
	DocumentType DocumentType `json:"document_type"`
	RangeStart   int64        `json:"range_start"`
	RangeEnd     int64        `json:"range_end"`
}

// NewCafBlockImportedEvent creates a new CafBlockImportedEvent
func NewCafBlockImportedEvent(block *CafBlock) *CafBlockImportedEvent {
	return &CafBlockImportedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCafBlockImported, "CafBlock", block.ID, block.TenantID),
		DocumentType:    block.DocumentType,
		RangeStart:      block.RangeStart,
		RangeEnd:        block.RangeEnd,
	}
}

// CafBlockExhaustedEvent is raised when the cursor passes the range end
type CafBlockExhaustedEvent struct {
	shared.BaseDomainEvent
	DocumentType DocumentType `json:"document_type"`
	RangeEnd     int64        `json:"range_end"`
}

// NewCafBlockExhaustedEvent creates a new CafBlockExhaustedEvent
func NewCafBlockExhaustedEvent(block *CafBlock) *CafBlockExhaustedEvent {
	return &CafBlockExhaustedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCafBlockExhausted, "CafBlock", block.ID, block.TenantID),
		DocumentType:    block.DocumentType,
		RangeEnd:        block.RangeEnd,
	}
}

// CafBlockDeactivatedEvent is raised when a block is retired
type CafBlockDeactivatedEvent struct {
	shared.BaseDomainEvent
	DocumentType DocumentType `json:"document_type"`
	Reason       string       `json:"reason"`
}

// NewCafBlockDeactivatedEvent creates a new CafBlockDeactivatedEvent
func NewCafBlockDeactivatedEvent(block *CafBlock, reason string) *CafBlockDeactivatedEvent {
	return &CafBlockDeactivatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCafBlockDeactivated, "CafBlock", block.ID, block.TenantID),
		DocumentType:    block.DocumentType,
		Reason:          reason,
	}
}
