package dte

import (
	"context"
	"time"

	"github.com/dte/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// DocumentFilter defines filtering options for document queries
type DocumentFilter struct {
	shared.Filter
	DocumentType *DocumentType
	Status       *DocumentStatus
	FromDate     *time.Time
	ToDate       *time.Time
}

// CafBlockRepository persists CAF folio-authorization blocks
type CafBlockRepository interface {
	// FindByID finds a CAF block by ID
	FindByID(ctx context.Context, id uuid.UUID) (*CafBlock, error)

	// FindByIDForTenant finds a CAF block by ID for a specific tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*CafBlock, error)

	// FindEligible returns the active, non-exhausted, unexpired block with
	// the lowest range start for the tenant and document type, or
	// shared.ErrNotFound. Distinguishing "expired" from "exhausted" from
	// "none" is the allocator's job.
	FindEligible(ctx context.Context, tenantID uuid.UUID, documentType DocumentType, now time.Time) (*CafBlock, error)

	// FindAllForTenant lists blocks for a tenant and optional document type
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, documentType *DocumentType) ([]CafBlock, error)

	// FindOverlapping returns active blocks whose range intersects
	// [rangeStart, rangeEnd] for the tenant and document type
	FindOverlapping(ctx context.Context, tenantID uuid.UUID, documentType DocumentType, rangeStart, rangeEnd int64) ([]CafBlock, error)

	// Save creates or updates a CAF block
	Save(ctx context.Context, block *CafBlock) error

	// SaveCursor persists a cursor advance as a compare-and-swap: the
	// update only applies while the stored cursor still equals
	// expectedCursor. A shared.ErrConcurrencyConflict means another
	// claimer won the race and the caller must re-read and retry.
	SaveCursor(ctx context.Context, block *CafBlock, expectedCursor int64) error

	// RemainingFolios sums the unconsumed folios across eligible blocks
	// for the tenant and document type
	RemainingFolios(ctx context.Context, tenantID uuid.UUID, documentType DocumentType) (int64, error)
}

// DocumentRepository persists tax documents
type DocumentRepository interface {
	// FindByID finds a document by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Document, error)

	// FindByIDForTenant finds a document by ID for a specific tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Document, error)

	// FindByFolio finds the document holding a folio for the tenant and
	// document type
	FindByFolio(ctx context.Context, tenantID uuid.UUID, documentType DocumentType, folio int64) (*Document, error)

	// FindAllForTenant lists documents for a tenant with filtering
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter DocumentFilter) ([]Document, error)

	// FindInStatus returns documents sitting in the given status, oldest
	// first, across all tenants. The reconciliation loop uses it to
	// re-drive stalled submissions.
	FindInStatus(ctx context.Context, status DocumentStatus, limit int) ([]Document, error)

	// Save creates or updates a document
	Save(ctx context.Context, doc *Document) error

	// SaveWithLock saves with optimistic locking (version check). A
	// shared.ErrConcurrencyConflict means another orchestration attempt
	// holds the document.
	SaveWithLock(ctx context.Context, doc *Document) error

	// CountForTenant counts documents for a tenant with filtering
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter DocumentFilter) (int64, error)
}
