package dte

import (
	"context"
	"errors"
	"time"

	"github.com/dte/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// allocationRetries bounds the compare-and-swap retry loop. Contention on
// one (tenant, type) pair is short-lived, so a handful of retries is enough;
// running out means the conflict is being reported to the caller rather
// than looping forever.
const allocationRetries = 5

// FolioAllocator hands out the next unused folio for a (tenant, document
// type) pair. The claim is atomic: the cursor advance is persisted with a
// compare-and-swap on the previous cursor value, so two concurrent callers
// never receive the same folio and no folio is skipped. An allocation that
// fails leaves every cursor untouched.
type FolioAllocator struct {
	blocks CafBlockRepository
	now    func() time.Time
}

// NewFolioAllocator creates a FolioAllocator
func NewFolioAllocator(blocks CafBlockRepository) *FolioAllocator {
	return &FolioAllocator{blocks: blocks, now: time.Now}
}

// Allocation is the result of a successful folio claim
type Allocation struct {
	Folio int64
	Block *CafBlock
}

// Allocate claims the next folio for the tenant and document type.
// Eligible blocks are consumed lowest-range-start first, so sequentially
// imported blocks drain in order. Returns ErrNoActiveBlock when no block
// exists, ErrBlockExpired when the only candidates have lapsed, and
// ErrFolioExhausted when every active range is used up.
func (a *FolioAllocator) Allocate(ctx context.Context, tenantID uuid.UUID, documentType DocumentType) (*Allocation, error) {
	var lastConflict error

	for attempt := 0; attempt < allocationRetries; attempt++ {
		now := a.now()

		block, err := a.blocks.FindEligible(ctx, tenantID, documentType, now)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, a.classifyEmpty(ctx, tenantID, documentType, now)
			}
			return nil, err
		}

		expectedCursor := block.Cursor

		folio, err := block.ClaimNext(now)
		if err != nil {
			return nil, err
		}

		if err := a.blocks.SaveCursor(ctx, block, expectedCursor); err != nil {
			if errors.Is(err, shared.ErrConcurrencyConflict) {
				lastConflict = err
				continue
			}
			return nil, err
		}

		return &Allocation{Folio: folio, Block: block}, nil
	}

	return nil, lastConflict
}

// classifyEmpty decides which distinct error to surface when no block can
// serve an allocation: an operator resolves "never imported" differently
// from "everything used up" differently from "authorization lapsed".
func (a *FolioAllocator) classifyEmpty(ctx context.Context, tenantID uuid.UUID, documentType DocumentType, now time.Time) error {
	blocks, err := a.blocks.FindAllForTenant(ctx, tenantID, &documentType)
	if err != nil {
		return err
	}

	sawExhausted := false
	for _, block := range blocks {
		if !block.Active {
			continue
		}
		if !block.Exhausted && block.IsExpired(now) {
			return ErrBlockExpired
		}
		if block.Exhausted {
			sawExhausted = true
		}
	}
	if sawExhausted {
		return ErrFolioExhausted
	}
	return ErrNoActiveBlock
}
