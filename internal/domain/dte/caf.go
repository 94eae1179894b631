package dte

import (
	"fmt"
	"time"

	"github.com/dte/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// CafAuthorization is the authorization metadata embedded in a CAF file:
// the issuing date and the key pair the authority bound to the folio range.
// The private key signs the stamp (TED) of every document drawing a folio
// from this block; the public modulus fragment travels inside the stamp.
type CafAuthorization struct {
	IssuerTaxID    string    `json:"issuer_tax_id"`
	AuthorizedAt   time.Time `json:"authorized_at"`
	PublicKeyPEM   string    `json:"public_key_pem"`
	PrivateKeyPEM  string    `json:"private_key_pem"`
	SignatureValue string    `json:"signature_value"` // authority signature over the CAF body
}

// CafBlock is one government-authorized folio range for a (tenant, document
// type) pair. The cursor is the next folio to hand out; it only moves
// forward, and the block becomes permanently exhausted once the cursor
// passes the range end.
type CafBlock struct {
	shared.TenantAggregateRoot
	DocumentType  DocumentType     `json:"document_type"`
	RangeStart    int64            `json:"range_start"`
	RangeEnd      int64            `json:"range_end"`
	Cursor        int64            `json:"cursor"`
	ExpiresAt     time.Time        `json:"expires_at"`
	Exhausted     bool             `json:"exhausted"`
	Active        bool             `json:"active"`
	Authorization CafAuthorization `json:"authorization"`
}

// NewCafBlock creates a CAF block from an imported authorization file.
// The cursor starts at the beginning of the range.
func NewCafBlock(
	tenantID uuid.UUID,
	documentType DocumentType,
	rangeStart, rangeEnd int64,
	expiresAt time.Time,
	auth CafAuthorization,
) (*CafBlock, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if !documentType.IsValid() {
		return nil, shared.NewDomainError("INVALID_DOCUMENT_TYPE", fmt.Sprintf("Document type %q is not supported", documentType))
	}
	if rangeStart < 1 {
		return nil, shared.NewDomainError("INVALID_RANGE", "Folio range must start at 1 or above")
	}
	if rangeEnd < rangeStart {
		return nil, shared.NewDomainError("INVALID_RANGE", fmt.Sprintf("Folio range end %d is below range start %d", rangeEnd, rangeStart))
	}
	if auth.IssuerTaxID == "" {
		return nil, shared.NewDomainError("INVALID_AUTHORIZATION", "CAF authorization is missing the issuer tax ID")
	}
	if auth.PrivateKeyPEM == "" || auth.PublicKeyPEM == "" {
		return nil, shared.NewDomainError("INVALID_AUTHORIZATION", "CAF authorization is missing key material")
	}
	if auth.AuthorizedAt.IsZero() {
		return nil, shared.NewDomainError("INVALID_AUTHORIZATION", "CAF authorization is missing the authorization date")
	}

	block := &CafBlock{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		DocumentType:        documentType,
		RangeStart:          rangeStart,
		RangeEnd:            rangeEnd,
		Cursor:              rangeStart,
		ExpiresAt:           expiresAt,
		Exhausted:           false,
		Active:              true,
		Authorization:       auth,
	}

	block.AddDomainEvent(NewCafBlockImportedEvent(block))

	return block, nil
}

// ClaimNext hands out the folio at the cursor and advances it. When the
// cursor passes the range end the block is marked exhausted; the mark is
// sticky and the block is never reused. The mutation only becomes durable
// through a compare-and-swap save, so two concurrent claimers cannot both
// keep the same folio.
func (b *CafBlock) ClaimNext(now time.Time) (int64, error) {
	if !b.Active {
		return 0, ErrNoActiveBlock
	}
	if b.Exhausted {
		return 0, ErrFolioExhausted
	}
	if b.IsExpired(now) {
		return 0, ErrBlockExpired
	}

	folio := b.Cursor
	b.Cursor++
	if b.Cursor > b.RangeEnd {
		b.Exhausted = true
		b.AddDomainEvent(NewCafBlockExhaustedEvent(b))
	}

	b.UpdatedAt = now
	b.IncrementVersion()

	return folio, nil
}

// IsExpired reports whether the block's authorization has lapsed
func (b *CafBlock) IsExpired(now time.Time) bool {
	return now.After(b.ExpiresAt)
}

// Eligible reports whether the block can still hand out folios
func (b *CafBlock) Eligible(now time.Time) bool {
	return b.Active && !b.Exhausted && !b.IsExpired(now)
}

// Remaining returns how many folios the block can still hand out
func (b *CafBlock) Remaining() int64 {
	if b.Exhausted || !b.Active {
		return 0
	}
	return b.RangeEnd - b.Cursor + 1
}

// Contains reports whether the folio falls inside the authorized range
func (b *CafBlock) Contains(folio int64) bool {
	return folio >= b.RangeStart && folio <= b.RangeEnd
}

// Overlaps reports whether another folio range intersects this block's range
func (b *CafBlock) Overlaps(start, end int64) bool {
	return start <= b.RangeEnd && end >= b.RangeStart
}

// Deactivate retires the block. Blocks are never deleted; superseded and
// expired ranges stay as history.
func (b *CafBlock) Deactivate(reason string) error {
	if !b.Active {
		return shared.NewDomainError("INVALID_STATE", "CAF block is already inactive")
	}
	b.Active = false
	b.Touch()
	b.IncrementVersion()
	b.AddDomainEvent(NewCafBlockDeactivatedEvent(b, reason))
	return nil
}
