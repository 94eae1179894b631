package issuance

import (
	"time"

	"github.com/dte/backend/internal/domain/dte"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentResponse represents a tax document in API responses
type DocumentResponse struct {
	ID             uuid.UUID       `json:"id"`
	TenantID       uuid.UUID       `json:"tenant_id"`
	DocumentType   string          `json:"document_type"`
	Folio          *int64          `json:"folio,omitempty"`
	IssueDate      time.Time       `json:"issue_date"`
	IssuerTaxID    string          `json:"issuer_tax_id"`
	RecipientTaxID string          `json:"recipient_tax_id,omitempty"`
	NetAmount      decimal.Decimal `json:"net_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	ExemptAmount   decimal.Decimal `json:"exempt_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Status         string          `json:"status"`
	TrackID        string          `json:"track_id,omitempty"`
	StatusDetail   string          `json:"status_detail,omitempty"`
	SubmittedAt    *time.Time      `json:"submitted_at,omitempty"`
	ResolvedAt     *time.Time      `json:"resolved_at,omitempty"`
	VoidedAt       *time.Time      `json:"voided_at,omitempty"`
}

// ToDocumentResponse converts a domain document to a response DTO
func ToDocumentResponse(doc *dte.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:             doc.ID,
		TenantID:       doc.TenantID,
		DocumentType:   doc.DocumentType.String(),
		Folio:          doc.Folio,
		IssueDate:      doc.IssueDate,
		IssuerTaxID:    doc.IssuerTaxID,
		RecipientTaxID: doc.RecipientTaxID,
		NetAmount:      doc.NetAmount,
		TaxAmount:      doc.TaxAmount,
		ExemptAmount:   doc.ExemptAmount,
		TotalAmount:    doc.TotalAmount,
		Status:         doc.Status.String(),
		TrackID:        doc.TrackID,
		StatusDetail:   doc.StatusDetail,
		SubmittedAt:    doc.SubmittedAt,
		ResolvedAt:     doc.ResolvedAt,
		VoidedAt:       doc.VoidedAt,
	}
}

// CafBlockResponse represents a CAF block in API responses
type CafBlockResponse struct {
	ID           uuid.UUID `json:"id"`
	TenantID     uuid.UUID `json:"tenant_id"`
	DocumentType string    `json:"document_type"`
	RangeStart   int64     `json:"range_start"`
	RangeEnd     int64     `json:"range_end"`
	Cursor       int64     `json:"cursor"`
	Remaining    int64     `json:"remaining"`
	ExpiresAt    time.Time `json:"expires_at"`
	Exhausted    bool      `json:"exhausted"`
	Active       bool      `json:"active"`
}

// ToCafBlockResponse converts a domain CAF block to a response DTO.
// Key material never leaves the domain.
func ToCafBlockResponse(block *dte.CafBlock) *CafBlockResponse {
	return &CafBlockResponse{
		ID:           block.ID,
		TenantID:     block.TenantID,
		DocumentType: block.DocumentType.String(),
		RangeStart:   block.RangeStart,
		RangeEnd:     block.RangeEnd,
		Cursor:       block.Cursor,
		Remaining:    block.Remaining(),
		ExpiresAt:    block.ExpiresAt,
		Exhausted:    block.Exhausted,
		Active:       block.Active,
	}
}
