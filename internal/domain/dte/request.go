package dte

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IssuanceRequest is the normalized value object handed in by the inbound
// layer. All monetary fields are integral currency units as declared by the
// caller; the validator checks that they reconcile before any folio is
// consumed.
type IssuanceRequest struct {
	TenantID       uuid.UUID
	DocumentType   DocumentType
	IssueDate      time.Time
	IssuerTaxID    string
	RecipientTaxID string
	RecipientName  string
	Items          []LineItem
	NetAmount      decimal.Decimal
	TaxAmount      decimal.Decimal
	ExemptAmount   decimal.Decimal
	TotalAmount    decimal.Decimal
	Reference      *Reference
}
