package dte

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dte/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentType is the national tax-document type code
type DocumentType string

const (
	DocumentTypeInvoice       DocumentType = "33" // electronic invoice
	DocumentTypeExemptInvoice DocumentType = "34" // VAT-exempt invoice
	DocumentTypeReceipt       DocumentType = "39" // consumer receipt (boleta)
	DocumentTypeDebitNote     DocumentType = "56" // debit note
	DocumentTypeCreditNote    DocumentType = "61" // credit note
)

// IsValid checks if the document type is a supported code
func (t DocumentType) IsValid() bool {
	switch t {
	case DocumentTypeInvoice, DocumentTypeExemptInvoice, DocumentTypeReceipt,
		DocumentTypeDebitNote, DocumentTypeCreditNote:
		return true
	}
	return false
}

// String returns the type code
func (t DocumentType) String() string {
	return string(t)
}

// RequiresRecipient reports whether the type mandates a recipient tax ID.
// Consumer receipts are the only anonymous document type.
func (t DocumentType) RequiresRecipient() bool {
	return t != DocumentTypeReceipt
}

// RequiresReference reports whether the type must reference another
// document (credit and debit notes correct a previously issued one).
func (t DocumentType) RequiresReference() bool {
	return t == DocumentTypeCreditNote || t == DocumentTypeDebitNote
}

// DocumentStatus is the lifecycle state of a tax document
type DocumentStatus string

const (
	StatusDraft         DocumentStatus = "DRAFT"
	StatusValidated     DocumentStatus = "VALIDATED"
	StatusFolioAssigned DocumentStatus = "FOLIO_ASSIGNED"
	StatusAssembled     DocumentStatus = "ASSEMBLED"
	StatusSigned        DocumentStatus = "SIGNED"
	StatusSubmitted     DocumentStatus = "SUBMITTED"
	StatusAccepted      DocumentStatus = "ACCEPTED"
	StatusRejected      DocumentStatus = "REJECTED"
	StatusVoided        DocumentStatus = "VOIDED"
)

// IsValid checks if the status is a valid DocumentStatus
func (s DocumentStatus) IsValid() bool {
	switch s {
	case StatusDraft, StatusValidated, StatusFolioAssigned, StatusAssembled,
		StatusSigned, StatusSubmitted, StatusAccepted, StatusRejected, StatusVoided:
		return true
	}
	return false
}

// String returns the string representation of the status
func (s DocumentStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the document can make no further transition
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusRejected || s == StatusVoided
}

// HasFolio reports whether a document in this status holds a consumed folio
func (s DocumentStatus) HasFolio() bool {
	switch s {
	case StatusFolioAssigned, StatusAssembled, StatusSigned, StatusSubmitted,
		StatusAccepted, StatusRejected, StatusVoided:
		return true
	}
	return false
}

// CanTransitionTo reports whether the pipeline allows moving to next.
// Transitions are one-way; the only path out of ACCEPTED is VOIDED.
func (s DocumentStatus) CanTransitionTo(next DocumentStatus) bool {
	switch s {
	case StatusDraft:
		return next == StatusValidated
	case StatusValidated:
		return next == StatusFolioAssigned
	case StatusFolioAssigned:
		return next == StatusAssembled
	case StatusAssembled:
		return next == StatusSigned
	case StatusSigned:
		return next == StatusSubmitted
	case StatusSubmitted:
		return next == StatusAccepted || next == StatusRejected
	case StatusAccepted:
		return next == StatusVoided
	default:
		return false
	}
}

// LineItem is one ordered line of a tax document. Amounts are integral
// currency units. At most one discount form may be present per line.
type LineItem struct {
	LineNumber      int              `json:"line_number"`
	Description     string           `json:"description"`
	Quantity        decimal.Decimal  `json:"quantity"`
	UnitPrice       decimal.Decimal  `json:"unit_price"`
	DiscountPercent *decimal.Decimal `json:"discount_percent,omitempty"`
	DiscountAmount  *decimal.Decimal `json:"discount_amount,omitempty"`
	Amount          decimal.Decimal  `json:"amount"`
	Exempt          bool             `json:"exempt"`
}

// LineItems is stored as a single JSONB column; the document owns its lines
type LineItems []LineItem

// Value implements driver.Valuer for JSONB storage
func (l LineItems) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner for JSONB storage
func (l *LineItems) Scan(value interface{}) error {
	if value == nil {
		*l = LineItems{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan LineItems: unsupported type")
	}
	if len(bytes) == 0 {
		*l = LineItems{}
		return nil
	}
	return json.Unmarshal(bytes, l)
}

// Reference links a correcting document (credit or debit note) to the
// document it corrects.
type Reference struct {
	DocumentType DocumentType `json:"document_type"`
	Folio        int64        `json:"folio"`
	Reason       string       `json:"reason"`
}

// Value implements driver.Valuer for JSONB storage
func (r Reference) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// Scan implements sql.Scanner for JSONB storage
func (r *Reference) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan Reference: unsupported type")
	}
	if len(bytes) == 0 {
		return nil
	}
	return json.Unmarshal(bytes, r)
}

// Document is one electronic tax document (DTE). It is created in DRAFT and
// driven forward through the issuance pipeline; every state transition is
// persisted before the next step runs, so a crash resumes from the last
// durable state. Documents are never deleted: the terminal correction path
// is a linked reversal document, never a row removal.
type Document struct {
	shared.TenantAggregateRoot
	DocumentType   DocumentType    `json:"document_type"`
	Folio          *int64          `json:"folio"` // nil until allocated
	IssueDate      time.Time       `json:"issue_date"`
	IssuerTaxID    string          `json:"issuer_tax_id"`
	RecipientTaxID string          `json:"recipient_tax_id"`
	RecipientName  string          `json:"recipient_name"`
	NetAmount      decimal.Decimal `json:"net_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	ExemptAmount   decimal.Decimal `json:"exempt_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Status         DocumentStatus  `json:"status"`
	Items          LineItems       `json:"items"`
	Reference      *Reference      `json:"reference,omitempty"`

	// Issuance artifacts, filled in as the pipeline advances. StampedAt is
	// generated once and reused on retry so the stamp digest stays stable.
	StampedAt     *time.Time `json:"stamped_at"`
	Stamp         []byte     `json:"stamp"`
	SignedPayload []byte     `json:"signed_payload"`

	// Authority bookkeeping
	TrackID      string     `json:"track_id"`
	StatusDetail string     `json:"status_detail"` // authority narrative, stored verbatim
	SubmittedAt  *time.Time `json:"submitted_at"`
	ResolvedAt   *time.Time `json:"resolved_at"`

	// Reversal linkage for voided documents
	ReversalDocumentID *uuid.UUID `json:"reversal_document_id"`
	VoidedAt           *time.Time `json:"voided_at"`
}

// NewDocument creates a document in DRAFT from a validated-shape request.
// Business validation happens separately; this constructor only guards
// structural integrity.
func NewDocument(req IssuanceRequest) (*Document, error) {
	if req.TenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if !req.DocumentType.IsValid() {
		return nil, shared.NewDomainError("INVALID_DOCUMENT_TYPE", fmt.Sprintf("Document type %q is not supported", req.DocumentType))
	}
	if len(req.Items) == 0 {
		return nil, shared.NewDomainError("EMPTY_DOCUMENT", "A document needs at least one line item")
	}

	items := make(LineItems, len(req.Items))
	for i, item := range req.Items {
		items[i] = item
		items[i].LineNumber = i + 1
	}

	doc := &Document{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(req.TenantID),
		DocumentType:        req.DocumentType,
		IssueDate:           req.IssueDate,
		IssuerTaxID:         req.IssuerTaxID,
		RecipientTaxID:      req.RecipientTaxID,
		RecipientName:       req.RecipientName,
		NetAmount:           req.NetAmount,
		TaxAmount:           req.TaxAmount,
		ExemptAmount:        req.ExemptAmount,
		TotalAmount:         req.TotalAmount,
		Status:              StatusDraft,
		Items:               items,
		Reference:           req.Reference,
	}

	doc.AddDomainEvent(NewDocumentCreatedEvent(doc))

	return doc, nil
}

// transition moves the document to the next status, rejecting any move the
// state machine does not allow.
func (d *Document) transition(next DocumentStatus) error {
	if !d.Status.CanTransitionTo(next) {
		return shared.NewDomainError("INVALID_TRANSITION", fmt.Sprintf("Cannot move document from %s to %s", d.Status, next))
	}
	from := d.Status
	d.Status = next
	d.Touch()
	d.IncrementVersion()
	d.AddDomainEvent(NewDocumentStatusChangedEvent(d, from, next))
	return nil
}

// MarkValidated records that the request passed business validation
func (d *Document) MarkValidated() error {
	return d.transition(StatusValidated)
}

// AssignFolio records the allocated folio. The document keeps only the
// folio number; the CAF block is resolved by range membership, never by a
// persistent back-reference.
func (d *Document) AssignFolio(folio int64) error {
	if d.Folio != nil {
		return shared.NewDomainError("FOLIO_ALREADY_ASSIGNED", fmt.Sprintf("Document already holds folio %d", *d.Folio))
	}
	if folio < 1 {
		return shared.NewDomainError("INVALID_FOLIO", "Folio must be positive")
	}
	if err := d.transition(StatusFolioAssigned); err != nil {
		return err
	}
	d.Folio = &folio
	d.AddDomainEvent(NewFolioAssignedEvent(d, folio))
	return nil
}

// MarkAssembled stores the stamp and the stamp timestamp produced by
// assembly. The timestamp is persisted so retries reuse it instead of
// regenerating a wall-clock value.
func (d *Document) MarkAssembled(stamp []byte, stampedAt time.Time) error {
	if len(stamp) == 0 {
		return shared.NewDomainError("INVALID_STAMP", "Stamp bytes cannot be empty")
	}
	if err := d.transition(StatusAssembled); err != nil {
		return err
	}
	d.Stamp = stamp
	d.StampedAt = &stampedAt
	return nil
}

// MarkSigned stores the signed canonical payload
func (d *Document) MarkSigned(signedPayload []byte) error {
	if len(signedPayload) == 0 {
		return shared.NewDomainError("INVALID_SIGNATURE", "Signed payload cannot be empty")
	}
	if err := d.transition(StatusSigned); err != nil {
		return err
	}
	d.SignedPayload = signedPayload
	return nil
}

// MarkSubmitted records the authority tracking ID after a successful upload
func (d *Document) MarkSubmitted(trackID string) error {
	if trackID == "" {
		return shared.NewDomainError("INVALID_TRACK_ID", "Tracking ID cannot be empty")
	}
	if err := d.transition(StatusSubmitted); err != nil {
		return err
	}
	now := time.Now()
	d.TrackID = trackID
	d.SubmittedAt = &now
	d.AddDomainEvent(NewDocumentSubmittedEvent(d, trackID))
	return nil
}

// MarkAccepted resolves the submission as accepted by the authority
func (d *Document) MarkAccepted(detail string) error {
	if err := d.transition(StatusAccepted); err != nil {
		return err
	}
	now := time.Now()
	d.StatusDetail = detail
	d.ResolvedAt = &now
	d.AddDomainEvent(NewDocumentResolvedEvent(d, StatusAccepted, detail))
	return nil
}

// MarkRejected resolves the submission as rejected. The reason is stored
// verbatim; the folio stays permanently consumed.
func (d *Document) MarkRejected(reason string) error {
	if err := d.transition(StatusRejected); err != nil {
		return err
	}
	now := time.Now()
	d.StatusDetail = reason
	d.ResolvedAt = &now
	d.AddDomainEvent(NewDocumentResolvedEvent(d, StatusRejected, reason))
	return nil
}

// MarkVoided links the reversal document that cancels this one. Only an
// accepted document can be voided, and only through a reversal issued via
// the authority's own mechanism.
func (d *Document) MarkVoided(reversalID uuid.UUID) error {
	if reversalID == uuid.Nil {
		return shared.NewDomainError("INVALID_REVERSAL", "Reversal document ID cannot be empty")
	}
	if err := d.transition(StatusVoided); err != nil {
		return err
	}
	now := time.Now()
	d.ReversalDocumentID = &reversalID
	d.VoidedAt = &now
	d.AddDomainEvent(NewDocumentVoidedEvent(d, reversalID))
	return nil
}

// FolioConsumed reports whether this document holds a folio that can never
// return to the pool, regardless of how the attempt ended.
func (d *Document) FolioConsumed() bool {
	return d.Folio != nil
}
