package models

import (
	"time"

	"github.com/dte/backend/internal/domain/credential"
	"github.com/dte/backend/internal/domain/dte"
	"github.com/dte/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CafBlockModel is the persistence model for the CafBlock aggregate root.
// Key material is stored with the block; the stamp signer reads it from
// here and it is never exposed through the API layer.
type CafBlockModel struct {
	TenantAggregateModel
	DocumentType     dte.DocumentType `gorm:"type:varchar(4);not null;uniqueIndex:idx_caf_tenant_type_start,priority:2"`
	RangeStart       int64            `gorm:"not null;uniqueIndex:idx_caf_tenant_type_start,priority:3"`
	RangeEnd         int64            `gorm:"not null"`
	FolioCursor      int64            `gorm:"not null"`
	ExpiresAt        time.Time        `gorm:"not null;index"`
	Exhausted        bool             `gorm:"not null;default:false;index"`
	Active           bool             `gorm:"not null;default:true;index"`
	IssuerTaxID      string           `gorm:"type:varchar(12);not null"`
	AuthorizedAt     time.Time        `gorm:"not null"`
	PublicKeyPEM     string           `gorm:"type:text;not null"`
	PrivateKeyPEM    string           `gorm:"type:text;not null"`
	AuthoritySig     string           `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (CafBlockModel) TableName() string {
	return "caf_blocks"
}

// ToDomain converts the persistence model to a domain CafBlock aggregate.
func (m *CafBlockModel) ToDomain() *dte.CafBlock {
	block := &dte.CafBlock{
		DocumentType: m.DocumentType,
		RangeStart:   m.RangeStart,
		RangeEnd:     m.RangeEnd,
		Cursor:       m.FolioCursor,
		ExpiresAt:    m.ExpiresAt,
		Exhausted:    m.Exhausted,
		Active:       m.Active,
		Authorization: dte.CafAuthorization{
			IssuerTaxID:    m.IssuerTaxID,
			AuthorizedAt:   m.AuthorizedAt,
			PublicKeyPEM:   m.PublicKeyPEM,
			PrivateKeyPEM:  m.PrivateKeyPEM,
			SignatureValue: m.AuthoritySig,
		},
	}
	m.PopulateTenantAggregateRoot(&block.TenantAggregateRoot)
	return block
}

// FromDomain populates the persistence model from a domain CafBlock aggregate.
func (m *CafBlockModel) FromDomain(block *dte.CafBlock) {
	m.FromDomainTenantAggregateRoot(block.TenantAggregateRoot)
	m.DocumentType = block.DocumentType
	m.RangeStart = block.RangeStart
	m.RangeEnd = block.RangeEnd
	m.FolioCursor = block.Cursor
	m.ExpiresAt = block.ExpiresAt
	m.Exhausted = block.Exhausted
	m.Active = block.Active
	m.IssuerTaxID = block.Authorization.IssuerTaxID
	m.AuthorizedAt = block.Authorization.AuthorizedAt
	m.PublicKeyPEM = block.Authorization.PublicKeyPEM
	m.PrivateKeyPEM = block.Authorization.PrivateKeyPEM
	m.AuthoritySig = block.Authorization.SignatureValue
}

// CafBlockModelFromDomain creates a new persistence model from a domain CafBlock.
func CafBlockModelFromDomain(block *dte.CafBlock) *CafBlockModel {
	m := &CafBlockModel{}
	m.FromDomain(block)
	return m
}

// DocumentModel is the persistence model for the Document aggregate root.
type DocumentModel struct {
	TenantAggregateModel
	DocumentType   dte.DocumentType   `gorm:"type:varchar(4);not null;uniqueIndex:idx_doc_tenant_type_folio,priority:2;index"`
	Folio          *int64             `gorm:"uniqueIndex:idx_doc_tenant_type_folio,priority:3"`
	IssueDate      time.Time          `gorm:"not null;index"`
	IssuerTaxID    string             `gorm:"type:varchar(12);not null"`
	RecipientTaxID string             `gorm:"type:varchar(12)"`
	RecipientName  string             `gorm:"type:varchar(200)"`
	NetAmount      decimal.Decimal    `gorm:"type:decimal(18,4);not null"`
	TaxAmount      decimal.Decimal    `gorm:"type:decimal(18,4);not null"`
	ExemptAmount   decimal.Decimal    `gorm:"type:decimal(18,4);not null"`
	TotalAmount    decimal.Decimal    `gorm:"type:decimal(18,4);not null"`
	Status         dte.DocumentStatus `gorm:"type:varchar(20);not null;default:'DRAFT';index"`
	Items          dte.LineItems      `gorm:"type:jsonb;not null;default:'[]'"`
	Reference      *dte.Reference     `gorm:"type:jsonb"`

	StampedAt     *time.Time
	Stamp         []byte `gorm:"type:bytea"`
	SignedPayload []byte `gorm:"type:bytea"`

	TrackID      string `gorm:"type:varchar(64);index"`
	StatusDetail string `gorm:"type:text"`
	SubmittedAt  *time.Time
	ResolvedAt   *time.Time

	ReversalDocumentID *uuid.UUID `gorm:"type:uuid"`
	VoidedAt           *time.Time
}

// TableName returns the table name for GORM
func (DocumentModel) TableName() string {
	return "documents"
}

// ToDomain converts the persistence model to a domain Document aggregate.
func (m *DocumentModel) ToDomain() *dte.Document {
	doc := &dte.Document{
		DocumentType:       m.DocumentType,
		Folio:              m.Folio,
		IssueDate:          m.IssueDate,
		IssuerTaxID:        m.IssuerTaxID,
		RecipientTaxID:     m.RecipientTaxID,
		RecipientName:      m.RecipientName,
		NetAmount:          m.NetAmount,
		TaxAmount:          m.TaxAmount,
		ExemptAmount:       m.ExemptAmount,
		TotalAmount:        m.TotalAmount,
		Status:             m.Status,
		Items:              m.Items,
		Reference:          m.Reference,
		StampedAt:          m.StampedAt,
		Stamp:              m.Stamp,
		SignedPayload:      m.SignedPayload,
		TrackID:            m.TrackID,
		StatusDetail:       m.StatusDetail,
		SubmittedAt:        m.SubmittedAt,
		ResolvedAt:         m.ResolvedAt,
		ReversalDocumentID: m.ReversalDocumentID,
		VoidedAt:           m.VoidedAt,
	}
	m.PopulateTenantAggregateRoot(&doc.TenantAggregateRoot)
	return doc
}

// FromDomain populates the persistence model from a domain Document aggregate.
func (m *DocumentModel) FromDomain(doc *dte.Document) {
	m.FromDomainTenantAggregateRoot(doc.TenantAggregateRoot)
	m.DocumentType = doc.DocumentType
	m.Folio = doc.Folio
	m.IssueDate = doc.IssueDate
	m.IssuerTaxID = doc.IssuerTaxID
	m.RecipientTaxID = doc.RecipientTaxID
	m.RecipientName = doc.RecipientName
	m.NetAmount = doc.NetAmount
	m.TaxAmount = doc.TaxAmount
	m.ExemptAmount = doc.ExemptAmount
	m.TotalAmount = doc.TotalAmount
	m.Status = doc.Status
	m.Items = doc.Items
	m.Reference = doc.Reference
	m.StampedAt = doc.StampedAt
	m.Stamp = doc.Stamp
	m.SignedPayload = doc.SignedPayload
	m.TrackID = doc.TrackID
	m.StatusDetail = doc.StatusDetail
	m.SubmittedAt = doc.SubmittedAt
	m.ResolvedAt = doc.ResolvedAt
	m.ReversalDocumentID = doc.ReversalDocumentID
	m.VoidedAt = doc.VoidedAt
}

// DocumentModelFromDomain creates a new persistence model from a domain Document.
func DocumentModelFromDomain(doc *dte.Document) *DocumentModel {
	m := &DocumentModel{}
	m.FromDomain(doc)
	return m
}

// CertificateModel is the persistence model for tenant digital certificates.
type CertificateModel struct {
	BaseModel
	TenantID       uuid.UUID `gorm:"type:uuid;not null;index"`
	Serial         string    `gorm:"type:varchar(64);not null"`
	HolderName     string    `gorm:"type:varchar(200);not null"`
	HolderTaxID    string    `gorm:"type:varchar(12);not null"`
	CertificatePEM string    `gorm:"type:text;not null"`
	PrivateKeyPEM  string    `gorm:"type:text;not null"`
	NotBefore      time.Time `gorm:"not null"`
	NotAfter       time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (CertificateModel) TableName() string {
	return "certificates"
}

// ToDomain converts the persistence model to a domain DigitalCertificate.
func (m *CertificateModel) ToDomain() *credential.DigitalCertificate {
	return &credential.DigitalCertificate{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		TenantID:       m.TenantID,
		Serial:         m.Serial,
		HolderName:     m.HolderName,
		HolderTaxID:    m.HolderTaxID,
		CertificatePEM: m.CertificatePEM,
		PrivateKeyPEM:  m.PrivateKeyPEM,
		NotBefore:      m.NotBefore,
		NotAfter:       m.NotAfter,
	}
}

// FromDomain populates the persistence model from a domain DigitalCertificate.
func (m *CertificateModel) FromDomain(cert *credential.DigitalCertificate) {
	m.FromDomainBaseEntity(cert.BaseEntity)
	m.TenantID = cert.TenantID
	m.Serial = cert.Serial
	m.HolderName = cert.HolderName
	m.HolderTaxID = cert.HolderTaxID
	m.CertificatePEM = cert.CertificatePEM
	m.PrivateKeyPEM = cert.PrivateKeyPEM
	m.NotBefore = cert.NotBefore
	m.NotAfter = cert.NotAfter
}

// CertificateModelFromDomain creates a new persistence model from a domain DigitalCertificate.
func CertificateModelFromDomain(cert *credential.DigitalCertificate) *CertificateModel {
	m := &CertificateModel{}
	m.FromDomain(cert)
	return m
}
