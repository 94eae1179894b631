package issuance

import (
	"context"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/dte/backend/internal/domain/dte"
	"github.com/dte/backend/internal/domain/shared"
	"github.com/dte/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// cafValidityMonths is how long an authorization stays usable after the
// authority grants it.
const cafValidityMonths = 6

// cafFile mirrors the authority's CAF XML layout. Only the fields the
// importer needs are mapped; unknown elements are ignored.
type cafFile struct {
	XMLName xml.Name `xml:"AUTORIZACION"`
	CAF     struct {
		DA struct {
			IssuerTaxID string `xml:"RE"`
			IssuerName  string `xml:"RS"`
			TypeCode    string `xml:"TD"`
			Range       struct {
				From int64 `xml:"D"`
				To   int64 `xml:"H"`
			} `xml:"RNG"`
			AuthorizedAt string `xml:"FA"`
			PublicKey    struct {
				Modulus  string `xml:"M"`
				Exponent string `xml:"E"`
			} `xml:"RSAPK"`
		} `xml:"DA"`
		Signature string `xml:"FRMA"`
	} `xml:"CAF"`
	PrivateKeyPEM string `xml:"RSASK"`
	PublicKeyPEM  string `xml:"RSAPUBK"`
}

// CafService manages the folio-authorization inventory: importing CAF
// files, listing blocks and reporting how many folios remain before a new
// authorization is needed.
type CafService struct {
	blocks dte.CafBlockRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewCafService creates a CafService
func NewCafService(blocks dte.CafBlockRepository, logger *zap.Logger) *CafService {
	return &CafService{
		blocks: blocks,
		logger: logger,
		now:    time.Now,
	}
}

// ImportCaf parses an authority CAF file and registers it as a folio block
// for the tenant. A range overlapping an existing active block for the same
// document type is rejected: two blocks handing out the same folio would
// break folio uniqueness at the source.
func (s *CafService) ImportCaf(ctx context.Context, tenantID uuid.UUID, rawXML []byte) (*CafBlockResponse, error) {
	var file cafFile
	if err := xml.Unmarshal(rawXML, &file); err != nil {
		return nil, shared.NewDomainError("CAF_MALFORMED", fmt.Sprintf("CAF file is not valid XML: %v", err))
	}

	da := file.CAF.DA
	if _, err := valueobject.ParseTaxID(da.IssuerTaxID); err != nil {
		return nil, shared.NewDomainError("CAF_INVALID_ISSUER", fmt.Sprintf("CAF issuer tax ID %q is invalid: %v", da.IssuerTaxID, err))
	}

	documentType := dte.DocumentType(da.TypeCode)
	if !documentType.IsValid() {
		return nil, shared.NewDomainError("CAF_INVALID_TYPE", fmt.Sprintf("CAF document type %q is not supported", da.TypeCode))
	}

	authorizedAt, err := time.Parse("2006-01-02", da.AuthorizedAt)
	if err != nil {
		return nil, shared.NewDomainError("CAF_INVALID_DATE", fmt.Sprintf("CAF authorization date %q is invalid", da.AuthorizedAt))
	}

	expiresAt := authorizedAt.AddDate(0, cafValidityMonths, 0)
	if !expiresAt.After(s.now()) {
		return nil, shared.NewDomainError("CAF_EXPIRED", fmt.Sprintf(
			"CAF authorized on %s expired on %s and cannot be imported",
			authorizedAt.Format("2006-01-02"), expiresAt.Format("2006-01-02")))
	}

	overlapping, err := s.blocks.FindOverlapping(ctx, tenantID, documentType, da.Range.From, da.Range.To)
	if err != nil {
		return nil, err
	}
	if len(overlapping) > 0 {
		return nil, shared.NewDomainError("CAF_RANGE_OVERLAP", fmt.Sprintf(
			"Folio range %d-%d overlaps active block %d-%d",
			da.Range.From, da.Range.To, overlapping[0].RangeStart, overlapping[0].RangeEnd))
	}

	block, err := dte.NewCafBlock(tenantID, documentType, da.Range.From, da.Range.To,
		expiresAt,
		dte.CafAuthorization{
			IssuerTaxID:    da.IssuerTaxID,
			AuthorizedAt:   authorizedAt,
			PublicKeyPEM:   file.PublicKeyPEM,
			PrivateKeyPEM:  file.PrivateKeyPEM,
			SignatureValue: file.CAF.Signature,
		})
	if err != nil {
		return nil, err
	}

	if err := s.blocks.Save(ctx, block); err != nil {
		return nil, fmt.Errorf("persisting CAF block: %w", err)
	}

	s.logger.Info("CAF block imported",
		zap.String("tenant_id", tenantID.String()),
		zap.String("document_type", documentType.String()),
		zap.Int64("range_start", block.RangeStart),
		zap.Int64("range_end", block.RangeEnd))

	return ToCafBlockResponse(block), nil
}

// GetBlock returns a single CAF block
func (s *CafService) GetBlock(ctx context.Context, tenantID, blockID uuid.UUID) (*CafBlockResponse, error) {
	block, err := s.blocks.FindByIDForTenant(ctx, tenantID, blockID)
	if err != nil {
		return nil, err
	}
	return ToCafBlockResponse(block), nil
}

// ListBlocks returns the tenant's CAF blocks, optionally filtered by
// document type.
func (s *CafService) ListBlocks(ctx context.Context, tenantID uuid.UUID, documentType *dte.DocumentType) ([]CafBlockResponse, error) {
	blocks, err := s.blocks.FindAllForTenant(ctx, tenantID, documentType)
	if err != nil {
		return nil, err
	}
	out := make([]CafBlockResponse, len(blocks))
	for i := range blocks {
		out[i] = *ToCafBlockResponse(&blocks[i])
	}
	return out, nil
}

// FolioStatus reports how many folios remain available for a document type
// so operators can import a new CAF before issuance starts failing.
type FolioStatus struct {
	DocumentType dte.DocumentType   `json:"document_type"`
	Remaining    int64              `json:"remaining"`
	Blocks       []CafBlockResponse `json:"blocks"`
}

// FolioStatusFor computes the remaining-folio report for a document type
func (s *CafService) FolioStatusFor(ctx context.Context, tenantID uuid.UUID, documentType dte.DocumentType) (*FolioStatus, error) {
	if !documentType.IsValid() {
		return nil, shared.NewDomainError("INVALID_DOCUMENT_TYPE", fmt.Sprintf("Document type %q is not supported", documentType))
	}

	remaining, err := s.blocks.RemainingFolios(ctx, tenantID, documentType)
	if err != nil {
		return nil, err
	}
	blocks, err := s.ListBlocks(ctx, tenantID, &documentType)
	if err != nil {
		return nil, err
	}

	return &FolioStatus{
		DocumentType: documentType,
		Remaining:    remaining,
		Blocks:       blocks,
	}, nil
}

// DeactivateBlock retires a block without deleting it. Folios already
// handed out stay consumed; the remainder of the range is abandoned.
func (s *CafService) DeactivateBlock(ctx context.Context, tenantID, blockID uuid.UUID, reason string) (*CafBlockResponse, error) {
	block, err := s.blocks.FindByIDForTenant(ctx, tenantID, blockID)
	if err != nil {
		return nil, err
	}
	if err := block.Deactivate(reason); err != nil {
		return nil, err
	}
	if err := s.blocks.Save(ctx, block); err != nil {
		return nil, err
	}

	s.logger.Info("CAF block deactivated",
		zap.String("block_id", blockID.String()),
		zap.String("reason", reason))

	return ToCafBlockResponse(block), nil
}
