package handler

import (
	"time"

	issuanceapp "github.com/dte/backend/internal/application/issuance"
	"github.com/dte/backend/internal/domain/dte"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DocumentHandler handles tax document API endpoints
type DocumentHandler struct {
	BaseHandler
	issuanceService *issuanceapp.Service
}

// NewDocumentHandler creates a new DocumentHandler
func NewDocumentHandler(issuanceService *issuanceapp.Service) *DocumentHandler {
	return &DocumentHandler{
		issuanceService: issuanceService,
	}
}

// IssueLineItemRequest represents one document line in an issuance request
// @Description Line item of a tax document
type IssueLineItemRequest struct {
	LineNumber      int      `json:"line_number" binding:"required,min=1" example:"1"`
	Description     string   `json:"description" binding:"required,min=1,max=1000" example:"Consulting services"`
	Quantity        float64  `json:"quantity" binding:"required" example:"2"`
	UnitPrice       float64  `json:"unit_price" binding:"required" example:"50000"`
	DiscountPercent *float64 `json:"discount_percent" binding:"omitempty,min=0,max=100" example:"10"`
	DiscountAmount  *float64 `json:"discount_amount" binding:"omitempty,min=0" example:"10000"`
	Amount          float64  `json:"amount" binding:"required" example:"90000"`
	Exempt          bool     `json:"exempt" example:"false"`
}

// DocumentReferenceRequest represents a reference to a previously issued document
// @Description Reference to the corrected document, required for credit and debit notes
type DocumentReferenceRequest struct {
	DocumentType string `json:"document_type" binding:"required" example:"33"`
	Folio        int64  `json:"folio" binding:"required,min=1" example:"1042"`
	Reason       string `json:"reason" binding:"required,min=1,max=500" example:"Quantity corrected"`
}

// IssueDocumentRequest represents a request to issue a tax document
// @Description Request body for issuing an electronic tax document
type IssueDocumentRequest struct {
	DocumentType   string                    `json:"document_type" binding:"required" example:"33"`
	IssueDate      time.Time                 `json:"issue_date" binding:"required" example:"2026-08-01T00:00:00Z"`
	IssuerTaxID    string                    `json:"issuer_tax_id" binding:"required,max=12" example:"76543210-3"`
	RecipientTaxID string                    `json:"recipient_tax_id" binding:"max=12" example:"12345678-5"`
	RecipientName  string                    `json:"recipient_name" binding:"max=200" example:"Comercial Andina SpA"`
	Items          []IssueLineItemRequest    `json:"items" binding:"required,min=1,dive"`
	NetAmount      float64                   `json:"net_amount" binding:"min=0" example:"90000"`
	TaxAmount      float64                   `json:"tax_amount" binding:"min=0" example:"17100"`
	ExemptAmount   float64                   `json:"exempt_amount" binding:"min=0" example:"0"`
	TotalAmount    float64                   `json:"total_amount" binding:"required" example:"107100"`
	Reference      *DocumentReferenceRequest `json:"reference"`
}

// VoidDocumentRequest represents a request to void an accepted document
// @Description Request body for voiding an accepted document
type VoidDocumentRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500" example:"Billed in error"`
}

// DocumentListFilter represents document list query parameters
type DocumentListFilter struct {
	Page         int    `form:"page"`
	PageSize     int    `form:"page_size" binding:"omitempty,max=100"`
	DocumentType string `form:"document_type"`
	Status       string `form:"status"`
	FromDate     string `form:"from_date"`
	ToDate       string `form:"to_date"`
}

// toIssuanceRequest converts the HTTP payload to the domain request
func (r *IssueDocumentRequest) toIssuanceRequest(tenantID uuid.UUID) dte.IssuanceRequest {
	items := make([]dte.LineItem, 0, len(r.Items))
	for _, it := range r.Items {
		item := dte.LineItem{
			LineNumber:  it.LineNumber,
			Description: it.Description,
			Quantity:    toDecimal(it.Quantity),
			UnitPrice:   toDecimal(it.UnitPrice),
			Amount:      toDecimal(it.Amount),
			Exempt:      it.Exempt,
		}
		if it.DiscountPercent != nil {
			item.DiscountPercent = toDecimalPtr(*it.DiscountPercent)
		}
		if it.DiscountAmount != nil {
			item.DiscountAmount = toDecimalPtr(*it.DiscountAmount)
		}
		items = append(items, item)
	}

	req := dte.IssuanceRequest{
		TenantID:       tenantID,
		DocumentType:   dte.DocumentType(r.DocumentType),
		IssueDate:      r.IssueDate,
		IssuerTaxID:    r.IssuerTaxID,
		RecipientTaxID: r.RecipientTaxID,
		RecipientName:  r.RecipientName,
		Items:          items,
		NetAmount:      toDecimal(r.NetAmount),
		TaxAmount:      toDecimal(r.TaxAmount),
		ExemptAmount:   toDecimal(r.ExemptAmount),
		TotalAmount:    toDecimal(r.TotalAmount),
	}

	if r.Reference != nil {
		req.Reference = &dte.Reference{
			DocumentType: dte.DocumentType(r.Reference.DocumentType),
			Folio:        r.Reference.Folio,
			Reason:       r.Reference.Reason,
		}
	}

	return req
}

// Issue godoc
// @Summary      Issue a tax document
// @Description  Validate, assign a folio, stamp, sign and submit an electronic tax document
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        request body IssueDocumentRequest true "Document issuance request"
// @Success      201 {object} dto.Response{data=issuanceapp.DocumentResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /documents [post]
func (h *DocumentHandler) Issue(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req IssueDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	doc, err := h.issuanceService.Issue(c.Request.Context(), req.toIssuanceRequest(tenantID))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, doc)
}

// GetByID godoc
// @Summary      Get document by ID
// @Description  Retrieve a tax document with its current lifecycle status
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Document ID" format(uuid)
// @Success      200 {object} dto.Response{data=issuanceapp.DocumentResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /documents/{id} [get]
func (h *DocumentHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	documentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid document ID format")
		return
	}

	doc, err := h.issuanceService.GetDocument(c.Request.Context(), tenantID, documentID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, doc)
}

// List godoc
// @Summary      List documents
// @Description  Retrieve a paginated list of tax documents with optional filtering
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        document_type query string false "Document type code" Enums(33, 34, 39, 56, 61)
// @Param        status query string false "Lifecycle status" Enums(DRAFT, VALIDATED, FOLIO_ASSIGNED, ASSEMBLED, SIGNED, SUBMITTED, ACCEPTED, REJECTED, VOIDED)
// @Param        from_date query string false "Issue date lower bound (YYYY-MM-DD)"
// @Param        to_date query string false "Issue date upper bound (YYYY-MM-DD)"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} dto.Response{data=[]issuanceapp.DocumentResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var query DocumentListFilter
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter, err := query.toDomainFilter()
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	page, err := h.issuanceService.ListDocuments(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Resume godoc
// @Summary      Resume document issuance
// @Description  Re-drive a document stuck mid-pipeline after a transient failure
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Document ID" format(uuid)
// @Success      200 {object} dto.Response{data=issuanceapp.DocumentResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /documents/{id}/resume [post]
func (h *DocumentHandler) Resume(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	documentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid document ID format")
		return
	}

	doc, err := h.issuanceService.Resume(c.Request.Context(), tenantID, documentID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, doc)
}

// Void godoc
// @Summary      Void an accepted document
// @Description  Issue a reversal credit note for the document and mark it voided once the reversal is accepted
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Document ID" format(uuid)
// @Param        request body VoidDocumentRequest true "Void request"
// @Success      200 {object} dto.Response{data=issuanceapp.DocumentResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /documents/{id}/void [post]
func (h *DocumentHandler) Void(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	documentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid document ID format")
		return
	}

	var req VoidDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	doc, err := h.issuanceService.Void(c.Request.Context(), tenantID, documentID, req.Reason)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, doc)
}

// toDomainFilter converts query parameters to the repository filter
func (q *DocumentListFilter) toDomainFilter() (dte.DocumentFilter, error) {
	filter := dte.DocumentFilter{}
	filter.Page = q.Page
	filter.PageSize = q.PageSize
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	if q.DocumentType != "" {
		dt := dte.DocumentType(q.DocumentType)
		filter.DocumentType = &dt
	}
	if q.Status != "" {
		st := dte.DocumentStatus(q.Status)
		filter.Status = &st
	}
	if q.FromDate != "" {
		from, err := time.Parse("2006-01-02", q.FromDate)
		if err != nil {
			return filter, err
		}
		filter.FromDate = &from
	}
	if q.ToDate != "" {
		to, err := time.Parse("2006-01-02", q.ToDate)
		if err != nil {
			return filter, err
		}
		filter.ToDate = &to
	}

	return filter, nil
}
