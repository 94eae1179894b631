package handler

import (
	"io"

	issuanceapp "github.com/dte/backend/internal/application/issuance"
	"github.com/dte/backend/internal/domain/dte"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CafHandler handles folio authorization (CAF) API endpoints
type CafHandler struct {
	BaseHandler
	cafService *issuanceapp.CafService
}

// NewCafHandler creates a new CafHandler
func NewCafHandler(cafService *issuanceapp.CafService) *CafHandler {
	return &CafHandler{
		cafService: cafService,
	}
}

// DeactivateCafRequest represents a request to deactivate a CAF block
// @Description Request body for deactivating a folio authorization block
type DeactivateCafRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500" example:"Signing key compromised"`
}

// Import godoc
// @Summary      Import a CAF authorization file
// @Description  Parse and validate a raw CAF XML file and register its folio range
// @Tags         caf
// @Accept       application/xml
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        file body string true "Raw CAF XML"
// @Success      201 {object} dto.Response{data=issuanceapp.CafBlockResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /caf/import [post]
func (h *CafHandler) Import(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	rawXML, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.BadRequest(c, "Failed to read request body")
		return
	}
	if len(rawXML) == 0 {
		h.BadRequest(c, "Request body is empty")
		return
	}

	block, err := h.cafService.ImportCaf(c.Request.Context(), tenantID, rawXML)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, block)
}

// GetByID godoc
// @Summary      Get CAF block by ID
// @Description  Retrieve a folio authorization block with its consumption state
// @Tags         caf
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "CAF block ID" format(uuid)
// @Success      200 {object} dto.Response{data=issuanceapp.CafBlockResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /caf/{id} [get]
func (h *CafHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	blockID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid CAF block ID format")
		return
	}

	block, err := h.cafService.GetBlock(c.Request.Context(), tenantID, blockID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, block)
}

// List godoc
// @Summary      List CAF blocks
// @Description  Retrieve all folio authorization blocks, optionally filtered by document type
// @Tags         caf
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        document_type query string false "Document type code" Enums(33, 34, 39, 56, 61)
// @Success      200 {object} dto.Response{data=[]issuanceapp.CafBlockResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /caf [get]
func (h *CafHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var documentType *dte.DocumentType
	if raw := c.Query("document_type"); raw != "" {
		dt := dte.DocumentType(raw)
		if !dt.IsValid() {
			h.BadRequest(c, "Invalid document type")
			return
		}
		documentType = &dt
	}

	blocks, err := h.cafService.ListBlocks(c.Request.Context(), tenantID, documentType)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, blocks)
}

// FolioStatus godoc
// @Summary      Get folio availability
// @Description  Report remaining folios and active block state for a document type
// @Tags         caf
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        document_type query string true "Document type code" Enums(33, 34, 39, 56, 61)
// @Success      200 {object} dto.Response{data=issuanceapp.FolioStatus}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /caf/folio-status [get]
func (h *CafHandler) FolioStatus(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	documentType := dte.DocumentType(c.Query("document_type"))
	if !documentType.IsValid() {
		h.BadRequest(c, "Invalid document type")
		return
	}

	status, err := h.cafService.FolioStatusFor(c.Request.Context(), tenantID, documentType)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, status)
}

// Deactivate godoc
// @Summary      Deactivate a CAF block
// @Description  Mark a folio authorization block unusable for further allocation
// @Tags         caf
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "CAF block ID" format(uuid)
// @Param        request body DeactivateCafRequest true "Deactivation request"
// @Success      200 {object} dto.Response{data=issuanceapp.CafBlockResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /caf/{id}/deactivate [post]
func (h *CafHandler) Deactivate(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	blockID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid CAF block ID format")
		return
	}

	var req DeactivateCafRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	block, err := h.cafService.DeactivateBlock(c.Request.Context(), tenantID, blockID, req.Reason)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, block)
}
