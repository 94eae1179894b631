package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	issuanceapp "github.com/dte/backend/internal/application/issuance"
	"github.com/dte/backend/internal/domain/dte"
	"github.com/dte/backend/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockDocumentRepository implements dte.DocumentRepository for testing
type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) FindByID(ctx context.Context, id uuid.UUID) (*dte.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dte.Document), args.Error(1)
}

func (m *MockDocumentRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*dte.Document, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dte.Document), args.Error(1)
}

func (m *MockDocumentRepository) FindByFolio(ctx context.Context, tenantID uuid.UUID, documentType dte.DocumentType, folio int64) (*dte.Document, error) {
	args := m.Called(ctx, tenantID, documentType, folio)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dte.Document), args.Error(1)
}

func (m *MockDocumentRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter dte.DocumentFilter) ([]dte.Document, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]dte.Document), args.Error(1)
}

func (m *MockDocumentRepository) FindInStatus(ctx context.Context, status dte.DocumentStatus, limit int) ([]dte.Document, error) {
	args := m.Called(ctx, status, limit)
	return args.Get(0).([]dte.Document), args.Error(1)
}

func (m *MockDocumentRepository) Save(ctx context.Context, doc *dte.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentRepository) SaveWithLock(ctx context.Context, doc *dte.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter dte.DocumentFilter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

// MockCafBlockRepository implements dte.CafBlockRepository for testing
type MockCafBlockRepository struct {
	mock.Mock
}

func (m *MockCafBlockRepository) FindByID(ctx context.Context, id uuid.UUID) (*dte.CafBlock, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dte.CafBlock), args.Error(1)
}

func (m *MockCafBlockRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*dte.CafBlock, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dte.CafBlock), args.Error(1)
}

func (m *MockCafBlockRepository) FindEligible(ctx context.Context, tenantID uuid.UUID, documentType dte.DocumentType, now time.Time) (*dte.CafBlock, error) {
	args := m.Called(ctx, tenantID, documentType, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dte.CafBlock), args.Error(1)
}

func (m *MockCafBlockRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, documentType *dte.DocumentType) ([]dte.CafBlock, error) {
	args := m.Called(ctx, tenantID, documentType)
	return args.Get(0).([]dte.CafBlock), args.Error(1)
}

func (m *MockCafBlockRepository) FindOverlapping(ctx context.Context, tenantID uuid.UUID, documentType dte.DocumentType, rangeStart, rangeEnd int64) ([]dte.CafBlock, error) {
	args := m.Called(ctx, tenantID, documentType, rangeStart, rangeEnd)
	return args.Get(0).([]dte.CafBlock), args.Error(1)
}

func (m *MockCafBlockRepository) Save(ctx context.Context, block *dte.CafBlock) error {
	args := m.Called(ctx, block)
	return args.Error(0)
}

func (m *MockCafBlockRepository) SaveCursor(ctx context.Context, block *dte.CafBlock, expectedCursor int64) error {
	args := m.Called(ctx, block, expectedCursor)
	return args.Error(0)
}

func (m *MockCafBlockRepository) RemainingFolios(ctx context.Context, tenantID uuid.UUID, documentType dte.DocumentType) (int64, error) {
	args := m.Called(ctx, tenantID, documentType)
	return args.Get(0).(int64), args.Error(1)
}

// stubSigner implements dte.Signer for tests that never reach signing
type stubSigner struct{}

func (stubSigner) Sign(ctx context.Context, tenantID uuid.UUID, payload []byte) (dte.SignedDocument, error) {
	return dte.SignedDocument{Payload: payload}, nil
}

// stubGateway implements dte.AuthorityGateway for tests that never submit
type stubGateway struct{}

func (stubGateway) GetToken(ctx context.Context, tenantID uuid.UUID) (string, error) {
	return "stub-token", nil
}

func (stubGateway) Submit(ctx context.Context, tenantID uuid.UUID, doc dte.SignedDocument) (string, error) {
	return "stub-track", nil
}

func (stubGateway) CheckStatus(ctx context.Context, tenantID uuid.UUID, trackID string) (dte.SubmissionStatus, error) {
	return dte.SubmissionStatus{}, nil
}

func newDocumentTestHandler(docs *MockDocumentRepository, blocks *MockCafBlockRepository) *DocumentHandler {
	svc := issuanceapp.NewService(docs, blocks, stubSigner{}, stubGateway{}, zap.NewNop())
	return NewDocumentHandler(svc)
}

func newTestRequestContext(t *testing.T, method, target string, body []byte, tenantID uuid.UUID) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, target, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", tenantID.String())
	c.Request = req
	return c, w
}

func acceptedTestDocument(t *testing.T, tenantID uuid.UUID) *dte.Document {
	t.Helper()
	doc, err := dte.NewDocument(dte.IssuanceRequest{
		TenantID:       tenantID,
		DocumentType:   dte.DocumentTypeInvoice,
		IssueDate:      time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		IssuerTaxID:    "76543210-3",
		RecipientTaxID: "12345678-5",
		RecipientName:  "Comercial Andina SpA",
		Items: []dte.LineItem{
			{
				Description: "Consulting services",
				Quantity:    decimal.NewFromInt(2),
				UnitPrice:   decimal.NewFromInt(50000),
				Amount:      decimal.NewFromInt(100000),
			},
		},
		NetAmount:   decimal.NewFromInt(100000),
		TaxAmount:   decimal.NewFromInt(19000),
		TotalAmount: decimal.NewFromInt(119000),
	})
	require.NoError(t, err)

	folio := int64(1042)
	doc.Folio = &folio
	doc.Status = dte.StatusAccepted
	return doc
}

func TestDocumentHandlerIssue_InvalidJSON(t *testing.T) {
	h := newDocumentTestHandler(new(MockDocumentRepository), new(MockCafBlockRepository))
	c, w := newTestRequestContext(t, http.MethodPost, "/documents", []byte("{not json"), uuid.New())

	h.Issue(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocumentHandlerIssue_MissingItems(t *testing.T) {
	h := newDocumentTestHandler(new(MockDocumentRepository), new(MockCafBlockRepository))

	body, _ := json.Marshal(map[string]any{
		"document_type": "33",
		"issue_date":    "2026-08-01T00:00:00Z",
		"issuer_tax_id": "76543210-3",
		"total_amount":  119000,
	})
	c, w := newTestRequestContext(t, http.MethodPost, "/documents", body, uuid.New())

	h.Issue(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocumentHandlerIssue_UnsupportedDocumentType(t *testing.T) {
	h := newDocumentTestHandler(new(MockDocumentRepository), new(MockCafBlockRepository))

	body, _ := json.Marshal(map[string]any{
		"document_type": "99",
		"issue_date":    "2026-08-01T00:00:00Z",
		"issuer_tax_id": "76543210-3",
		"items": []map[string]any{
			{"line_number": 1, "description": "Consulting", "quantity": 1, "unit_price": 100000, "amount": 100000},
		},
		"net_amount":   100000,
		"tax_amount":   19000,
		"total_amount": 119000,
	})
	c, w := newTestRequestContext(t, http.MethodPost, "/documents", body, uuid.New())

	h.Issue(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	errInfo := resp["error"].(map[string]any)
	assert.Equal(t, "ERR_INVALID_INPUT", errInfo["code"])
}

func TestDocumentHandlerIssue_InvalidTenantHeader(t *testing.T) {
	h := newDocumentTestHandler(new(MockDocumentRepository), new(MockCafBlockRepository))

	c, w := newTestRequestContext(t, http.MethodPost, "/documents", []byte("{}"), uuid.New())
	c.Request.Header.Set("X-Tenant-ID", "not-a-uuid")

	h.Issue(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocumentHandlerGetByID(t *testing.T) {
	tenantID := uuid.New()
	docs := new(MockDocumentRepository)
	h := newDocumentTestHandler(docs, new(MockCafBlockRepository))

	doc := acceptedTestDocument(t, tenantID)
	docs.On("FindByIDForTenant", mock.Anything, tenantID, doc.ID).Return(doc, nil)

	c, w := newTestRequestContext(t, http.MethodGet, "/documents/"+doc.ID.String(), nil, tenantID)
	c.Params = gin.Params{{Key: "id", Value: doc.ID.String()}}

	h.GetByID(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]any)
	assert.Equal(t, doc.ID.String(), data["id"])
	assert.Equal(t, "ACCEPTED", data["status"])
	docs.AssertExpectations(t)
}

func TestDocumentHandlerGetByID_InvalidID(t *testing.T) {
	h := newDocumentTestHandler(new(MockDocumentRepository), new(MockCafBlockRepository))

	c, w := newTestRequestContext(t, http.MethodGet, "/documents/abc", nil, uuid.New())
	c.Params = gin.Params{{Key: "id", Value: "abc"}}

	h.GetByID(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocumentHandlerGetByID_NotFound(t *testing.T) {
	tenantID := uuid.New()
	documentID := uuid.New()
	docs := new(MockDocumentRepository)
	h := newDocumentTestHandler(docs, new(MockCafBlockRepository))

	docs.On("FindByIDForTenant", mock.Anything, tenantID, documentID).Return(nil, shared.ErrNotFound)

	c, w := newTestRequestContext(t, http.MethodGet, "/documents/"+documentID.String(), nil, tenantID)
	c.Params = gin.Params{{Key: "id", Value: documentID.String()}}

	h.GetByID(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	docs.AssertExpectations(t)
}

func TestDocumentHandlerList(t *testing.T) {
	tenantID := uuid.New()
	docs := new(MockDocumentRepository)
	h := newDocumentTestHandler(docs, new(MockCafBlockRepository))

	doc := acceptedTestDocument(t, tenantID)
	docs.On("FindAllForTenant", mock.Anything, tenantID, mock.Anything).Return([]dte.Document{*doc}, nil)
	docs.On("CountForTenant", mock.Anything, tenantID, mock.Anything).Return(int64(1), nil)

	c, w := newTestRequestContext(t, http.MethodGet, "/documents?document_type=33&status=ACCEPTED&page=1&page_size=20", nil, tenantID)

	h.List(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	meta := resp["meta"].(map[string]any)
	assert.Equal(t, float64(1), meta["total"])
	assert.Equal(t, float64(1), meta["page"])
	assert.Equal(t, float64(20), meta["page_size"])
	docs.AssertExpectations(t)
}

func TestDocumentHandlerList_DateFilterParsing(t *testing.T) {
	tenantID := uuid.New()
	docs := new(MockDocumentRepository)
	h := newDocumentTestHandler(docs, new(MockCafBlockRepository))

	docs.On("FindAllForTenant", mock.Anything, tenantID, mock.MatchedBy(func(f dte.DocumentFilter) bool {
		return f.FromDate != nil && f.FromDate.Equal(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	})).Return([]dte.Document{}, nil)
	docs.On("CountForTenant", mock.Anything, tenantID, mock.Anything).Return(int64(0), nil)

	c, w := newTestRequestContext(t, http.MethodGet, "/documents?from_date=2026-08-01", nil, tenantID)

	h.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
	docs.AssertExpectations(t)
}

func TestDocumentHandlerList_InvalidDate(t *testing.T) {
	h := newDocumentTestHandler(new(MockDocumentRepository), new(MockCafBlockRepository))

	c, w := newTestRequestContext(t, http.MethodGet, "/documents?from_date=notadate", nil, uuid.New())

	h.List(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocumentHandlerResume_AlreadyAccepted(t *testing.T) {
	tenantID := uuid.New()
	docs := new(MockDocumentRepository)
	h := newDocumentTestHandler(docs, new(MockCafBlockRepository))

	doc := acceptedTestDocument(t, tenantID)
	docs.On("FindByIDForTenant", mock.Anything, tenantID, doc.ID).Return(doc, nil)

	c, w := newTestRequestContext(t, http.MethodPost, "/documents/"+doc.ID.String()+"/resume", nil, tenantID)
	c.Params = gin.Params{{Key: "id", Value: doc.ID.String()}}

	h.Resume(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]any)
	assert.Equal(t, "ACCEPTED", data["status"])
	docs.AssertExpectations(t)
}

func TestDocumentHandlerVoid_MissingReason(t *testing.T) {
	h := newDocumentTestHandler(new(MockDocumentRepository), new(MockCafBlockRepository))
	documentID := uuid.New()

	c, w := newTestRequestContext(t, http.MethodPost, "/documents/"+documentID.String()+"/void", []byte("{}"), uuid.New())
	c.Params = gin.Params{{Key: "id", Value: documentID.String()}}

	h.Void(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocumentHandlerVoid_NotAccepted(t *testing.T) {
	tenantID := uuid.New()
	docs := new(MockDocumentRepository)
	h := newDocumentTestHandler(docs, new(MockCafBlockRepository))

	doc := acceptedTestDocument(t, tenantID)
	doc.Status = dte.StatusSubmitted
	docs.On("FindByIDForTenant", mock.Anything, tenantID, doc.ID).Return(doc, nil)

	body, _ := json.Marshal(map[string]any{"reason": "Billed in error"})
	c, w := newTestRequestContext(t, http.MethodPost, "/documents/"+doc.ID.String()+"/void", body, tenantID)
	c.Params = gin.Params{{Key: "id", Value: doc.ID.String()}}

	h.Void(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	errInfo := resp["error"].(map[string]any)
	assert.Equal(t, "ERR_INVALID_STATE", errInfo["code"])
	docs.AssertExpectations(t)
}
