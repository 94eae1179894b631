package dte

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testValidator() *Validator {
	return NewValidator(DefaultValidationPolicy())
}

func violationCodes(violations []Violation) []string {
	codes := make([]string, len(violations))
	for i, v := range violations {
		codes[i] = v.Code
	}
	return codes
}

func TestValidator_Validate(t *testing.T) {
	now := time.Now()

	t.Run("valid invoice yields zero violations", func(t *testing.T) {
		violations := testValidator().Validate(validRequest(), now)
		assert.Empty(t, violations)
	})

	t.Run("net 1000 tax 190 total 1190 reconciles", func(t *testing.T) {
		req := validRequest()
		req.NetAmount = decimal.NewFromInt(1000)
		req.TaxAmount = decimal.NewFromInt(190)
		req.ExemptAmount = decimal.Zero
		req.TotalAmount = decimal.NewFromInt(1190)

		assert.Empty(t, testValidator().Validate(req, now))
	})

	t.Run("total 1191 yields exactly one reconciliation violation", func(t *testing.T) {
		req := validRequest()
		req.TotalAmount = decimal.NewFromInt(1191)

		violations := testValidator().Validate(req, now)
		require.Len(t, violations, 1)
		assert.Equal(t, ViolationTotalMismatch, violations[0].Code)
	})

	t.Run("tax not matching the rate is flagged", func(t *testing.T) {
		req := validRequest()
		req.TaxAmount = decimal.NewFromInt(200)
		req.TotalAmount = decimal.NewFromInt(1200)

		violations := testValidator().Validate(req, now)
		assert.Contains(t, violationCodes(violations), ViolationTaxMismatch)
	})

	t.Run("all violations are collected, not short-circuited", func(t *testing.T) {
		req := validRequest()
		req.IssueDate = now.Add(48 * time.Hour)            // future date
		req.IssuerTaxID = "12345678-4"                     // bad checksum
		req.TotalAmount = decimal.NewFromInt(9999)         // reconciliation
		req.Items[0].Quantity = decimal.NewFromInt(-1)     // bad quantity

		violations := testValidator().Validate(req, now)
		codes := violationCodes(violations)
		assert.Contains(t, codes, ViolationDateInFuture)
		assert.Contains(t, codes, ViolationIssuerTaxID)
		assert.Contains(t, codes, ViolationTotalMismatch)
		assert.Contains(t, codes, ViolationLineQuantity)
	})
}

func TestValidator_IssueDate(t *testing.T) {
	now := time.Now()

	t.Run("future date rejected", func(t *testing.T) {
		req := validRequest()
		req.IssueDate = now.Add(time.Hour)
		assert.Contains(t, violationCodes(testValidator().Validate(req, now)), ViolationDateInFuture)
	})

	t.Run("date beyond lookback window rejected", func(t *testing.T) {
		req := validRequest()
		req.IssueDate = now.AddDate(0, -7, 0)
		assert.Contains(t, violationCodes(testValidator().Validate(req, now)), ViolationDateTooOld)
	})

	t.Run("date inside lookback window accepted", func(t *testing.T) {
		req := validRequest()
		req.IssueDate = now.AddDate(0, -1, 0)
		assert.Empty(t, testValidator().Validate(req, now))
	})
}

func TestValidator_LineItems(t *testing.T) {
	now := time.Now()

	t.Run("no items", func(t *testing.T) {
		req := validRequest()
		req.Items = nil
		assert.Contains(t, violationCodes(testValidator().Validate(req, now)), ViolationNoLineItems)
	})

	t.Run("too many items", func(t *testing.T) {
		req := validRequest()
		item := req.Items[0]
		req.Items = nil
		for i := 0; i < 61; i++ {
			req.Items = append(req.Items, item)
		}
		assert.Contains(t, violationCodes(testValidator().Validate(req, now)), ViolationTooManyLineItems)
	})

	t.Run("percentage discount applied half-up", func(t *testing.T) {
		pct := decimal.NewFromInt(10)
		req := validRequest()
		req.Items[0] = LineItem{
			Description:     "Con descuento",
			Quantity:        decimal.NewFromInt(3),
			UnitPrice:       decimal.NewFromInt(333),
			DiscountPercent: &pct,
			// gross 999, 10% = 99.9 rounds to 100
			Amount: decimal.NewFromInt(899),
		}
		req.NetAmount = decimal.NewFromInt(899)
		req.TaxAmount = decimal.NewFromInt(171) // round(899*0.19)=170.81->171
		req.TotalAmount = decimal.NewFromInt(1070)

		assert.Empty(t, testValidator().Validate(req, now))
	})

	t.Run("absolute discount subtracted as-is", func(t *testing.T) {
		abs := decimal.NewFromInt(50)
		req := validRequest()
		req.Items[0].DiscountAmount = &abs
		req.Items[0].Amount = decimal.NewFromInt(950)
		req.NetAmount = decimal.NewFromInt(950)
		req.TaxAmount = decimal.NewFromInt(181) // round(950*0.19)=180.5->181
		req.TotalAmount = decimal.NewFromInt(1131)

		assert.Empty(t, testValidator().Validate(req, now))
	})

	t.Run("both discount forms on one line rejected, not guessed", func(t *testing.T) {
		pct := decimal.NewFromInt(10)
		abs := decimal.NewFromInt(50)
		req := validRequest()
		req.Items[0].DiscountPercent = &pct
		req.Items[0].DiscountAmount = &abs

		violations := testValidator().Validate(req, now)
		assert.Contains(t, violationCodes(violations), ViolationDiscountAmbiguous)
		// the line amount is not second-guessed once the discount is ambiguous
		assert.NotContains(t, violationCodes(violations), ViolationLineAmount)
	})

	t.Run("amount not matching quantity times price", func(t *testing.T) {
		req := validRequest()
		req.Items[0].Amount = decimal.NewFromInt(1001)
		assert.Contains(t, violationCodes(testValidator().Validate(req, now)), ViolationLineAmount)
	})
}

func TestValidator_Parties(t *testing.T) {
	now := time.Now()

	t.Run("issuer checksum failure", func(t *testing.T) {
		req := validRequest()
		req.IssuerTaxID = "76543210-9"
		assert.Contains(t, violationCodes(testValidator().Validate(req, now)), ViolationIssuerTaxID)
	})

	t.Run("invoice requires recipient", func(t *testing.T) {
		req := validRequest()
		req.RecipientTaxID = ""
		assert.Contains(t, violationCodes(testValidator().Validate(req, now)), ViolationRecipientRequired)
	})

	t.Run("consumer receipt allows anonymous recipient", func(t *testing.T) {
		req := validRequest()
		req.DocumentType = DocumentTypeReceipt
		req.RecipientTaxID = ""
		assert.Empty(t, testValidator().Validate(req, now))
	})

	t.Run("recipient checksum failure", func(t *testing.T) {
		req := validRequest()
		req.RecipientTaxID = "12345678-9"
		assert.Contains(t, violationCodes(testValidator().Validate(req, now)), ViolationRecipientTaxID)
	})
}

func TestValidator_TypeSpecificRules(t *testing.T) {
	now := time.Now()

	t.Run("credit note requires a reference", func(t *testing.T) {
		req := validRequest()
		req.DocumentType = DocumentTypeCreditNote
		req.Reference = nil
		assert.Contains(t, violationCodes(testValidator().Validate(req, now)), ViolationReferenceRequired)
	})

	t.Run("credit note with reference passes", func(t *testing.T) {
		req := validRequest()
		req.DocumentType = DocumentTypeCreditNote
		req.Reference = &Reference{
			DocumentType: DocumentTypeInvoice,
			Folio:        42,
			Reason:       "anula factura",
		}
		assert.Empty(t, testValidator().Validate(req, now))
	})

	t.Run("unsupported document type", func(t *testing.T) {
		req := validRequest()
		req.DocumentType = DocumentType("77")
		assert.Contains(t, violationCodes(testValidator().Validate(req, now)), ViolationDocumentType)
	})
}

func TestValidator_NegativeAmounts(t *testing.T) {
	req := validRequest()
	req.ExemptAmount = decimal.NewFromInt(-10)

	violations := testValidator().Validate(req, time.Now())
	require.NotEmpty(t, violations)
	assert.Contains(t, violationCodes(violations), ViolationAmountNegative)
}
