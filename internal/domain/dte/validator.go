package dte

import (
	"fmt"
	"time"

	"github.com/dte/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Violation codes returned by the validator
const (
	ViolationDateInFuture      = "DATE_IN_FUTURE"
	ViolationDateTooOld        = "DATE_TOO_OLD"
	ViolationNoLineItems       = "NO_LINE_ITEMS"
	ViolationTooManyLineItems  = "TOO_MANY_LINE_ITEMS"
	ViolationLineQuantity      = "LINE_QUANTITY_NOT_POSITIVE"
	ViolationLineUnitPrice     = "LINE_UNIT_PRICE_NOT_POSITIVE"
	ViolationLineAmount        = "LINE_AMOUNT_MISMATCH"
	ViolationDiscountAmbiguous = "LINE_DISCOUNT_AMBIGUOUS"
	ViolationIssuerTaxID       = "ISSUER_TAX_ID_INVALID"
	ViolationRecipientTaxID    = "RECIPIENT_TAX_ID_INVALID"
	ViolationRecipientRequired = "RECIPIENT_REQUIRED"
	ViolationReferenceRequired = "REFERENCE_REQUIRED"
	ViolationAmountNegative    = "AMOUNT_NEGATIVE"
	ViolationTotalMismatch     = "TOTAL_MISMATCH"
	ViolationTaxMismatch       = "TAX_MISMATCH"
	ViolationDocumentType      = "DOCUMENT_TYPE_INVALID"
)

// Violation is one business-rule failure on an issuance request
type Violation struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationPolicy holds the tunable validation parameters
type ValidationPolicy struct {
	MaxDocumentAge time.Duration   // lookback window for the issue date
	MaxLineItems   int             // upper bound on lines per document
	TaxRate        decimal.Decimal // e.g. 0.19
}

// DefaultValidationPolicy returns the standard policy: six-month lookback,
// sixty lines, 19% VAT.
func DefaultValidationPolicy() ValidationPolicy {
	return ValidationPolicy{
		MaxDocumentAge: 6 * 30 * 24 * time.Hour,
		MaxLineItems:   60,
		TaxRate:        decimal.NewFromFloat(0.19),
	}
}

// reconciliationTolerance is the permitted rounding slack when comparing
// declared totals. Declared amounts are integral, so the sub-unit bound
// only forgives fractional drift introduced upstream; a full unit off is
// always a violation.
var reconciliationTolerance = decimal.NewFromInt(1)

// Validator checks an issuance request against the business rules that must
// hold before a folio may be consumed. It performs no I/O and mutates
// nothing; every rule is evaluated and all violations are returned together.
type Validator struct {
	policy ValidationPolicy
}

// NewValidator creates a Validator with the given policy
func NewValidator(policy ValidationPolicy) *Validator {
	return &Validator{policy: policy}
}

// Validate returns the complete list of violations for the request,
// evaluated at the given instant. An empty list means the request is
// eligible for folio allocation.
func (v *Validator) Validate(req IssuanceRequest, now time.Time) []Violation {
	violations := make([]Violation, 0)

	if !req.DocumentType.IsValid() {
		violations = append(violations, Violation{
			Code:    ViolationDocumentType,
			Field:   "document_type",
			Message: fmt.Sprintf("document type %q is not supported", req.DocumentType),
		})
	}

	violations = append(violations, v.validateIssueDate(req, now)...)
	violations = append(violations, v.validateItems(req)...)
	violations = append(violations, v.validateParties(req)...)
	violations = append(violations, v.validateTotals(req)...)

	if req.DocumentType.RequiresReference() && req.Reference == nil {
		violations = append(violations, Violation{
			Code:    ViolationReferenceRequired,
			Field:   "reference",
			Message: fmt.Sprintf("document type %s must reference the document it corrects", req.DocumentType),
		})
	}

	return violations
}

func (v *Validator) validateIssueDate(req IssuanceRequest, now time.Time) []Violation {
	var violations []Violation
	if req.IssueDate.After(now) {
		violations = append(violations, Violation{
			Code:    ViolationDateInFuture,
			Field:   "issue_date",
			Message: "issue date cannot be in the future",
		})
	}
	if req.IssueDate.Before(now.Add(-v.policy.MaxDocumentAge)) {
		violations = append(violations, Violation{
			Code:    ViolationDateTooOld,
			Field:   "issue_date",
			Message: fmt.Sprintf("issue date is older than the %s lookback window", v.policy.MaxDocumentAge),
		})
	}
	return violations
}

func (v *Validator) validateItems(req IssuanceRequest) []Violation {
	var violations []Violation

	if len(req.Items) == 0 {
		return append(violations, Violation{
			Code:    ViolationNoLineItems,
			Field:   "items",
			Message: "a document needs at least one line item",
		})
	}
	if len(req.Items) > v.policy.MaxLineItems {
		violations = append(violations, Violation{
			Code:    ViolationTooManyLineItems,
			Field:   "items",
			Message: fmt.Sprintf("document has %d lines, the maximum is %d", len(req.Items), v.policy.MaxLineItems),
		})
	}

	for i, item := range req.Items {
		field := fmt.Sprintf("items[%d]", i)

		if !item.Quantity.IsPositive() {
			violations = append(violations, Violation{
				Code:    ViolationLineQuantity,
				Field:   field + ".quantity",
				Message: "quantity must be positive",
			})
		}
		if !item.UnitPrice.IsPositive() {
			violations = append(violations, Violation{
				Code:    ViolationLineUnitPrice,
				Field:   field + ".unit_price",
				Message: "unit price must be positive",
			})
		}

		// A line carrying both a percentage and an absolute discount is
		// ambiguous: the order of application changes the result, so the
		// request is rejected instead of picking one.
		if item.DiscountPercent != nil && item.DiscountAmount != nil {
			violations = append(violations, Violation{
				Code:    ViolationDiscountAmbiguous,
				Field:   field,
				Message: "line carries both a percentage and an absolute discount; supply exactly one",
			})
			continue
		}

		if !item.Quantity.IsPositive() || !item.UnitPrice.IsPositive() {
			continue
		}

		expected := expectedLineAmount(item)
		if !item.Amount.Equal(expected) {
			violations = append(violations, Violation{
				Code:    ViolationLineAmount,
				Field:   field + ".amount",
				Message: fmt.Sprintf("line amount %s does not match the expected %s", item.Amount, expected),
			})
		}
	}

	return violations
}

// expectedLineAmount computes round(quantity x unitPrice) minus the single
// supplied discount, all rounded half-up to whole units.
func expectedLineAmount(item LineItem) decimal.Decimal {
	gross := item.Quantity.Mul(item.UnitPrice).Round(0)
	switch {
	case item.DiscountPercent != nil:
		discount := gross.Mul(*item.DiscountPercent).Div(decimal.NewFromInt(100)).Round(0)
		return gross.Sub(discount)
	case item.DiscountAmount != nil:
		return gross.Sub(*item.DiscountAmount)
	default:
		return gross
	}
}

func (v *Validator) validateParties(req IssuanceRequest) []Violation {
	var violations []Violation

	if _, err := valueobject.ParseTaxID(req.IssuerTaxID); err != nil {
		violations = append(violations, Violation{
			Code:    ViolationIssuerTaxID,
			Field:   "issuer_tax_id",
			Message: err.Error(),
		})
	}

	if req.DocumentType.RequiresRecipient() {
		if req.RecipientTaxID == "" {
			violations = append(violations, Violation{
				Code:    ViolationRecipientRequired,
				Field:   "recipient_tax_id",
				Message: fmt.Sprintf("document type %s requires a recipient tax ID", req.DocumentType),
			})
		} else if _, err := valueobject.ParseTaxID(req.RecipientTaxID); err != nil {
			violations = append(violations, Violation{
				Code:    ViolationRecipientTaxID,
				Field:   "recipient_tax_id",
				Message: err.Error(),
			})
		}
	} else if req.RecipientTaxID != "" {
		if _, err := valueobject.ParseTaxID(req.RecipientTaxID); err != nil {
			violations = append(violations, Violation{
				Code:    ViolationRecipientTaxID,
				Field:   "recipient_tax_id",
				Message: err.Error(),
			})
		}
	}

	return violations
}

func (v *Validator) validateTotals(req IssuanceRequest) []Violation {
	var violations []Violation

	for field, amount := range map[string]decimal.Decimal{
		"net_amount":    req.NetAmount,
		"tax_amount":    req.TaxAmount,
		"exempt_amount": req.ExemptAmount,
		"total_amount":  req.TotalAmount,
	} {
		if amount.IsNegative() {
			violations = append(violations, Violation{
				Code:    ViolationAmountNegative,
				Field:   field,
				Message: "declared amounts cannot be negative",
			})
		}
	}

	declaredSum := req.NetAmount.Add(req.TaxAmount).Add(req.ExemptAmount)
	if declaredSum.Sub(req.TotalAmount).Abs().GreaterThanOrEqual(reconciliationTolerance) {
		violations = append(violations, Violation{
			Code:    ViolationTotalMismatch,
			Field:   "total_amount",
			Message: fmt.Sprintf("net %s + tax %s + exempt %s does not reconcile to total %s", req.NetAmount, req.TaxAmount, req.ExemptAmount, req.TotalAmount),
		})
	}

	expectedTax := req.NetAmount.Mul(v.policy.TaxRate).Round(0)
	if req.TaxAmount.Sub(expectedTax).Abs().GreaterThanOrEqual(reconciliationTolerance) {
		violations = append(violations, Violation{
			Code:    ViolationTaxMismatch,
			Field:   "tax_amount",
			Message: fmt.Sprintf("tax %s does not match %s%% of net %s (expected %s)", req.TaxAmount, v.policy.TaxRate.Mul(decimal.NewFromInt(100)), req.NetAmount, expectedTax),
		})
	}

	return violations
}
