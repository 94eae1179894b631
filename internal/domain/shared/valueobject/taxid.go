package valueobject

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dte/backend/internal/domain/shared"
)

// TaxID is a value object for the national taxpayer identifier (RUT).
// The canonical form is "<number>-<verifier>" where the verifier is a
// modulus-11 check digit ("0".."9" or "K").
type TaxID struct {
	number   int64
	verifier byte
}

// ParseTaxID parses and checksums a taxpayer identifier.
// Dots used as thousand separators are accepted and stripped.
func ParseTaxID(raw string) (TaxID, error) {
	cleaned := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), ".", ""))
	parts := strings.Split(cleaned, "-")
	if len(parts) != 2 || parts[0] == "" || len(parts[1]) != 1 {
		return TaxID{}, shared.NewDomainError("INVALID_TAX_ID", fmt.Sprintf("Tax ID %q is not in <number>-<verifier> form", raw))
	}

	number, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || number <= 0 {
		return TaxID{}, shared.NewDomainError("INVALID_TAX_ID", fmt.Sprintf("Tax ID %q has a non-numeric body", raw))
	}

	verifier := parts[1][0]
	if verifier != 'K' && (verifier < '0' || verifier > '9') {
		return TaxID{}, shared.NewDomainError("INVALID_TAX_ID", fmt.Sprintf("Tax ID %q has an invalid verifier digit", raw))
	}

	if CheckDigit(number) != verifier {
		return TaxID{}, shared.NewDomainError("TAX_ID_CHECKSUM", fmt.Sprintf("Tax ID %q fails the checksum", raw))
	}

	return TaxID{number: number, verifier: verifier}, nil
}

// CheckDigit computes the modulus-11 verifier for a taxpayer number.
// Digits are weighted 2..7 cyclically from the least significant digit;
// 11-(sum mod 11) maps to '0' for 11 and 'K' for 10.
func CheckDigit(number int64) byte {
	sum := int64(0)
	weight := int64(2)
	for n := number; n > 0; n /= 10 {
		sum += (n % 10) * weight
		weight++
		if weight > 7 {
			weight = 2
		}
	}
	switch r := 11 - (sum % 11); r {
	case 11:
		return '0'
	case 10:
		return 'K'
	default:
		return byte('0' + r)
	}
}

// Number returns the numeric body of the identifier
func (t TaxID) Number() int64 {
	return t.number
}

// String returns the canonical "<number>-<verifier>" form
func (t TaxID) String() string {
	return fmt.Sprintf("%d-%c", t.number, t.verifier)
}

// IsZero returns true for the zero value
func (t TaxID) IsZero() bool {
	return t.number == 0
}
