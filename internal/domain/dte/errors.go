package dte

import (
	"fmt"

	"github.com/dte/backend/internal/domain/shared"
)

// Allocation errors. Each one requires a different operator action, so they
// are distinct values rather than one generic "no folios" error.
var (
	// ErrFolioExhausted is returned when every active block for the
	// tenant and document type has consumed its full range.
	ErrFolioExhausted = shared.NewDomainError("FOLIO_EXHAUSTED", "All authorized folio ranges are exhausted; import a new CAF block")

	// ErrNoActiveBlock is returned when no CAF block has ever been
	// imported (or all were deactivated) for the tenant and document type.
	ErrNoActiveBlock = shared.NewDomainError("NO_ACTIVE_BLOCK", "No active CAF block exists for this document type")

	// ErrBlockExpired is returned when eligible blocks exist but every
	// one of them is past its authorization expiry date.
	ErrBlockExpired = shared.NewDomainError("BLOCK_EXPIRED", "The remaining CAF blocks for this document type have expired")
)

// ValidationError carries the complete list of business-rule violations
// found on an issuance request. No folio is consumed while it is returned.
type ValidationError struct {
	Violations []Violation
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("issuance request failed validation with %d violation(s)", len(e.Violations))
}

// AssemblyError marks a fatal assembly or signing failure. The folio stays
// consumed: authorized numbers are never reclaimed, only voided through a
// reversal document.
type AssemblyError struct {
	Stage string // "assemble" or "sign"
	Err   error
}

// Error implements the error interface
func (e *AssemblyError) Error() string {
	return fmt.Sprintf("document %s failed: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying cause
func (e *AssemblyError) Unwrap() error {
	return e.Err
}

// TransientError wraps a transport-level failure that is safe to retry:
// timeouts, connection resets, 5xx responses from the authority.
type TransientError struct {
	Op  string
	Err error
}

// Error implements the error interface
func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure in %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause
func (e *TransientError) Unwrap() error {
	return e.Err
}

// RejectionError is a terminal, authority-reported business rejection.
// The reason string is persisted verbatim against the document.
type RejectionError struct {
	Reason string
}

// Error implements the error interface
func (e *RejectionError) Error() string {
	return fmt.Sprintf("authority rejected the document: %s", e.Reason)
}
