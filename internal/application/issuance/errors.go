package issuance

import (
	"fmt"

	"github.com/dte/backend/internal/domain/dte"
	"github.com/google/uuid"
)

// StageError reports a failed issuance attempt: which pipeline stage broke
// and whether the document already holds a consumed folio. A consumed folio
// on a failed document can never be reissued; it has to be voided through
// the authority's reversal mechanism.
type StageError struct {
	DocumentID    uuid.UUID
	Stage         dte.DocumentStatus
	FolioConsumed bool
	Err           error
}

// Error implements the error interface
func (e *StageError) Error() string {
	return fmt.Sprintf("issuance of document %s failed at stage %s (folio consumed: %t): %v",
		e.DocumentID, e.Stage, e.FolioConsumed, e.Err)
}

// Unwrap returns the underlying cause
func (e *StageError) Unwrap() error {
	return e.Err
}
