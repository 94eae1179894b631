package issuance

import (
	"context"
	"time"

	"github.com/dte/backend/internal/domain/dte"
	"github.com/dte/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Reconciler periodically re-drives documents stalled in a recoverable
// state: SIGNED documents whose submission never went through and
// SUBMITTED documents still waiting for the authority's answer. Optimistic
// locking on the document makes the loop safe to run alongside inline
// retries; whoever loses the version race simply skips the document.
type Reconciler struct {
	documents dte.DocumentRepository
	service   *Service
	logger    *zap.Logger
	interval  time.Duration
	batchSize int
}

// NewReconciler creates a Reconciler around an issuance Service
func NewReconciler(documents dte.DocumentRepository, service *Service, logger *zap.Logger, interval time.Duration, batchSize int) *Reconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Reconciler{
		documents: documents,
		service:   service,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run drives reconciliation rounds until the context is cancelled
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.ReconcileOnce(ctx)
		}
	}
}

// ReconcileOnce runs a single round over both recoverable states and
// returns how many documents moved forward.
func (r *Reconciler) ReconcileOnce(ctx context.Context) int {
	advanced := 0
	for _, status := range []dte.DocumentStatus{dte.StatusSigned, dte.StatusSubmitted} {
		docs, err := r.documents.FindInStatus(ctx, status, r.batchSize)
		if err != nil {
			r.logger.Error("listing stalled documents failed",
				zap.String("status", status.String()),
				zap.Error(err))
			continue
		}

		for i := range docs {
			doc := &docs[i]
			before := doc.Status
			err := r.service.drive(ctx, doc)
			switch {
			case err == nil && doc.Status != before:
				advanced++
			case shared.IsConcurrencyConflict(err):
				// Another attempt holds the document.
			case err != nil:
				r.logger.Warn("reconcile attempt failed",
					zap.String("document_id", doc.ID.String()),
					zap.String("status", before.String()),
					zap.Error(err))
			}
		}
	}
	return advanced
}
