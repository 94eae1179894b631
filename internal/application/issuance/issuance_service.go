package issuance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dte/backend/internal/domain/dte"
	"github.com/dte/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config holds the retry and polling budgets for the issuance pipeline
type Config struct {
	SubmitMaxRetries     uint64        // transient submit retries before surfacing a recoverable error
	SubmitInitialBackoff time.Duration // first backoff interval for submission retries
	PollMaxAttempts      int           // status polls before leaving the document in SUBMITTED
	PollInitialInterval  time.Duration // first poll interval; subsequent polls back off exponentially
}

// DefaultConfig returns the standard pipeline budgets
func DefaultConfig() Config {
	return Config{
		SubmitMaxRetries:     4,
		SubmitInitialBackoff: 500 * time.Millisecond,
		PollMaxAttempts:      6,
		PollInitialInterval:  2 * time.Second,
	}
}

// Service drives a tax document through the issuance pipeline:
// validation, folio allocation, assembly, signing, submission and status
// resolution. Every transition is persisted before the next step runs and
// documents are guarded by optimistic locking, so a crashed or concurrent
// attempt resumes from the last durable state instead of repeating work --
// in particular, a document that already holds a folio is never sent back
// to the allocator.
type Service struct {
	documents dte.DocumentRepository
	blocks    dte.CafBlockRepository
	allocator *dte.FolioAllocator
	validator *dte.Validator
	assembler *dte.DocumentAssembler
	signer    dte.Signer
	gateway   dte.AuthorityGateway
	logger    *zap.Logger
	cfg       Config
	now       func() time.Time
}

// Option is a functional option for configuring the Service
type Option func(*Service)

// WithConfig overrides the pipeline budgets
func WithConfig(cfg Config) Option {
	return func(s *Service) {
		s.cfg = cfg
	}
}

// WithValidationPolicy overrides the validation policy
func WithValidationPolicy(policy dte.ValidationPolicy) Option {
	return func(s *Service) {
		s.validator = dte.NewValidator(policy)
	}
}

// WithClock overrides the time source (used by tests)
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates an issuance Service
func NewService(
	documents dte.DocumentRepository,
	blocks dte.CafBlockRepository,
	signer dte.Signer,
	gateway dte.AuthorityGateway,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		documents: documents,
		blocks:    blocks,
		allocator: dte.NewFolioAllocator(blocks),
		validator: dte.NewValidator(dte.DefaultValidationPolicy()),
		assembler: dte.NewDocumentAssembler(),
		signer:    signer,
		gateway:   gateway,
		logger:    logger,
		cfg:       DefaultConfig(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue creates a document from the request and drives it as far through
// the pipeline as this attempt can reach. The returned response reflects
// the last persisted state even when an error is also returned.
func (s *Service) Issue(ctx context.Context, req dte.IssuanceRequest) (*DocumentResponse, error) {
	doc, err := dte.NewDocument(req)
	if err != nil {
		return nil, err
	}
	if err := s.documents.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("persisting draft document: %w", err)
	}

	err = s.drive(ctx, doc)
	return ToDocumentResponse(doc), err
}

// Resume re-drives a document from its last persisted state. Stalled
// SIGNED documents get their submission retried; SUBMITTED documents get
// re-polled. Terminal documents are returned as-is.
func (s *Service) Resume(ctx context.Context, tenantID, documentID uuid.UUID) (*DocumentResponse, error) {
	doc, err := s.documents.FindByIDForTenant(ctx, tenantID, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status.IsTerminal() || doc.Status == dte.StatusAccepted {
		return ToDocumentResponse(doc), nil
	}

	err = s.drive(ctx, doc)
	return ToDocumentResponse(doc), err
}

// GetDocument returns a single document
func (s *Service) GetDocument(ctx context.Context, tenantID, documentID uuid.UUID) (*DocumentResponse, error) {
	doc, err := s.documents.FindByIDForTenant(ctx, tenantID, documentID)
	if err != nil {
		return nil, err
	}
	return ToDocumentResponse(doc), nil
}

// ListDocuments returns documents for a tenant with filtering and pagination
func (s *Service) ListDocuments(ctx context.Context, tenantID uuid.UUID, filter dte.DocumentFilter) (*shared.Paginated[DocumentResponse], error) {
	docs, err := s.documents.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.documents.CountForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}

	items := make([]DocumentResponse, len(docs))
	for i := range docs {
		items[i] = *ToDocumentResponse(&docs[i])
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.Limit())
	return &page, nil
}

// Void cancels an accepted document by issuing a linked reversal credit
// note through the full pipeline. The original is marked VOIDED only once
// the authority accepts the reversal; issued folios are never reclaimed.
func (s *Service) Void(ctx context.Context, tenantID, documentID uuid.UUID, reason string) (*DocumentResponse, error) {
	if reason == "" {
		return nil, shared.NewDomainError("INVALID_REASON", "Void reason is required")
	}

	original, err := s.documents.FindByIDForTenant(ctx, tenantID, documentID)
	if err != nil {
		return nil, err
	}
	if original.Status != dte.StatusAccepted {
		return nil, shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Only accepted documents can be voided; document is %s", original.Status))
	}

	reversal, err := dte.NewDocument(s.reversalRequest(original, reason))
	if err != nil {
		return nil, err
	}
	if err := s.documents.Save(ctx, reversal); err != nil {
		return nil, fmt.Errorf("persisting reversal draft: %w", err)
	}

	if err := s.drive(ctx, reversal); err != nil {
		return ToDocumentResponse(reversal), err
	}
	if reversal.Status != dte.StatusAccepted {
		return ToDocumentResponse(reversal), shared.NewDomainError("REVERSAL_PENDING", "Reversal document is not yet accepted; resume it to complete the void")
	}

	if err := original.MarkVoided(reversal.ID); err != nil {
		return nil, err
	}
	if err := s.documents.SaveWithLock(ctx, original); err != nil {
		return nil, err
	}

	s.logger.Info("document voided",
		zap.String("document_id", original.ID.String()),
		zap.String("reversal_id", reversal.ID.String()))

	return ToDocumentResponse(original), nil
}

// reversalRequest mirrors the original document into a credit note that
// references it.
func (s *Service) reversalRequest(original *dte.Document, reason string) dte.IssuanceRequest {
	return dte.IssuanceRequest{
		TenantID:       original.TenantID,
		DocumentType:   dte.DocumentTypeCreditNote,
		IssueDate:      s.now(),
		IssuerTaxID:    original.IssuerTaxID,
		RecipientTaxID: original.RecipientTaxID,
		RecipientName:  original.RecipientName,
		Items:          original.Items,
		NetAmount:      original.NetAmount,
		TaxAmount:      original.TaxAmount,
		ExemptAmount:   original.ExemptAmount,
		TotalAmount:    original.TotalAmount,
		Reference: &dte.Reference{
			DocumentType: original.DocumentType,
			Folio:        *original.Folio,
			Reason:       reason,
		},
	}
}

// drive advances the document until it reaches a resting state: a terminal
// status, ACCEPTED, a recoverable stall (SIGNED or SUBMITTED), or an error.
func (s *Service) drive(ctx context.Context, doc *dte.Document) error {
	for {
		switch doc.Status {
		case dte.StatusDraft:
			if err := s.validate(ctx, doc); err != nil {
				return err
			}

		case dte.StatusValidated:
			if err := s.allocate(ctx, doc); err != nil {
				return err
			}
			// A folio is now consumed; the attempt must run to a
			// terminal or explicitly-failed state even if the caller
			// goes away.
			ctx = context.WithoutCancel(ctx)

		case dte.StatusFolioAssigned:
			if err := s.assemble(ctx, doc); err != nil {
				return err
			}

		case dte.StatusAssembled:
			if err := s.sign(ctx, doc); err != nil {
				return err
			}

		case dte.StatusSigned:
			if err := s.submit(ctx, doc); err != nil {
				return err
			}

		case dte.StatusSubmitted:
			return s.resolve(ctx, doc)

		default:
			return nil
		}
	}
}

func (s *Service) validate(ctx context.Context, doc *dte.Document) error {
	violations := s.validator.Validate(requestFromDocument(doc), s.now())
	if len(violations) > 0 {
		// Not a state transition: the document stays in DRAFT and no
		// folio is consumed.
		return &StageError{
			DocumentID:    doc.ID,
			Stage:         dte.StatusDraft,
			FolioConsumed: false,
			Err:           &dte.ValidationError{Violations: violations},
		}
	}

	if err := doc.MarkValidated(); err != nil {
		return err
	}
	return s.persist(ctx, doc, dte.StatusDraft)
}

func (s *Service) allocate(ctx context.Context, doc *dte.Document) error {
	// Resumed attempts never re-allocate: holding a folio means the
	// claim already happened, whatever else failed afterwards.
	if doc.Folio != nil {
		return shared.NewDomainError("INVALID_STATE", "Document in VALIDATED already holds a folio")
	}

	allocation, err := s.allocator.Allocate(ctx, doc.TenantID, doc.DocumentType)
	if err != nil {
		return &StageError{DocumentID: doc.ID, Stage: dte.StatusValidated, FolioConsumed: false, Err: err}
	}

	if err := doc.AssignFolio(allocation.Folio); err != nil {
		return err
	}
	if err := s.persist(ctx, doc, dte.StatusValidated); err != nil {
		return err
	}

	s.logger.Info("folio assigned",
		zap.String("document_id", doc.ID.String()),
		zap.String("document_type", doc.DocumentType.String()),
		zap.Int64("folio", allocation.Folio))

	return nil
}

func (s *Service) assemble(ctx context.Context, doc *dte.Document) error {
	block, err := s.blockForFolio(ctx, doc)
	if err != nil {
		return &StageError{DocumentID: doc.ID, Stage: dte.StatusFolioAssigned, FolioConsumed: true, Err: err}
	}

	// The stamp timestamp is generated once and persisted with the
	// document; a retried assembly replays it so the stamp digest stays
	// identical.
	stampedAt := s.now()
	if doc.StampedAt != nil {
		stampedAt = *doc.StampedAt
	}

	_, stamp, err := s.assembler.Assemble(doc, block, stampedAt)
	if err != nil {
		return &StageError{DocumentID: doc.ID, Stage: dte.StatusFolioAssigned, FolioConsumed: true, Err: err}
	}

	if err := doc.MarkAssembled(stamp, stampedAt); err != nil {
		return err
	}
	return s.persist(ctx, doc, dte.StatusFolioAssigned)
}

func (s *Service) sign(ctx context.Context, doc *dte.Document) error {
	payload, err := s.assembler.Render(doc, doc.Stamp)
	if err != nil {
		return &StageError{DocumentID: doc.ID, Stage: dte.StatusAssembled, FolioConsumed: true, Err: err}
	}

	signed, err := s.signer.Sign(ctx, doc.TenantID, payload)
	if err != nil {
		// Fatal for the attempt; the folio stays consumed and the
		// document can only be corrected through a reversal.
		return &StageError{
			DocumentID:    doc.ID,
			Stage:         dte.StatusAssembled,
			FolioConsumed: true,
			Err:           &dte.AssemblyError{Stage: "sign", Err: err},
		}
	}

	if err := doc.MarkSigned(signed.Envelope()); err != nil {
		return err
	}
	return s.persist(ctx, doc, dte.StatusAssembled)
}

func (s *Service) submit(ctx context.Context, doc *dte.Document) error {
	signed := dte.SignedDocument{Payload: doc.SignedPayload}

	var trackID string
	operation := func() error {
		id, err := s.gateway.Submit(ctx, doc.TenantID, signed)
		if err != nil {
			var transient *dte.TransientError
			if errors.As(err, &transient) {
				return err
			}
			return backoff.Permanent(err)
		}
		trackID = id
		return nil
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(s.newExponentialBackOff(s.cfg.SubmitInitialBackoff), s.cfg.SubmitMaxRetries),
		ctx,
	)
	if err := backoff.Retry(operation, bo); err != nil {
		// The signed artifact is durable; a later resume retries the
		// submission without re-running allocation or signing.
		return &StageError{DocumentID: doc.ID, Stage: dte.StatusSigned, FolioConsumed: true, Err: err}
	}

	if err := doc.MarkSubmitted(trackID); err != nil {
		return err
	}
	if err := s.persist(ctx, doc, dte.StatusSigned); err != nil {
		return err
	}

	s.logger.Info("document submitted",
		zap.String("document_id", doc.ID.String()),
		zap.String("track_id", trackID))

	return nil
}

// resolve polls the authority until the submission reaches a terminal
// answer or the poll budget runs out. A pending outcome is not an error:
// the document stays in SUBMITTED for a later re-poll.
func (s *Service) resolve(ctx context.Context, doc *dte.Document) error {
	bo := s.newExponentialBackOff(s.cfg.PollInitialInterval)

	for attempt := 0; attempt < s.cfg.PollMaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(bo.NextBackOff()):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		status, err := s.gateway.CheckStatus(ctx, doc.TenantID, doc.TrackID)
		if err != nil {
			var transient *dte.TransientError
			if !errors.As(err, &transient) {
				return &StageError{DocumentID: doc.ID, Stage: dte.StatusSubmitted, FolioConsumed: true, Err: err}
			}
		} else {
			switch status.State {
			case dte.SubmissionAccepted:
				if err := doc.MarkAccepted(status.Reason); err != nil {
					return err
				}
				return s.persist(ctx, doc, dte.StatusSubmitted)

			case dte.SubmissionRejected:
				if err := doc.MarkRejected(status.Reason); err != nil {
					return err
				}
				if err := s.persist(ctx, doc, dte.StatusSubmitted); err != nil {
					return err
				}
				// Recorded on the document and still surfaced.
				return &StageError{
					DocumentID:    doc.ID,
					Stage:         dte.StatusSubmitted,
					FolioConsumed: true,
					Err:           &dte.RejectionError{Reason: status.Reason},
				}
			}
		}
	}

	s.logger.Info("poll budget exhausted, document stays submitted",
		zap.String("document_id", doc.ID.String()),
		zap.String("track_id", doc.TrackID))

	return nil
}

// blockForFolio resolves the CAF block by range membership. The document
// never stores a block reference; the folio and document type are enough.
func (s *Service) blockForFolio(ctx context.Context, doc *dte.Document) (*dte.CafBlock, error) {
	blocks, err := s.blocks.FindAllForTenant(ctx, doc.TenantID, &doc.DocumentType)
	if err != nil {
		return nil, err
	}
	for i := range blocks {
		if blocks[i].Contains(*doc.Folio) {
			return &blocks[i], nil
		}
	}
	return nil, shared.NewDomainError("CAF_BLOCK_MISSING", fmt.Sprintf("No CAF block covers folio %d for document type %s", *doc.Folio, doc.DocumentType))
}

// persist saves a transitioned document under its optimistic lock and logs
// the step.
func (s *Service) persist(ctx context.Context, doc *dte.Document, from dte.DocumentStatus) error {
	if err := s.documents.SaveWithLock(ctx, doc); err != nil {
		return fmt.Errorf("persisting %s -> %s transition: %w", from, doc.Status, err)
	}
	s.logger.Debug("document transitioned",
		zap.String("document_id", doc.ID.String()),
		zap.String("from", from.String()),
		zap.String("to", doc.Status.String()))
	return nil
}

func (s *Service) newExponentialBackOff(initial time.Duration) *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initial
	bo.MaxElapsedTime = 0 // the attempt budget bounds the loop, not wall time
	return bo
}

// requestFromDocument rebuilds the validation view of a persisted draft
func requestFromDocument(doc *dte.Document) dte.IssuanceRequest {
	return dte.IssuanceRequest{
		TenantID:       doc.TenantID,
		DocumentType:   doc.DocumentType,
		IssueDate:      doc.IssueDate,
		IssuerTaxID:    doc.IssuerTaxID,
		RecipientTaxID: doc.RecipientTaxID,
		RecipientName:  doc.RecipientName,
		Items:          doc.Items,
		NetAmount:      doc.NetAmount,
		TaxAmount:      doc.TaxAmount,
		ExemptAmount:   doc.ExemptAmount,
		TotalAmount:    doc.TotalAmount,
		Reference:      doc.Reference,
	}
}
