package dte

import (
	"context"

	"github.com/google/uuid"
)

// SubmissionState is the authority's view of a submitted document
type SubmissionState string

const (
	SubmissionAccepted SubmissionState = "ACCEPTED"
	SubmissionRejected SubmissionState = "REJECTED"
	SubmissionPending  SubmissionState = "PENDING"
)

// SubmissionStatus is the result of a status query. Reason carries the
// authority's human-readable narrative; for rejections it is persisted
// verbatim on the document.
type SubmissionStatus struct {
	State  SubmissionState
	Reason string
}

// AuthorityGateway is the protocol client for the national tax authority.
// Implementations handle the challenge/sign/token handshake, per-tenant
// token caching, fixed request timeouts, and bounded retry for transient
// transport errors only; authority-reported business rejections are
// terminal and must surface as *RejectionError.
type AuthorityGateway interface {
	// GetToken returns a valid session token for the tenant, reusing a
	// cached one until it is near expiry.
	GetToken(ctx context.Context, tenantID uuid.UUID) (string, error)

	// Submit uploads a signed document and returns the authority's
	// tracking identifier.
	Submit(ctx context.Context, tenantID uuid.UUID, doc SignedDocument) (trackID string, err error)

	// CheckStatus queries the resolution of a prior submission.
	CheckStatus(ctx context.Context, tenantID uuid.UUID, trackID string) (SubmissionStatus, error)
}
