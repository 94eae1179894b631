package dte

import (
	"context"

	"github.com/google/uuid"
)

// SignedDocument is an assembled document wrapped with the tenant's digital
// signature over the canonical payload bytes.
type SignedDocument struct {
	Payload           []byte `json:"payload"`
	Signature         []byte `json:"signature"`
	CertificateSerial string `json:"certificate_serial"`
}

// Envelope returns the payload with the signature element appended, which
// is the form the authority receives.
func (s SignedDocument) Envelope() []byte {
	out := make([]byte, 0, len(s.Payload)+len(s.Signature)+64)
	out = append(out, s.Payload...)
	out = append(out, []byte("<Signature>")...)
	out = append(out, s.Signature...)
	out = append(out, []byte("</Signature>")...)
	return out
}

// Signer wraps an assembled document with a digital signature using the
// tenant's certificate. Implementations live in infrastructure; a signing
// failure (expired certificate, bad key material) is fatal for the attempt
// and the folio stays consumed.
type Signer interface {
	Sign(ctx context.Context, tenantID uuid.UUID, payload []byte) (SignedDocument, error)
}
