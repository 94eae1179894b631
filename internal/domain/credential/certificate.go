// Package credential holds the per-tenant signing identity. Certificates
// are owned by an external credential store; this core only reads them.
package credential

import (
	"context"
	"time"

	"github.com/dte/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// DigitalCertificate is the tenant's signing identity: validity window,
// PEM key material, and the holder recorded by the issuing authority.
type DigitalCertificate struct {
	shared.BaseEntity
	TenantID       uuid.UUID `json:"tenant_id"`
	Serial         string    `json:"serial"`
	HolderName     string    `json:"holder_name"`
	HolderTaxID    string    `json:"holder_tax_id"`
	CertificatePEM string    `json:"certificate_pem"`
	PrivateKeyPEM  string    `json:"private_key_pem"`
	NotBefore      time.Time `json:"not_before"`
	NotAfter       time.Time `json:"not_after"`
}

// ValidAt reports whether the certificate covers the given instant
func (c *DigitalCertificate) ValidAt(t time.Time) bool {
	return !t.Before(c.NotBefore) && !t.After(c.NotAfter)
}

// ErrCertificateExpired is returned when a tenant's certificate is outside
// its validity window at signing time.
var ErrCertificateExpired = shared.NewDomainError("CERTIFICATE_EXPIRED", "The tenant certificate is outside its validity window")

// CertificateRepository reads tenant certificates from the credential store
type CertificateRepository interface {
	// FindActiveForTenant returns the certificate valid at the given
	// instant for the tenant, or shared.ErrNotFound.
	FindActiveForTenant(ctx context.Context, tenantID uuid.UUID, at time.Time) (*DigitalCertificate, error)
}
