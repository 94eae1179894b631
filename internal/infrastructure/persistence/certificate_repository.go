package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/dte/backend/internal/domain/credential"
	"github.com/dte/backend/internal/domain/shared"
	"github.com/dte/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormCertificateRepository implements CertificateRepository using GORM
type GormCertificateRepository struct {
	db *gorm.DB
}

// NewGormCertificateRepository creates a new GormCertificateRepository
func NewGormCertificateRepository(db *gorm.DB) *GormCertificateRepository {
	return &GormCertificateRepository{db: db}
}

// FindActiveForTenant returns the certificate valid at the given instant.
// When several overlap, the one expiring last wins.
func (r *GormCertificateRepository) FindActiveForTenant(ctx context.Context, tenantID uuid.UUID, at time.Time) (*credential.DigitalCertificate, error) {
	var model models.CertificateModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND not_before <= ? AND not_after >= ?", tenantID, at, at).
		Order("not_after DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates a certificate record
func (r *GormCertificateRepository) Save(ctx context.Context, cert *credential.DigitalCertificate) error {
	model := models.CertificateModelFromDomain(cert)
	return r.db.WithContext(ctx).Save(model).Error
}
