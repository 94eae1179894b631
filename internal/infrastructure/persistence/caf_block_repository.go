package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/dte/backend/internal/domain/dte"
	"github.com/dte/backend/internal/domain/shared"
	"github.com/dte/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormCafBlockRepository implements CafBlockRepository using GORM
type GormCafBlockRepository struct {
	db *gorm.DB
}

// NewGormCafBlockRepository creates a new GormCafBlockRepository
func NewGormCafBlockRepository(db *gorm.DB) *GormCafBlockRepository {
	return &GormCafBlockRepository{db: db}
}

// FindByID finds a CAF block by its ID
func (r *GormCafBlockRepository) FindByID(ctx context.Context, id uuid.UUID) (*dte.CafBlock, error) {
	var model models.CafBlockModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForTenant finds a CAF block by ID for a specific tenant
func (r *GormCafBlockRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*dte.CafBlock, error) {
	var model models.CafBlockModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindEligible returns the claimable block with the lowest range start.
// Blocks are consumed strictly in range order, so the ordering here decides
// which block every concurrent claimer converges on.
func (r *GormCafBlockRepository) FindEligible(ctx context.Context, tenantID uuid.UUID, documentType dte.DocumentType, now time.Time) (*dte.CafBlock, error) {
	var model models.CafBlockModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND document_type = ? AND active = ? AND exhausted = ? AND expires_at >= ?",
			tenantID, documentType, true, false, now).
		Order("range_start ASC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForTenant lists blocks for a tenant and optional document type
func (r *GormCafBlockRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, documentType *dte.DocumentType) ([]dte.CafBlock, error) {
	var blockModels []models.CafBlockModel
	query := r.db.WithContext(ctx).Model(&models.CafBlockModel{}).
		Where("tenant_id = ?", tenantID)
	if documentType != nil {
		query = query.Where("document_type = ?", *documentType)
	}

	if err := query.Order("range_start ASC").Find(&blockModels).Error; err != nil {
		return nil, err
	}
	blocks := make([]dte.CafBlock, len(blockModels))
	for i, model := range blockModels {
		blocks[i] = *model.ToDomain()
	}
	return blocks, nil
}

// FindOverlapping returns active blocks whose range intersects the given one
func (r *GormCafBlockRepository) FindOverlapping(ctx context.Context, tenantID uuid.UUID, documentType dte.DocumentType, rangeStart, rangeEnd int64) ([]dte.CafBlock, error) {
	var blockModels []models.CafBlockModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND document_type = ? AND active = ? AND range_start <= ? AND range_end >= ?",
			tenantID, documentType, true, rangeEnd, rangeStart).
		Order("range_start ASC").
		Find(&blockModels).Error; err != nil {
		return nil, err
	}
	blocks := make([]dte.CafBlock, len(blockModels))
	for i, model := range blockModels {
		blocks[i] = *model.ToDomain()
	}
	return blocks, nil
}

// Save creates or updates a CAF block
func (r *GormCafBlockRepository) Save(ctx context.Context, block *dte.CafBlock) error {
	model := models.CafBlockModelFromDomain(block)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveCursor persists a cursor advance as a compare-and-swap. The WHERE
// clause pins the cursor the claimer read; zero rows affected means a
// concurrent claimer moved it first and this claim must be retried.
func (r *GormCafBlockRepository) SaveCursor(ctx context.Context, block *dte.CafBlock, expectedCursor int64) error {
	result := r.db.WithContext(ctx).
		Model(&models.CafBlockModel{}).
		Where("id = ? AND folio_cursor = ?", block.ID, expectedCursor).
		Updates(map[string]interface{}{
			"folio_cursor": block.Cursor,
			"exhausted":    block.Exhausted,
			"version":      block.Version,
			"updated_at":   block.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// RemainingFolios sums the unconsumed folios across claimable blocks
func (r *GormCafBlockRepository) RemainingFolios(ctx context.Context, tenantID uuid.UUID, documentType dte.DocumentType) (int64, error) {
	var remaining *int64
	err := r.db.WithContext(ctx).
		Model(&models.CafBlockModel{}).
		Select("SUM(range_end - folio_cursor + 1)").
		Where("tenant_id = ? AND document_type = ? AND active = ? AND exhausted = ? AND expires_at >= ?",
			tenantID, documentType, true, false, time.Now()).
		Scan(&remaining).Error
	if err != nil {
		return 0, err
	}
	if remaining == nil {
		return 0, nil
	}
	return *remaining, nil
}
