package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dte/backend/internal/domain/dte"
	"github.com/dte/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockCafBlockRepository creates a GormCafBlockRepository with a mocked SQL connection
func newMockCafBlockRepository(t *testing.T) (*GormCafBlockRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormCafBlockRepository(gormDB), mock, mockDB
}

func cafBlockRows(blockID, tenantID uuid.UUID, cursor int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "tenant_id", "version", "document_type", "range_start", "range_end",
		"folio_cursor", "expires_at", "exhausted", "active", "issuer_tax_id",
		"authorized_at", "public_key_pem", "private_key_pem",
	}).AddRow(blockID, tenantID, 1, "33", int64(1), int64(100), cursor,
		time.Now().AddDate(0, 6, 0), false, true, "76543210-3",
		time.Now().AddDate(0, -1, 0), "pub", "priv")
}

func TestGormCafBlockRepository_FindEligible(t *testing.T) {
	t.Run("returns the block with the lowest range start", func(t *testing.T) {
		repo, mock, mockDB := newMockCafBlockRepository(t)
		defer mockDB.Close()

		blockID := uuid.New()
		tenantID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "caf_blocks" WHERE tenant_id = \$1 AND document_type = \$2 AND active = \$3 AND exhausted = \$4 AND expires_at >= \$5 ORDER BY range_start ASC,.* LIMIT .*`).
			WithArgs(tenantID, "33", true, false, sqlmock.AnyArg(), 1).
			WillReturnRows(cafBlockRows(blockID, tenantID, 5))

		block, err := repo.FindEligible(context.Background(), tenantID, dte.DocumentTypeInvoice, time.Now())

		assert.NoError(t, err)
		require.NotNil(t, block)
		assert.Equal(t, blockID, block.ID)
		assert.Equal(t, int64(5), block.Cursor)
		assert.Equal(t, "priv", block.Authorization.PrivateKeyPEM)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found when no block is claimable", func(t *testing.T) {
		repo, mock, mockDB := newMockCafBlockRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "caf_blocks"`).
			WillReturnError(gorm.ErrRecordNotFound)

		block, err := repo.FindEligible(context.Background(), uuid.New(), dte.DocumentTypeInvoice, time.Now())

		assert.Nil(t, block)
		assert.Equal(t, shared.ErrNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormCafBlockRepository_SaveCursor(t *testing.T) {
	newBlock := func(t *testing.T) *dte.CafBlock {
		t.Helper()
		block, err := dte.NewCafBlock(uuid.New(), dte.DocumentTypeInvoice, 1, 100,
			time.Now().AddDate(0, 6, 0), dte.CafAuthorization{
				IssuerTaxID:   "76543210-3",
				AuthorizedAt:  time.Now().AddDate(0, -1, 0),
				PublicKeyPEM:  "pub",
				PrivateKeyPEM: "priv",
			})
		require.NoError(t, err)
		return block
	}

	t.Run("persists the advance when the cursor is unchanged", func(t *testing.T) {
		repo, mock, mockDB := newMockCafBlockRepository(t)
		defer mockDB.Close()

		block := newBlock(t)
		_, err := block.ClaimNext(time.Now())
		require.NoError(t, err)

		mock.ExpectExec(`UPDATE "caf_blocks" SET .* WHERE id = \$\d+ AND folio_cursor = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err = repo.SaveCursor(context.Background(), block, 1)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reports a conflict when another claimer moved the cursor", func(t *testing.T) {
		repo, mock, mockDB := newMockCafBlockRepository(t)
		defer mockDB.Close()

		block := newBlock(t)
		_, err := block.ClaimNext(time.Now())
		require.NoError(t, err)

		mock.ExpectExec(`UPDATE "caf_blocks" SET .* WHERE id = \$\d+ AND folio_cursor = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err = repo.SaveCursor(context.Background(), block, 1)

		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormCafBlockRepository_RemainingFolios(t *testing.T) {
	t.Run("sums unconsumed folios across claimable blocks", func(t *testing.T) {
		repo, mock, mockDB := newMockCafBlockRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()

		mock.ExpectQuery(`SELECT SUM\(range_end - folio_cursor \+ 1\) FROM "caf_blocks"`).
			WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(int64(95)))

		remaining, err := repo.RemainingFolios(context.Background(), tenantID, dte.DocumentTypeInvoice)

		assert.NoError(t, err)
		assert.Equal(t, int64(95), remaining)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns zero when no block matches", func(t *testing.T) {
		repo, mock, mockDB := newMockCafBlockRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT SUM\(range_end - folio_cursor \+ 1\) FROM "caf_blocks"`).
			WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(nil))

		remaining, err := repo.RemainingFolios(context.Background(), uuid.New(), dte.DocumentTypeInvoice)

		assert.NoError(t, err)
		assert.Equal(t, int64(0), remaining)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
