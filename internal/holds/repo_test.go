package holds

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/leadpulse/leadpulse-backend/pkg/db/models"
	"github.com/leadpulse/leadpulse-backend/pkg/enums"
)

func setupHoldsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS credit_holds (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  category TEXT NOT NULL,
  amount INTEGER NOT NULL,
  reference_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  expires_at DATETIME NOT NULL,
  resolved_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(`DROP TABLE IF EXISTS credit_holds`).Error)
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func createHold(t *testing.T, db *gorm.DB, userID uuid.UUID, category enums.CreditCategory, amount int64, status enums.HoldStatus, expiresAt time.Time) *models.CreditHold {
	t.Helper()

	hold := &models.CreditHold{
		ID:          uuid.New(),
		UserID:      userID,
		Category:    category,
		Amount:      amount,
		ReferenceID: "ref-" + uuid.NewString()[:8],
		Status:      status,
		ExpiresAt:   expiresAt,
	}
	require.NoError(t, db.Create(hold).Error)
	return hold
}

func TestRepository_SumActiveExcludesTerminalAndExpired(t *testing.T) {
	db := setupHoldsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := uuid.New()
	now := time.Now().UTC()

	createHold(t, db, userID, enums.CreditCategoryScraper, 50, enums.HoldStatusActive, now.Add(time.Hour))
	createHold(t, db, userID, enums.CreditCategoryScraper, 30, enums.HoldStatusActive, now.Add(-time.Minute))
	createHold(t, db, userID, enums.CreditCategoryScraper, 20, enums.HoldStatusConverted, now.Add(time.Hour))
	createHold(t, db, userID, enums.CreditCategoryInteraction, 15, enums.HoldStatusActive, now.Add(time.Hour))
	createHold(t, db, uuid.New(), enums.CreditCategoryScraper, 99, enums.HoldStatusActive, now.Add(time.Hour))

	total, err := repo.SumActive(ctx, userID, enums.CreditCategoryScraper, now)
	require.NoError(t, err)
	require.Equal(t, int64(50), total)
}

func TestRepository_ResolveOnlyMovesActiveHolds(t *testing.T) {
	db := setupHoldsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	hold := createHold(t, db, uuid.New(), enums.CreditCategoryScraper, 50, enums.HoldStatusActive, now.Add(time.Hour))
	require.NoError(t, repo.Resolve(ctx, hold.ID, enums.HoldStatusConverted, now))

	found, err := repo.FindByID(ctx, hold.ID)
	require.NoError(t, err)
	require.Equal(t, enums.HoldStatusConverted, found.Status)
	require.NotNil(t, found.ResolvedAt)

	// A second resolution does not overwrite the terminal status.
	require.NoError(t, repo.Resolve(ctx, hold.ID, enums.HoldStatusReleased, now))
	found, err = repo.FindByID(ctx, hold.ID)
	require.NoError(t, err)
	require.Equal(t, enums.HoldStatusConverted, found.Status)
}

func TestRepository_ExpireDue(t *testing.T) {
	db := setupHoldsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	stale := createHold(t, db, uuid.New(), enums.CreditCategoryScraper, 50, enums.HoldStatusActive, now.Add(-time.Minute))
	fresh := createHold(t, db, uuid.New(), enums.CreditCategoryScraper, 20, enums.HoldStatusActive, now.Add(time.Hour))

	count, err := repo.ExpireDue(ctx, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	found, err := repo.FindByID(ctx, stale.ID)
	require.NoError(t, err)
	require.Equal(t, enums.HoldStatusExpired, found.Status)

	found, err = repo.FindByID(ctx, fresh.ID)
	require.NoError(t, err)
	require.Equal(t, enums.HoldStatusActive, found.Status)

	// Re-running the sweep is a no-op.
	count, err = repo.ExpireDue(ctx, now)
	require.NoError(t, err)
	require.Equal(t, int64(0), count)
}

func TestRepository_FindByIDMissing(t *testing.T) {
	db := setupHoldsTestDB(t)
	repo := NewRepository(db)

	found, err := repo.FindByID(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Nil(t, found)
}
