package dedup

import (
	"testing"
	"time"

	"atendeai-backend/internal/database"
	"atendeai-backend/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func TestAdmitAcceptsFirstSight(t *testing.T) {
	ledger := NewLedger(openTestDB(t), 5*time.Minute)
	require.NoError(t, ledger.Admit("wamid.AAA"))
	require.NoError(t, ledger.Admit("wamid.BBB"))
}

func TestAdmitRejectsDuplicateWithinTTL(t *testing.T) {
	ledger := NewLedger(openTestDB(t), 5*time.Minute)
	require.NoError(t, ledger.Admit("wamid.AAA"))
	require.ErrorIs(t, ledger.Admit("wamid.AAA"), ErrDuplicate)
	require.ErrorIs(t, ledger.Admit("wamid.AAA"), ErrDuplicate)
}

func TestAdmitAcceptsAgainAfterTTL(t *testing.T) {
	db := openTestDB(t)
	ledger := NewLedger(db, 5*time.Minute)

	clock := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time { return clock }

	require.NoError(t, ledger.Admit("wamid.AAA"))

	clock = clock.Add(4 * time.Minute)
	require.ErrorIs(t, ledger.Admit("wamid.AAA"), ErrDuplicate)

	clock = clock.Add(2 * time.Minute)
	require.NoError(t, ledger.Admit("wamid.AAA"))

	// The sweep removed the expired record, only the fresh one remains.
	var count int64
	require.NoError(t, db.Model(&models.DedupRecord{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}
