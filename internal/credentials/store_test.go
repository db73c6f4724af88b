package credentials

import (
	"testing"

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

func validCredential() Credential {
	return Credential{
		VerifyToken: "atendeai-lify-backend",
		AccessToken: "EAAG-initial-token",
		AppSecret:   "app-secret",
	}
}

func TestNewStoreRejectsEmptyTokens(t *testing.T) {
	_, err := NewStore(nil, Credential{VerifyToken: "", AccessToken: "x"})
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = NewStore(nil, Credential{VerifyToken: "x", AccessToken: "   "})
	require.Error(t, err)
}

func TestRotateReplacesSnapshot(t *testing.T) {
	store, err := NewStore(openTestDB(t), validCredential())
	require.NoError(t, err)

	next := Credential{
		VerifyToken: "new-verify",
		AccessToken: "new-access",
		AppSecret:   "new-secret",
	}
	require.NoError(t, store.Rotate(next))

	got := store.Current()
	require.Equal(t, "new-verify", got.VerifyToken)
	require.Equal(t, "new-access", got.AccessToken)
	require.Equal(t, "new-secret", got.AppSecret)
	require.False(t, got.UpdatedAt.IsZero())
}

func TestFailedRotateLeavesCurrentUntouched(t *testing.T) {
	store, err := NewStore(openTestDB(t), validCredential())
	require.NoError(t, err)
	before := store.Current()

	err = store.Rotate(Credential{VerifyToken: "", AccessToken: "x"})
	require.Error(t, err)

	err = store.Rotate(Credential{VerifyToken: "has space", AccessToken: "x"})
	require.Error(t, err)

	got := store.Current()
	require.Equal(t, before.VerifyToken, got.VerifyToken)
	require.Equal(t, before.AccessToken, got.AccessToken)
}

func TestPersistedRotationSurvivesRestart(t *testing.T) {
	db := openTestDB(t)

	store, err := NewStore(db, validCredential())
	require.NoError(t, err)
	require.NoError(t, store.Rotate(Credential{
		VerifyToken: "rotated-verify",
		AccessToken: "rotated-access",
		AppSecret:   "rotated-secret",
	}))

	// A new store seeded from stale env config picks up the persisted values.
	restarted, err := NewStore(db, validCredential())
	require.NoError(t, err)
	require.Equal(t, "rotated-verify", restarted.Current().VerifyToken)
	require.Equal(t, "rotated-access", restarted.Current().AccessToken)
}

func TestClearedAppSecretStaysClearedAfterRestart(t *testing.T) {
	db := openTestDB(t)

	store, err := NewStore(db, validCredential())
	require.NoError(t, err)
	require.NoError(t, store.Rotate(Credential{
		VerifyToken: "rotated-verify",
		AccessToken: "rotated-access",
		AppSecret:   "",
	}))

	// Stale env config still carries the old secret; the persisted empty
	// value wins on restart instead of resurrecting it.
	restarted, err := NewStore(db, validCredential())
	require.NoError(t, err)
	require.Equal(t, "", restarted.Current().AppSecret)
	require.Equal(t, "rotated-verify", restarted.Current().VerifyToken)
}

func TestInitialCredentialSeedsDatabase(t *testing.T) {
	db := openTestDB(t)
	_, err := NewStore(db, validCredential())
	require.NoError(t, err)

	var setting models.SystemSetting
	require.NoError(t, db.Where("key = ?", "VERIFY_TOKEN").First(&setting).Error)
	require.Equal(t, "atendeai-lify-backend", setting.Value)
}
