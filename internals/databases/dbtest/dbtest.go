// Package dbtest opens a throwaway SQLite database with the finance schema.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"impactacademy_backend/internals/configs"
	database "impactacademy_backend/internals/databases"
)

// NewTestDB returns a migrated database backed by a file in t.TempDir().
// The pool is limited to one connection so concurrent transactions
// serialise the way row locks would on postgres.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "finance.db") + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         configs.NewGormLogger(zap.NewNop()).LogMode(gormLogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}
