package repository

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-progress-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return openTestDB(t, "")
}

// setupForeignKeyTestDB enforces the lookup table constraints the way postgres does.
func setupForeignKeyTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return openTestDB(t, "&_foreign_keys=1")
}

func openTestDB(t *testing.T, params string) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared%s", name, params)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.Student{},
		&models.Teacher{},
		&models.Subject{},
		&models.Class{},
		&models.Report{},
		&models.ReportStatusHistory{},
		&models.AuditEntry{},
	))
	return db
}
