package repository

import (
	"testing"

	"github.com/nimasrn/campaign-dispatcher/pkg/pg"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Entities lists every table the repositories use, in creation order.
func Entities() []interface{} {
	return []interface{}{
		&TemplateEntity{},
		&CampaignEntity{},
		&RecipientEntity{},
		&NotifyEntity{},
		&MessageEntity{},
		&MessageStatusEntity{},
	}
}

// NewTestDB opens an in-memory sqlite database with the schema migrated.
func NewTestDB(t testing.TB) *pg.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every pooled connection would get its own in-memory database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(Entities()...))

	return pg.New(db, db)
}
