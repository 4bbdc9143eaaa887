package testutil

import (
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	types "github.com/chatlens/chatlens-backend/internal/domain"
	"github.com/chatlens/chatlens-backend/internal/platform/logger"
)

var (
	logOnce sync.Once
	logg    *logger.Logger
	logErr  error
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

// DB opens a fresh in-memory sqlite database with the full schema. Each call
// gets its own database, so tests never share state.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=private"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("failed to open test db: %v", err)
	}
	// One connection only: each sqlite in-memory connection is its own
	// database, so a second pooled conn would see an empty schema.
	if sqlDB, dErr := db.DB(); dErr == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := autoMigrateAll(db); err != nil {
		tb.Fatalf("failed to migrate test db: %v", err)
	}
	tb.Cleanup(func() {
		if sqlDB, dErr := db.DB(); dErr == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func Tx(tb testing.TB, db *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}

func autoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.Chat{},
		&types.ChatMessage{},
		&types.EmbeddedMessage{},
		&types.ConversationContext{},
	)
}

// SeedMessage inserts a corpus row with sensible defaults.
func SeedMessage(tb testing.TB, db *gorm.DB, chatID, messageID, sender, content string, sentAt time.Time) *types.ChatMessage {
	tb.Helper()
	row := &types.ChatMessage{
		ChatID:    chatID,
		MessageID: messageID,
		Sender:    sender,
		Content:   content,
		ChatTitle: "Chat " + chatID,
		SentAt:    sentAt,
	}
	if err := db.Create(row).Error; err != nil {
		tb.Fatalf("seed message: %v", err)
	}
	return row
}
