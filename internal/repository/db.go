package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"substance-journal/internal/logging"
	"substance-journal/internal/model"
)

// NewDB opens a SQLite database, migrates the schema and applies the scripted
// data migrations.
func NewDB(dsn string, log *zap.Logger, slowThreshold time.Duration) (*gorm.DB, error) {
	if dsn == "" {
		dsn = "journal.db"
	}

	if err := ensureDirForSQLite(dsn); err != nil {
		return nil, err
	}

	db, err := gorm.Open(sqlite.Open(withPragmas(dsn)), &gorm.Config{
		Logger:         logging.NewGormLogger(log, slowThreshold),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite allows a single writer; one connection keeps transactions serialized.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(models()...); err != nil {
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	if err := runMigrations(db, migrations); err != nil {
		return nil, err
	}

	return db, nil
}

func models() []any {
	return []any{
		&model.Experience{},
		&model.Ingestion{},
		&model.SubstanceCompanion{},
		&model.CustomSubstance{},
		&model.CustomUnit{},
		&model.CustomRecipe{},
		&model.RecipeSubcomponent{},
		&model.ShulginRating{},
		&model.TimedNote{},
		&model.TimedNotePhoto{},
		&model.IngestionReminder{},
		&schemaMigration{},
	}
}

func withPragmas(dsn string) string {
	if strings.Contains(dsn, "_busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_busy_timeout=5000"
}

// ensureDirForSQLite creates parent dir for SQLite file if needed.
func ensureDirForSQLite(dsn string) error {
	// Ignore DSNs with explicit mode=memory or network.
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	// Strip file: prefix if present.
	clean := strings.TrimPrefix(dsn, "file:")
	clean = strings.Split(clean, "?")[0]
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db dir %q: %w", dir, err)
	}
	return nil
}
