package datastore

import (
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/qubitrhythm/disensor/internal/conf"
)

// SQLiteStore implements Interface on a local SQLite file.
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

// Open opens or creates the database file and migrates the schema.
func (store *SQLiteStore) Open() error {
	path := store.Settings.Backend.SQLite.Path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return dbError(err, "create_directory", "SQLite")
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: createGormLogger(store.Settings.Debug)})
	if err != nil {
		return dbError(err, "open", "SQLite")
	}

	// A single connection keeps :memory: databases shared and avoids SQLITE_BUSY on writes.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	store.DB = db
	return performAutoMigration(db, store.Settings.Debug, "SQLite", path)
}
