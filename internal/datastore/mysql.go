package datastore

import (
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/qubitrhythm/disensor/internal/conf"
)

// MySQLStore implements Interface on a MySQL server.
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

// Open connects to MySQL and migrates the schema.
func (store *MySQLStore) Open() error {
	mysqlSettings := store.Settings.Backend.MySQL

	db, err := gorm.Open(mysql.Open(store.Settings.Backend.MySQLDSN()), &gorm.Config{Logger: createGormLogger(store.Settings.Debug)})
	if err != nil {
		log.Error("failed to open MySQL database",
			"host", mysqlSettings.Host,
			"port", mysqlSettings.Port,
			"database", mysqlSettings.Database,
			"error", err)
		return dbError(err, "open", "MySQL")
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	store.DB = db
	return performAutoMigration(db, store.Settings.Debug, "MySQL", mysqlSettings.Host+":"+mysqlSettings.Port+"/"+mysqlSettings.Database)
}
