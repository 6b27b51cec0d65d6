package datastore

import (
	"fmt"
	"time"

	gormlogger "gorm.io/gorm/logger"

	"github.com/qubitrhythm/disensor/internal/errors"
	"github.com/qubitrhythm/disensor/internal/logging"
)

var log = logging.ForService("datastore")

// gormWriter routes gorm's printf style logger into slog.
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...any) {
	log.Warn(fmt.Sprintf(format, args...), "source", "gorm")
}

func createGormLogger(debug bool) gormlogger.Interface {
	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}
	return gormlogger.New(gormWriter{}, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

func dbError(err error, operation, dbType string) error {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Context("backend", dbType).
		Build()
}
