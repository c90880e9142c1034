package database

import (
	"sync"
	"time"

	"emperror.dev/errors"
	"github.com/apex/log"
	"github.com/cenkalti/backoff/v4"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/andr3so7/folio/internal/models"
)

var (
	o  sync.Once
	db *gorm.DB
)

// Initialize opens the backing sqlite database and runs the schema
// migrations. Connection attempts are retried with exponential backoff so a
// slow cold-started volume does not kill the boot. Safe to call multiple
// times, only the first call has any effect.
func Initialize(uri string) error {
	var err error
	o.Do(func() {
		err = initialize(uri)
	})
	return errors.Wrap(err, "database: failed to initialize")
}

func initialize(uri string) error {
	open := func() error {
		var err error
		db, err = gorm.Open(sqlite.Open(uri), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		return err
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4)
	if err := backoff.RetryNotify(open, policy, func(err error, d time.Duration) {
		log.WithError(err).WithField("retry_in", d).Warn("database: connection failed, retrying")
	}); err != nil {
		return err
	}

	// Writers contend on a single sqlite file; wait rather than fail with
	// SQLITE_BUSY when two requests toggle at the same moment.
	if err := db.Exec("PRAGMA busy_timeout = 5000").Error; err != nil {
		return err
	}

	if err := db.AutoMigrate(&models.Module{}, &models.User{}); err != nil {
		return err
	}
	log.WithField("uri", uri).Info("database: connected and migrated")
	return nil
}

// Instance returns the gorm database handle. Panics if Initialize was not
// called first, which is a programming mistake and not a runtime condition.
func Instance() *gorm.DB {
	if db == nil {
		panic("database: instance accessed before initialization")
	}
	return db
}
