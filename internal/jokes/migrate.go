package jokes

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Migrate applies the jokes schema using Gorm's AutoMigrate and logs progress.
func Migrate(ctx context.Context, db *gorm.DB, logger *logrus.Logger) error {
	if db == nil {
		return eris.New("gorm DB is required")
	}

	logFields := logrus.Fields{"component": "jokes.migrate"}
	if logger != nil {
		logger.WithFields(logFields).Info("applying jokes schema")
	}

	if err := db.WithContext(ctx).AutoMigrate(&Author{}, &Topic{}, &Joke{}); err != nil {
		if logger != nil {
			logger.WithFields(logFields).WithField("error", err.Error()).Error("jokes schema migration failed")
		}
		return eris.Wrap(err, "auto migrating jokes schema")
	}

	if logger != nil {
		logger.WithFields(logFields).Info("jokes schema migration complete")
	}

	return nil
}
