package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/telehostca/chatbot-backend/internal/config"
	"github.com/telehostca/chatbot-backend/internal/logger"
)

// Connect opens the PostgreSQL connection, retrying a few times while the database starts
func Connect(cfg *config.Config, l *logger.Logger) (*gorm.DB, error) {
	if cfg.DB.InstanceConnectionName != "" {
		l.Infow("Connecting to Cloud SQL via socket", "instance", cfg.DB.InstanceConnectionName)
	} else {
		l.Infow("Connecting to PostgreSQL", "host", cfg.DB.Host, "db", cfg.DB.Name)
	}

	var (
		db  *gorm.DB
		err error
	)
	const maxRetries = 5
	for i := 0; i < maxRetries; i++ {
		db, err = gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
			TranslateError: true,
			Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		})
		if err == nil {
			break
		}
		l.Warnw("Failed to connect to database, retrying", "attempt", i+1, "error", err)
		time.Sleep(time.Duration(i+1) * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	l.Info("Database connected successfully")
	return db, nil
}
