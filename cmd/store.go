package cmd

import (
	"fmt"

	"github.com/telehostca/chatbot-backend/database"
	"github.com/telehostca/chatbot-backend/internal/config"
	"github.com/telehostca/chatbot-backend/internal/logger"
	"github.com/telehostca/chatbot-backend/internal/storage"
)

// openStore builds the backend selected by the configuration
func openStore(c *config.Config, l *logger.Logger) (storage.Store, error) {
	switch c.Storage {
	case "memory":
		l.Warn("Using in-memory storage (not for production!)")
		return newMemoryStore(c.Catalog.MinStock, c.Catalog.DefaultRate, c.SeedFile)
	case "postgres", "":
		db, err := database.Connect(c, l)
		if err != nil {
			return nil, err
		}
		store := storage.NewDatabaseStore(db, c.Catalog.MinStock, c.Catalog.DefaultRate)
		l.Info("Running database migrations...")
		if err := store.AutoMigrate(); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", c.Storage)
}

// newMemoryStore loads the seed file, or the built-in demo catalog when none is given.
// A rate in the seed overrides the configured one.
func newMemoryStore(minStock, rate float64, seedFile string) (*storage.MemoryStore, error) {
	store := storage.NewMemoryStore(minStock)
	if rate > 0 {
		store.SetRate(rate)
	}
	if seedFile != "" {
		if err := storage.LoadSeed(store, seedFile); err != nil {
			return nil, err
		}
		return store, nil
	}
	if err := storage.ApplySeed(store, []byte(storage.DefaultSeed)); err != nil {
		return nil, err
	}
	return store, nil
}
