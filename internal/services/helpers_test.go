package services

import (
	"testing"

	"github.com/telehostca/chatbot-backend/internal/logger"
	"github.com/telehostca/chatbot-backend/internal/models"
	"github.com/telehostca/chatbot-backend/internal/storage"
)

const (
	knownPhone   = "04141234567" // Maria Perez in the default seed
	unknownPhone = "04249999999"
)

func newSeededStore(t *testing.T) *storage.MemoryStore {
	t.Helper()
	store := storage.NewMemoryStore(0)
	if err := storage.ApplySeed(store, []byte(storage.DefaultSeed)); err != nil {
		t.Fatalf("ApplySeed() error = %v", err)
	}
	return store
}

func newTestEngine(t *testing.T) (*Engine, *storage.MemoryStore) {
	t.Helper()
	store := newSeededStore(t)
	return NewEngine(store, nil, logger.Nop(), EngineOptions{}), store
}

func newSession(phone string) *models.WhatsAppSession {
	return &models.WhatsAppSession{PhoneNumber: phone, Context: models.ContextNewClient, IsActive: true}
}

func authenticatedSession(phone string) *models.WhatsAppSession {
	s := newSession(phone)
	s.Authenticate(&models.Customer{Code: "V12345678", Name: "Maria Perez", IDNumber: "V12345678"})
	return s
}
