package storage

import (
	"context"
	"errors"
	"time"

	"github.com/telehostca/chatbot-backend/internal/models"
)

var (
	// ErrNotFound is returned when a lookup by key has no row
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique key already exists
	ErrDuplicate = errors.New("duplicate key")
)

// SessionStore persists conversation sessions keyed by normalized phone
type SessionStore interface {
	FindSession(ctx context.Context, phone string) (*models.WhatsAppSession, error)
	CreateSession(ctx context.Context, phone string) (*models.WhatsAppSession, error)
	SaveSession(ctx context.Context, session *models.WhatsAppSession) (*models.WhatsAppSession, error)
	SweepInactive(ctx context.Context, cutoff time.Time) (int64, error)
}

// CustomerDirectory is the legacy customer table
type CustomerDirectory interface {
	// FindByPhoneCandidates returns an active, non-disabled customer whose phone1 or phone2
	// matches any candidate, preferring phone1 matches and then the most recently active record.
	FindByPhoneCandidates(ctx context.Context, candidates []string) (*models.Customer, error)
	FindByID(ctx context.Context, idNumbers []string) (*models.Customer, error)
	CreateCustomer(ctx context.Context, customer *models.Customer) (*models.Customer, error)
}

// Catalog searches in-stock products
type Catalog interface {
	SearchExact(ctx context.Context, term string) ([]models.Product, error)
	SearchByWords(ctx context.Context, words []string) ([]models.Product, error)
	FindProduct(ctx context.Context, code string) (*models.Product, error)
}

// OrderBackend creates orders and records payment proofs
type OrderBackend interface {
	CreateOrderFromCart(ctx context.Context, customer *models.Customer, lines []models.CartLine, method string) (*models.OrderResult, error)
	RecordPaymentProof(ctx context.Context, proof *models.PaymentProof) error
	ListBanks(ctx context.Context) ([]models.Bank, error)
}

// CartStore persists cart lines. Lines are never hard-deleted.
type CartStore interface {
	ActiveLines(ctx context.Context, phone string) ([]models.CartLine, error)
	FindActiveLine(ctx context.Context, phone, productCode string) (*models.CartLine, error)
	CreateLine(ctx context.Context, line *models.CartLine) (*models.CartLine, error)
	UpdateLine(ctx context.Context, line *models.CartLine) error
	SetLineStatus(ctx context.Context, id uint, status string) error
	ClearLines(ctx context.Context, phone string) (int64, error)
	ExpireLines(ctx context.Context, cutoff time.Time) (int64, error)
}

// SearchHistory remembers what a customer searched for
type SearchHistory interface {
	RecordSearch(ctx context.Context, phone, term string, resultCount int) error
	RecentSuccessful(ctx context.Context, phone string, limit int) ([]string, error)
}

// RateSource provides the current USD exchange rate
type RateSource interface {
	CurrentRate(ctx context.Context) (float64, error)
}

// Store groups every collaborator contract the engine consumes
type Store interface {
	SessionStore
	CustomerDirectory
	Catalog
	OrderBackend
	CartStore
	SearchHistory
	RateSource
	Ping(ctx context.Context) error
}

// Search limits shared by both backends
const (
	ExactSearchLimit = 20
	WordSearchLimit  = 15
	MinWordLength    = 3
)
