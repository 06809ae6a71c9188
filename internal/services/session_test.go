package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/telehostca/chatbot-backend/internal/logger"
	"github.com/telehostca/chatbot-backend/internal/models"
	"github.com/telehostca/chatbot-backend/internal/storage"
)

// racingStore reports a missing session once, as if another turn created it in between
type racingStore struct {
	*storage.MemoryStore
	once sync.Once
}

func (r *racingStore) FindSession(ctx context.Context, phone string) (*models.WhatsAppSession, error) {
	missed := false
	r.once.Do(func() { missed = true })
	if missed {
		return nil, storage.ErrNotFound
	}
	return r.MemoryStore.FindSession(ctx, phone)
}

func TestSessionManager_LoadCreates(t *testing.T) {
	store := newSeededStore(t)
	sm := NewSessionManager(store, 0, logger.Nop())

	loaded, err := sm.Load(context.Background(), knownPhone)
	if err != nil {
		t.Fatal(err)
	}
	if !loaded.Created || loaded.Reactivated {
		t.Errorf("loaded = %+v, want created", loaded)
	}
	if loaded.Session.Context != models.ContextNewClient || !loaded.Session.IsActive {
		t.Errorf("new session = %+v", loaded.Session)
	}
}

func TestSessionManager_LoadReadsConcurrentCreate(t *testing.T) {
	store := newSeededStore(t)
	if _, err := store.CreateSession(context.Background(), knownPhone); err != nil {
		t.Fatal(err)
	}
	sm := NewSessionManager(&racingStore{MemoryStore: store}, 0, logger.Nop())

	loaded, err := sm.Load(context.Background(), knownPhone)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Created || loaded.Session.PhoneNumber != knownPhone {
		t.Errorf("loaded = %+v, want the existing session", loaded)
	}
}

func TestSessionManager_Reactivation(t *testing.T) {
	ctx := context.Background()
	store := newSeededStore(t)
	sm := NewSessionManager(store, 30*time.Minute, logger.Nop())

	loaded, err := sm.Load(ctx, knownPhone)
	if err != nil {
		t.Fatal(err)
	}
	s := loaded.Session
	s.Authenticate(&models.Customer{Code: "V12345678", Name: "Maria Perez", IDNumber: "V12345678"})
	s.Context = models.ContextPaymentPhoneInput
	s.Payment = &models.PendingPayment{Method: models.PaymentMethodPagoMovil}
	sm.RecordTurn(s, "0102", "ok")
	if err := sm.Save(ctx, s); err != nil {
		t.Fatal(err)
	}

	// within the timeout nothing changes
	sm.now = func() time.Time { return time.Now().Add(10 * time.Minute) }
	loaded, err = sm.Load(ctx, knownPhone)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Reactivated || loaded.Session.Payment == nil || loaded.Session.Context != models.ContextPaymentPhoneInput {
		t.Errorf("session reset before timeout: %+v", loaded.Session)
	}

	sm.now = func() time.Time { return time.Now().Add(45 * time.Minute) }
	loaded, err = sm.Load(ctx, knownPhone)
	if err != nil {
		t.Fatal(err)
	}
	got := loaded.Session
	if !loaded.Reactivated {
		t.Fatal("expected reactivation after the timeout")
	}
	if !got.Authenticated || got.CustomerCode != "V12345678" {
		t.Errorf("identity lost on reactivation: %+v", got)
	}
	if got.Payment != nil || got.Context != models.ContextMenu {
		t.Errorf("flow state kept on reactivation: context %q, payment %+v", got.Context, got.Payment)
	}
}

func TestSessionManager_SweptSessionReactivates(t *testing.T) {
	ctx := context.Background()
	store := newSeededStore(t)
	sm := NewSessionManager(store, 0, logger.Nop())

	if _, err := sm.Load(ctx, unknownPhone); err != nil {
		t.Fatal(err)
	}
	sm.now = func() time.Time { return time.Now().Add(time.Hour) }
	n, err := sm.SweepInactive(ctx, 10*time.Minute)
	if err != nil || n != 1 {
		t.Fatalf("SweepInactive() = %d, %v, want 1", n, err)
	}

	sm.now = time.Now
	loaded, err := sm.Load(ctx, unknownPhone)
	if err != nil {
		t.Fatal(err)
	}
	if !loaded.Reactivated || loaded.Session.Context != models.ContextNewClient {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestSessionManager_LockSerializesIdentity(t *testing.T) {
	sm := NewSessionManager(newSeededStore(t), 0, logger.Nop())

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := sm.Lock(knownPhone)
			defer unlock()
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("counter = %d, want 50", counter)
	}
	if len(sm.locks) != 0 {
		t.Errorf("locks left behind: %d", len(sm.locks))
	}
}
