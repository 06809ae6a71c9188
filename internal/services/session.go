package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/telehostca/chatbot-backend/internal/logger"
	"github.com/telehostca/chatbot-backend/internal/models"
	"github.com/telehostca/chatbot-backend/internal/storage"
)

// DefaultSessionTimeout is the inactivity after which a session is reactivated on its next message
const DefaultSessionTimeout = 30 * time.Minute

// LoadedSession is a session ready for one turn
type LoadedSession struct {
	Session     *models.WhatsAppSession
	Created     bool
	Reactivated bool
}

// keyLock is a mutex shared by the turns of one identity
type keyLock struct {
	mu   sync.Mutex
	refs int
}

// SessionManager loads and saves sessions through the session store and serializes turns per identity
type SessionManager struct {
	store   storage.SessionStore
	timeout time.Duration
	log     *logger.Logger
	now     func() time.Time

	mu    sync.Mutex
	locks map[string]*keyLock
}

// NewSessionManager creates a new session manager
func NewSessionManager(store storage.SessionStore, timeout time.Duration, l *logger.Logger) *SessionManager {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	return &SessionManager{
		store:   store,
		timeout: timeout,
		log:     l,
		now:     time.Now,
		locks:   make(map[string]*keyLock),
	}
}

// Lock blocks until no other turn of the identity is in flight. Call the returned func to release.
func (sm *SessionManager) Lock(identity string) func() {
	sm.mu.Lock()
	l, ok := sm.locks[identity]
	if !ok {
		l = &keyLock{}
		sm.locks[identity] = l
	}
	l.refs++
	sm.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		sm.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(sm.locks, identity)
		}
		sm.mu.Unlock()
	}
}

// Load finds or creates the session of an identity. A session idle longer than the timeout,
// or marked inactive by the sweeper, is reactivated: identity kept, flows cleared.
func (sm *SessionManager) Load(ctx context.Context, identity string) (*LoadedSession, error) {
	session, err := sm.store.FindSession(ctx, identity)
	if errors.Is(err, storage.ErrNotFound) {
		session, err = sm.store.CreateSession(ctx, identity)
		if err == nil {
			sm.log.Infow("Session created", "phone", identity)
			return &LoadedSession{Session: session, Created: true}, nil
		}
		if errors.Is(err, storage.ErrDuplicate) {
			// created concurrently: read the winner's row
			session, err = sm.store.FindSession(ctx, identity)
		}
	}
	if err != nil {
		return nil, collaboratorFault("sessions.Load", err)
	}

	loaded := &LoadedSession{Session: session}
	if sm.Expired(session) {
		sm.Reactivate(session)
		loaded.Reactivated = true
		sm.log.Infow("Session reactivated", "phone", identity, "authenticated", session.Authenticated)
	}
	return loaded, nil
}

// Expired reports whether the session timed out or was swept
func (sm *SessionManager) Expired(session *models.WhatsAppSession) bool {
	return !session.IsActive || sm.now().Sub(session.LastActivityAt) > sm.timeout
}

// Reactivate resets the conversation position but keeps who the customer is
func (sm *SessionManager) Reactivate(session *models.WhatsAppSession) {
	session.IsActive = true
	session.ClearFlows()
	if session.Authenticated {
		session.Context = models.ContextMenu
	} else {
		session.Context = models.ContextNewClient
	}
}

// RecordTurn updates the counters and last exchange of a finished turn
func (sm *SessionManager) RecordTurn(session *models.WhatsAppSession, inbound, outbound string) {
	session.MessageCount++
	session.LastInbound = inbound
	session.LastOutbound = outbound
	session.LastActivityAt = sm.now()
	session.IsActive = true
}

// Save persists the session
func (sm *SessionManager) Save(ctx context.Context, session *models.WhatsAppSession) error {
	if _, err := sm.store.SaveSession(ctx, session); err != nil {
		return collaboratorFault("sessions.Save", err)
	}
	return nil
}

// SweepInactive marks sessions idle for longer than inactiveAfter as inactive
func (sm *SessionManager) SweepInactive(ctx context.Context, inactiveAfter time.Duration) (int64, error) {
	n, err := sm.store.SweepInactive(ctx, sm.now().Add(-inactiveAfter))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		sm.log.Infow("Swept inactive sessions", "count", n)
	}
	return n, nil
}
