package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/telehostca/chatbot-backend/internal/logger"
	"github.com/telehostca/chatbot-backend/internal/services"
	"github.com/telehostca/chatbot-backend/internal/storage"
)

// SweepResult counts what one pass changed
type SweepResult struct {
	Sessions  int64
	CartLines int64
}

// SweeperConfig holds the sweep schedule and thresholds
type SweeperConfig struct {
	Interval      time.Duration
	InactiveAfter time.Duration
	CartExpiry    time.Duration
}

// SessionSweeper marks idle sessions inactive and expires stale cart lines on a ticker
type SessionSweeper struct {
	sessions *services.SessionManager
	carts    storage.CartStore
	cfg      SweeperConfig
	log      *logger.Logger
	now      func() time.Time

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewSessionSweeper creates a new sweeper
func NewSessionSweeper(sessions *services.SessionManager, carts storage.CartStore, cfg SweeperConfig, l *logger.Logger) *SessionSweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	return &SessionSweeper{
		sessions: sessions,
		carts:    carts,
		cfg:      cfg,
		log:      l,
		now:      time.Now,
	}
}

// Start runs the sweep every interval until Stop
func (s *SessionSweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.log.Warn("Session sweeper already running")
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	s.log.Infow("Starting session sweeper", "interval", s.cfg.Interval,
		"inactive_after", s.cfg.InactiveAfter, "cart_expiry", s.cfg.CartExpiry)
	go s.loop(s.stop, s.done)
}

// Stop halts the ticker and waits for a pass in flight
func (s *SessionSweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	<-done
	s.log.Info("Session sweeper stopped")
}

func (s *SessionSweeper) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Interval)
			if _, err := s.RunOnce(ctx); err != nil {
				s.log.Errorw("Sweep failed", "error", err)
			}
			cancel()
		}
	}
}

// RunOnce performs a single pass. A zero threshold skips that half of the sweep.
func (s *SessionSweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	if s.cfg.InactiveAfter > 0 {
		n, err := s.sessions.SweepInactive(ctx, s.cfg.InactiveAfter)
		if err != nil {
			return result, fmt.Errorf("sweep sessions: %w", err)
		}
		result.Sessions = n
	}

	if s.cfg.CartExpiry > 0 {
		n, err := s.carts.ExpireLines(ctx, s.now().Add(-s.cfg.CartExpiry))
		if err != nil {
			return result, fmt.Errorf("expire cart lines: %w", err)
		}
		result.CartLines = n
		if n > 0 {
			s.log.Infow("Expired stale cart lines", "count", n)
		}
	}
	return result, nil
}
