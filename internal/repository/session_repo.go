package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"studybuddy-backend/internal/models"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionBusy     = errors.New("session is busy")
)

type sessionEntry struct {
	state    *models.Session
	exchange sync.Mutex
	lastSeen time.Time
}

// SessionRepo keeps sessions in process memory. Nothing survives a restart.
// Reads and writes go through copies so callers never share a Session.
type SessionRepo struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*sessionEntry
	idleTTL  time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

func NewSessionRepo(idleTTL time.Duration) *SessionRepo {
	return &SessionRepo{
		sessions: make(map[uuid.UUID]*sessionEntry),
		idleTTL:  idleTTL,
		stop:     make(chan struct{}),
	}
}

func (r *SessionRepo) Create(ctx context.Context) (*models.Session, error) {
	s := models.NewSession()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[s.ID] = &sessionEntry{state: s.Clone(), lastSeen: time.Now()}
	return s, nil
}

func (r *SessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	e.lastSeen = time.Now()
	return e.state.Clone(), nil
}

// Update stores s over the existing session with the same ID.
func (r *SessionRepo) Update(ctx context.Context, s *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[s.ID]
	if !ok {
		return ErrSessionNotFound
	}
	e.state = s.Clone()
	e.lastSeen = time.Now()
	return nil
}

func (r *SessionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(r.sessions, id)
	return nil
}

// Acquire takes the session's exchange lock. While it is held no other
// question, upload or clear may run for that session. The returned func
// releases the lock.
func (r *SessionRepo) Acquire(ctx context.Context, id uuid.UUID) (func(), error) {
	r.mu.RLock()
	e, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	if !e.exchange.TryLock() {
		return nil, ErrSessionBusy
	}

	var once sync.Once
	return func() { once.Do(e.exchange.Unlock) }, nil
}

func (r *SessionRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Start runs the idle sweep until Stop is called.
func (r *SessionRepo) Start() {
	if r.idleTTL <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(r.sweepInterval())
		defer ticker.Stop()

		for {
			select {
			case <-r.stop:
				return
			case <-ticker.C:
				if n := r.sweep(time.Now()); n > 0 {
					log.Info().Int("removed", n).Msg("Idle sessions removed")
				}
			}
		}
	}()
}

func (r *SessionRepo) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// sweep drops sessions idle for longer than idleTTL, skipping any with an
// exchange in flight.
func (r *SessionRepo) sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, e := range r.sessions {
		if now.Sub(e.lastSeen) <= r.idleTTL {
			continue
		}
		if !e.exchange.TryLock() {
			continue
		}
		delete(r.sessions, id)
		e.exchange.Unlock()
		removed++
	}
	return removed
}

func (r *SessionRepo) sweepInterval() time.Duration {
	interval := r.idleTTL / 4
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}
