package viewstate

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/sjoeboo/dockyard/internal/logging"
)

// Backend is the durable per-session key/value the store persists through.
type Backend interface {
	GetViewState(ctx context.Context, sessionID string) ([]byte, error)
	SetViewState(ctx context.Context, sessionID string, data []byte) error
	DeleteViewState(ctx context.Context, sessionID string) error
}

// op is a queued write: a state to store, or a delete.
type op struct {
	state  ViewState
	delete bool
}

// Store persists view states without blocking callers. Writes for one
// session run one at a time; writes queued behind an in-flight write
// collapse to the latest, so the last write wins.
type Store struct {
	backend Backend
	timeout time.Duration
	log     *slog.Logger

	mu       sync.Mutex
	inflight map[string]bool
	pending  map[string]op
	// latest is the newest op per session not yet confirmed on the backend;
	// Get answers from it so a read never overtakes a queued write.
	latest map[string]op
	wg     sync.WaitGroup
}

// NewStore creates a store over backend.
func NewStore(backend Backend) *Store {
	return &Store{
		backend:  backend,
		timeout:  5 * time.Second,
		log:      logging.ForComponent(logging.CompViewState),
		inflight: make(map[string]bool),
		pending:  make(map[string]op),
		latest:   make(map[string]op),
	}
}

// Get returns the persisted state for a session. A read failure or a
// corrupt record is reported as absence.
func (s *Store) Get(ctx context.Context, sessionID string) (ViewState, bool) {
	s.mu.Lock()
	if o, ok := s.latest[sessionID]; ok {
		s.mu.Unlock()
		if o.delete {
			return ViewState{}, false
		}
		return o.state.Clone(), true
	}
	s.mu.Unlock()

	data, err := s.backend.GetViewState(ctx, sessionID)
	if err != nil {
		s.log.Debug("view state read failed", slog.String("session", sessionID), slog.String("error", err.Error()))
		return ViewState{}, false
	}
	if len(data) == 0 {
		return ViewState{}, false
	}
	var v ViewState
	if err := json.Unmarshal(data, &v); err != nil {
		s.log.Warn("corrupt view state ignored", slog.String("session", sessionID), slog.String("error", err.Error()))
		return ViewState{}, false
	}
	return v, true
}

// Set queues a write of state for a session and returns immediately.
func (s *Store) Set(sessionID string, state ViewState) {
	s.enqueue(sessionID, op{state: state.Clone()})
}

// Delete queues removal of a session's state, ordered after any queued write.
func (s *Store) Delete(sessionID string) {
	s.enqueue(sessionID, op{delete: true})
}

// Wait blocks until every queued write has been attempted.
func (s *Store) Wait() {
	s.wg.Wait()
}

func (s *Store) enqueue(sessionID string, o op) {
	s.mu.Lock()
	s.latest[sessionID] = o
	if s.inflight[sessionID] {
		s.pending[sessionID] = o
		s.mu.Unlock()
		return
	}
	s.inflight[sessionID] = true
	s.wg.Add(1)
	s.mu.Unlock()

	go s.drain(sessionID, o)
}

// drain writes o, then any op queued meanwhile, until the session's queue is empty.
func (s *Store) drain(sessionID string, o op) {
	defer s.wg.Done()
	for {
		s.apply(sessionID, o)

		s.mu.Lock()
		next, ok := s.pending[sessionID]
		if !ok {
			delete(s.inflight, sessionID)
			delete(s.latest, sessionID)
			s.mu.Unlock()
			return
		}
		delete(s.pending, sessionID)
		s.mu.Unlock()
		o = next
	}
}

func (s *Store) apply(sessionID string, o op) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if o.delete {
		if err := s.backend.DeleteViewState(ctx, sessionID); err != nil {
			s.log.Debug("view state delete failed", slog.String("session", sessionID), slog.String("error", err.Error()))
		}
		return
	}

	data, err := json.Marshal(o.state)
	if err != nil {
		s.log.Warn("view state encode failed", slog.String("session", sessionID), slog.String("error", err.Error()))
		return
	}
	if err := s.backend.SetViewState(ctx, sessionID, data); err != nil {
		s.log.Debug("view state write failed", slog.String("session", sessionID), slog.String("error", err.Error()))
	}
}
