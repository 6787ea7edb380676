package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/securevm/internal/sandbox"
	"github.com/GriffinCanCode/securevm/internal/shared/id"
)

// Manager owns long-lived sandbox sessions. Each session's Context is used by
// one evaluation at a time; different sessions evaluate concurrently.
type Manager struct {
	build    Builder
	config   Config
	recorder Recorder
	logger   *zap.Logger

	mu          sync.RWMutex
	sessions    map[id.SessionID]*Session
	created     int
	expired     int
	lastCreated *time.Time
	closed      bool

	now func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithRecorder reports session counts to r.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) {
		if r != nil {
			m.recorder = r
		}
	}
}

// WithLogger sets the manager's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a session manager that builds contexts with build.
func NewManager(build Builder, config Config, opts ...Option) *Manager {
	m := &Manager{
		build:    build,
		config:   config,
		recorder: nopRecorder{},
		logger:   zap.NewNop(),
		sessions: make(map[id.SessionID]*Session),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create builds a new session with bindings installed in its realm.
func (m *Manager) Create(bindings map[string]interface{}) (Info, error) {
	// Fail fast before paying for a realm
	m.mu.RLock()
	err := m.admit()
	m.mu.RUnlock()
	if err != nil {
		return Info{}, err
	}

	c, err := m.build(bindings)
	if err != nil {
		return Info{}, fmt.Errorf("create session: %w", err)
	}

	now := m.now()
	s := &Session{
		ID:        id.NewSessionID(),
		CreatedAt: now,
		context:   c,
	}
	s.lastUsed.Store(now.UnixNano())

	m.mu.Lock()
	if err := m.admit(); err != nil {
		m.mu.Unlock()
		c.Close()
		return Info{}, err
	}
	m.sessions[s.ID] = s
	m.created++
	m.lastCreated = &now
	active := len(m.sessions)
	m.mu.Unlock()

	m.recorder.SetSessionsActive(active)
	m.logger.Info("session created",
		zap.String("session_id", s.ID.String()),
		zap.Int("bindings", len(bindings)),
		zap.Int("active", active))
	return s.info(), nil
}

// admit reports whether one more session fits. Callers hold m.mu.
func (m *Manager) admit() error {
	if m.closed {
		return ErrManagerClosed
	}
	if m.config.MaxSessions > 0 && len(m.sessions) >= m.config.MaxSessions {
		return ErrTooManySessions
	}
	return nil
}

func (m *Manager) lookup(sid id.SessionID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sid)
	}
	return s, nil
}

// Get returns a session's description.
func (m *Manager) Get(sid id.SessionID) (Info, error) {
	s, err := m.lookup(sid)
	if err != nil {
		return Info{}, err
	}
	return s.info(), nil
}

// List returns all sessions, oldest first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	// ULIDs sort by creation time
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })

	infos := make([]Info, len(sessions))
	for i, s := range sessions {
		infos[i] = s.info()
	}
	return infos
}

// Eval runs code in the session's realm. Evaluations in one session are
// serialized.
func (m *Manager) Eval(ctx context.Context, sid id.SessionID, code string) (*sandbox.Result, error) {
	s, err := m.lookup(sid)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sid)
	}
	s.lastUsed.Store(m.now().UnixNano())
	s.evaluations.Add(1)
	return s.context.Execute(ctx, code)
}

// Delete closes a session.
func (m *Manager) Delete(sid id.SessionID) error {
	m.mu.Lock()
	s, ok := m.sessions[sid]
	if ok {
		delete(m.sessions, sid)
	}
	active := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sid)
	}

	s.close()
	m.recorder.SetSessionsActive(active)
	m.logger.Info("session deleted", zap.String("session_id", sid.String()))
	return nil
}

// Sweep closes sessions idle for longer than the TTL and returns how many
// were closed.
func (m *Manager) Sweep() int {
	if m.config.TTL <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.config.TTL)

	m.mu.Lock()
	var stale []*Session
	for sid, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, sid)
		}
	}
	m.expired += len(stale)
	active := len(m.sessions)
	m.mu.Unlock()

	for _, s := range stale {
		s.close()
		m.logger.Info("session expired", zap.String("session_id", s.ID.String()))
	}
	if len(stale) > 0 {
		m.recorder.AddSessionsExpired(len(stale))
		m.recorder.SetSessionsActive(active)
	}
	return len(stale)
}

// Run sweeps expired sessions until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	if m.config.TTL <= 0 {
		return
	}

	interval := m.config.TTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Stats returns session manager statistics
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Stats{
		Active:      len(m.sessions),
		Created:     m.created,
		Expired:     m.expired,
		LastCreated: m.lastCreated,
	}
}

// Close closes every session. Later Creates fail with ErrManagerClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	sessions := m.sessions
	m.sessions = make(map[id.SessionID]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
	m.recorder.SetSessionsActive(0)
	return nil
}

func (s *Session) idleSince() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.context.Close()
}

// info waits for a running evaluation of the session to finish.
func (s *Session) info() Info {
	warnings := s.context.Warnings()
	names := make([]string, len(warnings))
	for i, w := range warnings {
		names[i] = w.String()
	}
	return Info{
		ID:          s.ID,
		ContextID:   s.context.ID(),
		CreatedAt:   s.CreatedAt,
		LastUsed:    s.idleSince(),
		Evaluations: s.evaluations.Load(),
		Warnings:    names,
		Membrane:    s.context.Stats(),
	}
}
