package session

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/securevm/internal/membrane"
	"github.com/GriffinCanCode/securevm/internal/sandbox"
	"github.com/GriffinCanCode/securevm/internal/shared/id"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("too many sessions")
	ErrManagerClosed   = errors.New("session manager is closed")
)

// Builder creates the sandbox Context backing a new session.
type Builder func(bindings map[string]interface{}) (*sandbox.Context, error)

// Recorder receives session gauge updates. *monitoring.Metrics implements it.
type Recorder interface {
	SetSessionsActive(count int)
	AddSessionsExpired(n int)
}

type nopRecorder struct{}

func (nopRecorder) SetSessionsActive(int)  {}
func (nopRecorder) AddSessionsExpired(int) {}

// Config bounds the manager.
type Config struct {
	// MaxSessions caps live sessions; zero means unlimited.
	MaxSessions int
	// TTL closes sessions idle for longer than this; zero disables expiry.
	TTL time.Duration
}

// Session is one long-lived sandbox context.
type Session struct {
	ID        id.SessionID
	CreatedAt time.Time

	// mu serializes evaluation and close
	mu      sync.Mutex
	context *sandbox.Context
	closed  bool

	lastUsed    atomic.Int64 // unix nanoseconds
	evaluations atomic.Int64
}

// Info describes a session for API responses.
type Info struct {
	ID          id.SessionID   `json:"id"`
	ContextID   id.ContextID   `json:"context_id"`
	CreatedAt   time.Time      `json:"created_at"`
	LastUsed    time.Time      `json:"last_used"`
	Evaluations int64          `json:"evaluations"`
	Warnings    []string       `json:"warnings"`
	Membrane    membrane.Stats `json:"membrane"`
}

// Stats summarises the manager.
type Stats struct {
	Active      int        `json:"active"`
	Created     int        `json:"created"`
	Expired     int        `json:"expired"`
	LastCreated *time.Time `json:"last_created,omitempty"`
}
