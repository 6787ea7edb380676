// Package id mints the server's prefixed ULIDs:
//
//	sess_  long-lived sandbox sessions
//	req_   API requests and trace spans
//	ctx_   sandbox contexts
//	conn_  WebSocket REPL connections
//
// Entropy is monotonic, so IDs minted in the same millisecond still sort in
// creation order; session listings rely on that.
package id

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
)

// SessionID identifies a long-lived sandbox session
type SessionID string

// RequestID identifies an API request
type RequestID string

// ContextID identifies one sandbox context
type ContextID string

// ConnectionID identifies a WebSocket REPL connection
type ConnectionID string

const (
	SessionPrefix    = "sess"
	RequestPrefix    = "req"
	ContextPrefix    = "ctx"
	ConnectionPrefix = "conn"
)

// ErrInvalidID is returned when a string is not a well-formed prefixed ULID.
var ErrInvalidID = errors.New("invalid id")

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

func mint(prefix string) string {
	entropyMu.Lock()
	u := ulid.MustNew(ulid.Now(), entropy)
	entropyMu.Unlock()
	return prefix + "_" + u.String()
}

// NewSessionID generates a new session ID
func NewSessionID() SessionID { return SessionID(mint(SessionPrefix)) }

// NewRequestID generates a new request ID
func NewRequestID() RequestID { return RequestID(mint(RequestPrefix)) }

// NewContextID generates a new sandbox context ID
func NewContextID() ContextID { return ContextID(mint(ContextPrefix)) }

// NewConnectionID generates a new connection ID
func NewConnectionID() ConnectionID { return ConnectionID(mint(ConnectionPrefix)) }

func (id SessionID) String() string    { return string(id) }
func (id RequestID) String() string    { return string(id) }
func (id ContextID) String() string    { return string(id) }
func (id ConnectionID) String() string { return string(id) }

// ParseSessionID validates a session ID received from a client.
func ParseSessionID(s string) (SessionID, error) {
	rest, ok := strings.CutPrefix(s, SessionPrefix+"_")
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	if _, err := ulid.ParseStrict(rest); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return SessionID(s), nil
}
