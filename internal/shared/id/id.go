// Package id provides centralized ID generation for the engine.
//
// ULIDs are used for long-lived entities (PTY sessions, background jobs) so
// identifiers sort by creation time in logs; prefixes keep them readable.
package id

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// SessionID identifies a PTY session.
type SessionID string

// JobID identifies a background job.
type JobID string

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

func newULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NewSessionID generates a new PTY session ID.
func NewSessionID() SessionID {
	return SessionID(fmt.Sprintf("pty_%s", newULID()))
}

// NewJobID generates a new background job ID.
func NewJobID() JobID {
	return JobID(fmt.Sprintf("job_%s", newULID()))
}
