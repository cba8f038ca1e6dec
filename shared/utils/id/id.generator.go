package id

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// GenerateULID returns a lexically sortable id with an optional prefix, e.g. "proof_01J...".
func GenerateULID(prefix string) string {
	entropyMu.Lock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	entropyMu.Unlock()

	if prefix == "" {
		return strings.ToLower(id.String())
	}
	return prefix + "_" + strings.ToLower(id.String())
}

// EventID identifies a published ledger event.
func EventID() string {
	return uuid.NewString()
}
