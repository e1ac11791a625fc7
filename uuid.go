package tcc

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

// UUID is a thin wrapper over github.com/google/uuid.UUID to keep the rest of
// the module decoupled from the external package. It identifies coordinator
// instances and advisory lock owners, not transactions (those use
// store-assigned int64 ids).
type UUID uuid.UUID

// NilUUID is the zero-value UUID.
var NilUUID UUID

// ParseUUID converts a string to a UUID. It returns an error if the input is not a valid UUID.
func ParseUUID(id string) (UUID, error) {
	u, err := uuid.Parse(id)
	return UUID(u), err
}

// NewUUID returns a new randomly generated UUID. It retries on error with a 1ms backoff up to 10 times
// and panics only if all attempts fail (which should never happen under normal conditions).
func NewUUID() UUID {
	var err error
	for i := 0; i < 10; i++ {
		var id uuid.UUID
		id, err = uuid.NewRandom()
		if err == nil {
			return UUID(id)
		}
		time.Sleep(1 * time.Millisecond)
	}
	panic(err)
}

// IsNil reports whether the UUID equals the zero-value UUID.
func (id UUID) IsNil() bool {
	return bytes.Equal(id[:], NilUUID[:])
}

// String returns the canonical string representation of the UUID.
func (id UUID) String() string {
	return uuid.UUID(id).String()
}
