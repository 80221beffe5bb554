package testutil

import (
	"testing"

	"github.com/ltran/capstone-notify/internal/bus"
	"github.com/ltran/capstone-notify/internal/readstate"
)

// NewReadStateStore creates an in-memory read-state store wired to a
// fresh change bus, with all migrations applied. The store is closed
// automatically when the test completes.
func NewReadStateStore(t *testing.T) (*readstate.Store, *bus.Bus) {
	t.Helper()

	b := bus.New()
	s, err := readstate.Open(":memory:", b)
	if err != nil {
		t.Fatalf("creating test read-state store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test read-state store: %v", err)
		}
	})

	return s, b
}
