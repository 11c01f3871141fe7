package idgen

import (
	"time"

	"github.com/google/uuid"
)

// NewFunc returns a unique identifier that sorts lexically by creation time.
// Layout: <UTC timestamp with nanoseconds>-<8 uuid chars>. The timestamp
// prefix keeps ids ordered by creation; the uuid suffix keeps concurrent
// producers collision-free. Override in tests for determinism.
var NewFunc = func(t time.Time) string {
	return t.UTC().Format("20060102T150405.000000000") + "-" + uuid.New().String()[:8]
}

// New returns an identifier for an entity created at t.
func New(t time.Time) string { return NewFunc(t) }
