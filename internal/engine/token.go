package engine

import "github.com/google/uuid"

// TokenGenerator mints run tokens: the correlation ID stamped on every log
// line, hook payload, and journal row a run produces.
//
// Implemented by UUIDv7Generator (production) and testutil.FixedToken
// (deterministic tests and golden traces).
type TokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run tokens. The embedded
// timestamp makes journal listings sort by creation time with no extra
// column.
//
// Stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7. Panics only if the platform's
// randomness source is broken.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
