// Package idgen issues the session and message identifiers used across the
// service. The generator is a variable so tests get stable values.
package idgen

import "github.com/google/uuid"

// NewFunc produces identifiers; tests replace it for determinism.
var NewFunc = func() string { return uuid.New().String() }

// New returns a fresh unique identifier.
func New() string { return NewFunc() }
