package shell

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionBusy rejects a non-input command issued while another
	// command is still executing; the caller may retry once the session is
	// back in the ready state.
	ErrSessionBusy = errors.New("session busy: a command is already executing")

	// ErrSessionNotReady rejects commands issued before Initialize
	// completed.
	ErrSessionNotReady = errors.New("session not initialized")

	// ErrSessionClosed rejects any use of a closed session; the instance
	// must be rebuilt.
	ErrSessionClosed = errors.New("session closed")
)

// InitError reports that the shell process could not be spawned or never
// produced its first prompt within the startup timeout. The session instance
// is unusable and must be recreated.
type InitError struct {
	Err error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("failed to initialize shell session: %v", e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }
