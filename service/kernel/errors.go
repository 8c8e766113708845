package kernel

import (
	"errors"
	"fmt"
)

var (
	// ErrKernelNotReady indicates a cell was submitted before Initialize
	// completed.
	ErrKernelNotReady = errors.New("kernel not ready")
	// ErrKernelBusy indicates a cell was submitted while another one was
	// still executing.
	ErrKernelBusy = errors.New("kernel busy")
	// ErrKernelClosed indicates use after Close.
	ErrKernelClosed = errors.New("kernel closed")
)

// ConfigurationError reports an invalid startup parameter. It is fatal and
// never retried.
type ConfigurationError struct {
	Parameter string
	Value     interface{}
	Reason    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %v: %v (%v)", e.Parameter, e.Value, e.Reason)
}

// StartupError reports that the kernel gateway failed to reach the ready
// state within its startup timeout. The instance is unusable and must be
// recreated.
type StartupError struct {
	Err error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("kernel gateway failed to start: %v", e.Err)
}

func (e *StartupError) Unwrap() error { return e.Err }
