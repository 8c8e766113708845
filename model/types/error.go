package types

import "fmt"

// NewMethodNotFoundError reports a dispatch to an action method the
// registry does not expose.
func NewMethodNotFoundError(name string) error {
	return fmt.Errorf("method %v not found", name)
}

// NewInvalidInputError reports an input payload of an unexpected type.
func NewInvalidInputError(in interface{}) error {
	return fmt.Errorf("invalid input %T", in)
}

// NewInvalidOutputError reports an output holder of an unexpected type.
func NewInvalidOutputError(in interface{}) error {
	return fmt.Errorf("invalid output %T", in)
}
