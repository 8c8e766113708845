package types

import (
	"context"
	"reflect"
)

type Signatures []Signature

func (s Signatures) Lookup(name string) *Signature {
	for i := range s {
		sig := &s[i]
		if sig.Name == name {
			return sig
		}
	}
	return nil
}

// Signature describes a single service method together with its typed
// input/output contract.
type Signature struct {
	Name        string
	Description string
	Internal    bool
	Input       reflect.Type
	Output      reflect.Type
}

// Executable is an invokable service method; input and output must match the
// reflect types declared by the corresponding Signature.
type Executable func(ctx context.Context, input, output interface{}) error
