// Package storage provides workspace file read/write operations. Predictable
// environment conditions (missing file, directory instead of file, permission
// denied) are reported as descriptive content inside a successful result
// rather than as errors.
package storage

import (
	"context"
	"reflect"
	"strings"

	"github.com/viant/afs"

	"github.com/runbox/runbox/model/types"
)

const Name = "workspace/storage"

// Service provides workspace file operations using viant/afs.
type Service struct {
	fs afs.Service
	// cwd resolves relative paths against the live shell working
	// directory.
	cwd func() string
}

// New creates a storage service; cwd supplies the directory relative paths
// resolve against.
func New(cwd func() string) *Service {
	return &Service{fs: afs.New(), cwd: cwd}
}

// Name returns the service name
func (s *Service) Name() string {
	return Name
}

// Methods returns the service methods
func (s *Service) Methods() types.Signatures {
	return []types.Signature{
		{
			Name:        "read",
			Description: "Reads a workspace file; relative paths resolve against the shell working directory",
			Input:       reflect.TypeOf(&ReadInput{}),
			Output:      reflect.TypeOf(&ReadOutput{}),
		},
		{
			Name:        "write",
			Description: "Writes content to a workspace file, creating parent directories as needed",
			Input:       reflect.TypeOf(&WriteInput{}),
			Output:      reflect.TypeOf(&WriteOutput{}),
		},
	}
}

// Method returns the specified method
func (s *Service) Method(name string) (types.Executable, error) {
	switch strings.ToLower(name) {
	case "read":
		return s.read, nil
	case "write":
		return s.write, nil
	default:
		return nil, types.NewMethodNotFoundError(name)
	}
}

func (s *Service) read(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*ReadInput)
	if !ok {
		return types.NewInvalidInputError(in)
	}
	output, ok := out.(*ReadOutput)
	if !ok {
		return types.NewInvalidOutputError(out)
	}
	return s.Read(ctx, input, output)
}

func (s *Service) write(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*WriteInput)
	if !ok {
		return types.NewInvalidInputError(in)
	}
	output, ok := out.(*WriteOutput)
	if !ok {
		return types.NewInvalidOutputError(out)
	}
	return s.Write(ctx, input, output)
}
