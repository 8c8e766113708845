// Package testrun invokes the workspace test suite through a local shell
// runner and reports discovered test files. It is independent of the
// interactive shell session so test runs never contend with in-flight
// commands.
package testrun

import (
	"context"
	"reflect"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/gosh"
	"github.com/viant/gosh/runner"
	"github.com/viant/gosh/runner/local"

	"github.com/runbox/runbox/model/types"
)

const Name = "workspace/testrun"

// Service runs and lists workspace tests.
type Service struct {
	workDir string
	fs      afs.Service

	mux     sync.Mutex
	session *gosh.Service
}

// New creates a test runner rooted at workDir.
func New(workDir string) *Service {
	return &Service{workDir: workDir, fs: afs.New()}
}

func (s *Service) Name() string {
	return Name
}

func (s *Service) Methods() types.Signatures {
	return []types.Signature{
		{
			Name:        "run",
			Description: "Runs pytest against the workspace test directory, optionally filtered by -k pattern",
			Input:       reflect.TypeOf(&RunInput{}),
			Output:      reflect.TypeOf(&RunOutput{}),
		},
		{
			Name:        "list",
			Description: "Lists test files and their test functions",
			Input:       reflect.TypeOf(&ListInput{}),
			Output:      reflect.TypeOf(&ListOutput{}),
		},
	}
}

func (s *Service) Method(name string) (types.Executable, error) {
	switch strings.ToLower(name) {
	case "run":
		return s.run, nil
	case "list":
		return s.list, nil
	default:
		return nil, types.NewMethodNotFoundError(name)
	}
}

func (s *Service) run(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*RunInput)
	if !ok {
		return types.NewInvalidInputError(in)
	}
	output, ok := out.(*RunOutput)
	if !ok {
		return types.NewInvalidOutputError(out)
	}
	return s.Run(ctx, input, output)
}

func (s *Service) list(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*ListInput)
	if !ok {
		return types.NewInvalidInputError(in)
	}
	output, ok := out.(*ListOutput)
	if !ok {
		return types.NewInvalidOutputError(out)
	}
	return s.List(ctx, input, output)
}

// getSession lazily creates the local shell runner.
func (s *Service) getSession(ctx context.Context) (*gosh.Service, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.session != nil {
		return s.session, nil
	}
	service, err := gosh.New(ctx, local.New(runner.WithEnvironment(map[string]string{
		"PYTHONUNBUFFERED": "1",
	})))
	if err != nil {
		return nil, err
	}
	s.session = service
	return service, nil
}
