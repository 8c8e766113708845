// Package cmd exposes the interactive shell session through the service
// registry.
package cmd

import (
	"context"
	"reflect"
	"strings"
	"time"

	"github.com/runbox/runbox/model/action"
	"github.com/runbox/runbox/model/observation"
	"github.com/runbox/runbox/model/types"
	"github.com/runbox/runbox/service/shell"
)

const Name = "workspace/cmd"

// Service runs shell commands against the workspace session.
type Service struct {
	session *shell.Session
}

// New creates the command service bound to session.
func New(session *shell.Session) *Service {
	return &Service{session: session}
}

func (s *Service) Name() string {
	return Name
}

func (s *Service) Methods() types.Signatures {
	return []types.Signature{
		{
			Name: "run",
			Description: `Runs one command in the persistent interactive shell.
Set is_input to deliver input (including C-c, C-d, C-z) to a still-running program.
A command that outlives its timeout returns a partial result with exit_code -1 and keeps running.`,
			Input:  reflect.TypeOf(&action.CmdRun{}),
			Output: reflect.TypeOf(&observation.CmdOutput{}),
		},
	}
}

func (s *Service) Method(name string) (types.Executable, error) {
	switch strings.ToLower(name) {
	case "run":
		return s.run, nil
	default:
		return nil, types.NewMethodNotFoundError(name)
	}
}

func (s *Service) run(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*action.CmdRun)
	if !ok {
		return types.NewInvalidInputError(in)
	}
	output, ok := out.(*observation.CmdOutput)
	if !ok {
		return types.NewInvalidOutputError(out)
	}
	return s.Run(ctx, input, output)
}

// Run executes input against the session. Busy, not-ready and closed states
// surface as errors so the caller can map them to protocol responses.
func (s *Service) Run(ctx context.Context, input *action.CmdRun, output *observation.CmdOutput) error {
	result, err := s.session.Execute(ctx, shell.Command{
		Text:     input.Command,
		IsInput:  input.IsInput,
		Blocking: input.Blocking,
		Timeout:  time.Duration(input.TimeoutSec) * time.Second,
	})
	if err != nil {
		return err
	}
	output.Content = result.Output
	output.ExitCode = result.ExitCode
	output.Cwd = result.Cwd
	output.Command = input.Command
	output.Truncated = !result.Completed()
	return nil
}
