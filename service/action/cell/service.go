// Package cell exposes the kernel execution client through the service
// registry.
package cell

import (
	"context"
	"reflect"
	"strings"
	"time"

	"github.com/runbox/runbox/model/action"
	"github.com/runbox/runbox/model/observation"
	"github.com/runbox/runbox/model/types"
	"github.com/runbox/runbox/service/kernel"
)

const Name = "workspace/cell"

// Service runs stateful code cells against the workspace kernel.
type Service struct {
	client *kernel.Client
}

// New creates the cell service bound to client.
func New(client *kernel.Client) *Service {
	return &Service{client: client}
}

func (s *Service) Name() string {
	return Name
}

func (s *Service) Methods() types.Signatures {
	return []types.Signature{
		{
			Name: "run",
			Description: `Runs one code cell in the persistent kernel session.
Variables persist across cells. Rich image output is extracted into image_urls.
A cell that outlives its timeout returns a partial transcript marked truncated.`,
			Input:  reflect.TypeOf(&action.RunCell{}),
			Output: reflect.TypeOf(&observation.CellOutput{}),
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
	input, ok := in.(*action.RunCell)
	if !ok {
		return types.NewInvalidInputError(in)
	}
	output, ok := out.(*observation.CellOutput)
	if !ok {
		return types.NewInvalidOutputError(out)
	}
	return s.Run(ctx, input, output)
}

// Run executes input against the kernel. Degraded executions (connection
// loss, malformed responses) come back as textual content; busy, not-ready
// and closed states surface as errors.
func (s *Service) Run(ctx context.Context, input *action.RunCell, output *observation.CellOutput) error {
	result, err := s.client.Run(ctx, kernel.Cell{
		Code:    input.Code,
		Timeout: time.Duration(input.TimeoutSec) * time.Second,
	})
	if err != nil {
		return err
	}
	output.Content = result.Transcript
	output.Code = input.Code
	output.ImageURLs = result.Images
	output.Truncated = result.Truncated
	return nil
}
