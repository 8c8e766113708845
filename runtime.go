package runbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/runbox/runbox/internal/clock"
	"github.com/runbox/runbox/internal/idgen"
	"github.com/runbox/runbox/model/action"
	"github.com/runbox/runbox/model/observation"
	"github.com/runbox/runbox/policy"
	"github.com/runbox/runbox/service/action/cell"
	"github.com/runbox/runbox/service/action/cmd"
	"github.com/runbox/runbox/service/action/patch"
	"github.com/runbox/runbox/service/action/storage"
	"github.com/runbox/runbox/service/event"
	"github.com/runbox/runbox/service/kernel"
	"github.com/runbox/runbox/service/shell"
	"github.com/runbox/runbox/tracing"
)

// ErrActionDenied reports a policy rejection before dispatch.
var ErrActionDenied = errors.New("action denied by policy")

// Runtime routes typed actions to the component that handles them. The
// routing is an exhaustive switch over the action sum type, so a new action
// kind fails to compile until it is handled here.
type Runtime struct {
	service *Service
	decoder *action.Decoder

	cmd     *cmd.Service
	cell    *cell.Service
	storage *storage.Service
	patch   *patch.Service
}

func (r *Runtime) bind(service *Service, cmdService *cmd.Service, cellService *cell.Service, storageService *storage.Service, patchService *patch.Service) {
	r.service = service
	r.decoder = action.NewDecoder()
	r.cmd = cmdService
	r.cell = cellService
	r.storage = storageService
	r.patch = patchService
}

// ExecuteEnvelope decodes a wire envelope and executes the resulting action.
func (r *Runtime) ExecuteEnvelope(ctx context.Context, envelope *action.Envelope) (observation.Observation, error) {
	act, err := r.decoder.Decode(envelope)
	if err != nil {
		return nil, err
	}
	return r.ExecuteAction(ctx, act)
}

// ExecuteAction runs one action and returns exactly one observation.
//
// Protocol violations (busy, not ready, closed, invalid configuration,
// policy denial) surface as errors so the caller can map them onto its wire
// format. Any other failure degrades into an error observation and leaves
// the backing session live.
func (r *Runtime) ExecuteAction(ctx context.Context, act action.Action) (observation.Observation, error) {
	if !r.allowed(ctx, act) {
		return nil, fmt.Errorf("%w: %v", ErrActionDenied, act.Kind())
	}
	ctx, span := tracing.StartSpan(ctx, "runtime.ExecuteAction", "SERVER")
	span.WithAttributes(map[string]string{"action": string(act.Kind())})
	started := clock.Now()

	obs, err := r.dispatch(ctx, act)
	if err != nil && !isProtocolError(err) {
		obs = observation.Degraded{
			Content: fmt.Sprintf("Error executing %v action: %v", act.Kind(), err),
			Cause:   err.Error(),
		}
		err = nil
	}
	tracing.EndSpan(span, err)
	if err == nil {
		r.publish(ctx, act, obs, int(clock.Now().Sub(started).Milliseconds()))
	}
	return obs, err
}

func (r *Runtime) dispatch(ctx context.Context, act action.Action) (observation.Observation, error) {
	switch input := act.(type) {
	case action.CmdRun:
		output := &observation.CmdOutput{}
		if err := r.cmd.Run(ctx, &input, output); err != nil {
			return nil, err
		}
		return *output, nil
	case action.RunCell:
		output := &observation.CellOutput{}
		if err := r.cell.Run(ctx, &input, output); err != nil {
			return nil, err
		}
		return *output, nil
	case action.FileRead:
		output := &storage.ReadOutput{}
		if err := r.storage.Read(ctx, &storage.ReadInput{Path: input.Path}, output); err != nil {
			return nil, err
		}
		return observation.FileContent{Content: output.Content, Path: output.Path}, nil
	case action.FileWrite:
		output := &storage.WriteOutput{}
		if err := r.storage.Write(ctx, &storage.WriteInput{Path: input.Path, Content: input.Content}, output); err != nil {
			return nil, err
		}
		return observation.FileWritten{Content: output.Content, Path: output.Path}, nil
	case action.FileEdit:
		output := &patch.EditOutput{}
		editInput := &patch.EditInput{
			Path:    input.Path,
			Command: editCommand(input),
			OldStr:  input.OldStr,
			NewStr:  input.NewStr,
			Patch:   input.Patch,
		}
		if err := r.patch.Edit(ctx, editInput, output); err != nil {
			return nil, err
		}
		return observation.FileEdited{Content: output.Content, Path: output.Path, Diff: output.Diff}, nil
	default:
		return nil, fmt.Errorf("unsupported action type: %T", act)
	}
}

// editCommand keeps bare edits usable: a missing command is inferred from
// which payload field is populated.
func editCommand(input action.FileEdit) string {
	if input.Command != "" {
		return input.Command
	}
	if input.Patch != "" {
		return patch.CommandApplyPatch
	}
	return patch.CommandStrReplace
}

func (r *Runtime) allowed(ctx context.Context, act action.Action) bool {
	gate := policy.FromContext(ctx)
	if gate == nil {
		gate = r.service.policy
	}
	return gate.Allowed(ctx, string(act.Kind()), nil)
}

func (r *Runtime) publish(ctx context.Context, act action.Action, obs observation.Observation, tookMs int) {
	if r.service.events == nil || obs == nil {
		return
	}
	serviceName, methodName := routeOf(act)
	eventContext := &event.Context{
		RequestID:   idgen.New(),
		Action:      string(act.Kind()),
		Service:     serviceName,
		Method:      methodName,
		EventType:   "observation",
		TimeTakenMs: tookMs,
	}
	publisher := event.PublisherOf[observation.Observation](r.service.events)
	publisher.TryPublish(event.NewEvent(eventContext, obs))
}

func routeOf(act action.Action) (service, method string) {
	switch act.(type) {
	case action.CmdRun:
		return cmd.Name, "run"
	case action.RunCell:
		return cell.Name, "run"
	case action.FileRead:
		return storage.Name, "read"
	case action.FileWrite:
		return storage.Name, "write"
	case action.FileEdit:
		return patch.Name, "edit"
	}
	return "", ""
}

func isProtocolError(err error) bool {
	switch {
	case errors.Is(err, shell.ErrSessionBusy),
		errors.Is(err, shell.ErrSessionNotReady),
		errors.Is(err, shell.ErrSessionClosed),
		errors.Is(err, kernel.ErrKernelBusy),
		errors.Is(err, kernel.ErrKernelNotReady),
		errors.Is(err, kernel.ErrKernelClosed),
		errors.Is(err, ErrActionDenied):
		return true
	}
	var configErr *kernel.ConfigurationError
	return errors.As(err, &configErr)
}
