package action

import (
	"fmt"

	"github.com/viant/structology/conv"
)

// Envelope is the generic wire form of an action: a kind tag plus an untyped
// argument map, e.g. {"action": "run", "args": {"command": "ls"}}.
type Envelope struct {
	Action string                 `json:"action"`
	Args   map[string]interface{} `json:"args"`
}

// Decoder converts action envelopes into their typed counterparts.
type Decoder struct {
	converter *conv.Converter
}

// NewDecoder returns a decoder with the converter configured the same way the
// dispatch layer converts typed service inputs.
func NewDecoder() *Decoder {
	options := conv.DefaultOptions()
	options.ClonePointerData = true
	options.IgnoreUnmapped = true
	return &Decoder{converter: conv.NewConverter(options)}
}

// Decode maps an envelope onto the action type selected by its kind tag.
func (d *Decoder) Decode(envelope *Envelope) (Action, error) {
	if envelope == nil {
		return nil, fmt.Errorf("action envelope was empty")
	}
	var target Action
	switch Kind(envelope.Action) {
	case KindCmdRun:
		target = &CmdRun{}
	case KindRunCell:
		target = &RunCell{}
	case KindFileRead:
		target = &FileRead{}
	case KindFileWrite:
		target = &FileWrite{}
	case KindFileEdit:
		target = &FileEdit{}
	default:
		return nil, fmt.Errorf("unsupported action type: %q", envelope.Action)
	}
	if len(envelope.Args) > 0 {
		if err := d.converter.Convert(envelope.Args, target); err != nil {
			return nil, fmt.Errorf("failed to decode %q action: %w", envelope.Action, err)
		}
	}
	return deref(target), nil
}

func deref(a Action) Action {
	switch actual := a.(type) {
	case *CmdRun:
		return *actual
	case *RunCell:
		return *actual
	case *FileRead:
		return *actual
	case *FileWrite:
		return *actual
	case *FileEdit:
		return *actual
	}
	return a
}
