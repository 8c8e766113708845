// Package action defines the closed set of typed requests the execution
// runtime accepts. Every inbound request decodes into exactly one of the
// types below; the dispatch layer switches over the set exhaustively, so a
// new action kind is a compile-time extension rather than a string branch.
package action

// Kind identifies an action type on the wire.
type Kind string

const (
	KindCmdRun    Kind = "run"
	KindRunCell   Kind = "run_ipython"
	KindFileRead  Kind = "read"
	KindFileWrite Kind = "write"
	KindFileEdit  Kind = "edit"
)

// Action is implemented by all request types.
type Action interface {
	Kind() Kind
}

// CmdRun requests execution of a shell command in the workspace session.
type CmdRun struct {
	Command string `json:"command" description:"command text passed to the interactive shell"`
	// IsInput marks the payload as input to the still-running foreground
	// program instead of a new command.
	IsInput    bool `json:"is_input,omitempty" description:"deliver as input to the running program"`
	Blocking   bool `json:"blocking,omitempty" description:"wait the full timeout for completion"`
	TimeoutSec int  `json:"timeout,omitempty" description:"per command timeout in seconds"`
}

func (CmdRun) Kind() Kind { return KindCmdRun }

// RunCell requests execution of a stateful code cell in the workspace kernel.
type RunCell struct {
	Code       string `json:"code" description:"source code of the cell"`
	TimeoutSec int    `json:"timeout,omitempty" description:"per cell timeout in seconds"`
}

func (RunCell) Kind() Kind { return KindRunCell }

// FileRead requests the content of a workspace file.
type FileRead struct {
	Path string `json:"path" description:"absolute or workspace relative path"`
}

func (FileRead) Kind() Kind { return KindFileRead }

// FileWrite replaces the content of a workspace file, creating it if needed.
type FileWrite struct {
	Path    string `json:"path" description:"absolute or workspace relative path"`
	Content string `json:"content" description:"full new file content"`
}

func (FileWrite) Kind() Kind { return KindFileWrite }

// FileEdit applies an in-place edit to a workspace file. Command selects the
// edit flavour: str_replace substitutes OldStr with NewStr, apply_patch
// applies a patch envelope carried in Patch.
type FileEdit struct {
	Path    string `json:"path" description:"absolute or workspace relative path"`
	Command string `json:"command,omitempty" description:"str_replace or apply_patch"`
	OldStr  string `json:"old_str,omitempty" description:"text to replace"`
	NewStr  string `json:"new_str,omitempty" description:"replacement text"`
	Patch   string `json:"patch,omitempty" description:"patch envelope for apply_patch"`
}

func (FileEdit) Kind() Kind { return KindFileEdit }
