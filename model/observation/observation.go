// Package observation defines the typed results produced by the execution
// runtime. Every action yields exactly one observation; failures on
// predictable environment conditions (missing file, broken cell) are reported
// as descriptive content inside a successful observation rather than as
// errors, so a single bad call never takes the execution surface down.
package observation

// StillRunning is the exit status reported when a command outlives its
// timeout budget; the session keeps executing it and the caller may follow up
// with input-marked commands.
const StillRunning = -1

// Kind identifies an observation type on the wire.
type Kind string

const (
	KindCmdOutput Kind = "run"
	KindCellOut   Kind = "run_ipython"
	KindFileRead  Kind = "read"
	KindFileWrite Kind = "write"
	KindFileEdit  Kind = "edit"
	KindError     Kind = "error"
)

// Observation is implemented by all result types.
type Observation interface {
	Kind() Kind
	Text() string
}

// CmdOutput is the result of one shell command execution.
type CmdOutput struct {
	Content string `json:"content"`
	// ExitCode is the command's exit status, or StillRunning when the
	// timeout elapsed before the shell reported completion.
	ExitCode int `json:"exit_code"`
	// Cwd snapshots the session working directory after completion; empty
	// while the command is still running.
	Cwd       string `json:"cwd,omitempty"`
	Command   string `json:"command,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`
}

func (CmdOutput) Kind() Kind     { return KindCmdOutput }
func (o CmdOutput) Text() string { return o.Content }

// Running reports whether the command was still executing when the
// observation was taken.
func (o CmdOutput) Running() bool { return o.ExitCode == StillRunning }

// CellOutput is the result of one code cell execution.
type CellOutput struct {
	Content string `json:"content"`
	Code    string `json:"code,omitempty"`
	// ImageURLs reference image artifacts extracted from the cell's rich
	// output, in emission order.
	ImageURLs []string `json:"image_urls,omitempty"`
	Truncated bool     `json:"truncated,omitempty"`
}

func (CellOutput) Kind() Kind     { return KindCellOut }
func (o CellOutput) Text() string { return o.Content }

// FileContent is the result of a file read.
type FileContent struct {
	Content string `json:"content"`
	Path    string `json:"path"`
}

func (FileContent) Kind() Kind     { return KindFileRead }
func (o FileContent) Text() string { return o.Content }

// FileWritten is the result of a file write.
type FileWritten struct {
	Content string `json:"content"`
	Path    string `json:"path"`
}

func (FileWritten) Kind() Kind     { return KindFileWrite }
func (o FileWritten) Text() string { return o.Content }

// FileEdited is the result of a file edit; Diff carries a unified diff of the
// applied change when one was produced.
type FileEdited struct {
	Content string `json:"content"`
	Path    string `json:"path"`
	Diff    string `json:"diff,omitempty"`
}

func (FileEdited) Kind() Kind     { return KindFileEdit }
func (o FileEdited) Text() string { return o.Content }

// Degraded wraps an internal failure converted at the dispatch boundary into
// a textual observation; the session stays live for subsequent calls.
type Degraded struct {
	Content string `json:"content"`
	Cause   string `json:"cause,omitempty"`
}

func (Degraded) Kind() Kind     { return KindError }
func (o Degraded) Text() string { return o.Content }
