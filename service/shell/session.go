// Package shell owns one interactive bash process bound to a workspace
// directory and detects command completion through a prompt-sentinel
// protocol. The session runs the shell under a pseudo terminal so that
// control keys reach the foreground process group, executes one command at a
// time and keeps track of the cumulative working directory and last exit
// status across commands.
package shell

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/runbox/runbox/internal/idgen"
	"github.com/runbox/runbox/model/observation"
)

// State identifies the session lifecycle phase.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateReady         State = "ready"
	StateExecuting     State = "executing"
	StateClosed        State = "closed"
)

const (
	// DefaultStartupTimeout bounds the wait for the first sentinel after
	// spawning the shell process.
	DefaultStartupTimeout = 10 * time.Second
	// DefaultCommandTimeout applies when a command carries no timeout
	// budget of its own.
	DefaultCommandTimeout = 30 * time.Second
	// DefaultQuietWindow is how long a non-blocking command may go without
	// producing output before a partial result is returned.
	DefaultQuietWindow = 2 * time.Second

	readBufferSize = 4096
)

// Control keys accepted as input-marked commands and translated into the
// corresponding terminal control bytes.
var controlKeys = map[string]byte{
	"C-c": 0x03,
	"C-d": 0x04,
	"C-z": 0x1a,
}

// Command is a single command execution request.
type Command struct {
	Text string
	// IsInput delivers Text to the still-running foreground program
	// instead of starting a new sentinel cycle.
	IsInput bool
	// Blocking waits the full timeout for completion; when false the
	// session returns a partial result once output goes quiet.
	Blocking bool
	Timeout  time.Duration
}

// Result is the outcome of one command execution. ExitCode is
// observation.StillRunning when the timeout elapsed first; Cwd is only
// populated once the command completed.
type Result struct {
	Output   string
	ExitCode int
	Cwd      string
}

// Completed reports whether the shell confirmed command completion.
func (r *Result) Completed() bool { return r.ExitCode != observation.StillRunning }

// Option customises a session.
type Option func(*Session)

// WithShell overrides the shell binary (default /bin/bash).
func WithShell(path string) Option {
	return func(s *Session) { s.shellPath = path }
}

// WithStartupTimeout overrides the Initialize deadline.
func WithStartupTimeout(timeout time.Duration) Option {
	return func(s *Session) { s.startupTimeout = timeout }
}

// WithDefaultTimeout overrides the per-command default budget.
func WithDefaultTimeout(timeout time.Duration) Option {
	return func(s *Session) { s.defaultTimeout = timeout }
}

// WithQuietWindow overrides the non-blocking quiet window.
func WithQuietWindow(window time.Duration) Option {
	return func(s *Session) { s.quietWindow = window }
}

// Session is one live shell process. All methods are safe for concurrent
// use; a second command issued while one is executing fails fast with
// ErrSessionBusy instead of corrupting sentinel tracking.
type Session struct {
	workDir  string
	username string

	shellPath      string
	startupTimeout time.Duration
	defaultTimeout time.Duration
	quietWindow    time.Duration

	prompt *prompt

	// execMux serialises execute/close; TryLock gives the fail-fast busy
	// semantics required by the single outstanding operation contract.
	execMux sync.Mutex

	mux      sync.RWMutex
	state    State
	cwd      string
	lastExit int

	cmd    *exec.Cmd
	ptmx   *os.File
	chunks chan []byte
	// residual holds bytes read past the previous sentinel.
	residual string
}

// New creates a session bound to workDir acting as username. The shell
// process is not spawned until Initialize.
func New(workDir, username string, options ...Option) *Session {
	s := &Session{
		workDir:        workDir,
		username:       username,
		shellPath:      "/bin/bash",
		startupTimeout: DefaultStartupTimeout,
		defaultTimeout: DefaultCommandTimeout,
		quietWindow:    DefaultQuietWindow,
		prompt:         newPrompt("RBX-" + idgen.New()[:8]),
		state:          StateUninitialized,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Initialize spawns the shell process, installs the sentinel prompt and
// waits for the first completion marker. It fails with *InitError when the
// process cannot be spawned or the sentinel never appears within the startup
// timeout.
func (s *Session) Initialize(ctx context.Context) error {
	s.execMux.Lock()
	defer s.execMux.Unlock()

	switch s.State() {
	case StateClosed:
		return ErrSessionClosed
	case StateReady, StateExecuting:
		return fmt.Errorf("session already initialized")
	}
	if err := os.MkdirAll(s.workDir, 0o755); err != nil {
		return &InitError{Err: fmt.Errorf("failed to create workspace %v: %w", s.workDir, err)}
	}

	cmd := exec.Command(s.shellPath, "--norc", "--noprofile", "-i")
	cmd.Dir = s.workDir
	cmd.Env = append(os.Environ(), "TERM=dumb", "USER="+s.username)
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return &InitError{Err: fmt.Errorf("failed to spawn %v: %w", s.shellPath, err)}
	}
	s.cmd = cmd
	s.ptmx = ptmx
	s.chunks = make(chan []byte, 64)
	go s.pump()

	// stty -echo keeps command echo out of captured output, -onlcr stops
	// the pty from rewriting \n as \r\n.
	setup := s.prompt.setupCommand() + "; stty -echo -onlcr 2>/dev/null\n"
	if _, err = ptmx.WriteString(setup); err != nil {
		s.teardown()
		return &InitError{Err: fmt.Errorf("failed to configure prompt: %w", err)}
	}

	result, err := s.awaitSentinel(ctx, s.startupTimeout, true)
	if err != nil {
		s.teardown()
		return &InitError{Err: err}
	}
	if !result.Completed() {
		s.teardown()
		return &InitError{Err: fmt.Errorf("no prompt within %s", s.startupTimeout)}
	}
	s.setState(StateReady)
	s.setCwd(result.Cwd)
	return nil
}

// Execute runs one command and returns its result. Non-input commands are
// only legal in the ready state; input-marked commands are additionally
// legal while a previous command is still executing, which is how callers
// deliver follow-up input (including control keys) to a long-running
// program.
func (s *Session) Execute(ctx context.Context, command Command) (*Result, error) {
	if !s.execMux.TryLock() {
		return nil, ErrSessionBusy
	}
	defer s.execMux.Unlock()

	switch s.State() {
	case StateClosed:
		return nil, ErrSessionClosed
	case StateUninitialized:
		return nil, ErrSessionNotReady
	case StateExecuting:
		if !command.IsInput {
			return nil, ErrSessionBusy
		}
	}

	timeout := command.Timeout
	if timeout <= 0 {
		timeout = s.defaultTimeout
	}

	if command.IsInput {
		if err := s.writeInput(command.Text); err != nil {
			return nil, err
		}
	} else {
		if _, err := s.ptmx.WriteString(command.Text + "\n"); err != nil {
			return nil, fmt.Errorf("failed to write command: %w", err)
		}
		s.setState(StateExecuting)
	}

	result, err := s.awaitSentinel(ctx, timeout, command.Blocking)
	if err != nil {
		return nil, err
	}
	if result.Completed() {
		s.setState(StateReady)
		s.setCwd(result.Cwd)
		s.setLastExit(result.ExitCode)
	}
	return result, nil
}

// writeInput delivers raw input to the foreground program; recognised
// control keys become single control bytes, everything else is sent as a
// line.
func (s *Session) writeInput(text string) error {
	var payload []byte
	if b, ok := controlKeys[strings.TrimSpace(text)]; ok {
		payload = []byte{b}
	} else {
		payload = []byte(text + "\n")
	}
	if _, err := s.ptmx.Write(payload); err != nil {
		return fmt.Errorf("failed to write input: %w", err)
	}
	return nil
}

// awaitSentinel accumulates process output until the completion sentinel
// arrives or the deadline passes. On timeout the captured output is returned
// with a still-running status instead of an error; the command keeps
// executing and the session stays in the executing state.
func (s *Session) awaitSentinel(ctx context.Context, timeout time.Duration, blocking bool) (*Result, error) {
	buffer := s.residual
	s.residual = ""

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	var quiet *time.Timer
	var quietC <-chan time.Time
	if !blocking {
		quiet = time.NewTimer(s.quietWindow)
		defer quiet.Stop()
		quietC = quiet.C
	}

	for {
		if output, done, rest, ok := s.prompt.scan(buffer); ok {
			s.residual = rest
			return &Result{Output: normalize(output), ExitCode: done.exitCode, Cwd: done.cwd}, nil
		}
		select {
		case chunk, open := <-s.chunks:
			if !open {
				if s.State() == StateClosed {
					return nil, ErrSessionClosed
				}
				s.teardown()
				return nil, fmt.Errorf("shell process exited unexpectedly")
			}
			buffer += string(chunk)
			if quiet != nil {
				if !quiet.Stop() {
					select {
					case <-quiet.C:
					default:
					}
				}
				quiet.Reset(s.quietWindow)
			}
		case <-deadline.C:
			return s.partial(buffer), nil
		case <-quietC:
			return s.partial(buffer), nil
		case <-ctx.Done():
			return s.partial(buffer), nil
		}
	}
}

// partial snapshots the output captured so far for a command that is still
// running. Any partially received sentinel stays in residual so the next
// await can still detect the completion when its tail arrives.
func (s *Session) partial(buffer string) *Result {
	output, pending := s.prompt.splitIncomplete(buffer)
	s.residual = pending
	return &Result{
		Output:   normalize(output),
		ExitCode: observation.StillRunning,
	}
}

// pump is the single reader goroutine; it owns the pty master for reads and
// closes the chunk channel when the stream ends, which is also how Close
// unblocks an in-flight await.
func (s *Session) pump() {
	defer close(s.chunks)
	buf := make([]byte, readBufferSize)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.chunks <- chunk
		}
		if err != nil {
			return
		}
	}
}

// Close terminates the shell process and releases the pty. It is idempotent
// and safe to call from a shutdown path even when the session was never
// initialized.
func (s *Session) Close() error {
	s.mux.Lock()
	if s.state == StateClosed {
		s.mux.Unlock()
		return nil
	}
	s.state = StateClosed
	s.mux.Unlock()
	s.teardownLocked()
	return nil
}

func (s *Session) teardown() {
	s.setState(StateClosed)
	s.teardownLocked()
}

func (s *Session) teardownLocked() {
	if s.ptmx != nil {
		_ = s.ptmx.Close()
	}
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		go func(cmd *exec.Cmd) { _ = cmd.Wait() }(s.cmd)
	}
}

// Cwd returns the working directory observed after the last completed
// command; it is undefined while a command is executing.
func (s *Session) Cwd() string {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.cwd
}

// LastExitCode returns the exit status of the last completed command.
func (s *Session) LastExitCode() int {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.lastExit
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.state
}

// Initialized reports whether the session is usable.
func (s *Session) Initialized() bool {
	state := s.State()
	return state == StateReady || state == StateExecuting
}

// Username returns the acting user identity the session was created with.
func (s *Session) Username() string { return s.username }

func (s *Session) setState(state State) {
	s.mux.Lock()
	s.state = state
	s.mux.Unlock()
}

func (s *Session) setCwd(cwd string) {
	s.mux.Lock()
	s.cwd = cwd
	s.mux.Unlock()
}

func (s *Session) setLastExit(code int) {
	s.mux.Lock()
	s.lastExit = code
	s.mux.Unlock()
}

// normalize strips pty carriage returns from captured output.
func normalize(output string) string {
	output = strings.ReplaceAll(output, "\r\n", "\n")
	return strings.ReplaceAll(output, "\r", "\n")
}
