// Package kernel drives a remote Jupyter kernel gateway: it launches the
// gateway process, establishes readiness by sniffing the process startup log,
// and executes stateful code cells over the gateway's websocket channel,
// demultiplexing streamed text and rich image output into ordered results.
package kernel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// State identifies the client lifecycle phase.
type State string

const (
	StateNotLaunched State = "not_launched"
	StateLaunching   State = "launching"
	StateReady       State = "ready"
	StateExecuting   State = "executing"
	StateFailed      State = "failed"
	StateClosed      State = "closed"
)

const (
	// DefaultStartupTimeout bounds gateway launch plus the first probe
	// cell.
	DefaultStartupTimeout = 60 * time.Second
	// DefaultCellTimeout applies when a cell carries no timeout of its
	// own.
	DefaultCellTimeout = 30 * time.Second

	minPort = 1024
	maxPort = 65535

	probeCell = "import sys; print(sys.executable)"

	truncationMarker = "[Execution timed out: output above is partial]"
)

// Cell is one code submission.
type Cell struct {
	Code    string
	Timeout time.Duration
}

// CellResult is the outcome of one cell execution. Transcript interleaves
// stdout/stderr in emission order; Images lists produced artifacts in
// emission order. Truncated marks a timeout-bounded partial result and
// Diagnostic a degraded result produced from a lower-level failure.
type CellResult struct {
	Transcript string
	Images     []string
	Truncated  bool
	Diagnostic string
}

// Degraded reports whether the result stands in for a failed execution
// rather than kernel output.
func (r *CellResult) Degraded() bool { return r.Diagnostic != "" }

// Option customises a client.
type Option func(*Client)

// WithLauncher substitutes the gateway launcher; tests use a fixture that
// replays a canned startup log.
func WithLauncher(launcher Launcher) Option {
	return func(c *Client) { c.launcher = launcher }
}

// WithStartupTimeout overrides the Initialize deadline.
func WithStartupTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.startupTimeout = timeout }
}

// WithDefaultTimeout overrides the per-cell default budget.
func WithDefaultTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = timeout }
}

// WithLocalMode marks a local development deployment, which only changes the
// gateway launch prefix.
func WithLocalMode(local bool) Option {
	return func(c *Client) { c.localMode = local }
}

// Client owns one kernel gateway process and one kernel session. Cell
// executions are serialised; a cell submitted while another is in flight
// fails fast with ErrKernelBusy.
type Client struct {
	workDir  string
	username string
	host     string
	port     int

	localMode      bool
	launcher       Launcher
	startupTimeout time.Duration
	defaultTimeout time.Duration

	httpClient *http.Client
	dialer     *websocket.Dialer
	artifacts  *artifactStore

	execMux sync.Mutex

	mux             sync.RWMutex
	state           State
	interpreterPath string

	process   Process
	kernelID  string
	sessionID string

	// connMux guards conn against a concurrent Close, which interrupts an
	// in-flight execute by closing the socket under it.
	connMux sync.Mutex
	conn    *websocket.Conn
}

// New creates a client bound to workDir that will launch its gateway on
// port. Nothing is spawned until Initialize.
func New(workDir string, port int, options ...Option) *Client {
	c := &Client{
		workDir:        workDir,
		host:           "localhost",
		port:           port,
		launcher:       NewLauncher(),
		startupTimeout: DefaultStartupTimeout,
		defaultTimeout: DefaultCellTimeout,
		httpClient:     &http.Client{Timeout: 15 * time.Second},
		dialer:         websocket.DefaultDialer,
		artifacts:      newArtifactStore(workDir),
		sessionID:      uuid.New().String(),
		state:          StateNotLaunched,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Initialize launches the gateway, waits for its startup log to announce the
// bound endpoint, then runs one probe cell over the network to confirm the
// execution path before declaring readiness.
func (c *Client) Initialize(ctx context.Context, username string) error {
	c.execMux.Lock()
	defer c.execMux.Unlock()

	switch c.State() {
	case StateClosed:
		return ErrKernelClosed
	case StateReady, StateExecuting:
		return fmt.Errorf("kernel already initialized")
	}
	if c.port < minPort || c.port > maxPort {
		return &ConfigurationError{Parameter: "kernel port", Value: c.port, Reason: fmt.Sprintf("must be between %d and %d", minPort, maxPort)}
	}
	c.username = username
	c.setState(StateLaunching)

	process, err := c.launcher.Launch(ctx, LaunchSpec{
		WorkDir:   c.workDir,
		Username:  username,
		Port:      c.port,
		LocalMode: c.localMode,
	})
	if err != nil {
		c.setState(StateFailed)
		return &StartupError{Err: err}
	}
	c.process = process

	if err = awaitReadiness(ctx, process, c.port, c.startupTimeout); err != nil {
		c.fail()
		return &StartupError{Err: err}
	}

	result, err := c.execute(ctx, probeCell, c.startupTimeout)
	if err != nil || result.Degraded() || result.Truncated {
		c.fail()
		if err == nil {
			err = fmt.Errorf("probe cell did not complete: %v", result.Diagnostic)
		}
		return &StartupError{Err: fmt.Errorf("probe failed: %w", err)}
	}
	c.mux.Lock()
	c.interpreterPath = strings.TrimSpace(result.Transcript)
	c.state = StateReady
	c.mux.Unlock()
	return nil
}

// Run executes one code cell. Lower-level failures (connection loss,
// malformed responses) degrade into a diagnostic result instead of an error
// so a single broken call does not take down the execution surface; protocol
// violations (busy, not ready, closed) are errors.
func (c *Client) Run(ctx context.Context, cell Cell) (*CellResult, error) {
	if !c.execMux.TryLock() {
		return nil, ErrKernelBusy
	}
	defer c.execMux.Unlock()

	switch c.State() {
	case StateClosed:
		return nil, ErrKernelClosed
	case StateNotLaunched, StateLaunching, StateFailed:
		return nil, ErrKernelNotReady
	}

	timeout := cell.Timeout
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}
	c.setState(StateExecuting)
	result, err := c.execute(ctx, cell.Code, timeout)
	c.settle()
	if c.State() == StateClosed {
		return nil, ErrKernelClosed
	}
	if err != nil {
		// The connection was dropped; the next execute reconnects lazily,
		// so the kernel stays usable after a degraded call.
		diagnostic := fmt.Sprintf("Error executing code: %v", err)
		return &CellResult{Diagnostic: diagnostic, Transcript: diagnostic}, nil
	}
	return result, nil
}

// settle returns an executing client to ready; terminal states are left
// untouched.
func (c *Client) settle() {
	c.mux.Lock()
	if c.state == StateExecuting {
		c.state = StateReady
	}
	c.mux.Unlock()
}

// execute submits code over the websocket channel and demultiplexes the
// response stream until the kernel reports both the execute reply and an
// idle status, or the timeout elapses.
func (c *Client) execute(ctx context.Context, code string, timeout time.Duration) (*CellResult, error) {
	conn, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	request := newExecuteRequest(c.sessionID, code)
	if err := conn.WriteJSON(request); err != nil {
		c.dropConn()
		return nil, fmt.Errorf("failed to submit cell: %w", err)
	}

	deadline := time.Now().Add(timeout)
	result := &CellResult{}
	var transcript strings.Builder
	gotReply, gotIdle := false, false

	for !(gotReply && gotIdle) {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			result.Transcript = appendMarker(transcript.String())
			result.Truncated = true
			return result, nil
		}
		_ = conn.SetReadDeadline(time.Now().Add(remaining))
		var message wireMessage
		if err := conn.ReadJSON(&message); err != nil {
			if isTimeout(err) {
				result.Transcript = appendMarker(transcript.String())
				result.Truncated = true
				return result, nil
			}
			c.dropConn()
			return nil, fmt.Errorf("kernel channel read failed: %w", err)
		}
		if !message.parentOf(request.Header.MsgID) {
			continue
		}
		switch message.Header.MsgType {
		case "stream":
			transcript.WriteString(message.contentString("text"))
		case "execute_result", "display_data":
			c.collectRich(ctx, &message, &transcript, result)
		case "error":
			transcript.WriteString(formatTraceback(&message))
		case "execute_reply":
			gotReply = true
		case "status":
			if message.contentString("execution_state") == "idle" {
				gotIdle = true
			}
		}
	}
	result.Transcript = transcript.String()
	return result, nil
}

// collectRich splits a rich display payload into its text and image parts,
// preserving emission order between the transcript and the image list.
func (c *Client) collectRich(ctx context.Context, message *wireMessage, transcript *strings.Builder, result *CellResult) {
	bundle := message.mimeBundle()
	if bundle == nil {
		return
	}
	if text, ok := bundle["text/plain"].(string); ok {
		transcript.WriteString(text)
		if !strings.HasSuffix(text, "\n") {
			transcript.WriteString("\n")
		}
	}
	if encoded, ok := bundle["image/png"].(string); ok {
		url, err := c.artifacts.SavePNG(ctx, encoded)
		if err != nil {
			// keep the artifact inline rather than losing it
			url = "data:image/png;base64," + encoded
		}
		result.Images = append(result.Images, url)
	}
}

// connect lazily creates the kernel and opens its websocket channel,
// returning the live connection for the caller to use directly.
func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	c.connMux.Lock()
	defer c.connMux.Unlock()
	if c.conn != nil {
		return c.conn, nil
	}
	if c.kernelID == "" {
		id, err := c.startKernel(ctx)
		if err != nil {
			return nil, err
		}
		c.kernelID = id
	}
	endpoint := fmt.Sprintf("ws://%s:%d/api/kernels/%s/channels", c.host, c.port, c.kernelID)
	conn, _, err := c.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open kernel channel: %w", err)
	}
	c.conn = conn
	return conn, nil
}

// startKernel asks the gateway for a fresh python kernel.
func (c *Client) startKernel(ctx context.Context) (string, error) {
	endpoint := fmt.Sprintf("http://%s:%d/api/kernels", c.host, c.port)
	body, _ := json.Marshal(map[string]string{"name": "python3"})
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	request.Header.Set("Content-Type", "application/json")
	response, err := c.httpClient.Do(request)
	if err != nil {
		return "", fmt.Errorf("failed to start kernel: %w", err)
	}
	defer func() { _ = response.Body.Close() }()
	if response.StatusCode != http.StatusCreated && response.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(response.Body)
		return "", fmt.Errorf("kernel start rejected: %v %s", response.StatusCode, payload)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err = json.NewDecoder(response.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("malformed kernel start response: %w", err)
	}
	return created.ID, nil
}

func (c *Client) dropConn() {
	c.connMux.Lock()
	defer c.connMux.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// Close terminates the kernel session and the gateway process. Idempotent
// and safe to call even when Initialize never ran or failed partway.
func (c *Client) Close() error {
	c.mux.Lock()
	if c.state == StateClosed {
		c.mux.Unlock()
		return nil
	}
	c.state = StateClosed
	c.mux.Unlock()
	c.dropConn()
	if c.process != nil {
		_ = c.process.Stop()
	}
	return nil
}

func (c *Client) fail() {
	c.setState(StateFailed)
	c.dropConn()
	if c.process != nil {
		_ = c.process.Stop()
		c.process = nil
	}
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mux.RLock()
	defer c.mux.RUnlock()
	return c.state
}

// Ready reports whether cells are currently accepted.
func (c *Client) Ready() bool {
	state := c.State()
	return state == StateReady || state == StateExecuting
}

// InterpreterPath returns the interpreter location resolved by the readiness
// probe; empty until Initialize succeeds.
func (c *Client) InterpreterPath() string {
	c.mux.RLock()
	defer c.mux.RUnlock()
	return c.interpreterPath
}

// Port returns the configured gateway port.
func (c *Client) Port() int { return c.port }

func (c *Client) setState(state State) {
	c.mux.Lock()
	c.state = state
	c.mux.Unlock()
}

func appendMarker(transcript string) string {
	if transcript != "" && !strings.HasSuffix(transcript, "\n") {
		transcript += "\n"
	}
	return transcript + truncationMarker
}

func formatTraceback(message *wireMessage) string {
	if traceback, ok := message.Content["traceback"].([]interface{}); ok {
		var lines []string
		for _, item := range traceback {
			if line, ok := item.(string); ok {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			return strings.Join(lines, "\n") + "\n"
		}
	}
	return fmt.Sprintf("%v: %v\n", message.contentString("ename"), message.contentString("evalue"))
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
