package kernel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// LaunchSpec carries the parameters the gateway process is started with.
type LaunchSpec struct {
	WorkDir  string
	Username string
	Port     int
	// LocalMode skips the deployment launch prefix and runs the server
	// directly off the ambient PATH.
	LocalMode bool
}

// Process is a running gateway. Stdout exposes the combined output stream
// used for readiness sniffing; Stop terminates the process.
type Process interface {
	Stdout() io.Reader
	Stop() error
}

// Launcher starts the gateway process. The production launcher shells out;
// tests substitute a fixture that replays a canned startup log.
type Launcher interface {
	Launch(ctx context.Context, spec LaunchSpec) (Process, error)
}

// bashLauncher runs the jupyter server through bash so the launch prefix can
// set up the interpreter environment before exec.
type bashLauncher struct{}

// NewLauncher returns the production gateway launcher.
func NewLauncher() Launcher {
	return &bashLauncher{}
}

func (l *bashLauncher) Launch(ctx context.Context, spec LaunchSpec) (Process, error) {
	script := launchScript(spec)
	cmd := exec.CommandContext(ctx, "/bin/bash", "-c", script)
	cmd.Dir = spec.WorkDir
	cmd.Env = append(os.Environ(), "USER="+spec.Username)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open gateway stdout: %w", err)
	}
	cmd.Stderr = cmd.Stdout
	if err = cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to launch gateway: %w", err)
	}
	return &osProcess{cmd: cmd, stdout: stdout}, nil
}

func launchScript(spec LaunchSpec) string {
	var builder strings.Builder
	if !spec.LocalMode {
		builder.WriteString("cd " + spec.WorkDir + "\n")
	}
	builder.WriteString("exec jupyter server" +
		" --ServerApp.ip=0.0.0.0" +
		" --ServerApp.port=" + strconv.Itoa(spec.Port) +
		` --ServerApp.token="" --ServerApp.password=""` +
		" --ServerApp.disable_check_xsrf=True" +
		` --ServerApp.allow_origin="*"`)
	return builder.String()
}

type osProcess struct {
	cmd    *exec.Cmd
	stdout io.Reader
}

func (p *osProcess) Stdout() io.Reader { return p.stdout }

func (p *osProcess) Stop() error {
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	go func() { _ = p.cmd.Wait() }()
	return nil
}

// awaitReadiness blocks until the gateway's own startup log announces the
// bound endpoint or the timeout elapses. Readiness is decided by fixed
// markers in the log content, never by sleeping and re-probing the network.
func awaitReadiness(ctx context.Context, process Process, port int, timeout time.Duration) error {
	lines := make(chan string, 16)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(process.Stdout())
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		scanErr <- scanner.Err()
		close(lines)
	}()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	marker := strconv.Itoa(port)
	for {
		select {
		case line := <-lines:
			if strings.Contains(line, "http") && strings.Contains(line, marker) {
				// Keep draining so the scanner goroutine never blocks on a
				// full channel once nobody reads startup chatter anymore.
				go func() {
					for range lines {
					}
				}()
				return nil
			}
		case err := <-scanErr:
			if err != nil {
				return fmt.Errorf("gateway log read failed: %w", err)
			}
			return fmt.Errorf("gateway exited before announcing endpoint")
		case <-deadline.C:
			return fmt.Errorf("no readiness marker within %s", timeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
