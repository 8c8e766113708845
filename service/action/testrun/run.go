package testrun

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/viant/gosh/runner"
)

// RunInput defines parameters for a test run
type RunInput struct {
	Dir       string `json:"dir,omitempty" description:"Test directory relative to the workspace; defaults to tests"`
	Pattern   string `json:"pattern,omitempty" description:"pytest -k expression; * runs everything"`
	File      string `json:"file,omitempty" description:"Single test file inside the test directory"`
	Function  string `json:"function,omitempty" description:"Single test function inside file; ignored without file"`
	Verbose   bool   `json:"verbose,omitempty" description:"Run pytest with -v instead of -q"`
	TimeoutMs int    `json:"timeoutMs,omitempty" description:"Run timeout in milliseconds; defaults to 5 minutes"`
}

// RunOutput reports a completed test run
type RunOutput struct {
	Command string `json:"command" description:"Command that was executed"`
	Stdout  string `json:"stdout,omitempty" description:"Combined test output"`
	Status  int    `json:"status" description:"Process exit status"`
	Success bool   `json:"success" description:"Whether the run exited zero"`
	Content string `json:"content,omitempty" description:"Failure description when the run could not start"`
}

const defaultRunTimeout = 5 * time.Minute

// Run executes pytest against the resolved test directory. A missing test
// directory is reported in Content rather than as an error.
func (s *Service) Run(ctx context.Context, input *RunInput, output *RunOutput) error {
	testDir := s.resolveDir(input.Dir)
	if exists, err := s.fs.Exists(ctx, testDir); err == nil && !exists {
		output.Content = fmt.Sprintf("Tests directory not found: %v", testDir)
		output.Status = -1
		return nil
	}

	target := testDir
	if file := strings.TrimSpace(input.File); file != "" {
		path := filepath.Join(testDir, file)
		if exists, err := s.fs.Exists(ctx, path); err == nil && !exists {
			output.Content = fmt.Sprintf("Test file not found: %v", path)
			output.Status = -1
			return nil
		}
		target = path
		if function := strings.TrimSpace(input.Function); function != "" {
			target += "::" + function
		}
	}

	flags := "-q"
	if input.Verbose {
		flags = "-v"
	}
	command := fmt.Sprintf("cd %v && python -m pytest %v %v --tb=short", s.workDir, target, flags)
	if pattern := strings.TrimSpace(input.Pattern); pattern != "" && pattern != "*" {
		command += fmt.Sprintf(" -k %q", pattern)
	}
	output.Command = command

	timeout := time.Duration(input.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = defaultRunTimeout
	}
	session, err := s.getSession(ctx)
	if err != nil {
		output.Content = fmt.Sprintf("Failed to start test runner: %v", err)
		output.Status = -1
		return nil
	}
	stdout, status, err := session.Run(ctx, command, runner.WithTimeout(int(timeout.Milliseconds())))
	output.Stdout = stdout
	output.Status = status
	output.Success = status == 0 && err == nil
	if err != nil && stdout == "" {
		output.Content = fmt.Sprintf("Test run failed: %v", err)
	}
	return nil
}

func (s *Service) resolveDir(dir string) string {
	if dir == "" {
		dir = "tests"
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(s.workDir, dir)
}
