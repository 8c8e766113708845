package runbox

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runbox/runbox/model/action"
	"github.com/runbox/runbox/model/observation"
	"github.com/runbox/runbox/policy"
	"github.com/runbox/runbox/service/shell"
)

func newTestService(t *testing.T, options ...Option) *Service {
	t.Helper()
	if _, err := os.Stat("/bin/bash"); err != nil {
		t.Skip("bash not available")
	}
	config := DefaultConfig()
	config.WorkDir = t.TempDir()
	config.Username = "tester"
	srv := New(append([]Option{WithConfig(config)}, options...)...)
	require.NoError(t, srv.Initialize(context.Background()))
	t.Cleanup(srv.Shutdown)
	return srv
}

func TestService_Registry(t *testing.T) {
	srv := newTestService(t)
	names := srv.Actions().Services()
	assert.Contains(t, names, "workspace/cmd")
	assert.Contains(t, names, "workspace/cell")
	assert.Contains(t, names, "workspace/storage")
	assert.Contains(t, names, "workspace/patch")
	assert.Contains(t, names, "workspace/testrun")
	assert.Contains(t, names, "system/stats")
}

func TestService_PluginStatus(t *testing.T) {
	srv := newTestService(t)
	statuses := srv.Plugins().Status()
	require.Len(t, statuses, 2)
	assert.Equal(t, "jupyter", statuses[0].Name)
	assert.False(t, statuses[0].Ready)
	assert.Equal(t, "agent-skills", statuses[1].Name)
	assert.True(t, statuses[1].Ready)
}

func TestRuntime_ExecuteCmdRun(t *testing.T) {
	srv := newTestService(t)
	obs, err := srv.Runtime().ExecuteAction(context.Background(), action.CmdRun{Command: "echo hi", Blocking: true, TimeoutSec: 10})
	require.NoError(t, err)
	output, ok := obs.(observation.CmdOutput)
	require.True(t, ok)
	assert.Equal(t, "hi\n", output.Content)
	assert.Equal(t, 0, output.ExitCode)
	assert.Equal(t, srv.Session().Cwd(), output.Cwd)
}

func TestRuntime_FileRoundTrip(t *testing.T) {
	srv := newTestService(t)
	ctx := context.Background()

	obs, err := srv.Runtime().ExecuteAction(ctx, action.FileWrite{Path: "note.txt", Content: "hello world\n"})
	require.NoError(t, err)
	written, ok := obs.(observation.FileWritten)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(srv.Config().WorkDir, "note.txt"), written.Path)

	obs, err = srv.Runtime().ExecuteAction(ctx, action.FileRead{Path: "note.txt"})
	require.NoError(t, err)
	content, ok := obs.(observation.FileContent)
	require.True(t, ok)
	assert.Equal(t, "hello world\n", content.Content)

	obs, err = srv.Runtime().ExecuteAction(ctx, action.FileEdit{Path: "note.txt", OldStr: "hello", NewStr: "goodbye"})
	require.NoError(t, err)
	edited, ok := obs.(observation.FileEdited)
	require.True(t, ok)
	assert.NotEmpty(t, edited.Diff)

	obs, err = srv.Runtime().ExecuteAction(ctx, action.FileRead{Path: "note.txt"})
	require.NoError(t, err)
	assert.Equal(t, "goodbye world\n", obs.Text())
}

func TestRuntime_ReadMissingFileDegradesSoftly(t *testing.T) {
	srv := newTestService(t)
	obs, err := srv.Runtime().ExecuteAction(context.Background(), action.FileRead{Path: "absent.txt"})
	require.NoError(t, err)
	assert.Contains(t, obs.Text(), "File not found")
	assert.Contains(t, obs.Text(), "current working directory")
}

func TestRuntime_PolicyDenied(t *testing.T) {
	gate := &policy.Policy{BlockList: []string{"run"}}
	srv := newTestService(t, WithPolicy(gate))
	ctx := context.Background()

	_, err := srv.Runtime().ExecuteAction(ctx, action.CmdRun{Command: "echo hi"})
	require.ErrorIs(t, err, ErrActionDenied)

	obs, err := srv.Runtime().ExecuteAction(ctx, action.FileRead{Path: "absent.txt"})
	require.NoError(t, err)
	assert.NotNil(t, obs)
}

func TestRuntime_CellBeforePluginInitialize(t *testing.T) {
	srv := newTestService(t)
	_, err := srv.Runtime().ExecuteAction(context.Background(), action.RunCell{Code: "1 + 1"})
	require.Error(t, err)
}

func TestRuntime_ExecuteEnvelope(t *testing.T) {
	srv := newTestService(t)
	envelope := &action.Envelope{Action: "run", Args: map[string]interface{}{"command": "echo wired", "blocking": true}}
	obs, err := srv.Runtime().ExecuteEnvelope(context.Background(), envelope)
	require.NoError(t, err)
	assert.Equal(t, "wired\n", obs.Text())

	_, err = srv.Runtime().ExecuteEnvelope(context.Background(), &action.Envelope{Action: "bogus"})
	require.Error(t, err)
}

func TestService_Reset(t *testing.T) {
	srv := newTestService(t)
	ctx := context.Background()

	_, err := srv.Session().Execute(ctx, shell.Command{Text: "export MARKER=1", Blocking: true})
	require.NoError(t, err)

	require.NoError(t, srv.Reset(ctx))
	obs, err := srv.Runtime().ExecuteAction(ctx, action.CmdRun{Command: "echo ${MARKER:-unset}", Blocking: true, TimeoutSec: 10})
	require.NoError(t, err)
	assert.Equal(t, "unset\n", obs.Text())
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, (&Config{}).Validate())
	assert.Error(t, (&Config{WorkDir: "/tmp"}).Validate())
}

func TestLoadConfig(t *testing.T) {
	location := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("workDir: /workspace\nusername: alice\nkernelPort: 9999\nshell:\n  defaultTimeout: 45\n")
	require.NoError(t, os.WriteFile(location, data, 0o644))

	config, err := LoadConfig(location)
	require.NoError(t, err)
	assert.Equal(t, "/workspace", config.WorkDir)
	assert.Equal(t, "alice", config.Username)
	assert.Equal(t, 9999, config.KernelPort)
	assert.Equal(t, 45, config.Shell.DefaultTimeoutSec)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
