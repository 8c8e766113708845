package shell

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runbox/runbox/model/observation"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	if _, err := os.Stat("/bin/bash"); err != nil {
		t.Skip("bash not available")
	}
	workDir := t.TempDir()
	session := New(workDir, "tester")
	require.NoError(t, session.Initialize(context.Background()))
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func TestSession_ExecuteBasic(t *testing.T) {
	session := newTestSession(t)
	result, err := session.Execute(context.Background(), Command{Text: "echo hi && pwd", Blocking: true, Timeout: 10 * time.Second})
	require.NoError(t, err)
	assert.True(t, result.Completed())
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "hi\n"+session.Cwd()+"\n", result.Output)
	assert.Equal(t, 0, session.LastExitCode())
}

func TestSession_ExitCodeAndCwdTracking(t *testing.T) {
	session := newTestSession(t)
	ctx := context.Background()

	result, err := session.Execute(ctx, Command{Text: "false", Blocking: true, Timeout: 10 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, 1, result.ExitCode)
	assert.Equal(t, 1, session.LastExitCode())

	sub := filepath.Join(session.Cwd(), "sub")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	result, err = session.Execute(ctx, Command{Text: "cd sub", Blocking: true, Timeout: 10 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, sub, result.Cwd)

	// cwd persists into the next command
	result, err = session.Execute(ctx, Command{Text: "pwd", Blocking: true, Timeout: 10 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, sub+"\n", result.Output)
}

func TestSession_EnvPersistsAcrossCommands(t *testing.T) {
	session := newTestSession(t)
	ctx := context.Background()
	_, err := session.Execute(ctx, Command{Text: "export GREETING=hello", Blocking: true, Timeout: 10 * time.Second})
	require.NoError(t, err)
	result, err := session.Execute(ctx, Command{Text: "echo $GREETING", Blocking: true, Timeout: 10 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, "hello\n", result.Output)
}

func TestSession_TimeoutLeavesCommandRunning(t *testing.T) {
	session := newTestSession(t)
	ctx := context.Background()

	result, err := session.Execute(ctx, Command{Text: "echo started; sleep 30", Blocking: true, Timeout: 2 * time.Second})
	require.NoError(t, err)
	assert.False(t, result.Completed())
	assert.Equal(t, observation.StillRunning, result.ExitCode)
	assert.Contains(t, result.Output, "started")
	assert.Equal(t, StateExecuting, session.State())

	// a regular command is rejected while the previous one still runs
	_, err = session.Execute(ctx, Command{Text: "echo nope", Blocking: true, Timeout: 2 * time.Second})
	assert.ErrorIs(t, err, ErrSessionBusy)

	// an interrupt delivered as input completes the cycle
	result, err = session.Execute(ctx, Command{Text: "C-c", IsInput: true, Blocking: true, Timeout: 10 * time.Second})
	require.NoError(t, err)
	assert.True(t, result.Completed())
	assert.NotEqual(t, 0, result.ExitCode)
	assert.Equal(t, StateReady, session.State())

	// and the session is usable again
	result, err = session.Execute(ctx, Command{Text: "echo back", Blocking: true, Timeout: 10 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, "back\n", result.Output)
	assert.Equal(t, 0, result.ExitCode)
}

func TestSession_NonBlockingReturnsOnQuiet(t *testing.T) {
	session := newTestSession(t)
	session.quietWindow = 500 * time.Millisecond

	started := time.Now()
	result, err := session.Execute(context.Background(), Command{Text: "echo early; sleep 20", Blocking: false, Timeout: 30 * time.Second})
	require.NoError(t, err)
	assert.False(t, result.Completed())
	assert.Contains(t, result.Output, "early")
	assert.Less(t, time.Since(started), 10*time.Second)

	_, err = session.Execute(context.Background(), Command{Text: "C-c", IsInput: true, Blocking: true, Timeout: 10 * time.Second})
	require.NoError(t, err)
}

func TestSession_ExecuteBeforeInitialize(t *testing.T) {
	session := New(t.TempDir(), "tester")
	_, err := session.Execute(context.Background(), Command{Text: "echo hi", Blocking: true})
	assert.ErrorIs(t, err, ErrSessionNotReady)
}

func TestSession_CloseIdempotent(t *testing.T) {
	session := newTestSession(t)
	assert.NoError(t, session.Close())
	assert.NoError(t, session.Close())
	_, err := session.Execute(context.Background(), Command{Text: "echo hi", Blocking: true})
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSession_CloseWithoutInitialize(t *testing.T) {
	session := New(t.TempDir(), "tester")
	assert.NoError(t, session.Close())
	assert.NoError(t, session.Close())
}

func TestSession_InitializeBadShell(t *testing.T) {
	session := New(t.TempDir(), "tester", WithShell("/nonexistent/shell"))
	err := session.Initialize(context.Background())
	require.Error(t, err)
	var initErr *InitError
	assert.ErrorAs(t, err, &initErr)
}

func TestSession_SentinelSplitAcrossTimeout(t *testing.T) {
	session := &Session{prompt: newPrompt("tok1"), chunks: make(chan []byte, 2)}

	// the sentinel head arrives, then the timeout fires before its tail
	session.chunks <- []byte("out\n###tok1:")
	result, err := session.awaitSentinel(context.Background(), 100*time.Millisecond, true)
	require.NoError(t, err)
	assert.Equal(t, observation.StillRunning, result.ExitCode)
	assert.Equal(t, "out", result.Output)

	// the tail alone must complete the command on the next await
	session.chunks <- []byte("0:/workspace###\n")
	result, err = session.awaitSentinel(context.Background(), time.Second, true)
	require.NoError(t, err)
	assert.True(t, result.Completed())
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "/workspace", result.Cwd)
	assert.Equal(t, "", result.Output)
}
