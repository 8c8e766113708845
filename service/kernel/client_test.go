package kernel

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tinyPNG is a 1x1 transparent PNG.
var tinyPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x62, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

type fixtureProcess struct {
	stdout io.Reader
}

func (p *fixtureProcess) Stdout() io.Reader { return p.stdout }
func (p *fixtureProcess) Stop() error       { return nil }

type fixtureLauncher struct {
	stdout io.Reader
}

func (l *fixtureLauncher) Launch(_ context.Context, _ LaunchSpec) (Process, error) {
	return &fixtureProcess{stdout: l.stdout}, nil
}

func startupLog(port int) io.Reader {
	return strings.NewReader(fmt.Sprintf(
		"[I ServerApp] Serving notebooks from local directory\n"+
			"[I ServerApp] Jupyter Server is running at: http://localhost:%d/\n", port))
}

// startFakeGateway serves the kernel REST and websocket endpoints the client
// talks to, replaying canned responses keyed off the submitted code.
func startFakeGateway(t *testing.T) (int, func()) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/kernels", func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusCreated)
		_, _ = writer.Write([]byte(`{"id":"fixture"}`))
	})
	mux.HandleFunc("/api/kernels/fixture/channels", func(writer http.ResponseWriter, request *http.Request) {
		conn, upgradeErr := upgrader.Upgrade(writer, request, nil)
		if upgradeErr != nil {
			return
		}
		go serveKernel(conn)
	})
	server := &http.Server{Handler: mux}
	go func() { _ = server.Serve(listener) }()
	port := listener.Addr().(*net.TCPAddr).Port
	return port, func() { _ = server.Close() }
}

func serveKernel(conn *websocket.Conn) {
	defer func() { _ = conn.Close() }()
	for {
		var request wireMessage
		if err := conn.ReadJSON(&request); err != nil {
			return
		}
		emit := func(channel, msgType string, content map[string]interface{}) {
			_ = conn.WriteJSON(&wireMessage{
				Header:       messageHeader{MsgID: uuid.New().String(), MsgType: msgType},
				ParentHeader: request.Header,
				Content:      content,
				Channel:      channel,
			})
		}
		code, _ := request.Content["code"].(string)
		switch {
		case strings.Contains(code, "sys.executable"):
			emit("iopub", "stream", map[string]interface{}{"name": "stdout", "text": "/usr/bin/python3\n"})
		case strings.Contains(code, "plot"):
			emit("iopub", "stream", map[string]interface{}{"name": "stdout", "text": "plotting\n"})
			emit("iopub", "display_data", map[string]interface{}{"data": map[string]interface{}{
				"text/plain": "<Figure size 640x480>",
				"image/png":  base64.StdEncoding.EncodeToString(tinyPNG),
			}})
		case strings.Contains(code, "hang"):
			emit("iopub", "stream", map[string]interface{}{"name": "stdout", "text": "partial"})
			continue
		case strings.Contains(code, "sever"):
			// drop the channel mid-execution without any reply
			_ = conn.Close()
			return
		case strings.Contains(code, "boom"):
			emit("iopub", "error", map[string]interface{}{
				"ename": "ValueError", "evalue": "boom",
				"traceback": []interface{}{"Traceback (most recent call last):", "ValueError: boom"},
			})
		default:
			emit("iopub", "stream", map[string]interface{}{"name": "stdout", "text": "hi\n"})
		}
		emit("shell", "execute_reply", map[string]interface{}{"status": "ok"})
		emit("iopub", "status", map[string]interface{}{"execution_state": "idle"})
	}
}

func newTestClient(t *testing.T) (*Client, func()) {
	t.Helper()
	port, shutdown := startFakeGateway(t)
	client := New(t.TempDir(), port, WithLauncher(&fixtureLauncher{stdout: startupLog(port)}))
	require.NoError(t, client.Initialize(context.Background(), "tester"))
	return client, func() {
		_ = client.Close()
		shutdown()
	}
}

func TestClient_PortValidation(t *testing.T) {
	for _, port := range []int{0, 80, 1023, 70000} {
		client := New(t.TempDir(), port)
		err := client.Initialize(context.Background(), "tester")
		require.Error(t, err, port)
		var confErr *ConfigurationError
		assert.ErrorAs(t, err, &confErr, port)
	}
}

func TestClient_InitializeAndRun(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	assert.True(t, client.Ready())
	assert.Equal(t, "/usr/bin/python3", client.InterpreterPath())

	result, err := client.Run(context.Background(), Cell{Code: "print('hi')"})
	require.NoError(t, err)
	assert.Equal(t, "hi\n", result.Transcript)
	assert.False(t, result.Truncated)
	assert.False(t, result.Degraded())
}

func TestClient_RunBeforeInitialize(t *testing.T) {
	client := New(t.TempDir(), 8001)
	_, err := client.Run(context.Background(), Cell{Code: "print('hi')"})
	assert.ErrorIs(t, err, ErrKernelNotReady)
}

func TestClient_RichOutput(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	result, err := client.Run(context.Background(), Cell{Code: "plot()"})
	require.NoError(t, err)
	assert.Contains(t, result.Transcript, "plotting")
	assert.Contains(t, result.Transcript, "<Figure size 640x480>")
	require.Len(t, result.Images, 1)
	if !strings.HasPrefix(result.Images[0], "data:") {
		_, statErr := os.Stat(result.Images[0])
		assert.NoError(t, statErr)
	}
}

func TestClient_ErrorTraceback(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	result, err := client.Run(context.Background(), Cell{Code: "boom()"})
	require.NoError(t, err)
	assert.Contains(t, result.Transcript, "ValueError: boom")
	assert.False(t, result.Degraded())
}

func TestClient_TimeoutReturnsPartial(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	result, err := client.Run(context.Background(), Cell{Code: "hang()", Timeout: 500 * time.Millisecond})
	require.NoError(t, err)
	assert.True(t, result.Truncated)
	assert.Contains(t, result.Transcript, "partial")
	assert.Contains(t, result.Transcript, truncationMarker)
	assert.Equal(t, StateReady, client.State())
}

func TestClient_StartupFixtureWithoutMarker(t *testing.T) {
	// a pipe that never emits the marker and never closes
	reader, writer := io.Pipe()
	defer func() { _ = writer.Close() }()
	go func() {
		_, _ = io.WriteString(writer, "[I ServerApp] Serving notebooks\n")
	}()

	client := New(t.TempDir(), 8001,
		WithLauncher(&fixtureLauncher{stdout: reader}),
		WithStartupTimeout(400*time.Millisecond))
	started := time.Now()
	err := client.Initialize(context.Background(), "tester")
	elapsed := time.Since(started)

	require.Error(t, err)
	var startupErr *StartupError
	assert.ErrorAs(t, err, &startupErr)
	assert.GreaterOrEqual(t, elapsed, 400*time.Millisecond)
	assert.Equal(t, StateFailed, client.State())

	_, err = client.Run(context.Background(), Cell{Code: "print('hi')"})
	assert.ErrorIs(t, err, ErrKernelNotReady)
}

func TestClient_CloseIdempotent(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	assert.NoError(t, client.Close())
	assert.NoError(t, client.Close())
	_, err := client.Run(context.Background(), Cell{Code: "print('hi')"})
	assert.ErrorIs(t, err, ErrKernelClosed)
}

func TestClient_CloseWithoutInitialize(t *testing.T) {
	client := New(t.TempDir(), 8001)
	assert.NoError(t, client.Close())
	assert.NoError(t, client.Close())
}

func TestClient_StaysUsableAfterConnectionLoss(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()
	ctx := context.Background()

	result, err := client.Run(ctx, Cell{Code: "sever()"})
	require.NoError(t, err)
	assert.True(t, result.Degraded())
	assert.Contains(t, result.Transcript, "Error executing code")
	assert.Equal(t, StateReady, client.State())

	// the next cell reconnects lazily and executes normally
	result, err = client.Run(ctx, Cell{Code: "print('hi')"})
	require.NoError(t, err)
	assert.False(t, result.Degraded())
	assert.Equal(t, "hi\n", result.Transcript)
	assert.Equal(t, StateReady, client.State())
}
