// Package server exposes the workspace execution backend over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/viant/afs"

	"github.com/runbox/runbox"
	"github.com/runbox/runbox/model/action"
	"github.com/runbox/runbox/service/action/stats"
	"github.com/runbox/runbox/service/kernel"
	"github.com/runbox/runbox/service/shell"
)

// Server mounts the execution backend routes on a standard mux.
type Server struct {
	service *runbox.Service
	fs      afs.Service
}

func New(service *runbox.Service) *Server {
	return &Server{service: service, fs: afs.New()}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check for load balancer probes.
	mux.HandleFunc("GET /alive", s.handleAlive)
	mux.HandleFunc("GET /server_info", s.handleServerInfo)
	mux.HandleFunc("POST /reset", s.handleReset)
	mux.HandleFunc("POST /execute_action", s.handleExecuteAction)
	mux.HandleFunc("GET /view-file", s.handleViewFile)
	mux.HandleFunc("GET /plugins", s.handlePlugins)
	mux.HandleFunc("POST /plugins/{name}/initialize", s.handlePluginInitialize)
	mux.HandleFunc("POST /test/run", s.handleTestRun)
	mux.HandleFunc("POST /test/run-single", s.handleTestRun)
	mux.HandleFunc("GET /test/list", s.handleTestList)
	return mux
}

func (s *Server) handleAlive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

type serverInfo struct {
	WorkDir         string                `json:"workDir"`
	Username        string                `json:"username"`
	ShellState      string                `json:"shellState"`
	Cwd             string                `json:"cwd,omitempty"`
	LastExitCode    int                   `json:"lastExitCode"`
	KernelState     string                `json:"kernelState"`
	KernelPort      int                   `json:"kernelPort"`
	InterpreterPath string                `json:"interpreterPath,omitempty"`
	System          *stats.SnapshotOutput `json:"system,omitempty"`
}

func (s *Server) handleServerInfo(w http.ResponseWriter, r *http.Request) {
	session := s.service.Session()
	client := s.service.Kernel()
	info := &serverInfo{
		WorkDir:         s.service.Config().WorkDir,
		Username:        session.Username(),
		ShellState:      string(session.State()),
		Cwd:             session.Cwd(),
		LastExitCode:    session.LastExitCode(),
		KernelState:     string(client.State()),
		KernelPort:      client.Port(),
		InterpreterPath: client.InterpreterPath(),
	}
	if statsService, ok := s.service.Actions().Lookup(stats.Name).(*stats.Service); ok {
		snapshot := &stats.SnapshotOutput{}
		if err := statsService.Snapshot(r.Context(), &stats.SnapshotInput{}, snapshot); err == nil {
			info.System = snapshot
		}
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Reset(r.Context()); err != nil {
		log.Printf("reset failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleExecuteAction(w http.ResponseWriter, r *http.Request) {
	envelope := &action.Envelope{}
	if err := json.NewDecoder(r.Body).Decode(envelope); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed action envelope: " + err.Error()})
		return
	}
	// The kernel is initialized on demand; a not-ready plugin is brought up
	// (or back up after a failed launch) before the cell is dispatched.
	if envelope.Action == string(action.KindRunCell) {
		if err := s.service.Plugins().Initialize(r.Context(), "jupyter", s.service.Config().Username); err != nil {
			log.Printf("jupyter plugin initialize failed: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
	}
	obs, err := s.service.Runtime().ExecuteEnvelope(r.Context(), envelope)
	if err != nil {
		writeJSON(w, statusOf(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"kind":        obs.Kind(),
		"observation": obs,
	})
}

func (s *Server) handlePlugins(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Plugins().Status())
}

func (s *Server) handlePluginInitialize(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.service.Plugins().Initialize(r.Context(), name, s.service.Config().Username); err != nil {
		log.Printf("plugin %v initialize failed: %v", name, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	plugin := s.service.Plugins().Lookup(name)
	writeJSON(w, http.StatusOK, map[string]interface{}{"name": name, "ready": plugin.Ready()})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

// statusOf maps protocol errors onto HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, runbox.ErrActionDenied):
		return http.StatusForbidden
	case errors.Is(err, shell.ErrSessionBusy), errors.Is(err, kernel.ErrKernelBusy):
		return http.StatusConflict
	case errors.Is(err, shell.ErrSessionNotReady), errors.Is(err, kernel.ErrKernelNotReady):
		return http.StatusConflict
	case errors.Is(err, shell.ErrSessionClosed), errors.Is(err, kernel.ErrKernelClosed):
		return http.StatusGone
	}
	var configErr *kernel.ConfigurationError
	if errors.As(err, &configErr) {
		return http.StatusBadRequest
	}
	return http.StatusBadRequest
}
