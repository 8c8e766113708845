package server

import (
	"encoding/json"
	"net/http"

	"github.com/runbox/runbox/service/action/testrun"
)

func (s *Server) testRunService() *testrun.Service {
	service, _ := s.service.Actions().Lookup(testrun.Name).(*testrun.Service)
	return service
}

func (s *Server) handleTestRun(w http.ResponseWriter, r *http.Request) {
	input := &testrun.RunInput{}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(input); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed test run request: " + err.Error()})
			return
		}
	}
	output := &testrun.RunOutput{}
	if err := s.testRunService().Run(r.Context(), input, output); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, output)
}

func (s *Server) handleTestList(w http.ResponseWriter, r *http.Request) {
	input := &testrun.ListInput{Dir: r.URL.Query().Get("dir")}
	output := &testrun.ListOutput{}
	if err := s.testRunService().List(r.Context(), input, output); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, output)
}
