package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/BartekS5/dailyetl/pkg/logger"
)

type healthResponse struct {
	Status    string    `json:"status"`
	Workflow  string    `json:"workflow"`
	NextRun   time.Time `json:"next_run"`
	LastState string    `json:"last_state,omitempty"`
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:   "ok",
		Workflow: s.workflow,
		NextRun:  s.status.NextRun(),
	}
	if last := s.status.LastRun(); last != nil {
		resp.LastState = string(last.State)
	}
	s.respondWithJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLastRun(w http.ResponseWriter, r *http.Request) {
	last := s.status.LastRun()
	if last == nil {
		s.respondWithError(w, http.StatusNotFound, "no run has completed yet")
		return
	}
	s.respondWithJSON(w, http.StatusOK, last)
}

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		logger.Errorw("failed to encode response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}
