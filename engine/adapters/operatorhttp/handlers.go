package operatorhttp

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/99souls/atrwac/engine/models"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusForErr maps the engine's error taxonomy (§7) onto HTTP statuses.
func statusForErr(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, models.ErrConfigInvalid):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrAgentNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrAlreadyPruned), errors.Is(err, models.ErrAlreadyRunning), errors.Is(err, models.ErrNotRunning):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.GetStatus())
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.GetStatus().Config)
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var next models.EngineConfig
	if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
		writeError(w, http.StatusBadRequest, "malformed config body")
		return
	}
	applied, err := s.eng.UpdateConfig(next, subjectFrom(r))
	if err != nil {
		writeError(w, statusForErr(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, applied)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.eng.Start(r.Context()); err != nil {
		writeError(w, statusForErr(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.eng.GetStatus())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.eng.Stop(); err != nil {
		writeError(w, statusForErr(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.eng.GetStatus())
}

func (s *Server) handleRankings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.GetRankings())
}

func (s *Server) handleChampions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.GetChampionInfo())
}

func (s *Server) handlePruningHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.GetPruningHistory())
}

func (s *Server) handleResources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.GetResourceSnapshot())
}

func (s *Server) handleForceEvaluation(w http.ResponseWriter, r *http.Request) {
	scores, err := s.eng.ForceEvaluation(r.Context())
	if err != nil {
		writeError(w, statusForErr(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, scores)
}

func (s *Server) handleManualPrune(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	reason := r.URL.Query().Get("reason")
	if reason == "" {
		reason = "manual_prune"
	}
	status, err := s.eng.ManualPrune(r.Context(), agentID, reason)
	if err != nil {
		writeError(w, statusForErr(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}
