package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type restRequest struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	ActualEnd string `json:"actualEndDate"`
}

func (s *Server) handleStartRest(w http.ResponseWriter, r *http.Request) {
	var req restRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	e, err := s.svc.StartRest(r.Context(), chi.URLParam(r, "id"), req.StartDate, req.EndDate)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleUpdateRest(w http.ResponseWriter, r *http.Request) {
	var req restRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	e, err := s.svc.UpdateRest(r.Context(), chi.URLParam(r, "id"), req.StartDate, req.EndDate)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleEndRest(w http.ResponseWriter, r *http.Request) {
	e, err := s.svc.EndRest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleCancelRest(w http.ResponseWriter, r *http.Request) {
	e, err := s.svc.CancelRest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleUpdateHistoricalRest(w http.ResponseWriter, r *http.Request) {
	var req restRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	e, err := s.svc.UpdateHistoricalRest(r.Context(),
		chi.URLParam(r, "id"), chi.URLParam(r, "restId"),
		req.StartDate, req.EndDate, req.ActualEnd)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleDeleteHistoricalRest(w http.ResponseWriter, r *http.Request) {
	e, err := s.svc.DeleteHistoricalRest(r.Context(),
		chi.URLParam(r, "id"), chi.URLParam(r, "restId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}
