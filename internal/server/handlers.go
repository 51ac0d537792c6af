package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/claude/bilbotrack/internal/models"
	"github.com/claude/bilbotrack/internal/service"
	"github.com/claude/bilbotrack/internal/storage"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListExercises(w http.ResponseWriter, r *http.Request) {
	exercises, err := s.svc.Exercises(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if exercises == nil {
		exercises = []models.Exercise{}
	}
	writeJSON(w, http.StatusOK, exercises)
}

func (s *Server) handleCreateExercise(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string `json:"name"`
		PresetType string `json:"presetType"`
		IconKey    string `json:"iconPresetKey"`
		Emoji      string `json:"emoji"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	e, err := s.svc.CreateExercise(r.Context(), req.Name, req.PresetType, req.IconKey, req.Emoji)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleGetExercise(w http.ResponseWriter, r *http.Request) {
	data, err := s.svc.ExerciseData(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) handleUpdateExercise(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       *string `json:"name"`
		PresetType *string `json:"presetType"`
		IconKey    *string `json:"iconPresetKey"`
		Emoji      *string `json:"emoji"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	e, err := s.svc.UpdateExercise(r.Context(), chi.URLParam(r, "id"), service.ExerciseUpdate{
		Name:       req.Name,
		PresetType: req.PresetType,
		IconKey:    req.IconKey,
		Emoji:      req.Emoji,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleDeleteExercise(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteExercise(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSuggestedLoad(w http.ResponseWriter, r *http.Request) {
	suggested, err := s.svc.SuggestedLoad(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*float64{"suggestedLoadKg": suggested})
}

func (s *Server) handleLastSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.svc.LastSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*models.Session{"session": session})
}

func (s *Server) handleCreateCycle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExerciseID string  `json:"exerciseId"`
		Base1RMKg  float64 `json:"base1RMKg"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	cycle, err := s.svc.CreateCycle(r.Context(), req.ExerciseID, req.Base1RMKg)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cycle)
}

func (s *Server) handleUpdateCycle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StartedAt  *int64   `json:"startedAt"`
		EndedAt    *int64   `json:"endedAt"`
		ClearEnded bool     `json:"clearEnded"`
		Base1RMKg  *float64 `json:"base1RMKg"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	cycle, err := s.svc.UpdateCycle(r.Context(), chi.URLParam(r, "id"), service.CycleUpdate{
		StartedAt:  req.StartedAt,
		EndedAt:    req.EndedAt,
		ClearEnded: req.ClearEnded,
		Base1RMKg:  req.Base1RMKg,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cycle)
}

func (s *Server) handleFinishCycle(w http.ResponseWriter, r *http.Request) {
	cycle, err := s.svc.FinishCycle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cycle)
}

func (s *Server) handleDeleteCycle(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteCycle(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sessionRequest struct {
	ExerciseID  string  `json:"exerciseId"`
	Date        string  `json:"date"`
	Time        string  `json:"time"`
	LoadUsedKg  float64 `json:"loadUsedKg"`
	Reps        int     `json:"reps"`
	TimeSeconds *int    `json:"timeSeconds"`
	Notes       string  `json:"notes"`
}

func (s *Server) handleLogSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	session, err := s.svc.LogSession(r.Context(), service.SessionInput{
		ExerciseID:  req.ExerciseID,
		Date:        req.Date,
		Time:        req.Time,
		LoadUsedKg:  req.LoadUsedKg,
		Reps:        req.Reps,
		TimeSeconds: req.TimeSeconds,
		Notes:       req.Notes,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	session, err := s.svc.UpdateSession(r.Context(), chi.URLParam(r, "id"), service.SessionUpdate{
		Date:        req.Date,
		Time:        req.Time,
		LoadUsedKg:  req.LoadUsedKg,
		Reps:        req.Reps,
		TimeSeconds: req.TimeSeconds,
		Notes:       req.Notes,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.svc.Settings(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Units             *models.Units `json:"unitsUI"`
		GlobalIncrementKg *float64      `json:"globalIncrementKg"`
		RoundStepKg       *float64      `json:"roundStepKg"`
		Language          *string       `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	settings, err := s.svc.UpdateSettings(r.Context(), service.SettingsUpdate{
		Units:             req.Units,
		GlobalIncrementKg: req.GlobalIncrementKg,
		RoundStepKg:       req.RoundStepKg,
		Language:          req.Language,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleCompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.CompleteOnboarding(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Stats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleClearData(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.ClearAllData(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetPR(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"pr": s.svc.PR()})
}

func (s *Server) handleClearPR(w http.ResponseWriter, r *http.Request) {
	s.svc.ClearPR()
	w.WriteHeader(http.StatusNoContent)
}

// writeError maps service and storage errors onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrNoActiveCycle):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
