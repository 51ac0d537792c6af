package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/claude/bilbotrack/internal/models"
	"github.com/claude/bilbotrack/internal/sync"
)

// bearerToken extracts the access token the UI obtained from its OAuth flow.
// The server stores it in memory only and passes it through to the remote
// backup client.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return after
	}
	return ""
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.sync.Status(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleSyncConnect(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "bearer token required"})
		return
	}

	var req struct {
		Profile *models.Profile `json:"profile"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
			return
		}
	}

	conflict, err := s.sync.Connect(r.Context(), token, req.Profile)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*sync.Conflict{"conflict": conflict})
}

func (s *Server) handleSyncNow(w http.ResponseWriter, r *http.Request) {
	// A fresh token may arrive with any manual sync; keep the newest.
	if token := bearerToken(r); token != "" {
		s.sync.SetToken(token)
	}

	conflict, err := s.sync.SyncNow(r.Context())
	if err != nil {
		if errors.Is(err, sync.ErrConflictPending) {
			writeJSON(w, http.StatusConflict, map[string]*sync.Conflict{"conflict": conflict})
			return
		}
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*sync.Conflict{"conflict": conflict})
}

func (s *Server) handleSyncResolve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Choice string `json:"choice"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	var err error
	switch req.Choice {
	case "keepLocal":
		err = s.sync.ResolveKeepLocal(r.Context())
	case "keepRemote":
		err = s.sync.ResolveKeepRemote(r.Context())
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "choice must be keepLocal or keepRemote"})
		return
	}
	if err != nil {
		if errors.Is(err, sync.ErrNoConflict) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSyncDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.sync.Disconnect(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSyncDeleteRemote(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		s.sync.SetToken(token)
	}
	if err := s.sync.DeleteRemote(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
