// Package server is the HTTP API consumed by the dashboard UI.
package server

import (
	"log/slog"
	"net/http"

	"github.com/claude/bilbotrack/internal/service"
	"github.com/claude/bilbotrack/internal/sync"
	"github.com/go-chi/chi/v5"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	svc    *service.Service
	sync   *sync.Coordinator
	log    *slog.Logger
	router chi.Router
}

// New creates a new Server with all routes configured.
func New(svc *service.Service, coordinator *sync.Coordinator, log *slog.Logger) *Server {
	s := &Server{
		svc:    svc,
		sync:   coordinator,
		log:    log,
		router: chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Mount attaches an extra handler subtree, used for the MCP endpoint.
func (s *Server) Mount(pattern string, h http.Handler) {
	s.router.Mount(pattern, h)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/exercises", s.handleListExercises)
		r.Post("/exercises", s.handleCreateExercise)
		r.Get("/exercises/{id}", s.handleGetExercise)
		r.Patch("/exercises/{id}", s.handleUpdateExercise)
		r.Delete("/exercises/{id}", s.handleDeleteExercise)
		r.Get("/exercises/{id}/suggested-load", s.handleSuggestedLoad)
		r.Get("/exercises/{id}/last-session", s.handleLastSession)

		r.Post("/exercises/{id}/rest", s.handleStartRest)
		r.Patch("/exercises/{id}/rest", s.handleUpdateRest)
		r.Post("/exercises/{id}/rest/end", s.handleEndRest)
		r.Delete("/exercises/{id}/rest", s.handleCancelRest)
		r.Patch("/exercises/{id}/rest/history/{restId}", s.handleUpdateHistoricalRest)
		r.Delete("/exercises/{id}/rest/history/{restId}", s.handleDeleteHistoricalRest)

		r.Post("/cycles", s.handleCreateCycle)
		r.Patch("/cycles/{id}", s.handleUpdateCycle)
		r.Post("/cycles/{id}/finish", s.handleFinishCycle)
		r.Delete("/cycles/{id}", s.handleDeleteCycle)

		r.Post("/sessions", s.handleLogSession)
		r.Patch("/sessions/{id}", s.handleUpdateSession)
		r.Delete("/sessions/{id}", s.handleDeleteSession)

		r.Get("/settings", s.handleGetSettings)
		r.Patch("/settings", s.handleUpdateSettings)
		r.Post("/settings/onboarding-complete", s.handleCompleteOnboarding)

		r.Get("/stats", s.handleStats)
		r.Delete("/data", s.handleClearData)

		r.Get("/pr", s.handleGetPR)
		r.Delete("/pr", s.handleClearPR)

		r.Get("/sync/status", s.handleSyncStatus)
		r.Post("/sync/connect", s.handleSyncConnect)
		r.Post("/sync/now", s.handleSyncNow)
		r.Post("/sync/resolve", s.handleSyncResolve)
		r.Post("/sync/disconnect", s.handleSyncDisconnect)
		r.Delete("/sync/remote", s.handleSyncDeleteRemote)
	})
}
