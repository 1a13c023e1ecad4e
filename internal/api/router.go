package api

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/therealityreport/trr-surveys/internal/middleware"
	"github.com/therealityreport/trr-surveys/internal/services"
)

// BuildInfo is reported by /health and /version.
type BuildInfo struct {
	Name      string `json:"name"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// Deps wires the router to its services.
type Deps struct {
	Surveys   *services.SurveyService
	Responses *services.ResponseService
	Exports   *services.ExportService
	Auth      *middleware.Authenticator
	Log       *zap.Logger
	Build     BuildInfo
	// Ping reports database health; nil skips the check.
	Ping func(ctx context.Context) error
}

type Router struct {
	surveys   *services.SurveyService
	responses *services.ResponseService
	exports   *services.ExportService
	auth      *middleware.Authenticator
	log       *zap.Logger
	build     BuildInfo
	ping      func(ctx context.Context) error
}

func NewRouter(d Deps) *Router {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	auth := d.Auth
	if auth == nil {
		auth = middleware.NewAuthenticator("", "")
	}
	return &Router{
		surveys:   d.Surveys,
		responses: d.Responses,
		exports:   d.Exports,
		auth:      auth,
		log:       log,
		build:     d.Build,
		ping:      d.Ping,
	}
}

const templateCacheAge = 10 * time.Minute

func (rt *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", rt.handleHealth)
	mux.HandleFunc("GET /version", rt.handleVersion)

	mux.HandleFunc("GET /api/surveys/{slug}/active-run", rt.handleActiveRun)
	mux.HandleFunc("POST /api/surveys/{slug}/submit", rt.handleSubmit)
	mux.Handle("GET /api/templates", middleware.PublicCache(templateCacheAge, http.HandlerFunc(rt.handleTemplates)))

	admin := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, rt.auth.RequireAdmin(h))
	}
	admin("GET /api/admin/surveys", rt.handleListSurveys)
	admin("POST /api/admin/surveys", rt.handleCreateSurvey)
	admin("GET /api/admin/surveys/{slug}", rt.handleGetSurvey)
	admin("PATCH /api/admin/surveys/{slug}", rt.handleUpdateSurvey)
	admin("DELETE /api/admin/surveys/{slug}", rt.handleDeleteSurvey)
	admin("GET /api/admin/surveys/{slug}/sections", rt.handleSections)

	admin("POST /api/admin/surveys/{slug}/questions", rt.handleCreateQuestion)
	admin("PATCH /api/admin/surveys/{slug}/questions/{questionId}", rt.handleUpdateQuestion)
	admin("DELETE /api/admin/surveys/{slug}/questions/{questionId}", rt.handleDeleteQuestion)
	admin("POST /api/admin/surveys/{slug}/questions/{questionId}/options", rt.handleCreateOption)
	admin("PATCH /api/admin/surveys/{slug}/questions/{questionId}/options/{optionId}", rt.handleUpdateOption)
	admin("DELETE /api/admin/surveys/{slug}/questions/{questionId}/options/{optionId}", rt.handleDeleteOption)

	admin("GET /api/admin/surveys/{slug}/runs", rt.handleListRuns)
	admin("POST /api/admin/surveys/{slug}/runs", rt.handleCreateRun)
	admin("PATCH /api/admin/surveys/{slug}/runs/{runId}", rt.handleUpdateRun)
	admin("DELETE /api/admin/surveys/{slug}/runs/{runId}", rt.handleDeleteRun)
	admin("GET /api/admin/surveys/{slug}/runs/{runId}/responses", rt.handleListResponses)
	admin("GET /api/admin/surveys/{slug}/runs/{runId}/export", rt.handleExport)
}

// Handler returns the full middleware chain around a fresh mux.
func (rt *Router) Handler(allowedOrigins []string) http.Handler {
	mux := http.NewServeMux()
	rt.Register(mux)
	var h http.Handler = mux
	h = rt.auth.WithIdentity(h)
	h = middleware.NoStore(h)
	h = middleware.CORS(allowedOrigins)(h)
	h = middleware.SecureHeaders(h)
	return middleware.RequestLogger(rt.log)(h)
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	if rt.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := rt.ping(ctx); err != nil {
			rt.log.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "name": rt.build.Name})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"name":       rt.build.Name,
		"commit":     rt.build.Commit,
		"build_time": rt.build.BuildTime,
	})
}

func (rt *Router) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rt.build)
}
