package api

import (
	"net/http"
	"strings"

	"github.com/therealityreport/trr-surveys/internal/middleware"
	"github.com/therealityreport/trr-surveys/internal/services"
)

// GET /api/surveys/{slug}/active-run
func (rt *Router) handleActiveRun(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	view, err := rt.responses.ActiveRun(r.Context(), r.PathValue("slug"), identity)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type submitBody struct {
	Answers []services.AnswerInput `json:"answers"`
}

// POST /api/surveys/{slug}/submit
func (rt *Router) handleSubmit(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == "" {
		rt.writeError(w, r, services.ErrAnonymous)
		return
	}
	var body submitBody
	if err := decodeBody(w, r, &body); err != nil {
		rt.writeError(w, r, err)
		return
	}
	res, err := rt.responses.Submit(r.Context(), services.SubmitRequest{
		SurveySlug: r.PathValue("slug"),
		Identity:   identity,
		Answers:    body.Answers,
	})
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":          true,
		"responseId":       res.ResponseID,
		"submissionNumber": res.SubmissionNumber,
	})
}

// GET /api/templates?type=
func (rt *Router) handleTemplates(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("type"))
	if raw == "" {
		writeJSON(w, http.StatusOK, map[string]any{"templates": services.Templates()})
		return
	}
	t, err := services.ParseQuestionType(raw)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": services.TemplatesFor(t)})
}
