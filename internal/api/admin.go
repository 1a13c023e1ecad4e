package api

import (
	"net/http"
	"strconv"

	"github.com/therealityreport/trr-surveys/internal/services"
)

func (rt *Router) handleListSurveys(w http.ResponseWriter, r *http.Request) {
	list, err := rt.surveys.ListSurveys(r.Context())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []*services.Survey{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"surveys": list})
}

func (rt *Router) handleCreateSurvey(w http.ResponseWriter, r *http.Request) {
	var in services.SurveyInput
	if err := decodeBody(w, r, &in); err != nil {
		rt.writeError(w, r, err)
		return
	}
	sv, err := rt.surveys.CreateSurvey(r.Context(), in)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sv)
}

func (rt *Router) handleGetSurvey(w http.ResponseWriter, r *http.Request) {
	sv, err := rt.surveys.GetSurvey(r.Context(), r.PathValue("slug"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sv)
}

func (rt *Router) handleUpdateSurvey(w http.ResponseWriter, r *http.Request) {
	var in services.SurveyInput
	if err := decodeBody(w, r, &in); err != nil {
		rt.writeError(w, r, err)
		return
	}
	sv, err := rt.surveys.UpdateSurvey(r.Context(), r.PathValue("slug"), in)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sv)
}

func (rt *Router) handleDeleteSurvey(w http.ResponseWriter, r *http.Request) {
	if err := rt.surveys.DeleteSurvey(r.Context(), r.PathValue("slug")); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) handleSections(w http.ResponseWriter, r *http.Request) {
	groups, err := rt.surveys.Sections(r.Context(), r.PathValue("slug"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sections": groups})
}

func (rt *Router) handleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	var in services.QuestionInput
	if err := decodeBody(w, r, &in); err != nil {
		rt.writeError(w, r, err)
		return
	}
	q, err := rt.surveys.CreateQuestion(r.Context(), r.PathValue("slug"), in)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (rt *Router) handleUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	var in services.QuestionInput
	if err := decodeBody(w, r, &in); err != nil {
		rt.writeError(w, r, err)
		return
	}
	q, err := rt.surveys.UpdateQuestion(r.Context(), r.PathValue("slug"), r.PathValue("questionId"), in)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (rt *Router) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	if err := rt.surveys.DeleteQuestion(r.Context(), r.PathValue("slug"), r.PathValue("questionId")); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) handleCreateOption(w http.ResponseWriter, r *http.Request) {
	var in services.OptionInput
	if err := decodeBody(w, r, &in); err != nil {
		rt.writeError(w, r, err)
		return
	}
	o, err := rt.surveys.CreateOption(r.Context(), r.PathValue("slug"), r.PathValue("questionId"), in)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (rt *Router) handleUpdateOption(w http.ResponseWriter, r *http.Request) {
	var in services.OptionInput
	if err := decodeBody(w, r, &in); err != nil {
		rt.writeError(w, r, err)
		return
	}
	o, err := rt.surveys.UpdateOption(r.Context(), r.PathValue("slug"), r.PathValue("questionId"), r.PathValue("optionId"), in)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (rt *Router) handleDeleteOption(w http.ResponseWriter, r *http.Request) {
	err := rt.surveys.DeleteOption(r.Context(), r.PathValue("slug"), r.PathValue("questionId"), r.PathValue("optionId"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := rt.surveys.ListRuns(r.Context(), r.PathValue("slug"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if runs == nil {
		runs = []*services.SurveyRun{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (rt *Router) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var in services.RunInput
	if err := decodeBody(w, r, &in); err != nil {
		rt.writeError(w, r, err)
		return
	}
	run, err := rt.surveys.CreateRun(r.Context(), r.PathValue("slug"), in)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, run)
}

func (rt *Router) handleUpdateRun(w http.ResponseWriter, r *http.Request) {
	var in services.RunInput
	if err := decodeBody(w, r, &in); err != nil {
		rt.writeError(w, r, err)
		return
	}
	run, err := rt.surveys.UpdateRun(r.Context(), r.PathValue("slug"), r.PathValue("runId"), in)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (rt *Router) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	if err := rt.surveys.DeleteRun(r.Context(), r.PathValue("slug"), r.PathValue("runId")); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) handleListResponses(w http.ResponseWriter, r *http.Request) {
	list, err := rt.surveys.ListResponses(r.Context(), r.PathValue("slug"), r.PathValue("runId"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []*services.Response{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"responses": list, "total": len(list)})
}

// GET /api/admin/surveys/{slug}/runs/{runId}/export
func (rt *Router) handleExport(w http.ResponseWriter, r *http.Request) {
	res, err := rt.exports.ExportRun(r.Context(), r.PathValue("slug"), r.PathValue("runId"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(res.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	_, _ = w.Write(res.Data)
}
