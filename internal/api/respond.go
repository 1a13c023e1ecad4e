package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/therealityreport/trr-surveys/internal/services"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error    string                   `json:"error"`
	Code     string                   `json:"code,omitempty"`
	Problems []services.AnswerProblem `json:"problems,omitempty"`
}

// decodeBody reads a JSON request body of at most maxBodyBytes into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return services.NewInvalidError("request body required")
		}
		return services.NewInvalidError(fmt.Sprintf("invalid json: %v", err))
	}
	return nil
}

// writeError maps service errors onto HTTP statuses. Anything unrecognised
// is logged and reported as a 500 without leaking its message.
func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if se, ok := services.AsSubmissionError(err); ok {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "invalid submission", Code: "invalid_submission", Problems: se.Problems})
		return
	}
	if se, ok := services.AsServiceError(err); ok {
		writeJSON(w, serviceStatus(se.Code), errorBody{Error: se.Message, Code: string(se.Code)})
		return
	}
	status, code := sentinelStatus(err)
	if status == http.StatusInternalServerError {
		rt.log.Error("request failed", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, status, errorBody{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Code: code})
}

func serviceStatus(code services.ErrorCode) int {
	switch code {
	case services.ErrorInvalid:
		return http.StatusBadRequest
	case services.ErrorNotFound:
		return http.StatusNotFound
	case services.ErrorConflict:
		return http.StatusConflict
	case services.ErrorUnauthorized:
		return http.StatusUnauthorized
	case services.ErrorForbidden:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

func sentinelStatus(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrSurveyNotFound):
		return http.StatusNotFound, "survey_not_found"
	case errors.Is(err, services.ErrNoActiveRun):
		return http.StatusNotFound, "no_active_run"
	case errors.Is(err, services.ErrAnonymous):
		return http.StatusUnauthorized, "sign_in_required"
	case errors.Is(err, services.ErrMaxSubmissions):
		return http.StatusConflict, "max_submissions"
	case errors.Is(err, services.ErrRunNotOpen):
		return http.StatusConflict, "run_not_open"
	case errors.Is(err, services.ErrConfigInvalid):
		return http.StatusBadRequest, "config_invalid"
	}
	return http.StatusInternalServerError, ""
}
