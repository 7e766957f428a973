package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/xraph/custody"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // client went away
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: code, Message: msg})
}

var errBadRequest = errors.New("bad request")

// statusOf maps controller errors to HTTP statuses.
func statusOf(err error) int {
	if errors.Is(err, errBadRequest) {
		return http.StatusBadRequest
	}
	switch custody.KindOf(err) {
	case custody.KindValidation:
		return http.StatusBadRequest
	case custody.KindNotFound:
		return http.StatusNotFound
	case custody.KindConflict, custody.KindLifecycle:
		return http.StatusConflict
	case custody.KindInsufficient:
		return http.StatusUnprocessableEntity
	case custody.KindAuthorization:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	code := custody.KindOf(err).String()
	if errors.Is(err, errBadRequest) {
		code = "bad_request"
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("custody api request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeError(w, status, code, err.Error())
}
