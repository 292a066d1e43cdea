package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/starford/folio/internal/apperr"
)

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

type errResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps err to a status by its apperr kind. Unclassified errors
// are logged and hidden from the client.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	kind := apperr.KindOf(err)
	var status int
	switch kind {
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindAlreadyExists, apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindInvalidData:
		status = http.StatusBadRequest
	case apperr.KindManagerUnavailable:
		status = http.StatusServiceUnavailable
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, r, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, r, status, errResponse{Error: err.Error(), Kind: string(kind)})
}
