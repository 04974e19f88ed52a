package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/helixir/paper-graph-service/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	// Headers are already sent; an encoding failure cannot be reported.
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, errorResponse{Error: message})
}

func tooLargeMessage(maxBytes int64) string {
	return fmt.Sprintf("file too large: limit is %d MiB", maxBytes>>20)
}

// writeDomainError maps a pipeline error to a status code and a client-safe
// message. Causes are never echoed.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	// The analyzer only returns stage errors; anything else is a bug.
	var stageErr *domain.StageError
	if !errors.As(err, &stageErr) {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	switch stageErr.Kind {
	case domain.KindValidation:
		switch {
		case errors.Is(err, domain.ErrPayloadTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, stageErr.PublicMessage())
		case stageErr.Stage == domain.StageReceiveFile:
			writeError(w, http.StatusBadRequest, stageErr.PublicMessage())
		default:
			writeError(w, http.StatusUnprocessableEntity, stageErr.PublicMessage())
		}
	case domain.KindExtraction:
		writeError(w, http.StatusInternalServerError, stagedMessage(stageErr))
	case domain.KindUpstream:
		writeError(w, http.StatusBadGateway, stagedMessage(stageErr))
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func stagedMessage(e *domain.StageError) string {
	return fmt.Sprintf("%s: %s", e.Stage, e.PublicMessage())
}
