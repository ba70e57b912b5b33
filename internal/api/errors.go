package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/soaringjerry/surveyform/internal/services"
)

type errorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(code services.ErrorCode) int {
	switch code {
	case services.ErrorInvalid:
		return http.StatusBadRequest
	case services.ErrorUnauthorized:
		return http.StatusUnauthorized
	case services.ErrorForbidden:
		return http.StatusForbidden
	case services.ErrorNotFound:
		return http.StatusNotFound
	case services.ErrorConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// errorCode is the metrics label for err.
func errorCode(err error) string {
	var fe services.FieldErrors
	if errors.As(err, &fe) || errors.Is(err, services.ErrFieldName) {
		return string(services.ErrorInvalid)
	}
	if se, ok := services.AsServiceError(err); ok {
		return string(se.Code)
	}
	return "internal"
}

func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var fe services.FieldErrors
	if errors.As(err, &fe) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: string(services.ErrorInvalid), Fields: fe})
		return
	}
	if errors.Is(err, services.ErrFieldName) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: string(services.ErrorInvalid), Message: err.Error()})
		return
	}
	if se, ok := services.AsServiceError(err); ok {
		writeJSON(w, statusFor(se.Code), errorBody{Error: string(se.Code), Message: se.Message})
		return
	}
	logger.Error("request failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal", Message: "internal error"})
}
