package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/logger"
	"library-circulation-backend/internal/service"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeErrorResponse(w http.ResponseWriter, status int, code, message, category string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message, Category: category})
}

// statusByCode covers the business codes whose status differs from their kind's.
var statusByCode = map[string]int{
	"ITEM_UNAVAILABLE": http.StatusConflict,
	"RENEWAL_BLOCKED":  http.StatusConflict,
}

var statusByKind = map[domain.ErrorKind]int{
	domain.KindValidation: http.StatusBadRequest,
	domain.KindPolicy:     http.StatusForbidden,
	domain.KindState:      http.StatusConflict,
	domain.KindConflict:   http.StatusConflict,
	domain.KindNotFound:   http.StatusNotFound,
	domain.KindForbidden:  http.StatusForbidden,
}

// writeError maps engine errors onto HTTP. The message of a wrapped business
// error keeps its detail; anything else is logged and reported as internal.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var derr *domain.Error
	switch {
	case errors.As(err, &derr):
		status, ok := statusByCode[derr.Code]
		if !ok {
			status = statusByKind[derr.Kind]
		}
		if status == 0 {
			status = http.StatusBadRequest
		}
		message := derr.Message
		if err != derr {
			message = err.Error()
		}
		writeErrorResponse(w, status, derr.Code, message, string(derr.Kind))
	case errors.Is(err, service.ErrInvalidCredentials):
		writeErrorResponse(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", err.Error(), "auth")
	default:
		logger.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "error", err)
		writeErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error", "system")
	}
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, domain.Invalid("read body: %v", err)
	}
	if len(body) > maxBodyBytes {
		return nil, domain.Invalid("body exceeds %d bytes", maxBodyBytes)
	}
	return body, nil
}

// decodeJSON treats an empty body as an empty object.
func decodeJSON(r *http.Request, v any) error {
	body, err := readBody(r)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return domain.Invalid("malformed JSON body: %v", err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int32, error) {
	return parseID(mux.Vars(r)[name], name)
}

func parseID(raw, name string) (int32, error) {
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || v <= 0 {
		return 0, domain.Invalid("%s must be a positive integer", name)
	}
	return int32(v), nil
}

func queryInt(r *http.Request, name string, fallback int32) (int32, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || v < 0 {
		return 0, domain.Invalid("%s must be a non-negative integer", name)
	}
	return int32(v), nil
}

func pathCategory(r *http.Request) (domain.Category, error) {
	return domain.ParseCategory(mux.Vars(r)["category"])
}
