package web

// errors.go renders errors for API and HTMX clients.
//
//  1. Handler calls respondError(w, r, err)
//  2. core.MapError picks the user message and code
//  3. The code selects the HTTP status
//  4. The technical error is logged with the request id
//  5. The message is written as JSON or as an HTML fragment

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/JonMunkholm/FuzzyCleanse/internal/core"
	"github.com/JonMunkholm/FuzzyCleanse/internal/logging"
	"github.com/JonMunkholm/FuzzyCleanse/internal/web/templates"
)

// ErrorResponse is the JSON body of API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusByCode maps user message codes to HTTP statuses. Codes not listed
// are server errors.
var statusByCode = map[string]int{
	"JOIN001": http.StatusUnprocessableEntity,
	"RULE001": http.StatusUnprocessableEntity,
	"RULE002": http.StatusBadRequest,
	"FILE001": http.StatusRequestEntityTooLarge,
	"FILE002": http.StatusBadRequest,
	"FILE003": http.StatusUnsupportedMediaType,
	"FILE004": http.StatusBadRequest,
	"FILE005": http.StatusBadRequest,
	"FILE006": http.StatusBadRequest,
	"SES001":  http.StatusNotFound,
	"UPL001":  http.StatusServiceUnavailable,
	"UPL002":  499,
	"UPL003":  http.StatusGatewayTimeout,
	"EXP001":  http.StatusNotImplemented,
	"EXP002":  http.StatusBadRequest,
	"EXP003":  http.StatusBadGateway,
	"RATE001": http.StatusTooManyRequests,
}

// statusFor returns the HTTP status for a user message.
func statusFor(msg core.UserMessage) int {
	if status, ok := statusByCode[msg.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes the mapped user message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	msg := core.MapError(err)
	status := statusFor(msg)

	logger := logging.FromContext(r.Context())
	args := []any{"path", r.URL.Path, "method", r.Method, "status", status, "code", msg.Code, "error", err.Error()}
	if status >= 500 {
		logger.Error("request error", args...)
	} else {
		logger.Warn("request error", args...)
	}

	if wantsHTML(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		templates.ErrorAlert(templates.AlertParams{
			Message: msg.Message,
			Action:  msg.Action,
			Code:    msg.Code,
		}).Render(r.Context(), w)
		return
	}
	respondErrorJSON(w, msg, status)
}

// respondBadRequest writes a 400 for malformed input that has no sentinel.
func (s *Server) respondBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	logging.FromContext(r.Context()).Warn("bad request", "path", r.URL.Path, "error", message)
	respondErrorJSON(w, core.UserMessage{
		Message: message,
		Action:  "Check the request and try again",
		Code:    "REQ001",
	}, http.StatusBadRequest)
}

func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// isHTMX reports whether the request was sent by htmx.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsHTML reports whether the client asked for an HTML fragment.
func wantsHTML(r *http.Request) bool {
	if isHTMX(r) {
		return true
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") && !strings.Contains(accept, "application/json")
}
