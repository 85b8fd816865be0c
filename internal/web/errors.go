package web

// errors.go renders failures for clients.
//
// Every error is logged with its full text and the request ID, then
// mapped through payroll.MapError so clients only ever see the friendly
// message, the suggested action and the support code. API routes and
// clients asking for JSON get an ErrorResponse; browsers get an HTML page.

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/paystub/internal/payroll"
	"github.com/JonMunkholm/paystub/internal/xlsx"
)

// Errors raised by the web layer itself. Their text matches the
// patterns of payroll.MapError.
var (
	errInvalidCredentials = errors.New("invalid credentials")
	errLoginRequired      = errors.New("login required")
	errRateLimited        = errors.New("rate limit exceeded")
	errNoFile             = errors.New("no file provided")
)

// ErrorResponse is the JSON body of API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor picks the HTTP status for an error returned by the service.
func statusFor(err error) int {
	switch {
	case errors.Is(err, payroll.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, payroll.ErrTooManyUploads):
		return http.StatusServiceUnavailable
	case errors.Is(err, payroll.ErrEmployeeNotFound), errors.Is(err, payroll.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, payroll.ErrUnsupportedFile):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, payroll.ErrInvalidMonth),
		errors.Is(err, payroll.ErrInvalidInput),
		errors.Is(err, payroll.ErrMissingColumn),
		errors.Is(err, payroll.ErrEmptyFile),
		errors.Is(err, errNoFile):
		return http.StatusBadRequest
	}
	var xerr *xlsx.Error
	if errors.As(err, &xerr) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes the mapped user message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := payroll.MapError(err)

	level := slog.LevelWarn
	if statusCode >= 500 {
		level = slog.LevelError
	}
	slog.Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", chimw.GetReqID(r.Context()),
	)

	if wantsJSON(r) {
		respondErrorJSON(w, userMsg, statusCode)
		return
	}
	s.render(w, r, statusCode, errorPage(userMsg))
}

func respondErrorJSON(w http.ResponseWriter, msg payroll.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// wantsJSON reports whether the client expects a JSON error body.
func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.Contains(r.Header.Get("Content-Type"), "application/json")
}
