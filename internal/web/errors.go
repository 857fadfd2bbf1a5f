package web

// errors.go maps handler errors to JSON responses.
//
// The technical error is logged with the request id; the client receives
// the user message from core.MapError, or one of the API codes below:
//
//	API001 - Invalid parameter: a query parameter is missing or malformed
//	API002 - Invalid range: the range ends before it starts

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/JonMunkholm/empenhos/internal/analytics"
	"github.com/JonMunkholm/empenhos/internal/core"
	"github.com/JonMunkholm/empenhos/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// paramError reports a bad query parameter.
type paramError struct {
	Name   string
	Value  string
	Reason string
}

func (e *paramError) Error() string {
	return fmt.Sprintf("parameter %q: %s (got %q)", e.Name, e.Reason, e.Value)
}

// respondError logs err and writes the mapped user message as JSON.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := userMessage(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	respondErrorJSON(w, userMsg, statusCode)
}

func userMessage(err error) core.UserMessage {
	var pe *paramError
	switch {
	case errors.As(err, &pe):
		return core.UserMessage{
			Message: fmt.Sprintf("Invalid %s parameter: %s", pe.Name, pe.Reason),
			Action:  "Use dates in YYYY-MM-DD format and positive limits",
			Code:    "API001",
		}
	case errors.Is(err, analytics.ErrInvalidRange):
		return core.UserMessage{
			Message: "The start date is after the end date",
			Action:  "Swap the from and to parameters",
			Code:    "API002",
		}
	}
	return core.MapError(err)
}

// statusFor picks the HTTP status for a handler error.
func statusFor(err error) int {
	var pe *paramError
	if errors.As(err, &pe) || errors.Is(err, analytics.ErrInvalidRange) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}
