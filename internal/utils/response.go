package utils

import (
	"encoding/json"
	"net/http"
	"time"

	"gatekeeper/internal/errs"
)

type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Code      string      `json:"code,omitempty"`
	Details   []string    `json:"details,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func ErrorResponse(message, code string) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Error:     message,
		Code:      code,
		Timestamp: time.Now(),
	}
}

func WriteJSON(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// WriteError maps a service error to the response envelope. Validation
// errors keep their full violation list; unclassified errors are hidden
// behind a generic message so internals never leak.
func WriteError(w http.ResponseWriter, err error) {
	status := errs.StatusFor(err)
	code := errs.CodeFor(err)

	resp := ErrorResponse(err.Error(), code)
	if e, ok := errs.As(err); ok {
		resp.Message = e.Message
		resp.Error = e.Message
		resp.Details = e.Violations
	} else {
		resp.Message = "internal server error"
		resp.Error = "internal server error"
	}
	WriteJSON(w, status, resp)
}
