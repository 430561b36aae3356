package httputil

import (
	"encoding/json"
	"net/http"
)

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteRejection writes the uniform rejection body used by every gate:
// {"success": false, "message": ..., "code": ..., ...extra}.
// Extra keys never override success, message or code.
func WriteRejection(w http.ResponseWriter, status int, code, message string, extra map[string]interface{}) {
	body := make(map[string]interface{}, len(extra)+3)
	for k, v := range extra {
		body[k] = v
	}
	body["success"] = false
	body["message"] = message
	if code != "" {
		body["code"] = code
	}
	WriteJSON(w, status, body)
}

// WriteError writes a JSON error response with the given status code
func WriteError(w http.ResponseWriter, status int, err error) {
	WriteErrorMessage(w, status, err.Error())
}

// WriteErrorMessage writes a JSON error response with a custom message
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	WriteRejection(w, status, "", message, nil)
}

// WriteValidationError writes a validation error response (400 Bad Request)
// listing each failed rule
func WriteValidationError(w http.ResponseWriter, message string, errs []string) {
	WriteRejection(w, http.StatusBadRequest, "VALIDATION_ERROR", message, map[string]interface{}{
		"errors": errs,
	})
}

// WriteInternalError writes an internal server error response (500 Internal Server Error)
func WriteInternalError(w http.ResponseWriter, err error) {
	WriteError(w, http.StatusInternalServerError, err)
}

// SuccessResponse represents a standardized success response
type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, message string, data interface{}) error {
	return WriteJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: message, Data: data})
}

// WriteCreated writes a successful creation response (201 Created) with JSON data
func WriteCreated(w http.ResponseWriter, message string, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, SuccessResponse{Success: true, Message: message, Data: data})
}

// WriteBadRequest writes a bad request error (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// WriteConflict writes a conflict error (409)
func WriteConflict(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusConflict, message)
}
