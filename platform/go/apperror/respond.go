package apperror

import (
	"encoding/json"
	"net/http"
)

// envelope is the uniform response shape: {"success":true,"data":...} or
// {"success":false,"error":{"code":...,"message":...}}.
type envelope struct {
	Success bool         `json:"success"`
	Data    any          `json:"data,omitempty"`
	Error   *errorDetail `json:"error,omitempty"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RespondData writes the success envelope with the given status.
func RespondData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

// RespondError serializes err into the failure envelope using the taxonomy's
// status mapping.
func RespondError(w http.ResponseWriter, err error) {
	appErr := From(err)
	writeJSON(w, appErr.Kind.HTTPStatus(), envelope{
		Success: false,
		Error:   &errorDetail{Code: string(appErr.Kind), Message: appErr.Message},
	})
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
