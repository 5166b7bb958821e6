package utils

import (
	"encoding/json"
	"net/http"

	"github.com/username/spendwise/backend/src/logger"
)

// APIResponse is the envelope used by every non-validation response.
type APIResponse struct {
	Status  bool        `json:"status"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
}

// SendJSONSuccess writes a {status:true, data, message} envelope.
func SendJSONSuccess(w http.ResponseWriter, data interface{}, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(APIResponse{Status: true, Data: data, Message: message}); err != nil {
		if logger.L != nil {
			logger.L.Error("Failed to encode success response", "error", err)
		}
	}
}

// SendJSONError writes a {status:false, data, message} envelope.
func SendJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if logger.L != nil {
		logger.L.Warn("Sending JSON error to client", "message", message, "statusCode", statusCode)
	}
	json.NewEncoder(w).Encode(APIResponse{Status: false, Data: "", Message: message})
}

// SendValidationErrors writes the per-field error map used for 422 responses.
// The shape is {errors: {field: [messages]}}.
func SendValidationErrors(w http.ResponseWriter, errs map[string][]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnprocessableEntity)
	json.NewEncoder(w).Encode(map[string]interface{}{"errors": errs})
}
