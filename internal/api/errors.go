package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	apperrors "github.com/refina-analytics/internal/errors"
	"github.com/refina-analytics/internal/logging"
)

// Response messages shared with API clients
const (
	msgTokenRequired  = "Authentication token is required"
	msgTokenInvalid   = "Invalid or expired token"
	msgInternalError  = "Internal server error"
	msgRouteNotFound  = "Route not found"
	msgInvalidSecret  = "Invalid secret key"
	msgSyncCompleted  = "Initial sync completed successfully"
	msgUserIDMismatch = "userID does not match the authenticated user"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

// respondError categorizes err and writes it as an ErrorResponse. Details of
// internal failures are logged, never sent.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	catErr := apperrors.Categorize(err)
	logger := logging.FromContext(r.Context()).WithFields(map[string]interface{}{
		"method":      r.Method,
		"path":        r.URL.Path,
		"status_code": catErr.StatusCode,
		"code":        catErr.Code,
	})

	message := catErr.Message
	if catErr.StatusCode >= http.StatusInternalServerError {
		logger.WithError(err).Error("Request failed")
		if catErr.Category == apperrors.CategorySystem {
			message = msgInternalError
		}
	} else {
		logger.WithField("message", catErr.Message).Warn("Request rejected")
	}

	if retry, ok := catErr.Details["retryAfter"]; ok {
		if seconds, ok := retry.(int); ok && seconds > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
		}
	}

	respondJSON(w, catErr.StatusCode, ErrorResponse{
		StatusCode: catErr.StatusCode,
		Message:    message,
	})
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.NewInvalidBodyError(errors.New("request body is empty"))
		}
		return apperrors.NewInvalidBodyError(err)
	}
	return nil
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	logging.FromContext(r.Context()).WithFields(map[string]interface{}{
		"method": r.Method,
		"path":   r.URL.Path,
	}).Warn("Route not found")

	respondJSON(w, http.StatusNotFound, ErrorResponse{
		StatusCode: http.StatusNotFound,
		Message:    msgRouteNotFound,
	})
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusMethodNotAllowed, ErrorResponse{
		StatusCode: http.StatusMethodNotAllowed,
		Message:    http.StatusText(http.StatusMethodNotAllowed),
	})
}
