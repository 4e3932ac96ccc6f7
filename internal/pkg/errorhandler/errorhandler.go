package errorhandler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mwork/moderation-api/internal/pkg/logger"
	"github.com/mwork/moderation-api/internal/pkg/response"
)

// HandleError logs err with the request logger and sends a formatted error
func HandleError(ctx context.Context, w http.ResponseWriter, status int, code, message string, err error) {
	event := logger.FromContext(ctx).Error().
		Str("error_code", code).
		Int("status_code", status)
	if err != nil {
		event = event.Err(err)
	}
	event.Msg(message)

	response.Error(w, status, code, message)
}

// HandleInternal logs err and sends a generic 500
func HandleInternal(ctx context.Context, w http.ResponseWriter, err error) {
	logger.FromContext(ctx).Error().Err(err).Msg("Request error")
	response.InternalError(w)
}

// HandleValidation logs field errors and sends a 422
func HandleValidation(ctx context.Context, w http.ResponseWriter, fieldErrors map[string]string) {
	errJSON, _ := json.Marshal(fieldErrors)
	logger.FromContext(ctx).Warn().
		RawJSON("validation_errors", errJSON).
		Msg("Validation error")
	response.ValidationError(w, fieldErrors)
}

// HandlePanic logs a recovered panic with its stack and sends a generic 500.
// The stack is never sent to the client.
func HandlePanic(ctx context.Context, w http.ResponseWriter, r *http.Request, panicErr interface{}, stackTrace string) {
	logger.FromContext(ctx).Error().
		Interface("panic_error", panicErr).
		Str("panic_stack", stackTrace).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Msg("Panic recovered")

	response.InternalError(w)
}
