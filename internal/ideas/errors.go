package ideas

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"

	"github.com/kalambet/partsbin/internal/apperror"
)

var (
	// ErrMissingAPIKey is returned when no API key is configured.
	ErrMissingAPIKey = errors.New("no API key configured")
	// ErrEmptyResponse is returned when the provider answers without text.
	ErrEmptyResponse = errors.New("empty response from model")
)

// UserMessage turns an ideas error into a sentence suitable for display.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var status *StatusError
	var gerr *googleapi.Error
	switch {
	case errors.Is(err, ErrMissingAPIKey):
		return "No API key is configured. Set one with `partsbin settings set api_key <key>` or the PARTSBIN_LLM_API_KEY environment variable."
	case errors.Is(err, context.DeadlineExceeded):
		return "The request for project ideas timed out. Try again or select fewer components."
	case errors.Is(err, context.Canceled):
		return "The request for project ideas was cancelled."
	case isRateLimit(err):
		return "The idea service is rate limiting requests. Wait a minute and try again."
	case errors.Is(err, ErrEmptyResponse):
		return "The model returned an empty answer. Try again or pick another model."
	case errors.As(err, &status):
		return statusMessage(status.Code, status.Body)
	case errors.As(err, &gerr):
		return statusMessage(gerr.Code, gerr.Message)
	}
	if appErr, ok := apperror.AsAppError(err); ok && appErr.Code == apperror.CodeInvalidInput {
		return appErr.Message
	}
	return fmt.Sprintf("Could not get project ideas: %v", err)
}

func statusMessage(code int, detail string) string {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return "The API key was rejected. Check the api_key setting."
	case http.StatusTooManyRequests:
		return "The idea service is rate limiting requests. Wait a minute and try again."
	case http.StatusNotFound:
		return "The configured model was not found. Check the model setting."
	case http.StatusPaymentRequired:
		return "The idea service account has no credit left."
	}
	if detail != "" {
		return fmt.Sprintf("The idea service failed (HTTP %d): %s", code, detail)
	}
	return fmt.Sprintf("The idea service failed (HTTP %d).", code)
}
