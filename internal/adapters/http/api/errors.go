package api

import (
	"errors"
	"net/http"

	"github.com/tapdin/planner/internal/domain/errs"
)

// Messages returned in {"error": ...} bodies.
const (
	msgNoText           = "No text extracted"
	msgNotJSON          = "OpenAI response is not in JSON format"
	msgParseResponse    = "Error parsing response from OpenAI"
	msgProcessFailed    = "Failed to process request"
	msgTooLarge         = "Request body too large"
	msgFetchFailed      = "Failed to fetch plans"
	msgInvalidID        = "Invalid plan ID"
	msgPlanNotFound     = "Plan not found"
	msgDeleteFailed     = "Failed to delete plan"
	msgStoreHealthy     = "ok"
	msgStoreUnavailable = "unavailable"
)

// processFailure maps a pipeline error to its status and message.
func processFailure(err error) (int, string) {
	switch {
	case errs.KindOf(err) == errs.ClassInvalidInput:
		return http.StatusBadRequest, msgNoText
	case errors.Is(err, errs.ErrNonJSONResponse):
		return http.StatusInternalServerError, msgNotJSON
	case errors.Is(err, errs.ErrResponseParse):
		return http.StatusInternalServerError, msgParseResponse
	default:
		return http.StatusInternalServerError, msgProcessFailed
	}
}

// deleteFailure maps a store delete error to its status and message.
func deleteFailure(err error) (int, string) {
	switch errs.KindOf(err) {
	case errs.ClassInvalidInput:
		return http.StatusBadRequest, msgInvalidID
	case errs.ClassNotFound:
		return http.StatusNotFound, msgPlanNotFound
	default:
		return http.StatusInternalServerError, msgDeleteFailed
	}
}
