package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/Sakenfor/pixsim7-sub004/internal/domain"
	"github.com/Sakenfor/pixsim7-sub004/internal/httputil"
)

// retryAfterSeconds is sent with 503s for allocation contention
const retryAfterSeconds = 1

// handleError converts domain errors to HTTP responses
func handleError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var invalidHead *domain.InvalidHeadError
	var conflictErr *domain.ConflictError

	switch {
	case errors.As(err, &invalidHead):
		httputil.RespondErrorWithExtras(w, http.StatusBadRequest, invalidHead.Error(), map[string]any{
			"error_code": "invalid_head",
			"family_id":  invalidHead.FamilyID,
			"entity_id":  invalidHead.EntityID,
		})
	case errors.Is(err, domain.ErrInvalidIntent):
		httputil.RespondErrorWithExtras(w, http.StatusBadRequest, err.Error(), map[string]any{
			"error_code": "invalid_intent",
		})
	case errors.Is(err, domain.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		httputil.RespondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		httputil.RespondError(w, http.StatusForbidden, err.Error())
	case domain.IsRetryable(err):
		logger.Warn("allocation contention surfaced to client", "error", err)
		httputil.RespondRetryable(w, retryAfterSeconds, "the family is busy, retry the request")
	case errors.As(err, &conflictErr):
		httputil.RespondError(w, http.StatusConflict, conflictErr.Error())
	default:
		logger.Error("unhandled error", "error", err)
		httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// pathID reads and validates a UUID path parameter. It writes a 400 and
// returns false when the value is missing or malformed.
func pathID(w http.ResponseWriter, r *http.Request, name, resource string) (string, bool) {
	raw := r.PathValue(name)
	if raw == "" {
		httputil.RespondError(w, http.StatusBadRequest, resource+" ID is required")
		return "", false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid "+resource+" ID")
		return "", false
	}
	return id.String(), true
}

// requireOwner reads the owner set by the auth middleware
func requireOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	ownerID := httputil.GetOwnerID(r)
	if ownerID == "" {
		httputil.RespondError(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	return ownerID, true
}
