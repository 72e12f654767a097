package handler

import (
	"log/slog"
	"net/http"
	"time"

	versionSvc "github.com/Sakenfor/pixsim7-sub004/internal/domain/services/versioning"
	"github.com/Sakenfor/pixsim7-sub004/internal/httputil"
)

// VersionHandler exposes intent resolution on its own
type VersionHandler struct {
	allocator versionSvc.VersionAllocator
	logger    *slog.Logger
}

// NewVersionHandler creates a new version handler
func NewVersionHandler(allocator versionSvc.VersionAllocator, logger *slog.Logger) *VersionHandler {
	return &VersionHandler{
		allocator: allocator,
		logger:    logger,
	}
}

// ResolveIntent returns the family, version number and parent a new entity
// would get. A standalone source is upgraded; the number is not reserved.
// POST /api/versions/resolve
func (h *VersionHandler) ResolveIntent(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	var req versionSvc.ResolveIntentRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.OwnerID = ownerID

	vc, err := h.allocator.ResolveIntent(r.Context(), &req)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, vc)
}

// HealthCheck is a simple health check endpoint
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}
