package handler

import (
	"log/slog"
	"net/http"

	versionSvc "github.com/Sakenfor/pixsim7-sub004/internal/domain/services/versioning"
	"github.com/Sakenfor/pixsim7-sub004/internal/httputil"
)

// EntityHandler handles entity HTTP requests
type EntityHandler struct {
	entityService versionSvc.EntityService
	allocator     versionSvc.VersionAllocator
	logger        *slog.Logger
}

// NewEntityHandler creates a new entity handler
func NewEntityHandler(entityService versionSvc.EntityService, allocator versionSvc.VersionAllocator, logger *slog.Logger) *EntityHandler {
	return &EntityHandler{
		entityService: entityService,
		allocator:     allocator,
		logger:        logger,
	}
}

// CreateEntity creates an entity, resolving its version from the intent
// POST /api/entities
func (h *EntityHandler) CreateEntity(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	var req versionSvc.CreateEntityRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.OwnerID = ownerID

	result, err := h.allocator.CreateEntity(r.Context(), &req)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, result)
}

// GetEntity retrieves an entity
// GET /api/entities/{id}
func (h *EntityHandler) GetEntity(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id", "entity")
	if !ok {
		return
	}

	entity, err := h.entityService.GetEntity(r.Context(), ownerID, id)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, entity)
}

// DeleteEntity deletes an entity, re-electing HEAD if needed
// DELETE /api/entities/{id}
func (h *EntityHandler) DeleteEntity(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id", "entity")
	if !ok {
		return
	}

	if err := h.entityService.DeleteEntity(r.Context(), ownerID, id); err != nil {
		handleError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ReparentEntity sets or clears the lineage parent
// PUT /api/entities/{id}/parent
func (h *EntityHandler) ReparentEntity(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id", "entity")
	if !ok {
		return
	}

	var req versionSvc.ReparentRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	entity, err := h.entityService.ReparentEntity(r.Context(), ownerID, id, &req)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, entity)
}

// Fork copies an entity into a new family
// POST /api/entities/{id}/fork
func (h *EntityHandler) Fork(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id", "entity")
	if !ok {
		return
	}

	// Body is optional
	var req versionSvc.ForkRequest
	if r.ContentLength != 0 {
		if err := httputil.ParseJSON(w, r, &req); err != nil {
			httputil.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	req.OwnerID = ownerID
	req.SourceEntityID = id

	result, err := h.allocator.Fork(r.Context(), &req)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, result)
}

// GetAncestry returns the parent chain, nearest first
// GET /api/entities/{id}/ancestry
func (h *EntityHandler) GetAncestry(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id", "entity")
	if !ok {
		return
	}

	ancestry, err := h.entityService.GetAncestry(r.Context(), ownerID, id)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, ancestry)
}

// GetDescendants returns everything derived from the entity
// GET /api/entities/{id}/descendants
func (h *EntityHandler) GetDescendants(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id", "entity")
	if !ok {
		return
	}

	descendants, err := h.entityService.GetDescendants(r.Context(), ownerID, id)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, descendants)
}
