package handler

import (
	"log/slog"
	"net/http"

	"github.com/Sakenfor/pixsim7-sub004/internal/config"
	versionSvc "github.com/Sakenfor/pixsim7-sub004/internal/domain/services/versioning"
	"github.com/Sakenfor/pixsim7-sub004/internal/httputil"
)

// FamilyHandler handles family HTTP requests
type FamilyHandler struct {
	familyService versionSvc.FamilyService
	logger        *slog.Logger
}

// NewFamilyHandler creates a new family handler
func NewFamilyHandler(familyService versionSvc.FamilyService, logger *slog.Logger) *FamilyHandler {
	return &FamilyHandler{
		familyService: familyService,
		logger:        logger,
	}
}

// updateFamilyBody is the PATCH body. Description distinguishes absent from null.
type updateFamilyBody struct {
	Name        *string                 `json:"name"`
	Description httputil.OptionalString `json:"description"`
}

// CreateFamily creates an empty family
// POST /api/families
func (h *FamilyHandler) CreateFamily(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	var req versionSvc.CreateFamilyRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.OwnerID = ownerID

	family, err := h.familyService.CreateFamily(r.Context(), &req)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, family)
}

// ListFamilies lists the caller's families
// GET /api/families?limit=&offset=
func (h *FamilyHandler) ListFamilies(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	limit, err := httputil.QueryInt(r, "limit", config.DefaultListLimit)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := httputil.QueryInt(r, "offset", 0)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	families, err := h.familyService.ListFamilies(r.Context(), ownerID, &versionSvc.ListFamiliesRequest{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, families)
}

// GetFamily retrieves a family with its version count and latest number
// GET /api/families/{id}
func (h *FamilyHandler) GetFamily(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id", "family")
	if !ok {
		return
	}

	family, err := h.familyService.GetFamily(r.Context(), ownerID, id)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, family)
}

// UpdateFamily renames a family or changes its description
// PATCH /api/families/{id}
func (h *FamilyHandler) UpdateFamily(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id", "family")
	if !ok {
		return
	}

	var body updateFamilyBody
	if err := httputil.ParseJSON(w, r, &body); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	family, err := h.familyService.UpdateFamily(r.Context(), ownerID, id, &versionSvc.UpdateFamilyRequest{
		Name: body.Name,
		Description: versionSvc.OptionalDescription{
			Present: body.Description.Present,
			Value:   body.Description.Value,
		},
	})
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, family)
}

// DeleteFamily deletes a family; its members become standalone entities
// DELETE /api/families/{id}
func (h *FamilyHandler) DeleteFamily(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id", "family")
	if !ok {
		return
	}

	if err := h.familyService.DeleteFamily(r.Context(), ownerID, id); err != nil {
		handleError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetHead moves HEAD to a member entity
// PUT /api/families/{id}/head
func (h *FamilyHandler) SetHead(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id", "family")
	if !ok {
		return
	}

	var req versionSvc.SetHeadRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.EntityID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "entity_id is required")
		return
	}

	family, err := h.familyService.SetHead(r.Context(), ownerID, id, req.EntityID)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, family)
}

// GetTimeline lists the family's versions in order
// GET /api/families/{id}/timeline
func (h *FamilyHandler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id", "family")
	if !ok {
		return
	}

	timeline, err := h.familyService.GetTimeline(r.Context(), ownerID, id)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, timeline)
}
