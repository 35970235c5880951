// internal/handlers/milestone_handler.go
package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"clientflow/internal/interfaces"
	"clientflow/internal/models"
	"clientflow/internal/repository"
	"clientflow/internal/services"
)

type MilestoneHandler struct {
	repo      interfaces.MilestoneRepository
	projects  repository.ProjectRepository
	notifier  *services.Notifier
	validator *validator.Validate
}

func NewMilestoneHandler(repo interfaces.MilestoneRepository, projects repository.ProjectRepository, notifier *services.Notifier) *MilestoneHandler {
	return &MilestoneHandler{
		repo:      repo,
		projects:  projects,
		notifier:  notifier,
		validator: validator.New(),
	}
}

// mapLifecycleError translates repository errors to the HTTP taxonomy.
func mapLifecycleError(w http.ResponseWriter, err error, op string) {
	var conflict *interfaces.StateConflictError
	switch {
	case err == sql.ErrNoRows:
		writeJSONErrorResponse(w, http.StatusNotFound, "milestone_not_found", "Milestone not found")
	case errors.Is(err, interfaces.ErrUnauthorized):
		writeJSONErrorResponse(w, http.StatusForbidden, "unauthorized", "Unauthorized access to milestone")
	case errors.As(err, &conflict):
		writeStateConflict(w, http.StatusBadRequest, conflict)
	default:
		log.Printf("Failed to %s milestone: %v", op, err)
		writeJSONErrorResponse(w, http.StatusInternalServerError, op+"_milestone_failed", "Failed to "+op+" milestone")
	}
}

// StartMilestone handles POST /milestones/{id}/start
// @Tags Milestones
// @Summary Start a milestone
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Milestone ID"
// @Param body body models.StartMilestoneRequest false "Optional starting notes"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/milestones/{id}/start [post]
func (h *MilestoneHandler) StartMilestone(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFromContext(r)
	if !ok {
		writeJSONErrorResponse(w, http.StatusUnauthorized, "authentication_required", "Authentication required")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSONErrorResponse(w, http.StatusBadRequest, "validation_error", "Milestone ID is required")
		return
	}

	var req struct {
		Notes *string `json:"notes,omitempty" validate:"omitempty,max=500"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
			return
		}
	}
	if err := h.validator.Struct(req); err != nil {
		writeJSONErrorResponse(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	result, err := h.repo.Start(r.Context(), ident, id, req.Notes)
	if err != nil {
		mapLifecycleError(w, err, "start")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Milestone started",
		"data": map[string]any{
			"milestone":       result.Milestone,
			"project_updated": result.ProjectUpdated,
			"activity_logged": result.ActivityLogged,
		},
	})
}

// ApproveMilestone handles POST /milestones/{id}/approve
// @Tags Milestones
// @Summary Approve a submitted milestone
// @Security BearerAuth
// @Produce json
// @Param id path string true "Milestone ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/milestones/{id}/approve [post]
func (h *MilestoneHandler) ApproveMilestone(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFromContext(r)
	if !ok {
		writeJSONErrorResponse(w, http.StatusUnauthorized, "authentication_required", "Authentication required")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSONErrorResponse(w, http.StatusBadRequest, "validation_error", "Milestone ID is required")
		return
	}

	result, err := h.repo.Approve(r.Context(), ident, id)
	if err != nil {
		mapLifecycleError(w, err, "approve")
		return
	}

	if h.notifier != nil {
		h.notifier.MilestoneApproved(result.Milestone)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Milestone approved",
		"data":    result,
	})
}

// RejectMilestone handles POST /milestones/{id}/reject
// @Tags Milestones
// @Summary Reject a submitted milestone and request a revision
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Milestone ID"
// @Param body body models.RejectMilestoneRequest true "Revision notes"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/milestones/{id}/reject [post]
func (h *MilestoneHandler) RejectMilestone(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFromContext(r)
	if !ok {
		writeJSONErrorResponse(w, http.StatusUnauthorized, "authentication_required", "Authentication required")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSONErrorResponse(w, http.StatusBadRequest, "validation_error", "Milestone ID is required")
		return
	}

	var req struct {
		RevisionNotes string `json:"revision_notes" validate:"required,min=5,max=500"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeJSONErrorResponse(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	result, err := h.repo.Reject(r.Context(), ident, id, req.RevisionNotes)
	if err != nil {
		mapLifecycleError(w, err, "reject")
		return
	}

	if h.notifier != nil {
		h.notifier.MilestoneRejected(result.Milestone, req.RevisionNotes, result.Billable)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Milestone rejected, revision requested",
		"data":    result,
	})
}

// GetMilestone handles GET /milestones/{id}
// @Tags Milestones
// @Summary Get milestone
// @Security BearerAuth
// @Produce json
// @Param id path string true "Milestone ID"
// @Success 200 {object} models.Milestone
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/milestones/{id} [get]
func (h *MilestoneHandler) GetMilestone(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFromContext(r)
	if !ok {
		writeJSONErrorResponse(w, http.StatusUnauthorized, "authentication_required", "Authentication required")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSONErrorResponse(w, http.StatusBadRequest, "validation_error", "Milestone ID is required")
		return
	}

	m, p, err := h.repo.GetWithProject(r.Context(), id)
	if err != nil {
		mapLifecycleError(w, err, "get")
		return
	}

	if !isProjectMember(p, ident) {
		writeJSONErrorResponse(w, http.StatusForbidden, "unauthorized", "Unauthorized access to milestone")
		return
	}

	writeJSON(w, http.StatusOK, m)
}

// ListByProject handles GET /projects/{projectID}/milestones
// @Tags Milestones
// @Summary List milestones of a project
// @Security BearerAuth
// @Produce json
// @Param projectID path string true "Project ID"
// @Success 200 {array} models.Milestone
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/projects/{projectID}/milestones [get]
func (h *MilestoneHandler) ListByProject(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFromContext(r)
	if !ok {
		writeJSONErrorResponse(w, http.StatusUnauthorized, "authentication_required", "Authentication required")
		return
	}

	projectID := chi.URLParam(r, "projectID")
	if projectID == "" {
		writeJSONErrorResponse(w, http.StatusBadRequest, "validation_error", "projectID is required")
		return
	}

	project, err := h.projects.GetByID(r.Context(), projectID)
	if err != nil {
		if err == sql.ErrNoRows {
			writeJSONErrorResponse(w, http.StatusNotFound, "project_not_found", "Project not found")
			return
		}
		log.Printf("Failed to get project %s: %v", projectID, err)
		writeJSONErrorResponse(w, http.StatusInternalServerError, "list_milestones_failed", "Failed to list milestones")
		return
	}
	if !isProjectMember(project, ident) {
		writeJSONErrorResponse(w, http.StatusForbidden, "unauthorized", "Unauthorized access to project")
		return
	}

	milestones, err := h.repo.ListByProject(r.Context(), projectID)
	if err != nil {
		log.Printf("Failed to list milestones: %v", err)
		writeJSONErrorResponse(w, http.StatusInternalServerError, "list_milestones_failed", "Failed to list milestones")
		return
	}

	if milestones == nil {
		milestones = []*models.Milestone{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": milestones})
}
