// internal/handlers/activity_handler.go
package handlers

import (
	"database/sql"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"clientflow/internal/models"
	"clientflow/internal/repository"
)

type ActivityHandler struct {
	repo     repository.ActivityRepository
	projects repository.ProjectRepository
}

func NewActivityHandler(repo repository.ActivityRepository, projects repository.ProjectRepository) *ActivityHandler {
	return &ActivityHandler{repo: repo, projects: projects}
}

// ListByProject handles GET /projects/{projectID}/activities
// @Tags Activities
// @Summary List the audit trail of a project, newest first
// @Security BearerAuth
// @Produce json
// @Param projectID path string true "Project ID"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/projects/{projectID}/activities [get]
func (h *ActivityHandler) ListByProject(w http.ResponseWriter, r *http.Request) {
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

	params, err := parsePaginationParams(r, 50, 200)
	if err != nil {
		writeJSONErrorResponse(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	project, err := h.projects.GetByID(r.Context(), projectID)
	if err != nil {
		if err == sql.ErrNoRows {
			writeJSONErrorResponse(w, http.StatusNotFound, "project_not_found", "Project not found")
			return
		}
		log.Printf("Failed to get project %s: %v", projectID, err)
		writeJSONErrorResponse(w, http.StatusInternalServerError, "list_activities_failed", "Failed to list activities")
		return
	}
	if !isProjectMember(project, ident) {
		writeJSONErrorResponse(w, http.StatusForbidden, "unauthorized", "Unauthorized access to project")
		return
	}

	activities, err := h.repo.ListByProject(r.Context(), projectID, params.limit, params.offset)
	if err != nil {
		log.Printf("Failed to list activities for project %s: %v", projectID, err)
		writeJSONErrorResponse(w, http.StatusInternalServerError, "list_activities_failed", "Failed to list activities")
		return
	}

	total, err := h.repo.CountByProject(r.Context(), projectID)
	if err != nil {
		log.Printf("Failed to count activities for project %s: %v", projectID, err)
		writeJSONErrorResponse(w, http.StatusInternalServerError, "list_activities_failed", "Failed to list activities")
		return
	}

	if activities == nil {
		activities = []*models.ProjectActivity{}
	}

	writePaginatedResponse(w, http.StatusOK, activities, params.page, params.pageSize, total)
}
