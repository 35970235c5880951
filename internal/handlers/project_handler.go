// internal/handlers/project_handler.go
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
)

type ProjectHandler struct {
	repo       repository.ProjectRepository
	milestones interfaces.MilestoneRepository
	validator  *validator.Validate
}

func NewProjectHandler(repo repository.ProjectRepository, milestones interfaces.MilestoneRepository) *ProjectHandler {
	return &ProjectHandler{
		repo:       repo,
		milestones: milestones,
		validator:  validator.New(),
	}
}

// CreateProject handles POST /projects
// @Tags Projects
// @Summary Create a project with its milestone plan
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param body body models.CreateProjectRequest true "Project with at least one milestone"
// @Success 201 {object} models.Project
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/projects [post]
func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFromContext(r)
	if !ok {
		writeJSONErrorResponse(w, http.StatusUnauthorized, "authentication_required", "Authentication required")
		return
	}
	if ident.Role != models.UserRoleAgency {
		writeJSONErrorResponse(w, http.StatusForbidden, "unauthorized", "Only agency accounts can create projects")
		return
	}

	var req models.CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeJSONErrorResponse(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	project, err := h.repo.Create(r.Context(), ident, &req)
	if err != nil {
		log.Printf("Failed to create project: %v", err)
		writeJSONErrorResponse(w, http.StatusInternalServerError, "create_project_failed", "Failed to create project")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Project created",
		"data":    project,
	})
}

// ListProjects handles GET /projects
// @Tags Projects
// @Summary List the caller's projects
// @Security BearerAuth
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/projects [get]
func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFromContext(r)
	if !ok {
		writeJSONErrorResponse(w, http.StatusUnauthorized, "authentication_required", "Authentication required")
		return
	}

	params, err := parsePaginationParams(r, 20, 100)
	if err != nil {
		writeJSONErrorResponse(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	projects, err := h.repo.ListByAgency(r.Context(), ident.UserID, params.limit, params.offset)
	if err != nil {
		log.Printf("Failed to list projects: %v", err)
		writeJSONErrorResponse(w, http.StatusInternalServerError, "list_projects_failed", "Failed to list projects")
		return
	}

	total, err := h.repo.CountByAgency(r.Context(), ident.UserID)
	if err != nil {
		log.Printf("Failed to count projects: %v", err)
		writeJSONErrorResponse(w, http.StatusInternalServerError, "list_projects_failed", "Failed to list projects")
		return
	}

	if projects == nil {
		projects = []*models.Project{}
	}

	writePaginatedResponse(w, http.StatusOK, projects, params.page, params.pageSize, total)
}

// GetProject handles GET /projects/{id}
// @Tags Projects
// @Summary Get a project with its milestones
// @Security BearerAuth
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} models.Project
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/projects/{id} [get]
func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFromContext(r)
	if !ok {
		writeJSONErrorResponse(w, http.StatusUnauthorized, "authentication_required", "Authentication required")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSONErrorResponse(w, http.StatusBadRequest, "validation_error", "Project ID is required")
		return
	}

	project, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if err == sql.ErrNoRows {
			writeJSONErrorResponse(w, http.StatusNotFound, "project_not_found", "Project not found")
			return
		}
		log.Printf("Failed to get project %s: %v", id, err)
		writeJSONErrorResponse(w, http.StatusInternalServerError, "get_project_failed", "Failed to get project")
		return
	}

	if !isProjectMember(project, ident) {
		writeJSONErrorResponse(w, http.StatusForbidden, "unauthorized", "Unauthorized access to project")
		return
	}

	milestones, err := h.milestones.ListByProject(r.Context(), id)
	if err != nil {
		log.Printf("Failed to list milestones for project %s: %v", id, err)
		writeJSONErrorResponse(w, http.StatusInternalServerError, "get_project_failed", "Failed to get project")
		return
	}
	project.Milestones = milestones

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": project})
}

// GetSummary handles GET /projects/summary
// @Tags Projects
// @Summary Dashboard counts and total value for the caller's projects
// @Security BearerAuth
// @Produce json
// @Success 200 {object} models.ProjectSummary
// @Router /api/v1/projects/summary [get]
func (h *ProjectHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFromContext(r)
	if !ok {
		writeJSONErrorResponse(w, http.StatusUnauthorized, "authentication_required", "Authentication required")
		return
	}

	summary, err := h.repo.Summary(r.Context(), ident.UserID)
	if err != nil {
		log.Printf("Failed to get project summary: %v", err)
		writeJSONErrorResponse(w, http.StatusInternalServerError, "summary_failed", "Failed to get project summary")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": summary})
}

// DeleteProject handles DELETE /projects/{id}
// @Tags Projects
// @Summary Delete a project and all dependent rows
// @Security BearerAuth
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/v1/projects/{id} [delete]
func (h *ProjectHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFromContext(r)
	if !ok {
		writeJSONErrorResponse(w, http.StatusUnauthorized, "authentication_required", "Authentication required")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSONErrorResponse(w, http.StatusBadRequest, "validation_error", "Project ID is required")
		return
	}

	err := h.repo.Delete(r.Context(), ident, id)
	if err != nil {
		var blocked *interfaces.DeletionBlockedError
		switch {
		case err == sql.ErrNoRows:
			writeJSONErrorResponse(w, http.StatusNotFound, "project_not_found", "Project not found")
		case errors.Is(err, interfaces.ErrUnauthorized):
			writeJSONErrorResponse(w, http.StatusForbidden, "unauthorized", "Unauthorized access to project")
		case errors.As(err, &blocked):
			writeDeletionBlocked(w, blocked)
		default:
			log.Printf("Failed to delete project %s: %v", id, err)
			writeJSONErrorResponse(w, http.StatusInternalServerError, "delete_project_failed", "Failed to delete project")
		}
		return
	}

	writeJSONMessage(w, http.StatusOK, "Project deleted")
}
