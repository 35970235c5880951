// internal/handlers/review_handler.go
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

type ReviewHandler struct {
	repo      repository.ReviewRepository
	projects  repository.ProjectRepository
	validator *validator.Validate
}

func NewReviewHandler(repo repository.ReviewRepository, projects repository.ProjectRepository) *ReviewHandler {
	return &ReviewHandler{
		repo:      repo,
		projects:  projects,
		validator: validator.New(),
	}
}

// CreateReview handles POST /reviews
// @Tags Reviews
// @Summary Leave a client review on a project or an approved milestone
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param body body models.CreateReviewRequest true "Review"
// @Success 201 {object} models.Review
// @Failure 400 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/reviews [post]
func (h *ReviewHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFromContext(r)
	if !ok {
		writeJSONErrorResponse(w, http.StatusUnauthorized, "authentication_required", "Authentication required")
		return
	}

	var req models.CreateReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeJSONErrorResponse(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	review, err := h.repo.Create(r.Context(), ident, &req)
	if err != nil {
		var conflict *interfaces.StateConflictError
		switch {
		case err == sql.ErrNoRows:
			writeJSONErrorResponse(w, http.StatusNotFound, "not_found", "Project or milestone not found")
		case errors.Is(err, interfaces.ErrUnauthorized):
			writeJSONErrorResponse(w, http.StatusForbidden, "unauthorized", "Only the project's client can leave a review")
		case errors.As(err, &conflict):
			status := http.StatusBadRequest
			if conflict.Reason == interfaces.ReasonDuplicateReview {
				status = http.StatusConflict
			}
			writeStateConflict(w, status, conflict)
		default:
			log.Printf("Failed to create review: %v", err)
			writeJSONErrorResponse(w, http.StatusInternalServerError, "create_review_failed", "Failed to create review")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Review recorded",
		"data":    review,
	})
}

// ListByProject handles GET /projects/{projectID}/reviews
// @Tags Reviews
// @Summary List reviews of a project
// @Security BearerAuth
// @Produce json
// @Param projectID path string true "Project ID"
// @Success 200 {array} models.Review
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/projects/{projectID}/reviews [get]
func (h *ReviewHandler) ListByProject(w http.ResponseWriter, r *http.Request) {
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
		writeJSONErrorResponse(w, http.StatusInternalServerError, "list_reviews_failed", "Failed to list reviews")
		return
	}
	if !isProjectMember(project, ident) {
		writeJSONErrorResponse(w, http.StatusForbidden, "unauthorized", "Unauthorized access to project")
		return
	}

	reviews, err := h.repo.ListByProject(r.Context(), projectID)
	if err != nil {
		log.Printf("Failed to list reviews for project %s: %v", projectID, err)
		writeJSONErrorResponse(w, http.StatusInternalServerError, "list_reviews_failed", "Failed to list reviews")
		return
	}

	if reviews == nil {
		reviews = []*models.Review{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": reviews})
}
