package routes

import (
	"database/sql"

	"github.com/go-chi/chi/v5"

	"clientflow/internal/handlers"
	"clientflow/internal/repository"
)

func RegisterReviewRoutes(r chi.Router, db *sql.DB) {
	reviews := repository.NewReviewRepository(db)
	projects := repository.NewProjectRepository(db)
	handler := handlers.NewReviewHandler(reviews, projects)

	r.Post("/reviews", handler.CreateReview)
	r.Get("/projects/{projectID}/reviews", handler.ListByProject)
}
