package routes

import (
	"database/sql"

	"github.com/go-chi/chi/v5"

	"clientflow/internal/handlers"
	"clientflow/internal/repository"
)

func RegisterActivityRoutes(r chi.Router, db *sql.DB) {
	activities := repository.NewActivityRepository(db)
	projects := repository.NewProjectRepository(db)
	handler := handlers.NewActivityHandler(activities, projects)

	r.Get("/projects/{projectID}/activities", handler.ListByProject)
}
