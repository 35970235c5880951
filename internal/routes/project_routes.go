package routes

import (
	"database/sql"

	"github.com/go-chi/chi/v5"

	"clientflow/internal/handlers"
	"clientflow/internal/repository"
)

func RegisterProjectRoutes(r chi.Router, db *sql.DB) {
	projects := repository.NewProjectRepository(db)
	milestones := repository.NewMilestoneRepository(db)
	handler := handlers.NewProjectHandler(projects, milestones)

	r.Route("/projects", func(r chi.Router) {
		r.Post("/", handler.CreateProject)
		r.Get("/", handler.ListProjects)
		r.Get("/summary", handler.GetSummary)
		r.Get("/{id}", handler.GetProject)
		r.Delete("/{id}", handler.DeleteProject)
	})
}
