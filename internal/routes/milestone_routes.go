package routes

import (
	"database/sql"

	"github.com/go-chi/chi/v5"

	"clientflow/internal/handlers"
	"clientflow/internal/repository"
	"clientflow/internal/services"
)

func RegisterMilestoneRoutes(r chi.Router, db *sql.DB, notifier *services.Notifier) {
	repo := repository.NewMilestoneRepository(db)
	projects := repository.NewProjectRepository(db)
	handler := handlers.NewMilestoneHandler(repo, projects, notifier)

	r.Route("/milestones/{id}", func(r chi.Router) {
		r.Get("/", handler.GetMilestone)
		r.Post("/start", handler.StartMilestone)
		r.Post("/approve", handler.ApproveMilestone)
		r.Post("/reject", handler.RejectMilestone)
	})

	r.Get("/projects/{projectID}/milestones", handler.ListByProject)
}
