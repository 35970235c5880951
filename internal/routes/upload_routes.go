package routes

import (
	"database/sql"
	"time"

	"github.com/go-chi/chi/v5"

	"clientflow/internal/config"
	"clientflow/internal/handlers"
	"clientflow/internal/repository"
	"clientflow/internal/services"
)

func RegisterUploadRoutes(r chi.Router, db *sql.DB, cfg *config.Config, s3Config *config.S3Config, notifier *services.Notifier) {
	milestones := repository.NewMilestoneRepository(db)
	attachments := repository.NewAttachmentRepository(db)

	presignTTL := time.Duration(cfg.PresignExpiresSeconds) * time.Second
	handler := handlers.NewUploadHandler(milestones, attachments, s3Config, presignTTL, notifier)

	r.Post("/uploads/presign", handler.Presign)

	r.Route("/milestones/{id}/files", func(r chi.Router) {
		r.Get("/", handler.GetAttachment)
		r.Post("/", handler.RecordFiles)
		r.Delete("/", handler.DeleteFiles)
	})
	r.Post("/milestones/{id}/upload", handler.RelayUpload)
}
