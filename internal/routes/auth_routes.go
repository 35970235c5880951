package routes

import (
	"database/sql"

	"github.com/go-chi/chi/v5"

	"clientflow/internal/config"
	"clientflow/internal/handlers"
	"clientflow/internal/repository"
	"clientflow/internal/services"
)

func RegisterAuthRoutes(router chi.Router, db *sql.DB, cfg *config.Config, mailer services.EmailSender) {
	users := repository.NewUserRepository(db)
	resets := repository.NewPasswordResetRepository(db)
	handler := handlers.NewAuthHandler(users, resets, mailer, cfg)

	router.Route("/auth", func(r chi.Router) {
		r.Post("/signup", handler.Signup)
		r.Post("/login", handler.Login)
		r.Post("/forgot-password", handler.ForgotPassword)
		r.Post("/reset-password", handler.ResetPassword)
	})
}
