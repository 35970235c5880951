// internal/handlers/auth_handler.go
package handlers

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"clientflow/internal/config"
	"clientflow/internal/models"
	"clientflow/internal/repository"
	"clientflow/internal/services"
)

const resetTokenTTL = 30 * time.Minute

type AuthHandler struct {
	users     repository.UserRepository
	resets    repository.PasswordResetRepository
	mailer    services.EmailSender
	cfg       *config.Config
	validator *validator.Validate
}

func NewAuthHandler(users repository.UserRepository, resets repository.PasswordResetRepository, mailer services.EmailSender, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		users:     users,
		resets:    resets,
		mailer:    mailer,
		cfg:       cfg,
		validator: validator.New(),
	}
}

func (h *AuthHandler) issueToken(u *models.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   u.ID,
		"email": u.Email,
		"role":  string(u.Role),
		"iat":   now.Unix(),
		"exp":   now.Add(time.Duration(h.cfg.JWTExpiresInSeconds) * time.Second).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.cfg.JWTSecret))
}

// Signup handles POST /auth/signup
// @Tags Auth
// @Summary Register an agency or client account
// @Accept json
// @Produce json
// @Param body body models.SignupRequest true "Signup request"
// @Success 201 {object} models.LoginResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/v1/auth/signup [post]
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeJSONErrorResponse(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := h.users.GetByEmail(r.Context(), email); err == nil {
		writeJSONErrorResponse(w, http.StatusConflict, "email_taken", "An account with this email already exists")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("Failed to hash password: %v", err)
		writeJSONErrorResponse(w, http.StatusInternalServerError, "signup_failed", "Failed to create account")
		return
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         req.Name,
		Role:         models.UserRole(req.Role),
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.users.Create(r.Context(), user); err != nil {
		log.Printf("Failed to create user: %v", err)
		writeJSONErrorResponse(w, http.StatusInternalServerError, "signup_failed", "Failed to create account")
		return
	}

	token, err := h.issueToken(user)
	if err != nil {
		log.Printf("Failed to sign token: %v", err)
		writeJSONErrorResponse(w, http.StatusInternalServerError, "signup_failed", "Failed to create account")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"data": models.LoginResponse{
			AccessToken: token,
			ExpiresIn:   h.cfg.JWTExpiresInSeconds,
			Email:       user.Email,
			Name:        user.Name,
			Role:        user.Role,
		},
	})
}

// Login handles POST /auth/login
// @Tags Auth
// @Summary Exchange credentials for a JWT
// @Accept json
// @Produce json
// @Param body body models.LoginRequest true "Login request"
// @Success 200 {object} models.LoginResponse
// @Failure 401 {object} map[string]interface{}
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeJSONErrorResponse(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	user, err := h.users.GetByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		writeJSONErrorResponse(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		writeJSONErrorResponse(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
		return
	}

	token, err := h.issueToken(user)
	if err != nil {
		log.Printf("Failed to sign token: %v", err)
		writeJSONErrorResponse(w, http.StatusInternalServerError, "login_failed", "Failed to log in")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": models.LoginResponse{
			AccessToken: token,
			ExpiresIn:   h.cfg.JWTExpiresInSeconds,
			Email:       user.Email,
			Name:        user.Name,
			Role:        user.Role,
		},
	})
}

// ForgotPassword handles POST /auth/forgot-password
// @Tags Auth
// @Summary Request a password reset token by email
// @Accept json
// @Produce json
// @Param body body models.ForgotPasswordRequest true "Account email"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req models.ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeJSONErrorResponse(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	// The response never discloses whether the account exists.
	const okMessage = "If the account exists, a reset email has been sent"

	user, err := h.users.GetByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		writeJSONMessage(w, http.StatusOK, okMessage)
		return
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		log.Printf("Failed to generate reset token: %v", err)
		writeJSONErrorResponse(w, http.StatusInternalServerError, "reset_failed", "Failed to start password reset")
		return
	}
	rawToken := hex.EncodeToString(raw)
	hash := sha256.Sum256([]byte(rawToken))

	now := time.Now().UTC()
	token := &models.PasswordResetToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: hex.EncodeToString(hash[:]),
		ExpiresAt: now.Add(resetTokenTTL),
		CreatedAt: now,
	}
	if err := h.resets.Create(r.Context(), token); err != nil {
		log.Printf("Failed to store reset token: %v", err)
		writeJSONErrorResponse(w, http.StatusInternalServerError, "reset_failed", "Failed to start password reset")
		return
	}

	if h.mailer != nil {
		body := fmt.Sprintf("Use this token to reset your password (valid for %d minutes):\n\n%s\n", int(resetTokenTTL.Minutes()), rawToken)
		if err := h.mailer.Send(user.Email, "Password reset", body); err != nil {
			log.Printf("Failed to send reset email to %s: %v", user.Email, err)
		}
	}

	resp := map[string]any{"success": true, "message": okMessage}
	if h.cfg.AuthReturnResetToken {
		resp["reset_token"] = rawToken
	}
	writeJSON(w, http.StatusOK, resp)
}

// ResetPassword handles POST /auth/reset-password
// @Tags Auth
// @Summary Set a new password using a reset token
// @Accept json
// @Produce json
// @Param body body models.ResetPasswordRequest true "Reset token and new password"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/auth/reset-password [post]
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req models.ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeJSONErrorResponse(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	hash := sha256.Sum256([]byte(req.Token))
	token, err := h.resets.GetValidByTokenHash(r.Context(), hex.EncodeToString(hash[:]))
	if err != nil {
		writeJSONErrorResponse(w, http.StatusBadRequest, "invalid_token", "Reset token is invalid or expired")
		return
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("Failed to hash password: %v", err)
		writeJSONErrorResponse(w, http.StatusInternalServerError, "reset_failed", "Failed to reset password")
		return
	}

	if err := h.users.UpdatePasswordHash(r.Context(), token.UserID, string(newHash)); err != nil {
		log.Printf("Failed to update password for user %s: %v", token.UserID, err)
		writeJSONErrorResponse(w, http.StatusInternalServerError, "reset_failed", "Failed to reset password")
		return
	}
	if err := h.resets.MarkUsed(r.Context(), token.ID, time.Now().UTC()); err != nil {
		log.Printf("Failed to mark reset token used: %v", err)
	}

	writeJSONMessage(w, http.StatusOK, "Password updated")
}
