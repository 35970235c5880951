package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"clientflow/internal/interfaces"
	"clientflow/internal/middleware"
	"clientflow/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": true, "message": message})
}

func writeJSONErrorResponse(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, map[string]any{"success": false, "error": code, "message": message})
}

// writeStateConflict surfaces a StateConflictError with its machine-readable
// reason and the conflicting state data.
func writeStateConflict(w http.ResponseWriter, status int, e *interfaces.StateConflictError) {
	body := map[string]any{"success": false, "error": e.Reason, "message": e.Message}
	if len(e.Current) > 0 {
		body["details"] = e.Current
	}
	writeJSON(w, status, body)
}

func writeDeletionBlocked(w http.ResponseWriter, e *interfaces.DeletionBlockedError) {
	writeJSON(w, http.StatusConflict, map[string]any{
		"success":    false,
		"error":      "deletion_blocked",
		"message":    "deletion blocked by existing deliverables",
		"resource":   e.Resource,
		"references": e.References,
	})
}

// isProjectMember reports whether the caller is the owning agency or the
// project's designated client (matched by stored client_email).
func isProjectMember(p *models.Project, ident interfaces.Identity) bool {
	if p == nil {
		return false
	}
	if p.AgencyID == ident.UserID {
		return true
	}
	return ident.Email != "" && strings.EqualFold(p.ClientEmail, ident.Email)
}

// identityFromContext pulls the verified caller set by the JWT middleware.
// ok is false when the request skipped authentication.
func identityFromContext(r *http.Request) (interfaces.Identity, bool) {
	userID, _ := r.Context().Value(middleware.CtxUserID).(string)
	email, _ := r.Context().Value(middleware.CtxEmail).(string)
	role, _ := r.Context().Value(middleware.CtxRole).(string)
	if userID == "" {
		return interfaces.Identity{}, false
	}
	return interfaces.Identity{
		UserID: userID,
		Email:  email,
		Role:   models.UserRole(role),
	}, true
}
