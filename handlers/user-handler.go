package handlers

import (
	"encoding/json"
	"net/http"

	"telecom-project/tasks-service/logging"
	"telecom-project/tasks-service/middleware"
	"telecom-project/tasks-service/services"
)

type UserHandler struct {
	service *services.UserService
}

func NewUserHandler(service *services.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// GetCurrentUser handles GET /api/users/me. The user document is created
// lazily from the token claims on the first visit.
func (h *UserHandler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	user, err := h.service.EnsureUser(r.Context(), claims)
	if err != nil {
		logging.Logger.Errorf("Event ID: USER_ENSURE_FAILED, Description: Failed to resolve current user %s: %v", claims.UserID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

// GetAllUsers handles GET /api/users, used by the participant pickers.
func (h *UserHandler) GetAllUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.GetAllUsers(r.Context())
	if err != nil {
		logging.Logger.Errorf("Event ID: USER_LIST_FAILED, Description: Failed to list users: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(users)
}
