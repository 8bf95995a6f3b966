package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"telecom-project/tasks-service/logging"
	"telecom-project/tasks-service/middleware"
	"telecom-project/tasks-service/services"
)

type DashboardHandler struct {
	users     *services.UserService
	dashboard *services.DashboardService
}

func NewDashboardHandler(users *services.UserService, dashboard *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{users: users, dashboard: dashboard}
}

// GetSummary handles GET /api/dashboard/summary: per-status report counts
// with a month-over-month delta, scoped by the caller's role.
func (h *DashboardHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	user, err := h.users.EnsureUser(r.Context(), claims)
	if err != nil {
		logging.Logger.Errorf("Event ID: DASHBOARD_USER_FAILED, Description: Failed to resolve dashboard user %s: %v", claims.UserID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	summary, err := h.dashboard.GetSummary(r.Context(), user)
	if err != nil {
		logging.Logger.Errorf("Event ID: DASHBOARD_SUMMARY_FAILED, Description: Failed to build dashboard summary for %s: %v", user.ProviderUserID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

// GetRecentReports handles GET /api/reports?limit=N for the dashboard's
// "Last Reports" block.
func (h *DashboardHandler) GetRecentReports(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	user, err := h.users.EnsureUser(r.Context(), claims)
	if err != nil {
		logging.Logger.Errorf("Event ID: DASHBOARD_USER_FAILED, Description: Failed to resolve dashboard user %s: %v", claims.UserID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	limit, _ := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)

	reports, err := h.dashboard.ListRecentReports(r.Context(), user, limit)
	if err != nil {
		logging.Logger.Errorf("Event ID: REPORT_LIST_FAILED, Description: Failed to list reports for %s: %v", user.ProviderUserID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(reports)
}
