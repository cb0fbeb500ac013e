package handlers

import (
	"net/http"

	"github.com/ledgerly/backend/internal/middleware"
	"github.com/ledgerly/backend/internal/services"
)

// requireUser writes 401 and returns "" when the route was reached without
// an authenticated user.
func requireUser(w http.ResponseWriter, r *http.Request) string {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
	}
	return userID
}
