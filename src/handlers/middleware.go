package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/username/spendwise/backend/src/database"
	"github.com/username/spendwise/backend/src/logger"
	"github.com/username/spendwise/backend/src/models"
	"github.com/username/spendwise/backend/src/utils"
)

// AuthMiddleware validates the bearer token, requires a live session for it,
// and requires a verified email. The user id lands in the request context.
func (h *UserHandler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := bearerToken(r)
		if tokenString == "" {
			logger.L.Debug("AuthMiddleware: Authorization header missing or empty", "path", r.URL.Path)
			utils.SendJSONError(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		userIDStr, err := h.authService.ValidateToken(tokenString)
		if err != nil {
			logger.L.Warn("AuthMiddleware: Token validation failed", "path", r.URL.Path, "error", err)
			utils.SendJSONError(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		if _, err := models.GetSessionByToken(database.DB, tokenString); err != nil {
			logger.L.Warn("AuthMiddleware: Session validation failed", "path", r.URL.Path, "error", err)
			utils.SendJSONError(w, "Invalid or expired session", http.StatusUnauthorized)
			return
		}

		userIDInt, err := strconv.ParseInt(userIDStr, 10, 64)
		if err != nil {
			logger.L.Error("AuthMiddleware: Invalid user ID format in token", "userIDStr", userIDStr)
			utils.SendJSONError(w, "Invalid user ID in token", http.StatusInternalServerError)
			return
		}

		user, err := models.GetUserByID(database.DB, userIDInt)
		if err != nil {
			utils.SendJSONError(w, "Invalid session or user", http.StatusUnauthorized)
			return
		}
		if !user.IsEmailVerified {
			utils.SendJSONError(w, "Email address is not verified.", http.StatusForbidden)
			return
		}

		ctx := context.WithValue(r.Context(), userIDContextKey, userIDInt)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
