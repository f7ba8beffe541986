package handlers

import (
	"net/http"

	"go.uber.org/zap"
)

// userIDHeader carries the authenticated user id, set by the fronting
// gateway after token verification.
const userIDHeader = "X-User-ID"

// RequireUser extracts the caller's user id. Writes a 401 and returns
// ok=false when the header is absent.
func RequireUser(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (string, bool) {
	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		if err := ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Missing user identity"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return "", false
	}
	return userID, true
}
