package auth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// revokeTokenRequest is the request body for POST /auth/revoke.
type revokeTokenRequest struct {
	JTI       string    `json:"jti"`
	ExpiresAt time.Time `json:"expires_at"`
}

// revokeUserRequest is the request body for POST /auth/revoke-user.
type revokeUserRequest struct {
	UserID string `json:"user_id"`
}

// revokeUserResponse is the response for POST /auth/revoke-user.
type revokeUserResponse struct {
	UserID    string    `json:"user_id"`
	RevokedAt time.Time `json:"revoked_at"`
}

// revocationListResponse is the response for GET /auth/revocations.
type revocationListResponse struct {
	Count  int              `json:"count"`
	Tokens []RevocationInfo `json:"tokens"`
	Users  []UserRevocation `json:"users"`
}

// RegisterRevocationRoutes registers token revocation management
// endpoints on the authenticated API group. All of them are admin-only.
func RegisterRevocationRoutes(api *echo.Group, store *TokenRevocationStore) {
	g := api.Group("/auth", RequireAdmin())

	g.POST("/revoke", handleRevokeToken(store))
	g.POST("/revoke-user", handleRevokeUser(store))
	g.GET("/revocations", handleListRevocations(store))
}

// handleRevokeToken revokes a specific token by jti.
func handleRevokeToken(store *TokenRevocationStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req revokeTokenRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}

		if req.JTI == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "jti is required")
		}

		if req.ExpiresAt.IsZero() {
			// Default to 1 hour from now if no expiry provided
			req.ExpiresAt = time.Now().Add(1 * time.Hour)
		}

		store.Revoke(req.JTI, req.ExpiresAt)
		return c.NoContent(http.StatusNoContent)
	}
}

// handleRevokeUser invalidates every token the user holds by recording
// a cutoff at the current instant.
func handleRevokeUser(store *TokenRevocationStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req revokeUserRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}

		if req.UserID == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
		}

		cutoff := store.RevokeUser(req.UserID)
		return c.JSON(http.StatusOK, revokeUserResponse{UserID: req.UserID, RevokedAt: cutoff})
	}
}

// handleListRevocations returns all currently active revocations.
func handleListRevocations(store *TokenRevocationStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		tokens := store.Entries()
		return c.JSON(http.StatusOK, revocationListResponse{
			Count:  len(tokens),
			Tokens: tokens,
			Users:  store.UserEntries(),
		})
	}
}
