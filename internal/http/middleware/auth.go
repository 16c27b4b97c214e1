package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-bot-builder/internal/auth"
)

// userIDKey holds the authenticated dashboard user in the Gin context.
const userIDKey = "userID"

// DevUserHeader identifies the caller when no signing secret is configured
// and AuthOptions.DevHeader is set. Never enable it in production.
const DevUserHeader = "X-User-ID"

// AuthOptions configures RequireUser.
type AuthOptions struct {
	Verifier  *auth.Verifier
	DevHeader bool
}

// RequireUser authenticates dashboard requests with an HS256 bearer token and
// stores the subject under "userID". Requests without a valid identity are
// rejected with 401.
func RequireUser(opts AuthOptions) gin.HandlerFunc {
	hasSecret := opts.Verifier != nil && len(opts.Verifier.Secret) > 0
	return func(c *gin.Context) {
		if raw := auth.BearerToken(c.GetHeader("Authorization")); raw != "" && hasSecret {
			claims, err := opts.Verifier.Verify(raw)
			if err != nil {
				abortJSON(c, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}
			c.Set(userIDKey, claims.Subject)
			c.Next()
			return
		}
		if !hasSecret && opts.DevHeader {
			if uid := strings.TrimSpace(c.GetHeader(DevUserHeader)); uid != "" {
				c.Set(userIDKey, uid)
				c.Next()
				return
			}
		}
		abortJSON(c, http.StatusUnauthorized, "unauthorized", "authentication required")
	}
}

// UserID returns the identity set by RequireUser.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
