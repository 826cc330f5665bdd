// README: Firebase ID-token auth and role gates.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"busops/internal/infra"
)

const (
	ctxCallerUID  = "caller_uid"
	ctxCallerRole = "caller_role"
)

// Auth verifies the bearer token and stores the caller's uid and role claim
// on the context.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			abortJSON(c, http.StatusUnauthorized, "missing bearer token")
			return
		}
		token, err := verifier.VerifyIDToken(c.Request.Context(), strings.TrimSpace(raw))
		if err != nil || token == nil {
			abortJSON(c, http.StatusUnauthorized, "invalid token")
			return
		}
		role, _ := token.Claims["role"].(string)
		c.Set(ctxCallerUID, token.UID)
		c.Set(ctxCallerRole, strings.ToLower(strings.TrimSpace(role)))
		c.Next()
	}
}

func CallerUID(c *gin.Context) string {
	return c.GetString(ctxCallerUID)
}

func CallerRole(c *gin.Context) string {
	return c.GetString(ctxCallerRole)
}

// RequireRoles admits only callers whose role claim is one of roles. It must
// run after Auth.
func RequireRoles(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[strings.ToLower(strings.TrimSpace(r))] = struct{}{}
	}
	return func(c *gin.Context) {
		role := CallerRole(c)
		if role == "" {
			abortJSON(c, http.StatusForbidden, "role claim missing")
			return
		}
		if _, ok := allowed[role]; !ok {
			abortJSON(c, http.StatusForbidden, "role not permitted")
			return
		}
		c.Next()
	}
}

func abortJSON(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "request_id": RequestIDFrom(c)})
}
