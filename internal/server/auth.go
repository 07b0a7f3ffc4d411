package server

import (
	"crypto/subtle"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
)

func secretsMatch(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// requireCronSecret guards POST /run. With CRON_SECRET unset the check is
// skipped, so local development needs no header.
func (s *Server) requireCronSecret() gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := os.Getenv("CRON_SECRET")
		if secret == "" {
			c.Next()
			return
		}
		if !secretsMatch(c.GetHeader("X-Cron-Secret"), secret) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "invalid or missing X-Cron-Secret",
			})
			return
		}
		c.Next()
	}
}

// requireDashboardAuth guards config writes. Accepts basic auth against
// DASHBOARD_USER/DASHBOARD_PASS or a bearer token against DASHBOARD_TOKEN.
// With neither configured, writes are rejected outright.
func (s *Server) requireDashboardAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, pass := os.Getenv("DASHBOARD_USER"), os.Getenv("DASHBOARD_PASS")
		token := os.Getenv("DASHBOARD_TOKEN")

		if token != "" {
			bearer := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
			if bearer != "" && secretsMatch(strings.TrimSpace(bearer), token) {
				c.Set("auth_user", "token")
				c.Next()
				return
			}
		}
		if user != "" && pass != "" {
			if u, p, ok := c.Request.BasicAuth(); ok && secretsMatch(u, user) && secretsMatch(p, pass) {
				c.Set("auth_user", u)
				c.Next()
				return
			}
		}

		c.Header("WWW-Authenticate", `Basic realm="dashboard"`)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
	}
}

// authUser returns the identity the auth middleware recorded.
func authUser(c *gin.Context) string {
	if u, ok := c.Get("auth_user"); ok {
		if name, ok := u.(string); ok {
			return name
		}
	}
	return "dashboard"
}
