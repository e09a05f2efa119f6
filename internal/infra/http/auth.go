package http

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// requireAdminKey gates chain unlock behind the X-Admin-Key header.
// Comparison is constant time; an unset key disables the endpoint
// entirely rather than leaving it open.
func (s *Server) requireAdminKey(c *gin.Context) bool {
	if s.adminAPIKey == "" {
		writeErrorCode(c, http.StatusForbidden, "ADMIN_DISABLED", "admin endpoints are not configured")
		return false
	}
	got := strings.TrimSpace(c.GetHeader("X-Admin-Key"))
	if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(s.adminAPIKey)) != 1 {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid admin key")
		return false
	}
	return true
}
