package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"sealtrack/internal/config"
	"sealtrack/internal/domain"
)

const principalContextKey = "principal"

// requireAuth resolves the caller. With AUTH_MODE=none the principal is read
// from X-Principal-* headers set by a trusted proxy.
func (s *Server) requireAuth(c *gin.Context) {
	if s.authInitErr != nil {
		writeErrorCode(c, http.StatusInternalServerError, "AUTH_CONFIG_ERROR", "auth configuration error")
		c.Abort()
		return
	}
	var principal domain.Principal
	if s.cfg.AuthMode == config.AuthModeNone {
		principal = headerPrincipal(c)
	} else {
		token := extractBearerToken(c.GetHeader("Authorization"))
		if token == "" {
			writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
			c.Abort()
			return
		}
		var err error
		principal, err = s.authenticator.Authenticate(c.Request.Context(), token)
		if err != nil {
			writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid bearer token")
			c.Abort()
			return
		}
	}
	if principal.Subject == "" && principal.Email == "" {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "principal required")
		c.Abort()
		return
	}
	c.Set(principalContextKey, principal)
	c.Next()
}

func headerPrincipal(c *gin.Context) domain.Principal {
	principal := domain.Principal{
		Subject: strings.TrimSpace(c.GetHeader("X-Principal-Subject")),
		Email:   domain.NormalizeEmail(c.GetHeader("X-Principal-Email")),
	}
	if roles := strings.TrimSpace(c.GetHeader("X-Principal-Roles")); roles != "" {
		principal.Roles = splitCSV(roles)
	}
	return principal
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func extractBearerToken(value string) string {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(strings.ToLower(value), "bearer ") {
		return ""
	}
	return strings.TrimSpace(value[len("bearer "):])
}

func getPrincipal(c *gin.Context) domain.Principal {
	raw, ok := c.Get(principalContextKey)
	if !ok {
		return domain.Principal{}
	}
	principal, _ := raw.(domain.Principal)
	return principal
}
