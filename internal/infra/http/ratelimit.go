package http

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"sealtrack/internal/domain"
)

const (
	routeTemplatesRead   = "templates:read"
	routeDocumentsRead   = "documents:read"
	routeDocumentsWrite  = "documents:write"
	routeDocumentsSign   = "documents:sign"
	routeDocumentsVerify = "documents:verify"
	routeLedgerRead      = "ledger:read"
)

var subjectLimitedRoutes = map[string]bool{
	routeDocumentsSign:   true,
	routeDocumentsVerify: true,
	routeDocumentsWrite:  true,
}

func (s *Server) limit(routeID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.enforceRateLimit(c, routeID, getPrincipal(c)) {
			c.Next()
			return
		}
		c.Abort()
	}
}

func (s *Server) enforceRateLimit(c *gin.Context, routeID string, principal domain.Principal) bool {
	if s.rateLimiter == nil || s.rateLimitRequests <= 0 {
		return true
	}
	key := "endpoint:" + routeID + ":ip:" + c.ClientIP()
	if s.rateLimitWithSubject && subjectLimitedRoutes[routeID] && principal.Subject != "" {
		sum := sha256.Sum256([]byte(principal.Subject))
		key = "endpoint:" + routeID + ":subject_hash:" + hex.EncodeToString(sum[:])
	}

	decision, err := s.rateLimiter.Allow(c.Request.Context(), key, s.rateLimitRequests, s.rateLimitWindow)
	if err != nil {
		if s.rateLimitFailClosed {
			writeErrorCode(c, http.StatusTooManyRequests, "RATE_LIMIT_UNAVAILABLE", "rate limiter unavailable")
			return false
		}
		return true
	}
	writeRateLimitHeaders(c, decision)
	if !decision.Allowed {
		writeErrorCode(c, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded")
		return false
	}
	return true
}

func writeRateLimitHeaders(c *gin.Context, decision domain.RateLimitDecision) {
	if decision.Limit > 0 {
		c.Header("RateLimit-Limit", strconv.Itoa(decision.Limit))
	}
	if decision.Remaining >= 0 {
		c.Header("RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	}
	if !decision.ResetAt.IsZero() {
		c.Header("RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
		if !decision.Allowed {
			retryAfter := int64(time.Until(decision.ResetAt).Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
		}
	}
}
