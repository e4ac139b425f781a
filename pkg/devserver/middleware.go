package devserver

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vnfood/foodctl/pkg/apiresponses"
	"github.com/vnfood/foodctl/pkg/metrics"
	"github.com/vnfood/foodctl/pkg/system"
)

const (
	authHeaderKey = "Authorization"
	usernameKey   = "username"
)

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader(authHeaderKey)
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[len("Bearer "):])
	return token, token != ""
}

// requireAuth rejects requests without a valid access token with 401.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			metrics.DevServerAuthFailures.WithLabelValues("missing").Inc()
			apiresponses.RespondUnauthorizedWithMessage(c, "Missing or invalid authorization header")
			return
		}
		username, err := s.issuer.verify(token, tokenTypeAccess)
		if err != nil {
			metrics.DevServerAuthFailures.WithLabelValues(failureReason(err)).Inc()
			s.log.Debugw("Rejected access token", "reason", failureReason(err))
			s.audit.AccessTokenRejected(c.Request.Context(), actor(c, ""), requestID(c), c.Request.URL.Path, failureReason(err))
			apiresponses.RespondUnauthorizedWithMessage(c, "Invalid or expired token")
			return
		}
		c.Set(usernameKey, username)
		c.Set(system.ReqLoggerKey, system.EnrichReqLoggerWithAuth(c, s.log))
		c.Next()
	}
}

// optionalAuth sets the username when a valid access token is present and
// never rejects.
func (s *Server) optionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if username, err := s.issuer.verify(token, tokenTypeAccess); err == nil {
				c.Set(usernameKey, username)
				c.Set(system.ReqLoggerKey, system.EnrichReqLoggerWithAuth(c, s.log))
			}
		}
		c.Next()
	}
}
