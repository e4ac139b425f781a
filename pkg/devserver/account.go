package devserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vnfood/foodctl/pkg/apiresponses"
	"github.com/vnfood/foodctl/pkg/metrics"
	"github.com/vnfood/foodctl/pkg/system"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// accountController serves register, login and refresh. These are limited
// per client IP with the stricter credential limit.
type accountController struct {
	s *Server
}

func (a *accountController) BasePath() string { return "" }

func (a *accountController) Handlers() []gin.HandlerFunc {
	return a.s.limit(a.s.credentialLimit, nil)
}

func (a *accountController) Register(rg *gin.RouterGroup) error {
	rg.POST("register", a.handleRegister)
	rg.POST("login", a.handleLogin)
	rg.POST("refresh", a.handleRefresh)
	return nil
}

func (a *accountController) handleRegister(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		apiresponses.RespondBadRequest(c, "Username and password required")
		return
	}
	if err := a.s.users.create(req.Username, req.Password); err != nil {
		if errors.Is(err, errUserExists) {
			apiresponses.RespondConflict(c, "Username already exists")
			return
		}
		apiresponses.RespondInternalError(c, "create user", err, system.GetReqLogger(c, a.s.log))
		return
	}
	a.s.log.Infow("User registered", "username", req.Username)
	a.s.audit.AccountRegistered(c.Request.Context(), actor(c, req.Username), requestID(c))
	apiresponses.RespondCreated(c, gin.H{"message": "User created successfully"})
}

func (a *accountController) handleLogin(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		apiresponses.RespondBadRequest(c, "Username and password required")
		return
	}
	if !a.s.users.check(req.Username, req.Password) {
		metrics.DevServerAuthFailures.WithLabelValues("bad_password").Inc()
		a.s.audit.Login(c.Request.Context(), actor(c, req.Username), requestID(c), "bad_password")
		apiresponses.RespondUnauthorizedWithMessage(c, "Invalid username or password")
		return
	}
	access, err := a.s.issuer.issue(req.Username, tokenTypeAccess)
	if err != nil {
		apiresponses.RespondInternalError(c, "issue tokens", err, a.s.log)
		return
	}
	refresh, err := a.s.issuer.issue(req.Username, tokenTypeRefresh)
	if err != nil {
		apiresponses.RespondInternalError(c, "issue tokens", err, a.s.log)
		return
	}
	a.s.audit.Login(c.Request.Context(), actor(c, req.Username), requestID(c), "")
	apiresponses.RespondOK(c, gin.H{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "Bearer",
		"expires_in":    int64(a.s.config.AccessTTL / time.Second),
		"username":      req.Username,
	})
}

func (a *accountController) handleRefresh(c *gin.Context) {
	a.s.refreshes.Add(1)
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		apiresponses.RespondBadRequest(c, "Refresh token required")
		return
	}
	if d := time.Duration(a.s.refreshDelay.Load()); d > 0 {
		select {
		case <-time.After(d):
		case <-c.Request.Context().Done():
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
	}
	if a.s.rejectRefresh.Load() {
		metrics.DevServerAuthFailures.WithLabelValues("refresh_disabled").Inc()
		a.s.audit.TokenRefresh(c.Request.Context(), actor(c, ""), requestID(c), "refresh_disabled")
		apiresponses.RespondUnauthorizedWithMessage(c, "Invalid or expired refresh token")
		return
	}
	username, err := a.s.issuer.verify(req.RefreshToken, tokenTypeRefresh)
	if err != nil {
		metrics.DevServerAuthFailures.WithLabelValues(failureReason(err)).Inc()
		a.s.audit.TokenRefresh(c.Request.Context(), actor(c, ""), requestID(c), failureReason(err))
		apiresponses.RespondUnauthorizedWithMessage(c, "Invalid or expired refresh token")
		return
	}
	access, err := a.s.issuer.issue(username, tokenTypeAccess)
	if err != nil {
		apiresponses.RespondInternalError(c, "issue tokens", err, a.s.log)
		return
	}
	a.s.audit.TokenRefresh(c.Request.Context(), actor(c, username), requestID(c), "")
	apiresponses.RespondOK(c, gin.H{
		"access_token": access,
		"token_type":   "Bearer",
		"expires_in":   int64(a.s.config.AccessTTL / time.Second),
	})
}

// sessionController answers whether the presented access token is valid.
type sessionController struct {
	s *Server
}

func (v *sessionController) BasePath() string { return "" }

func (v *sessionController) Handlers() []gin.HandlerFunc {
	return append(v.s.limit(v.s.apiLimit, nil), v.s.requireAuth())
}

func (v *sessionController) Register(rg *gin.RouterGroup) error {
	rg.GET("verify", func(c *gin.Context) {
		apiresponses.RespondOK(c, gin.H{"username": c.GetString(usernameKey)})
	})
	return nil
}
