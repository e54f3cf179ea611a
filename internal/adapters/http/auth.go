package http

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/dkeye/Chat/internal/adapters/signal"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type credentialsRequest struct {
	ID       string `json:"id" binding:"required"`
	Password string `json:"pw" binding:"required"`
}

func (r credentialsRequest) toDomain() domain.Credentials {
	return domain.Credentials{ID: domain.Identity(r.ID), Password: r.Password}
}

// Join registers a new identity.
func (h *Handlers) Join(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cred := req.toDomain()
	if err := cred.Validate(); err != nil {
		writeError(c, err)
		return
	}
	if cred.ID == h.orch.Registry.Admin() {
		writeError(c, fmt.Errorf("%w: identity is reserved", domain.ErrConflict))
		return
	}
	if err := h.backend.Auth.Register(c.Request.Context(), cred); err != nil {
		writeError(c, err)
		return
	}
	log.Info().Str("module", "adapters.http").Str("user", string(cred.ID)).Msg("registered")
	c.JSON(http.StatusOK, gin.H{"id": cred.ID})
}

// Login checks credentials and stores the identity in the session cookie.
func (h *Handlers) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cred := req.toDomain()
	if err := h.checkCredentials(c, cred); err != nil {
		log.Warn().Str("module", "adapters.http").Str("user", string(cred.ID)).Msg("login rejected")
		writeError(c, err)
		return
	}

	s := sessions.Default(c)
	s.Set(signal.SessionUserKey, string(cred.ID))
	if err := s.Save(); err != nil {
		writeError(c, fmt.Errorf("login: %w: %w", domain.ErrBackend, err))
		return
	}
	log.Info().Str("module", "adapters.http").Str("user", string(cred.ID)).Msg("logged in")
	c.JSON(http.StatusOK, gin.H{
		"id":    cred.ID,
		"admin": cred.ID == h.orch.Registry.Admin(),
	})
}

func (h *Handlers) checkCredentials(c *gin.Context, cred domain.Credentials) error {
	if cred.ID != h.orch.Registry.Admin() {
		return h.backend.Auth.Authenticate(c.Request.Context(), cred)
	}
	want := h.cfg.Admin.Password
	if want == "" || subtle.ConstantTimeCompare([]byte(cred.Password), []byte(want)) != 1 {
		return fmt.Errorf("%w: bad credentials", domain.ErrUnauthorized)
	}
	return nil
}

func (h *Handlers) Logout(c *gin.Context) {
	s := sessions.Default(c)
	s.Clear()
	s.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := s.Save(); err != nil {
		writeError(c, fmt.Errorf("logout: %w: %w", domain.ErrBackend, err))
		return
	}
	c.Status(http.StatusNoContent)
}

func sessionUser(c *gin.Context) domain.Identity {
	v, _ := sessions.Default(c).Get(signal.SessionUserKey).(string)
	return domain.Identity(v)
}

// RequireAdmin gates the admin routes on the session identity. With no
// admin password configured the routes are open.
func (h *Handlers) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.cfg.Admin.Password == "" {
			c.Next()
			return
		}
		if sessionUser(c) != h.orch.Registry.Admin() {
			writeError(c, fmt.Errorf("%w: admin only", domain.ErrUnauthorized))
			return
		}
		c.Next()
	}
}
