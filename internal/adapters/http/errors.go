package http

import (
	"errors"
	"net/http"

	"github.com/dkeye/Chat/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{
		"code":  domain.ErrorCode(err),
		"error": domain.PublicMessage(err),
	})
}

func badRequest(c *gin.Context, err error) {
	log.Debug().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("bad request")
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"code":  "validation",
		"error": "invalid request body",
	})
}
