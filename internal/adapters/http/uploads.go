package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/dkeye/Chat/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Upload stores the multipart field "file" and returns its reference.
func (h *Handlers) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.Upload.MaxBytes+(1<<20))
	fh, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(c, fmt.Errorf("%w: file too large", domain.ErrValidation))
			return
		}
		writeError(c, fmt.Errorf("%w: file field required", domain.ErrValidation))
		return
	}
	if fh.Size > h.cfg.Upload.MaxBytes {
		writeError(c, fmt.Errorf("%w: file too large", domain.ErrValidation))
		return
	}

	f, err := fh.Open()
	if err != nil {
		writeError(c, fmt.Errorf("upload: %w: %w", domain.ErrBackend, err))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		writeError(c, fmt.Errorf("upload: %w: %w", domain.ErrBackend, err))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.Upload.Timeout)
	defer cancel()
	ref, err := h.backend.Blobs.Store(ctx, data, fh.Filename, fh.Header.Get("Content-Type"))
	if err != nil {
		writeError(c, err)
		return
	}
	log.Info().Str("module", "adapters.http").Str("file", ref.ID).Int64("size", ref.Size).Msg("uploaded")
	c.JSON(http.StatusOK, gin.H{"name": ref.Name, "url": ref.URL, "size": ref.Size})
}

func (h *Handlers) Download(c *gin.Context) {
	data, blob, err := h.backend.Blobs.Retrieve(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	ct := blob.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": blob.Ref.Name}))
	c.Data(http.StatusOK, ct, data)
}
