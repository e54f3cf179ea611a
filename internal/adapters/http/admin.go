package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dkeye/Chat/internal/domain"
	"github.com/gin-gonic/gin"
)

type userView struct {
	ID     domain.Identity `json:"id"`
	Online bool            `json:"online"`
}

func (h *Handlers) AdminUsers(c *gin.Context) {
	ids, err := h.backend.Auth.Users(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]userView, 0, len(ids))
	for _, id := range ids {
		out = append(out, userView{ID: id, Online: h.orch.Registry.IsOnline(id)})
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) AdminState(c *gin.Context) {
	state, err := h.orch.Admin.Snapshot(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *Handlers) ListDeleted(c *gin.Context) {
	list, err := h.orch.Archives.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handlers) GetDeleted(c *gin.Context) {
	entry, err := h.orch.Archives.Latest(c.Request.Context(), domain.RoomName(c.Param("name")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, archiveView(entry))
}

// ExportDeleted serves the latest archive entry as a download.
func (h *Handlers) ExportDeleted(c *gin.Context) {
	entry, err := h.orch.Archives.Latest(c.Request.Context(), domain.RoomName(c.Param("name")))
	if err != nil {
		writeError(c, err)
		return
	}
	data, err := json.MarshalIndent(archiveView(entry), "", "  ")
	if err != nil {
		writeError(c, fmt.Errorf("export: %w: %w", domain.ErrBackend, err))
		return
	}
	filename := fmt.Sprintf("%d-%s-archive.json", time.Now().UnixMilli(), entry.RoomName)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/json", data)
}

type archiveResponse struct {
	*domain.ArchiveEntry
	HasPassword bool `json:"hasPassword"`
}

func archiveView(e *domain.ArchiveEntry) archiveResponse {
	if e.History == nil {
		e.History = []domain.Message{}
	}
	return archiveResponse{ArchiveEntry: e, HasPassword: e.Password != ""}
}
