package http

import (
	"net/http"

	"github.com/dkeye/Chat/internal/domain"
	"github.com/gin-gonic/gin"
)

type roomView struct {
	Name        domain.RoomName `json:"name"`
	HasPassword bool            `json:"hasPassword"`
	MemberCount int             `json:"memberCount"`
}

func (h *Handlers) ListRooms(c *gin.Context) {
	rooms, counts, err := h.orch.Admin.RoomInfos(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]roomView, 0, len(rooms))
	for i, r := range rooms {
		out = append(out, roomView{Name: r.Name, HasPassword: r.HasPassword(), MemberCount: counts[i]})
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) CreateRoom(c *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required"`
		Password string `json:"pw"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	room, err := h.orch.CreateRoom(c.Request.Context(), domain.RoomName(req.Name), req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, roomView{Name: room.Name, HasPassword: room.HasPassword()})
}

func (h *Handlers) GetRoom(c *gin.Context) {
	name := domain.RoomName(c.Param("name"))
	room, err := h.orch.Rooms.Get(c.Request.Context(), name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, roomView{
		Name:        room.Name,
		HasPassword: room.HasPassword(),
		MemberCount: h.orch.Members.Count(name),
	})
}
