package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/vidtube-api/internal/service"
	"github.com/noah-isme/vidtube-api/pkg/response"
)

// ChannelHandler exposes public channel pages.
type ChannelHandler struct {
	service *service.ChannelService
}

// NewChannelHandler creates a new handler.
func NewChannelHandler(svc *service.ChannelService) *ChannelHandler {
	return &ChannelHandler{service: svc}
}

// Get handles GET /channels/:username.
func (h *ChannelHandler) Get(c *gin.Context) {
	profile, err := h.service.Get(c.Request.Context(), c.Param("username"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, profile, "channel fetched successfully")
}
