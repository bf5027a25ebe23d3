package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "giveaway-engine/internal/common/errors"
	"giveaway-engine/internal/common/middleware"
	"giveaway-engine/internal/features/settings/models"
	"giveaway-engine/internal/features/settings/service"
)

type SettingsHandler struct {
	service *service.Service
}

func NewSettingsHandler(service *service.Service) *SettingsHandler {
	return &SettingsHandler{service: service}
}

func (h *SettingsHandler) RegisterRoutes(router *gin.RouterGroup) {
	guilds := router.Group("/guilds")
	{
		guilds.GET("/:id/settings", h.get)
		guilds.PUT("/:id/settings", h.update)
	}
}

func (h *SettingsHandler) get(c *gin.Context) {
	guildID, ok := h.guildID(c)
	if !ok {
		return
	}

	settings, err := h.service.Guild(c.Request.Context(), guildID)
	if err != nil {
		middleware.SendError(c, apperrors.NewCacheError("get_settings", err))
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *SettingsHandler) update(c *gin.Context) {
	guildID, ok := h.guildID(c)
	if !ok {
		return
	}

	var settings models.GuildSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		middleware.SendError(c, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "Malformed request body"))
		return
	}
	settings.GuildID = guildID

	if err := h.service.Update(c.Request.Context(), &settings); err != nil {
		middleware.SendError(c, apperrors.NewCacheError("update_settings", err))
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *SettingsHandler) guildID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		middleware.SendError(c, apperrors.New(apperrors.ErrCodeBadRequest, "Malformed guild id"))
		return 0, false
	}
	return id, true
}
