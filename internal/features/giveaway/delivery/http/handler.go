package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "giveaway-engine/internal/common/errors"
	"giveaway-engine/internal/common/logger"
	"giveaway-engine/internal/common/middleware"
	"giveaway-engine/internal/features/giveaway/models"
	"giveaway-engine/internal/features/giveaway/repository"
	"giveaway-engine/internal/features/giveaway/service"
)

type GiveawayHandler struct {
	repo       repository.GiveawayRepository
	engine     *service.Engine
	supervisor *service.Supervisor
	chat       service.ChatClient
}

func NewGiveawayHandler(repo repository.GiveawayRepository, engine *service.Engine, supervisor *service.Supervisor, chat service.ChatClient) *GiveawayHandler {
	return &GiveawayHandler{
		repo:       repo,
		engine:     engine,
		supervisor: supervisor,
		chat:       chat,
	}
}

func (h *GiveawayHandler) RegisterRoutes(router *gin.RouterGroup) {
	giveaways := router.Group("/giveaways")
	{
		giveaways.POST("", h.create)
		giveaways.GET("", h.list)
		giveaways.GET("/active", h.listActive)
		giveaways.GET("/:id", h.getByID)
		giveaways.DELETE("/:id", h.delete)
		giveaways.POST("/:id/join", h.join)
		giveaways.POST("/:id/leave", h.leave)
		giveaways.POST("/:id/end", h.end)
		giveaways.POST("/:id/reroll", h.reroll)
		giveaways.POST("/:id/messages", h.trackMessage)
	}
}

type createRequest struct {
	GuildID     int64           `json:"guild_id" binding:"required"`
	ChannelID   int64           `json:"channel_id" binding:"required"`
	HostID      int64           `json:"host"`
	Prize       string          `json:"prize"`
	Emoji       string          `json:"emoji"`
	WinnerCount *int            `json:"amount_of_winners"`
	StartsAt    int64           `json:"starts_at"`
	EndsAt      int64           `json:"ends_at" binding:"required"`
	Rules       *models.RuleSet `json:"requirements"`
	Flags       models.Flags    `json:"flags"`
}

func (h *GiveawayHandler) create(c *gin.Context) {
	var input createRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		middleware.SendError(c, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "Malformed request body"))
		return
	}

	// Omitted winner count defaults to one; an explicit zero is kept and
	// ends the giveaway without a draw.
	winnerCount := 1
	if input.WinnerCount != nil {
		winnerCount = *input.WinnerCount
	}

	params := models.CreateParams{
		// Placeholder id until the announcement message is published;
		// starting re-keys the giveaway under the real message id.
		MessageID:   time.Now().UnixNano(),
		ChannelID:   input.ChannelID,
		GuildID:     input.GuildID,
		HostID:      input.HostID,
		Prize:       input.Prize,
		Emoji:       input.Emoji,
		WinnerCount: winnerCount,
		EndsAt:      time.Unix(input.EndsAt, 0).UTC(),
		Rules:       input.Rules,
		Flags:       input.Flags,
	}
	if input.StartsAt != 0 {
		params.StartsAt = time.Unix(input.StartsAt, 0).UTC()
	}

	g, err := models.New(params)
	if err != nil {
		middleware.SendError(c, mapDomainError(err))
		return
	}

	if g.Started() {
		if err := h.engine.Start(c.Request.Context(), g); err != nil {
			middleware.SendError(c, mapDomainError(err))
			return
		}
	} else {
		h.supervisor.Schedule(g)
	}

	if err := h.repo.Save(c.Request.Context(), g.Record()); err != nil {
		middleware.SendError(c, apperrors.NewCacheError("save_giveaway", err))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"giveaway": g.Record(),
		"status":   g.Status(),
	})
}

func (h *GiveawayHandler) list(c *gin.Context) {
	records, err := h.repo.List(c.Request.Context())
	if err != nil {
		middleware.SendError(c, apperrors.NewCacheError("list_giveaways", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"giveaways": records})
}

func (h *GiveawayHandler) listActive(c *gin.Context) {
	ids, err := h.repo.ActiveIDs(c.Request.Context())
	if err != nil {
		middleware.SendError(c, apperrors.NewCacheError("list_active", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message_ids": ids})
}

func (h *GiveawayHandler) getByID(c *gin.Context) {
	rec, ok := h.loadRecord(c)
	if !ok {
		return
	}

	status := models.GiveawayStatusEnded
	if !rec.Ended() {
		g, err := models.FromRecord(rec)
		if err != nil {
			middleware.SendError(c, mapDomainError(err))
			return
		}
		status = g.Status()
	}

	c.JSON(http.StatusOK, gin.H{
		"giveaway": rec,
		"status":   status,
	})
}

func (h *GiveawayHandler) delete(c *gin.Context) {
	rec, ok := h.loadRecord(c)
	if !ok {
		return
	}

	h.supervisor.Cancel(rec.MessageID)
	if err := h.repo.Delete(c.Request.Context(), rec.MessageID); err != nil {
		middleware.SendError(c, apperrors.NewCacheError("delete_giveaway", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type entrantRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// eventLockTTL bounds how long a crashed request can keep a giveaway locked.
const eventLockTTL = 5 * time.Second

// withEventLock serializes the load-mutate-save handlers per giveaway with
// the repository's processing lock. Contention answers 409.
func (h *GiveawayHandler) withEventLock(c *gin.Context, messageID int64, fn func()) {
	token := uuid.NewString()
	locked, err := h.repo.TryLock(c.Request.Context(), messageID, token, eventLockTTL)
	if err != nil {
		middleware.SendError(c, apperrors.NewCacheError("lock_giveaway", err))
		return
	}
	if !locked {
		middleware.SendError(c, apperrors.New(apperrors.ErrCodeConflict, "Giveaway is being updated, try again"))
		return
	}
	defer func() {
		if err := h.repo.Unlock(c.Request.Context(), messageID, token); err != nil {
			logger.Warn().Int64("message_id", messageID).Err(err).Msg("Failed to release giveaway lock")
		}
	}()

	fn()
}

func (h *GiveawayHandler) join(c *gin.Context) {
	var input entrantRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		middleware.SendError(c, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "Malformed request body"))
		return
	}

	id, ok := h.messageID(c)
	if !ok {
		return
	}
	h.withEventLock(c, id, func() { h.joinLocked(c, input.UserID) })
}

func (h *GiveawayHandler) joinLocked(c *gin.Context, userID int64) {
	g, ok := h.loadLive(c)
	if !ok {
		return
	}
	if !g.Started() {
		middleware.SendError(c, apperrors.New(apperrors.ErrCodeNotStarted, "Giveaway has not started yet"))
		return
	}
	if g.Ended() {
		middleware.SendError(c, apperrors.New(apperrors.ErrCodeAlreadyEnded, "Giveaway has already ended"))
		return
	}

	member, err := h.chat.GuildMember(c.Request.Context(), g.GuildID, userID)
	if err != nil {
		middleware.SendError(c, apperrors.Wrap(err, apperrors.ErrCodeMemberNotFound, "Member could not be resolved"))
		return
	}

	result, err := h.engine.AddEntrant(c.Request.Context(), g, member)
	if err != nil {
		middleware.SendError(c, mapDomainError(err))
		return
	}

	if result.Accepted && !result.AlreadyEntered {
		if err := h.repo.Save(c.Request.Context(), g.Record()); err != nil {
			middleware.SendError(c, apperrors.NewCacheError("save_giveaway", err))
			return
		}
	}
	c.JSON(http.StatusOK, result)
}

func (h *GiveawayHandler) leave(c *gin.Context) {
	var input entrantRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		middleware.SendError(c, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "Malformed request body"))
		return
	}

	id, ok := h.messageID(c)
	if !ok {
		return
	}
	h.withEventLock(c, id, func() { h.leaveLocked(c, input.UserID) })
}

func (h *GiveawayHandler) leaveLocked(c *gin.Context, userID int64) {
	g, ok := h.loadLive(c)
	if !ok {
		return
	}

	removed := h.engine.RemoveEntrant(g, userID)
	if removed {
		if err := h.repo.Save(c.Request.Context(), g.Record()); err != nil {
			middleware.SendError(c, apperrors.NewCacheError("save_giveaway", err))
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

type endRequest struct {
	Reason string `json:"reason"`
}

func (h *GiveawayHandler) end(c *gin.Context) {
	var input endRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			middleware.SendError(c, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "Malformed request body"))
			return
		}
	}

	id, ok := h.messageID(c)
	if !ok {
		return
	}
	h.withEventLock(c, id, func() { h.endLocked(c, input.Reason) })
}

func (h *GiveawayHandler) endLocked(c *gin.Context, reason string) {
	g, ok := h.loadLive(c)
	if !ok {
		return
	}

	ended, err := h.engine.End(c.Request.Context(), g, reason)
	if err != nil {
		middleware.SendError(c, mapDomainError(err))
		return
	}

	h.supervisor.Cancel(g.MessageID)
	if err := h.repo.Save(c.Request.Context(), ended.Record()); err != nil {
		middleware.SendError(c, apperrors.NewCacheError("save_giveaway", err))
		return
	}
	if err := h.repo.MarkEnded(c.Request.Context(), ended.MessageID); err != nil {
		middleware.SendError(c, apperrors.NewCacheError("mark_ended", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"giveaway": ended.Record(),
		"winners":  ended.Winners(),
	})
}

type rerollRequest struct {
	Amount int `json:"amount"`
}

func (h *GiveawayHandler) reroll(c *gin.Context) {
	var input rerollRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			middleware.SendError(c, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "Malformed request body"))
			return
		}
	}

	rec, ok := h.loadRecord(c)
	if !ok {
		return
	}
	if !rec.Ended() {
		middleware.SendError(c, apperrors.New(apperrors.ErrCodeNotEnded, "Giveaway has not ended yet"))
		return
	}

	ended, err := models.EndedFromRecord(rec)
	if err != nil {
		middleware.SendError(c, mapDomainError(err))
		return
	}

	winners, err := h.engine.Reroll(c.Request.Context(), ended, input.Amount)
	if err != nil {
		middleware.SendError(c, mapDomainError(err))
		return
	}

	if err := h.repo.Save(c.Request.Context(), ended.Record()); err != nil {
		middleware.SendError(c, apperrors.NewCacheError("save_giveaway", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"winners": winners})
}

// trackMessage bumps the per-giveaway message counter feeding the
// minimum-messages entry rule.
func (h *GiveawayHandler) trackMessage(c *gin.Context) {
	var input entrantRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		middleware.SendError(c, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "Malformed request body"))
		return
	}

	id, ok := h.messageID(c)
	if !ok {
		return
	}

	count, err := h.repo.IncrMessageCount(c.Request.Context(), id, input.UserID)
	if err != nil {
		middleware.SendError(c, apperrors.NewCacheError("incr_message_count", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (h *GiveawayHandler) messageID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		middleware.SendError(c, apperrors.New(apperrors.ErrCodeBadRequest, "Malformed giveaway id"))
		return 0, false
	}
	return id, true
}

func (h *GiveawayHandler) loadRecord(c *gin.Context) (*models.Record, bool) {
	id, ok := h.messageID(c)
	if !ok {
		return nil, false
	}

	rec, err := h.repo.Get(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		middleware.SendError(c, apperrors.NewGiveawayNotFoundError(id))
		return nil, false
	}
	if err != nil {
		middleware.SendError(c, apperrors.NewCacheError("get_giveaway", err))
		return nil, false
	}
	return rec, true
}

func (h *GiveawayHandler) loadLive(c *gin.Context) (*models.Giveaway, bool) {
	rec, ok := h.loadRecord(c)
	if !ok {
		return nil, false
	}
	if rec.Ended() {
		middleware.SendError(c, apperrors.New(apperrors.ErrCodeAlreadyEnded, "Giveaway has already ended"))
		return nil, false
	}

	g, err := models.FromRecord(rec)
	if err != nil {
		middleware.SendError(c, mapDomainError(err))
		return nil, false
	}
	return g, true
}

func mapDomainError(err error) error {
	var validationErr *models.ValidationError
	switch {
	case errors.Is(err, models.ErrAlreadyEnded):
		return apperrors.Wrap(err, apperrors.ErrCodeAlreadyEnded, "Giveaway has already ended")
	case errors.Is(err, models.ErrNotStarted):
		return apperrors.Wrap(err, apperrors.ErrCodeNotStarted, "Giveaway has not started yet")
	case errors.Is(err, models.ErrChannelNotFound):
		return apperrors.Wrap(err, apperrors.ErrCodeChannelNotFound, "Giveaway channel could not be found")
	case errors.Is(err, models.ErrMessageNotFound):
		return apperrors.Wrap(err, apperrors.ErrCodeNotFound, "Giveaway message could not be found")
	case errors.As(err, &validationErr):
		return apperrors.NewValidationError(validationErr.Field, validationErr.Reason)
	default:
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "Unexpected error")
	}
}
