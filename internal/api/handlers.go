// Package api exposes the local control surface over HTTP. It mirrors
// the operations available on the page channel so tooling can drive the
// service without a WebSocket.
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Crit-Fumble/fumblebot-sub002/internal/archive"
	"github.com/Crit-Fumble/fumblebot-sub002/internal/models"
	"github.com/Crit-Fumble/fumblebot-sub002/internal/relay"
	apperrors "github.com/Crit-Fumble/fumblebot-sub002/pkg/errors"
	"github.com/Crit-Fumble/fumblebot-sub002/pkg/logger"
	"github.com/Crit-Fumble/fumblebot-sub002/pkg/middleware"
)

// Relay is the subset of the relay manager the API drives.
type Relay interface {
	Status() models.ConnectionStatus
	Login(ctx context.Context, token string) (relay.AuthState, error)
	Logout(ctx context.Context) error
	Connect()
	Disconnect()
}

// Broadcaster pushes envelopes to connected page clients.
type Broadcaster interface {
	Broadcast(envelope models.Envelope)
}

type Handler struct {
	relay     Relay
	broadcast Broadcaster
	archive   *archive.Archive
	log       *logger.Logger
}

func NewHandler(r Relay, broadcast Broadcaster, archive *archive.Archive, log *logger.Logger) *Handler {
	return &Handler{relay: r, broadcast: broadcast, archive: archive, log: log}
}

// RegisterRoutes mounts the API under /api. The login endpoint is rate
// limited; everything else is local-trusted.
func (h *Handler) RegisterRoutes(router *gin.Engine, limiter *middleware.RateLimiter) {
	api := router.Group("/api")
	{
		api.GET("/status", h.GetStatus)
		api.POST("/login", limiter.Middleware(), h.Login)
		api.POST("/logout", h.Logout)
		api.POST("/connect", h.Connect)
		api.POST("/disconnect", h.Disconnect)
		api.GET("/rolls/recent", h.RecentRolls)
	}
}

func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.relay.Status())
}

type loginRequest struct {
	Token string `json:"token" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		appErr := apperrors.NewBadRequestError("INVALID_REQUEST", "token is required")
		c.JSON(appErr.StatusCode, appErr)
		return
	}

	state, err := h.relay.Login(c.Request.Context(), req.Token)
	if err != nil {
		appErr := apperrors.NewUnauthorizedError("INVALID_TOKEN", err.Error())
		c.JSON(appErr.StatusCode, appErr)
		return
	}

	if h.broadcast != nil {
		h.broadcast.Broadcast(models.NewEnvelope(models.TypeAuthUpdate, gin.H{
			"authenticated": true,
			"userId":        state.UserID,
			"username":      state.Username,
		}))
	}
	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"userId":        state.UserID,
		"username":      state.Username,
	})
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.relay.Logout(c.Request.Context()); err != nil {
		appErr := apperrors.NewInternalServerError("LOGOUT_FAILED", err.Error())
		c.JSON(appErr.StatusCode, appErr)
		return
	}
	if h.broadcast != nil {
		h.broadcast.Broadcast(models.NewEnvelope(models.TypeAuthUpdate, gin.H{"authenticated": false}))
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": false})
}

func (h *Handler) Connect(c *gin.Context) {
	h.relay.Connect()
	c.JSON(http.StatusAccepted, h.relay.Status())
}

func (h *Handler) Disconnect(c *gin.Context) {
	h.relay.Disconnect()
	c.JSON(http.StatusOK, h.relay.Status())
}

// RecentRolls serves the archive, when one is configured.
func (h *Handler) RecentRolls(c *gin.Context) {
	if h.archive == nil {
		appErr := apperrors.NewNotFoundError("ARCHIVE_DISABLED", "event archive is not enabled")
		c.JSON(appErr.StatusCode, appErr)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := h.archive.RecentRolls(limit)
	if err != nil {
		h.log.Error("reading archive", "error", err)
		appErr := apperrors.NewInternalServerError("ARCHIVE_READ_FAILED", "could not read archive")
		c.JSON(appErr.StatusCode, appErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rolls": records, "count": len(records)})
}
