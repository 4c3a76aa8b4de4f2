package handlers

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/internal/repositories"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/utils"
)

// CastHandler serves time-limited broadcast operations
type CastHandler struct {
	castRepo repositories.Casts
	events   EventPublisher
	logger   ectologger.Logger
}

// NewCastHandler creates a new cast handler
func NewCastHandler(castRepo repositories.Casts, events EventPublisher, logger ectologger.Logger) *CastHandler {
	return &CastHandler{
		castRepo: castRepo,
		events:   events,
		logger:   logger,
	}
}

// RegisterRoutes registers cast routes
func (h *CastHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/casts", h.Create)
	g.DELETE("/casts/:id", h.Delete)
	g.POST("/casts/:id/replies", h.Reply)
	g.GET("/casts/:id/replies", h.ListReplies)
}

type createCastRequest struct {
	Message      string   `json:"message" validate:"required"`
	Friends      []string `json:"friends" validate:"required,min=1,dive,required"`
	Duration     int      `json:"duration" validate:"required,min=1"`
	ReplyVisible bool     `json:"reply_visible"`
}

// Create creates a cast addressed to the listed recipients. Duration
// is minutes.
func (h *CastHandler) Create(c echo.Context) error {
	userID, err := RequireUserID(c)
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[createCastRequest](c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	cast, receivers, err := h.castRepo.Create(ctx, userID, req.Message, req.Friends, req.Duration, req.ReplyVisible)
	if err != nil {
		return err
	}

	h.publish(ctx, userID, receivers)

	return CreatedResponse(c, cast)
}

// Delete tombstones an owned cast.
func (h *CastHandler) Delete(c echo.Context) error {
	userID, err := RequireUserID(c)
	if err != nil {
		return err
	}
	castID, err := RequireParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.castRepo.SoftDelete(c.Request().Context(), userID, castID); err != nil {
		return err
	}

	return NoContentResponse(c)
}

type replyRequest struct {
	Message string `json:"message" validate:"required"`
}

// Reply attaches a reply to a received cast.
func (h *CastHandler) Reply(c echo.Context) error {
	userID, err := RequireUserID(c)
	if err != nil {
		return err
	}
	castID, err := RequireParam(c, "id")
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[replyRequest](c)
	if err != nil {
		return err
	}

	reply, err := h.castRepo.Reply(c.Request().Context(), userID, castID, req.Message)
	if err != nil {
		return err
	}

	return CreatedResponse(c, reply)
}

// ListReplies lists replies to an owned cast.
func (h *CastHandler) ListReplies(c echo.Context) error {
	userID, err := RequireUserID(c)
	if err != nil {
		return err
	}
	castID, err := RequireParam(c, "id")
	if err != nil {
		return err
	}

	replies, err := h.castRepo.ListReplies(c.Request().Context(), userID, castID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, replies)
}

func (h *CastHandler) publish(ctx context.Context, actorID string, receivers []string) {
	if h.events == nil || len(receivers) == 0 {
		return
	}
	err := h.events.Publish(ctx, &kafka.SocialEvent{
		EventType:  kafka.EventCastCreated,
		ActorID:    actorID,
		SubjectIDs: receivers,
	})
	if err != nil {
		metrics.RecordPublish(kafka.EventCastCreated, "error")
		h.logger.WithContext(ctx).WithError(err).Error("Failed to publish cast event")
		return
	}
	metrics.RecordPublish(kafka.EventCastCreated, "ok")
}
