package handlers

import (
	"context"
	"errors"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/internal/repositories"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/social"
	"github.com/Ramsey-B/clover/pkg/utils"
)

// InviteLinkStore mints and redeems single-use roommate invite
// tokens. Satisfied by *redis.InviteLinks.
type InviteLinkStore interface {
	Create(ctx context.Context, creatorID string) (string, error)
	Consume(ctx context.Context, token string) (string, error)
}

// KnockHandler serves the knock lifecycle and invite links
type KnockHandler struct {
	relRepo repositories.Relationships
	invites InviteLinkStore
	events  EventPublisher
	baseURL string
	logger  ectologger.Logger
}

// NewKnockHandler creates a new knock handler
func NewKnockHandler(relRepo repositories.Relationships, invites InviteLinkStore, events EventPublisher, baseURL string, logger ectologger.Logger) *KnockHandler {
	return &KnockHandler{
		relRepo: relRepo,
		invites: invites,
		events:  events,
		baseURL: baseURL,
		logger:  logger,
	}
}

// RegisterRoutes registers knock routes
func (h *KnockHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/knocks", h.Send)
	g.GET("/knocks", h.List)
	g.POST("/knocks/:id/accept", h.Accept)
	g.POST("/knocks/:id/reject", h.Reject)
	g.POST("/knocks/link", h.CreateLink)
	g.POST("/knocks/link/:token/accept", h.AcceptLink)
}

type sendKnockRequest struct {
	ToID string `json:"to_id" validate:"required"`
}

type sendKnockResponse struct {
	KnockID string `json:"knock_id"`
}

// Send creates a pending friend request.
func (h *KnockHandler) Send(c echo.Context) error {
	userID, err := RequireUserID(c)
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[sendKnockRequest](c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	knockID, err := h.relRepo.SendKnock(ctx, userID, req.ToID)
	if err != nil {
		return err
	}

	h.publish(ctx, kafka.EventKnockSent, userID, []string{req.ToID})

	return CreatedResponse(c, sendKnockResponse{KnockID: knockID})
}

// List lists pending inbound knocks.
func (h *KnockHandler) List(c echo.Context) error {
	userID, err := RequireUserID(c)
	if err != nil {
		return err
	}

	knocks, err := h.relRepo.ListKnocks(c.Request().Context(), userID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, knocks)
}

// Accept turns a knock into a roommate pair.
func (h *KnockHandler) Accept(c echo.Context) error {
	userID, err := RequireUserID(c)
	if err != nil {
		return err
	}
	knockID, err := RequireParam(c, "id")
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	roommate, err := h.relRepo.AcceptKnock(ctx, userID, knockID)
	if err != nil {
		return err
	}

	h.publish(ctx, kafka.EventRoommateAccepted, userID, []string{roommate.User.NodeID})

	return SuccessResponse(c, roommate)
}

// Reject deletes a pending knock.
func (h *KnockHandler) Reject(c echo.Context) error {
	userID, err := RequireUserID(c)
	if err != nil {
		return err
	}
	knockID, err := RequireParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.relRepo.RejectKnock(c.Request().Context(), userID, knockID); err != nil {
		return err
	}

	return NoContentResponse(c)
}

type inviteLinkResponse struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

// CreateLink mints a single-use invite token, bounded per user.
func (h *KnockHandler) CreateLink(c echo.Context) error {
	userID, err := RequireUserID(c)
	if err != nil {
		return err
	}

	token, err := h.invites.Create(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, redis.ErrTooManyLinks) {
			return social.Conflict("too many active invite links")
		}
		return social.Upstream(err, "failed to create invite link")
	}

	return CreatedResponse(c, inviteLinkResponse{
		Token: token,
		URL:   h.baseURL + "/knocks/link/" + token + "/accept",
	})
}

// AcceptLink redeems an invite token and connects the caller with its
// creator. The token is consumed before pair creation; a failed pair
// still burns the link, matching its single-use contract.
func (h *KnockHandler) AcceptLink(c echo.Context) error {
	userID, err := RequireUserID(c)
	if err != nil {
		return err
	}
	token, err := RequireParam(c, "token")
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	creatorID, err := h.invites.Consume(ctx, token)
	if err != nil {
		if errors.Is(err, redis.ErrLinkNotFound) {
			return social.NotFound("invite link not found or expired")
		}
		return social.Upstream(err, "failed to redeem invite link")
	}

	roommate, err := h.relRepo.CreateRoommatePair(ctx, userID, creatorID)
	if err != nil {
		return err
	}

	h.publish(ctx, kafka.EventRoommateAccepted, userID, []string{creatorID})

	return SuccessResponse(c, roommate)
}

// publish emits a social event; failures are logged, never surfaced.
func (h *KnockHandler) publish(ctx context.Context, eventType, actorID string, subjectIDs []string) {
	if h.events == nil {
		return
	}
	err := h.events.Publish(ctx, &kafka.SocialEvent{
		EventType:  eventType,
		ActorID:    actorID,
		SubjectIDs: subjectIDs,
	})
	if err != nil {
		metrics.RecordPublish(eventType, "error")
		h.logger.WithContext(ctx).WithError(err).WithField("event_type", eventType).Error("Failed to publish social event")
		return
	}
	metrics.RecordPublish(eventType, "ok")
}
