package handlers

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/internal/repositories"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/poller"
)

// FeedHandler serves the visibility engine endpoints
type FeedHandler struct {
	feedRepo repositories.Feed
	poller   *poller.Poller
	logger   ectologger.Logger
}

// NewFeedHandler creates a new feed handler
func NewFeedHandler(feedRepo repositories.Feed, p *poller.Poller, logger ectologger.Logger) *FeedHandler {
	return &FeedHandler{
		feedRepo: feedRepo,
		poller:   p,
		logger:   logger,
	}
}

// RegisterRoutes registers feed routes
func (h *FeedHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/feed", h.GetFeed)
	g.GET("/feed/new", h.GetNew)
	g.GET("/feed/neighbors/:roommateID", h.GetNeighborStickers)
}

// GetFeed returns the viewer's feed snapshot.
func (h *FeedHandler) GetFeed(c echo.Context) error {
	userID, err := RequireUserID(c)
	if err != nil {
		return err
	}

	snapshot, err := h.feedRepo.GetFeed(c.Request().Context(), userID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, snapshot)
}

// GetNew is the bounded long-poll: up to three attempts ten seconds
// apart, first non-empty snapshot wins, empty snapshot after the last.
// Each attempt is an independent transaction; a client disconnect
// cancels the wait through the request context.
func (h *FeedHandler) GetNew(c echo.Context) error {
	userID, err := RequireUserID(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	snapshot, err := poller.Poll(ctx, h.poller, func(ctx context.Context) (*models.NewActivitySnapshot, bool, error) {
		s, err := h.feedRepo.GetNewActivity(ctx, userID)
		if err != nil {
			metrics.PollAttempts.WithLabelValues("error").Inc()
			return nil, false, err
		}
		if s.IsEmpty() {
			metrics.PollAttempts.WithLabelValues("empty").Inc()
			return s, false, nil
		}
		metrics.PollAttempts.WithLabelValues("activity").Inc()
		return s, true, nil
	})
	if err != nil {
		return err
	}

	return SuccessResponse(c, snapshot)
}

// GetNeighborStickers lists unread stickers from one roommate's own
// roommates.
func (h *FeedHandler) GetNeighborStickers(c echo.Context) error {
	userID, err := RequireUserID(c)
	if err != nil {
		return err
	}
	roommateID, err := RequireParam(c, "roommateID")
	if err != nil {
		return err
	}

	neighbors, err := h.feedRepo.NeighborsWithStickers(c.Request().Context(), userID, roommateID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, neighbors)
}
