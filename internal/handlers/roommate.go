package handlers

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/internal/repositories"
	"github.com/Ramsey-B/clover/pkg/utils"
)

// RoommateHandler serves confirmed-roommate operations
type RoommateHandler struct {
	relRepo repositories.Relationships
	logger  ectologger.Logger
}

// NewRoommateHandler creates a new roommate handler
func NewRoommateHandler(relRepo repositories.Relationships, logger ectologger.Logger) *RoommateHandler {
	return &RoommateHandler{
		relRepo: relRepo,
		logger:  logger,
	}
}

// RegisterRoutes registers roommate routes
func (h *RoommateHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/roommates", h.List)
	g.GET("/roommates/:id", h.Get)
	g.DELETE("/roommates/:id", h.Delete)
	g.GET("/roommates/:id/memo", h.GetMemo)
	g.PUT("/roommates/:id/memo", h.SetMemo)
	g.PUT("/roommates/:id/group", h.SetGroup)
}

// List returns direct roommates with edge attributes and neighbors.
func (h *RoommateHandler) List(c echo.Context) error {
	userID, err := RequireUserID(c)
	if err != nil {
		return err
	}

	roommates, err := h.relRepo.ListRoommates(c.Request().Context(), userID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, roommates)
}

// Get returns one roommate's profile with their live content.
func (h *RoommateHandler) Get(c echo.Context) error {
	userID, err := RequireUserID(c)
	if err != nil {
		return err
	}
	roommateID, err := RequireParam(c, "id")
	if err != nil {
		return err
	}

	detail, err := h.relRepo.GetRoommate(c.Request().Context(), userID, roommateID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, detail)
}

// Delete removes the roommate pair in both directions.
func (h *RoommateHandler) Delete(c echo.Context) error {
	userID, err := RequireUserID(c)
	if err != nil {
		return err
	}
	roommateID, err := RequireParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.relRepo.DeleteRoommate(c.Request().Context(), userID, roommateID); err != nil {
		return err
	}

	return NoContentResponse(c)
}

type memoResponse struct {
	Memo string `json:"memo"`
}

// GetMemo reads the caller's private memo for a roommate.
func (h *RoommateHandler) GetMemo(c echo.Context) error {
	userID, err := RequireUserID(c)
	if err != nil {
		return err
	}
	roommateID, err := RequireParam(c, "id")
	if err != nil {
		return err
	}

	memo, err := h.relRepo.GetMemo(c.Request().Context(), userID, roommateID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, memoResponse{Memo: memo})
}

type setMemoRequest struct {
	Memo string `json:"memo"`
}

// SetMemo writes the caller's private memo; last write wins.
func (h *RoommateHandler) SetMemo(c echo.Context) error {
	userID, err := RequireUserID(c)
	if err != nil {
		return err
	}
	roommateID, err := RequireParam(c, "id")
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[setMemoRequest](c)
	if err != nil {
		return err
	}

	if err := h.relRepo.SetMemo(c.Request().Context(), userID, roommateID, req.Memo); err != nil {
		return err
	}

	return NoContentResponse(c)
}

type setGroupRequest struct {
	Group string `json:"group"`
}

// SetGroup writes the caller's group label for a roommate.
func (h *RoommateHandler) SetGroup(c echo.Context) error {
	userID, err := RequireUserID(c)
	if err != nil {
		return err
	}
	roommateID, err := RequireParam(c, "id")
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[setGroupRequest](c)
	if err != nil {
		return err
	}

	if err := h.relRepo.SetGroup(c.Request().Context(), userID, roommateID, req.Group); err != nil {
		return err
	}

	return NoContentResponse(c)
}
