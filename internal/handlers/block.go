package handlers

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/internal/repositories"
)

// BlockHandler serves the symmetric block flag
type BlockHandler struct {
	relRepo repositories.Relationships
	logger  ectologger.Logger
}

// NewBlockHandler creates a new block handler
func NewBlockHandler(relRepo repositories.Relationships, logger ectologger.Logger) *BlockHandler {
	return &BlockHandler{
		relRepo: relRepo,
		logger:  logger,
	}
}

// RegisterRoutes registers block routes
func (h *BlockHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/blocks/:id", h.Block)
	g.DELETE("/blocks/:id", h.Unblock)
	g.GET("/blocks", h.List)
}

type blockResponse struct {
	BlockID string `json:"block_id"`
}

// Block blocks a user and severs any knock or roommate edges with
// them.
func (h *BlockHandler) Block(c echo.Context) error {
	userID, err := RequireUserID(c)
	if err != nil {
		return err
	}
	targetID, err := RequireParam(c, "id")
	if err != nil {
		return err
	}

	blockID, err := h.relRepo.Block(c.Request().Context(), userID, targetID)
	if err != nil {
		return err
	}

	return CreatedResponse(c, blockResponse{BlockID: blockID})
}

func (h *BlockHandler) Unblock(c echo.Context) error {
	userID, err := RequireUserID(c)
	if err != nil {
		return err
	}
	targetID, err := RequireParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.relRepo.Unblock(c.Request().Context(), userID, targetID); err != nil {
		return err
	}

	return NoContentResponse(c)
}

func (h *BlockHandler) List(c echo.Context) error {
	userID, err := RequireUserID(c)
	if err != nil {
		return err
	}

	blocked, err := h.relRepo.ListBlocked(c.Request().Context(), userID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, blocked)
}
