package handlers

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/internal/repositories"
)

// MuteHandler serves the directed mute flag
type MuteHandler struct {
	relRepo repositories.Relationships
	logger  ectologger.Logger
}

// NewMuteHandler creates a new mute handler
func NewMuteHandler(relRepo repositories.Relationships, logger ectologger.Logger) *MuteHandler {
	return &MuteHandler{
		relRepo: relRepo,
		logger:  logger,
	}
}

// RegisterRoutes registers mute routes
func (h *MuteHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/mutes/:id", h.Mute)
	g.DELETE("/mutes/:id", h.Unmute)
	g.GET("/mutes", h.List)
}

type muteResponse struct {
	MuteID string `json:"mute_id"`
}

func (h *MuteHandler) Mute(c echo.Context) error {
	userID, err := RequireUserID(c)
	if err != nil {
		return err
	}
	targetID, err := RequireParam(c, "id")
	if err != nil {
		return err
	}

	muteID, err := h.relRepo.Mute(c.Request().Context(), userID, targetID)
	if err != nil {
		return err
	}

	return CreatedResponse(c, muteResponse{MuteID: muteID})
}

func (h *MuteHandler) Unmute(c echo.Context) error {
	userID, err := RequireUserID(c)
	if err != nil {
		return err
	}
	targetID, err := RequireParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.relRepo.Unmute(c.Request().Context(), userID, targetID); err != nil {
		return err
	}

	return NoContentResponse(c)
}

func (h *MuteHandler) List(c echo.Context) error {
	userID, err := RequireUserID(c)
	if err != nil {
		return err
	}

	muted, err := h.relRepo.ListMuted(c.Request().Context(), userID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, muted)
}
