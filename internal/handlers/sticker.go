package handlers

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/internal/repositories"
	"github.com/Ramsey-B/clover/pkg/storage"
)

// StickerHandler serves sticker content operations
type StickerHandler struct {
	stickerRepo repositories.Stickers
	blob        storage.BlobStore
	logger      ectologger.Logger
}

// NewStickerHandler creates a new sticker handler
func NewStickerHandler(stickerRepo repositories.Stickers, blob storage.BlobStore, logger ectologger.Logger) *StickerHandler {
	return &StickerHandler{
		stickerRepo: stickerRepo,
		blob:        blob,
		logger:      logger,
	}
}

// RegisterRoutes registers sticker routes
func (h *StickerHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/stickers", h.Create)
	g.GET("/stickers/mine", h.ListMine)
	g.PUT("/stickers/:id/read", h.MarkRead)
	g.DELETE("/stickers/:id", h.Delete)
	g.GET("/users/:id/stickers", h.ListByUser)
}

// Create accepts a multipart form: a "content" field and optional
// "images" files. Images go through the blob store before the sticker
// is written; an upload failure aborts the whole request.
func (h *StickerHandler) Create(c echo.Context) error {
	userID, err := RequireUserID(c)
	if err != nil {
		return err
	}

	content := c.FormValue("content")
	if content == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "sticker content is required")
	}

	ctx := c.Request().Context()
	files := formImages(c.MultipartForm())
	urls, err := uploadImages(ctx, h.blob, "stickers", files)
	if err != nil {
		return err
	}

	sticker, err := h.stickerRepo.Create(ctx, userID, content, urls)
	if err != nil {
		return err
	}

	return CreatedResponse(c, sticker)
}

// ListMine lists the caller's own live stickers.
func (h *StickerHandler) ListMine(c echo.Context) error {
	userID, err := RequireUserID(c)
	if err != nil {
		return err
	}

	stickers, err := h.stickerRepo.ListMine(c.Request().Context(), userID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, stickers)
}

// ListByUser lists another user's live stickers, visibility gated.
func (h *StickerHandler) ListByUser(c echo.Context) error {
	userID, err := RequireUserID(c)
	if err != nil {
		return err
	}
	targetID, err := RequireParam(c, "id")
	if err != nil {
		return err
	}

	stickers, err := h.stickerRepo.ListByUser(c.Request().Context(), userID, targetID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, stickers)
}

// MarkRead flags the caller's receipt for a sticker as read.
func (h *StickerHandler) MarkRead(c echo.Context) error {
	userID, err := RequireUserID(c)
	if err != nil {
		return err
	}
	stickerID, err := RequireParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.stickerRepo.MarkRead(c.Request().Context(), userID, stickerID); err != nil {
		return err
	}

	return NoContentResponse(c)
}

// Delete tombstones an owned sticker and reaps its stored images. An
// image delete failure never blocks the tombstone.
func (h *StickerHandler) Delete(c echo.Context) error {
	userID, err := RequireUserID(c)
	if err != nil {
		return err
	}
	stickerID, err := RequireParam(c, "id")
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	urls, err := h.stickerRepo.SoftDelete(ctx, userID, stickerID)
	if err != nil {
		return err
	}
	deleteImages(ctx, h.blob, h.logger, urls)

	return NoContentResponse(c)
}
