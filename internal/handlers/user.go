package handlers

import (
	"mime/multipart"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/internal/repositories"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/storage"
	"github.com/Ramsey-B/clover/pkg/utils"
)

// UserHandler serves profile and search operations
type UserHandler struct {
	userRepo repositories.Users
	blob     storage.BlobStore
	logger   ectologger.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(userRepo repositories.Users, blob storage.BlobStore, logger ectologger.Logger) *UserHandler {
	return &UserHandler{
		userRepo: userRepo,
		blob:     blob,
		logger:   logger,
	}
}

// RegisterRoutes registers user routes
func (h *UserHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/me", h.GetMe)
	g.PUT("/me", h.UpdateMe)
	g.POST("/me/image", h.UploadImage)
	g.DELETE("/me/image", h.RemoveImage)
	g.GET("/users/search", h.Search)
}

// GetMe returns the caller's profile, creating the identity node on
// first sight.
func (h *UserHandler) GetMe(c echo.Context) error {
	userID, err := RequireUserID(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	if err := h.userRepo.Ensure(ctx, userID); err != nil {
		return err
	}

	user, err := h.userRepo.Get(ctx, userID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, user)
}

type updateProfileRequest struct {
	Nickname string   `json:"nickname" validate:"required,max=64"`
	Username string   `json:"username" validate:"required,max=64"`
	Tags     []string `json:"tags"`
	MyMemo   string   `json:"my_memo"`
}

// UpdateMe rewrites the caller's profile fields. The profile image is
// managed through its own endpoints.
func (h *UserHandler) UpdateMe(c echo.Context) error {
	userID, err := RequireUserID(c)
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[updateProfileRequest](c)
	if err != nil {
		return err
	}

	user, err := h.userRepo.UpdateProfile(c.Request().Context(), userID, &models.ProfileUpdate{
		Nickname: req.Nickname,
		Username: req.Username,
		Tags:     req.Tags,
		MyMemo:   req.MyMemo,
	})
	if err != nil {
		return err
	}

	return SuccessResponse(c, user)
}

// UploadImage stores a new profile image and points the profile at it.
func (h *UserHandler) UploadImage(c echo.Context) error {
	userID, err := RequireUserID(c)
	if err != nil {
		return err
	}

	fh, err := c.FormFile("image")
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "image file is required")
	}

	ctx := c.Request().Context()
	urls, err := uploadImages(ctx, h.blob, "profiles", []*multipart.FileHeader{fh})
	if err != nil {
		return err
	}

	current, err := h.userRepo.Get(ctx, userID)
	if err != nil {
		return err
	}

	user, err := h.userRepo.UpdateProfile(ctx, userID, &models.ProfileUpdate{
		Nickname:        current.Nickname,
		Username:        current.Username,
		Tags:            current.Tags,
		MyMemo:          current.MyMemo,
		ProfileImageURL: &urls[0],
	})
	if err != nil {
		return err
	}

	return SuccessResponse(c, user)
}

// RemoveImage clears the profile image reference and reaps the stored
// object. A blob delete failure never blocks the profile update.
func (h *UserHandler) RemoveImage(c echo.Context) error {
	userID, err := RequireUserID(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	current, err := h.userRepo.Get(ctx, userID)
	if err != nil {
		return err
	}

	empty := ""
	user, err := h.userRepo.UpdateProfile(ctx, userID, &models.ProfileUpdate{
		Nickname:        current.Nickname,
		Username:        current.Username,
		Tags:            current.Tags,
		MyMemo:          current.MyMemo,
		ProfileImageURL: &empty,
	})
	if err != nil {
		return err
	}

	if current.ProfileImageURL != "" {
		deleteImages(ctx, h.blob, h.logger, []string{current.ProfileImageURL})
	}

	return SuccessResponse(c, user)
}

// Search finds users by nickname or username prefix.
func (h *UserHandler) Search(c echo.Context) error {
	userID, err := RequireUserID(c)
	if err != nil {
		return err
	}

	query := c.QueryParam("q")
	if query == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "query parameter q is required")
	}

	users, err := h.userRepo.Search(c.Request().Context(), userID, query)
	if err != nil {
		return err
	}

	return SuccessResponse(c, users)
}
