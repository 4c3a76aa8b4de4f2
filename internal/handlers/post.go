package handlers

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/internal/repositories"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/storage"
	"github.com/Ramsey-B/clover/pkg/utils"
)

// PostHandler serves post content operations
type PostHandler struct {
	postRepo repositories.Posts
	blob     storage.BlobStore
	logger   ectologger.Logger
}

// NewPostHandler creates a new post handler
func NewPostHandler(postRepo repositories.Posts, blob storage.BlobStore, logger ectologger.Logger) *PostHandler {
	return &PostHandler{
		postRepo: postRepo,
		blob:     blob,
		logger:   logger,
	}
}

// RegisterRoutes registers post routes
func (h *PostHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/posts", h.Create)
	g.GET("/posts/mine", h.ListMine)
	g.PUT("/posts/:id", h.Update)
	g.DELETE("/posts/:id", h.Delete)
	g.GET("/users/:id/posts", h.ListByUser)
}

// Create accepts a multipart form: "title", "content", repeated
// "tags", an "is_public" flag and optional "images" files.
func (h *PostHandler) Create(c echo.Context) error {
	userID, err := RequireUserID(c)
	if err != nil {
		return err
	}

	title := c.FormValue("title")
	content := c.FormValue("content")
	if title == "" && content == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "post title or content is required")
	}

	isPublic := true
	if v := c.FormValue("is_public"); v != "" {
		isPublic, err = strconv.ParseBool(v)
		if err != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, "is_public must be a boolean")
		}
	}

	ctx := c.Request().Context()
	form, formErr := c.MultipartForm()
	files := formImages(form, formErr)
	urls, err := uploadImages(ctx, h.blob, "posts", files)
	if err != nil {
		return err
	}

	var tags []string
	if form != nil {
		tags = form.Value["tags"]
	}

	post, err := h.postRepo.Create(ctx, userID, &models.Post{
		Title:     title,
		Content:   content,
		ImageURLs: urls,
		Tags:      tags,
		IsPublic:  isPublic,
	})
	if err != nil {
		return err
	}

	return CreatedResponse(c, post)
}

// ListMine lists the caller's own posts, private included.
func (h *PostHandler) ListMine(c echo.Context) error {
	userID, err := RequireUserID(c)
	if err != nil {
		return err
	}

	posts, err := h.postRepo.ListMine(c.Request().Context(), userID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, posts)
}

// ListByUser lists another user's public posts, visibility gated.
func (h *PostHandler) ListByUser(c echo.Context) error {
	userID, err := RequireUserID(c)
	if err != nil {
		return err
	}
	targetID, err := RequireParam(c, "id")
	if err != nil {
		return err
	}

	posts, err := h.postRepo.ListByUser(c.Request().Context(), userID, targetID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, posts)
}

type updatePostRequest struct {
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	ImageURLs []string `json:"image_url"`
	Tags      []string `json:"tags"`
	IsPublic  bool     `json:"is_public"`
}

// Update rewrites the mutable fields of an owned post.
func (h *PostHandler) Update(c echo.Context) error {
	userID, err := RequireUserID(c)
	if err != nil {
		return err
	}
	postID, err := RequireParam(c, "id")
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[updatePostRequest](c)
	if err != nil {
		return err
	}

	post, err := h.postRepo.Update(c.Request().Context(), userID, &models.Post{
		NodeID:    postID,
		Title:     req.Title,
		Content:   req.Content,
		ImageURLs: req.ImageURLs,
		Tags:      req.Tags,
		IsPublic:  req.IsPublic,
	})
	if err != nil {
		return err
	}

	return SuccessResponse(c, post)
}

// Delete tombstones an owned post and reaps its stored images. An
// image delete failure never blocks the tombstone.
func (h *PostHandler) Delete(c echo.Context) error {
	userID, err := RequireUserID(c)
	if err != nil {
		return err
	}
	postID, err := RequireParam(c, "id")
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	urls, err := h.postRepo.SoftDelete(ctx, userID, postID)
	if err != nil {
		return err
	}
	deleteImages(ctx, h.blob, h.logger, urls)

	return NoContentResponse(c)
}
