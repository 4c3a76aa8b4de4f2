package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/internal/repositories"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/poller"
	"github.com/Ramsey-B/clover/pkg/social"
)

type fakeFeed struct {
	repositories.Feed

	getFeed        func(ctx context.Context, viewerID string) (*models.FeedSnapshot, error)
	getNewActivity func(ctx context.Context, viewerID string) (*models.NewActivitySnapshot, error)
	neighbors      func(ctx context.Context, viewerID, roommateID string) ([]models.NeighborStickers, error)
}

func (f *fakeFeed) GetFeed(ctx context.Context, viewerID string) (*models.FeedSnapshot, error) {
	return f.getFeed(ctx, viewerID)
}

func (f *fakeFeed) GetNewActivity(ctx context.Context, viewerID string) (*models.NewActivitySnapshot, error) {
	return f.getNewActivity(ctx, viewerID)
}

func (f *fakeFeed) NeighborsWithStickers(ctx context.Context, viewerID, roommateID string) ([]models.NeighborStickers, error) {
	return f.neighbors(ctx, viewerID, roommateID)
}

func TestGetFeed(t *testing.T) {
	feed := &fakeFeed{
		getFeed: func(_ context.Context, viewerID string) (*models.FeedSnapshot, error) {
			assert.Equal(t, "user-1", viewerID)
			return &models.FeedSnapshot{
				StickerRoommates: []string{"user-2"},
				StickerNeighbors: []string{"user-3"},
			}, nil
		},
	}

	e := newTestEcho()
	NewFeedHandler(feed, poller.New(3, time.Millisecond), testLogger()).RegisterRoutes(e.Group("/api/v1"))

	rec := doRequest(t, e, http.MethodGet, "/api/v1/feed", "user-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.FeedSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"user-2"}, resp.StickerRoommates)
	assert.Equal(t, []string{"user-3"}, resp.StickerNeighbors)
}

func TestGetFeedUnknownViewer(t *testing.T) {
	feed := &fakeFeed{
		getFeed: func(_ context.Context, _ string) (*models.FeedSnapshot, error) {
			return nil, social.NotFound("user not found")
		},
	}

	e := newTestEcho()
	NewFeedHandler(feed, poller.New(3, time.Millisecond), testLogger()).RegisterRoutes(e.Group("/api/v1"))

	rec := doRequest(t, e, http.MethodGet, "/api/v1/feed", "ghost", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetNewReturnsFirstActivity(t *testing.T) {
	calls := 0
	feed := &fakeFeed{
		getNewActivity: func(_ context.Context, _ string) (*models.NewActivitySnapshot, error) {
			calls++
			if calls < 2 {
				return &models.NewActivitySnapshot{}, nil
			}
			return &models.NewActivitySnapshot{StickersFrom: []string{"user-2"}}, nil
		},
	}

	e := newTestEcho()
	NewFeedHandler(feed, poller.New(3, time.Millisecond), testLogger()).RegisterRoutes(e.Group("/api/v1"))

	rec := doRequest(t, e, http.MethodGet, "/api/v1/feed/new", "user-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, calls)

	var resp models.NewActivitySnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"user-2"}, resp.StickersFrom)
}

func TestGetNewExhaustsAttempts(t *testing.T) {
	calls := 0
	feed := &fakeFeed{
		getNewActivity: func(_ context.Context, _ string) (*models.NewActivitySnapshot, error) {
			calls++
			return &models.NewActivitySnapshot{}, nil
		},
	}

	e := newTestEcho()
	NewFeedHandler(feed, poller.New(3, time.Millisecond), testLogger()).RegisterRoutes(e.Group("/api/v1"))

	rec := doRequest(t, e, http.MethodGet, "/api/v1/feed/new", "user-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, calls)

	var resp models.NewActivitySnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.IsEmpty())
}

func TestGetNewErrorStopsPolling(t *testing.T) {
	calls := 0
	feed := &fakeFeed{
		getNewActivity: func(_ context.Context, _ string) (*models.NewActivitySnapshot, error) {
			calls++
			return nil, social.Upstream(context.DeadlineExceeded, "graph query failed")
		},
	}

	e := newTestEcho()
	NewFeedHandler(feed, poller.New(3, time.Millisecond), testLogger()).RegisterRoutes(e.Group("/api/v1"))

	rec := doRequest(t, e, http.MethodGet, "/api/v1/feed/new", "user-1", nil)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, 1, calls)
}

func TestGetNeighborStickers(t *testing.T) {
	feed := &fakeFeed{
		neighbors: func(_ context.Context, viewerID, roommateID string) ([]models.NeighborStickers, error) {
			assert.Equal(t, "user-1", viewerID)
			assert.Equal(t, "user-2", roommateID)
			return []models.NeighborStickers{
				{Neighbor: models.User{NodeID: "user-3"}, StickerIDs: []string{"sticker-1"}},
			}, nil
		},
	}

	e := newTestEcho()
	NewFeedHandler(feed, poller.New(3, time.Millisecond), testLogger()).RegisterRoutes(e.Group("/api/v1"))

	rec := doRequest(t, e, http.MethodGet, "/api/v1/feed/neighbors/user-2", "user-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp []models.NeighborStickers
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "user-3", resp[0].Neighbor.NodeID)
}
