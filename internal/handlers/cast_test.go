package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/internal/repositories"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/social"
)

type fakeCasts struct {
	repositories.Casts

	create func(ctx context.Context, creatorID, message string, friends []string, durationMinutes int, replyVisible bool) (*models.Cast, []string, error)
	reply  func(ctx context.Context, authorID, castID, message string) (*models.CastReply, error)
}

func (f *fakeCasts) Create(ctx context.Context, creatorID, message string, friends []string, durationMinutes int, replyVisible bool) (*models.Cast, []string, error) {
	return f.create(ctx, creatorID, message, friends, durationMinutes, replyVisible)
}

func (f *fakeCasts) Reply(ctx context.Context, authorID, castID, message string) (*models.CastReply, error) {
	return f.reply(ctx, authorID, castID, message)
}

func TestCreateCast(t *testing.T) {
	casts := &fakeCasts{
		create: func(_ context.Context, creatorID, message string, friends []string, durationMinutes int, replyVisible bool) (*models.Cast, []string, error) {
			assert.Equal(t, "user-1", creatorID)
			assert.Equal(t, "lunch anyone?", message)
			assert.Equal(t, []string{"user-2", "user-3"}, friends)
			assert.Equal(t, 30, durationMinutes)
			assert.True(t, replyVisible)
			return &models.Cast{NodeID: "cast-1", Message: message}, []string{"user-2", "user-3"}, nil
		},
	}
	events := &fakeEvents{}

	e := newTestEcho()
	NewCastHandler(casts, events, testLogger()).RegisterRoutes(e.Group("/api/v1"))

	rec := doRequest(t, e, http.MethodPost, "/api/v1/casts", "user-1", map[string]any{
		"message":       "lunch anyone?",
		"friends":       []string{"user-2", "user-3"},
		"duration":      30,
		"reply_visible": true,
	})

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp models.Cast
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "cast-1", resp.NodeID)

	published := events.published()
	require.Len(t, published, 1)
	assert.Equal(t, kafka.EventCastCreated, published[0].EventType)
	assert.Equal(t, []string{"user-2", "user-3"}, published[0].SubjectIDs)
}

func TestCreateCastRequiresDuration(t *testing.T) {
	e := newTestEcho()
	NewCastHandler(&fakeCasts{}, &fakeEvents{}, testLogger()).RegisterRoutes(e.Group("/api/v1"))

	rec := doRequest(t, e, http.MethodPost, "/api/v1/casts", "user-1", map[string]any{
		"message": "no duration",
		"friends": []string{"user-2"},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateCastRequiresRecipients(t *testing.T) {
	e := newTestEcho()
	NewCastHandler(&fakeCasts{}, &fakeEvents{}, testLogger()).RegisterRoutes(e.Group("/api/v1"))

	rec := doRequest(t, e, http.MethodPost, "/api/v1/casts", "user-1", map[string]any{
		"message":  "nobody listed",
		"duration": 10,
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// The event carries the ids the store actually materialized edges for,
// not the raw addressed list: recipients dropped by the mute/block
// filter never get notified.
func TestCreateCastEventCarriesFilteredRecipients(t *testing.T) {
	casts := &fakeCasts{
		create: func(_ context.Context, _, message string, friends []string, _ int, _ bool) (*models.Cast, []string, error) {
			assert.Equal(t, []string{"user-2", "user-3", "user-4"}, friends)
			return &models.Cast{NodeID: "cast-1", Message: message}, []string{"user-2", "user-4"}, nil
		},
	}
	events := &fakeEvents{}

	e := newTestEcho()
	NewCastHandler(casts, events, testLogger()).RegisterRoutes(e.Group("/api/v1"))

	rec := doRequest(t, e, http.MethodPost, "/api/v1/casts", "user-1", map[string]any{
		"message":  "movie night",
		"friends":  []string{"user-2", "user-3", "user-4"},
		"duration": 60,
	})

	require.Equal(t, http.StatusCreated, rec.Code)

	published := events.published()
	require.Len(t, published, 1)
	assert.Equal(t, []string{"user-2", "user-4"}, published[0].SubjectIDs)
}

func TestCreateCastNoReceiversNoEvent(t *testing.T) {
	casts := &fakeCasts{
		create: func(_ context.Context, _, message string, _ []string, _ int, _ bool) (*models.Cast, []string, error) {
			return &models.Cast{NodeID: "cast-1", Message: message}, nil, nil
		},
	}
	events := &fakeEvents{}

	e := newTestEcho()
	NewCastHandler(casts, events, testLogger()).RegisterRoutes(e.Group("/api/v1"))

	rec := doRequest(t, e, http.MethodPost, "/api/v1/casts", "user-1", map[string]any{
		"message":  "quiet one",
		"friends":  []string{"user-9"},
		"duration": 5,
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, events.published())
}

func TestReplyToCast(t *testing.T) {
	casts := &fakeCasts{
		reply: func(_ context.Context, authorID, castID, message string) (*models.CastReply, error) {
			assert.Equal(t, "user-2", authorID)
			assert.Equal(t, "cast-1", castID)
			return &models.CastReply{EdgeID: "reply-1", AuthorID: authorID, Message: message}, nil
		},
	}

	e := newTestEcho()
	NewCastHandler(casts, &fakeEvents{}, testLogger()).RegisterRoutes(e.Group("/api/v1"))

	rec := doRequest(t, e, http.MethodPost, "/api/v1/casts/cast-1/replies", "user-2", map[string]string{
		"message": "count me in",
	})

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp models.CastReply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "reply-1", resp.EdgeID)
}

func TestReplyFromNonRecipient(t *testing.T) {
	casts := &fakeCasts{
		reply: func(_ context.Context, _, _, _ string) (*models.CastReply, error) {
			return nil, social.Conflict("only recipients can reply to this cast")
		},
	}

	e := newTestEcho()
	NewCastHandler(casts, &fakeEvents{}, testLogger()).RegisterRoutes(e.Group("/api/v1"))

	rec := doRequest(t, e, http.MethodPost, "/api/v1/casts/cast-1/replies", "stranger", map[string]string{
		"message": "hi",
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
}
