package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/social"
)

func TestSendKnock(t *testing.T) {
	rel := &fakeRelationships{
		sendKnock: func(_ context.Context, fromID, toID string) (string, error) {
			assert.Equal(t, "user-1", fromID)
			assert.Equal(t, "user-2", toID)
			return "knock-1", nil
		},
	}
	events := &fakeEvents{}

	e := newTestEcho()
	NewKnockHandler(rel, &fakeInvites{}, events, "http://localhost:3000/knock", testLogger()).RegisterRoutes(e.Group("/api/v1"))

	rec := doRequest(t, e, http.MethodPost, "/api/v1/knocks", "user-1", map[string]string{"to_id": "user-2"})

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp sendKnockResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "knock-1", resp.KnockID)

	published := events.published()
	require.Len(t, published, 1)
	assert.Equal(t, kafka.EventKnockSent, published[0].EventType)
	assert.Equal(t, "user-1", published[0].ActorID)
	assert.Equal(t, []string{"user-2"}, published[0].SubjectIDs)
}

func TestSendKnockRequiresTarget(t *testing.T) {
	e := newTestEcho()
	NewKnockHandler(&fakeRelationships{}, &fakeInvites{}, &fakeEvents{}, "", testLogger()).RegisterRoutes(e.Group("/api/v1"))

	rec := doRequest(t, e, http.MethodPost, "/api/v1/knocks", "user-1", map[string]string{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendKnockUnauthenticated(t *testing.T) {
	e := newTestEcho()
	NewKnockHandler(&fakeRelationships{}, &fakeInvites{}, &fakeEvents{}, "", testLogger()).RegisterRoutes(e.Group("/api/v1"))

	rec := doRequest(t, e, http.MethodPost, "/api/v1/knocks", "", map[string]string{"to_id": "user-2"})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSendKnockConflict(t *testing.T) {
	rel := &fakeRelationships{
		sendKnock: func(_ context.Context, _, toID string) (string, error) {
			return "", social.Conflict("already roommates with %s", toID)
		},
	}
	events := &fakeEvents{}

	e := newTestEcho()
	NewKnockHandler(rel, &fakeInvites{}, events, "", testLogger()).RegisterRoutes(e.Group("/api/v1"))

	rec := doRequest(t, e, http.MethodPost, "/api/v1/knocks", "user-1", map[string]string{"to_id": "user-2"})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, events.published())
}

func TestAcceptKnock(t *testing.T) {
	rel := &fakeRelationships{
		acceptKnock: func(_ context.Context, userID, knockID string) (*models.NewRoommate, error) {
			assert.Equal(t, "user-1", userID)
			assert.Equal(t, "knock-1", knockID)
			return &models.NewRoommate{
				User:      models.User{NodeID: "user-2", Nickname: "sam"},
				Neighbors: []models.User{{NodeID: "user-3"}},
			}, nil
		},
	}
	events := &fakeEvents{}

	e := newTestEcho()
	NewKnockHandler(rel, &fakeInvites{}, events, "", testLogger()).RegisterRoutes(e.Group("/api/v1"))

	rec := doRequest(t, e, http.MethodPost, "/api/v1/knocks/knock-1/accept", "user-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.NewRoommate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "user-2", resp.User.NodeID)
	assert.Len(t, resp.Neighbors, 1)

	published := events.published()
	require.Len(t, published, 1)
	assert.Equal(t, kafka.EventRoommateAccepted, published[0].EventType)
	assert.Equal(t, []string{"user-2"}, published[0].SubjectIDs)
}

func TestAcceptKnockNotFound(t *testing.T) {
	rel := &fakeRelationships{
		acceptKnock: func(_ context.Context, _, _ string) (*models.NewRoommate, error) {
			return nil, social.NotFound("knock not found")
		},
	}

	e := newTestEcho()
	NewKnockHandler(rel, &fakeInvites{}, &fakeEvents{}, "", testLogger()).RegisterRoutes(e.Group("/api/v1"))

	rec := doRequest(t, e, http.MethodPost, "/api/v1/knocks/missing/accept", "user-1", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPublishFailureDoesNotSurface(t *testing.T) {
	rel := &fakeRelationships{
		sendKnock: func(_ context.Context, _, _ string) (string, error) {
			return "knock-1", nil
		},
	}
	events := &fakeEvents{err: errors.New("broker unavailable")}

	e := newTestEcho()
	NewKnockHandler(rel, &fakeInvites{}, events, "", testLogger()).RegisterRoutes(e.Group("/api/v1"))

	rec := doRequest(t, e, http.MethodPost, "/api/v1/knocks", "user-1", map[string]string{"to_id": "user-2"})

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCreateLink(t *testing.T) {
	invites := &fakeInvites{
		create: func(_ context.Context, creatorID string) (string, error) {
			assert.Equal(t, "user-1", creatorID)
			return "tok-123", nil
		},
	}

	e := newTestEcho()
	NewKnockHandler(&fakeRelationships{}, invites, &fakeEvents{}, "http://localhost:3000/knock", testLogger()).RegisterRoutes(e.Group("/api/v1"))

	rec := doRequest(t, e, http.MethodPost, "/api/v1/knocks/link", "user-1", nil)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp inviteLinkResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "tok-123", resp.Token)
	assert.Equal(t, "http://localhost:3000/knock/knocks/link/tok-123/accept", resp.URL)
}

func TestCreateLinkBounded(t *testing.T) {
	invites := &fakeInvites{
		create: func(_ context.Context, _ string) (string, error) {
			return "", redis.ErrTooManyLinks
		},
	}

	e := newTestEcho()
	NewKnockHandler(&fakeRelationships{}, invites, &fakeEvents{}, "", testLogger()).RegisterRoutes(e.Group("/api/v1"))

	rec := doRequest(t, e, http.MethodPost, "/api/v1/knocks/link", "user-1", nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAcceptLink(t *testing.T) {
	invites := &fakeInvites{
		consume: func(_ context.Context, token string) (string, error) {
			assert.Equal(t, "tok-123", token)
			return "user-2", nil
		},
	}
	rel := &fakeRelationships{
		createPair: func(_ context.Context, userID, otherID string) (*models.NewRoommate, error) {
			assert.Equal(t, "user-1", userID)
			assert.Equal(t, "user-2", otherID)
			return &models.NewRoommate{User: models.User{NodeID: "user-2"}}, nil
		},
	}
	events := &fakeEvents{}

	e := newTestEcho()
	NewKnockHandler(rel, invites, events, "", testLogger()).RegisterRoutes(e.Group("/api/v1"))

	rec := doRequest(t, e, http.MethodPost, "/api/v1/knocks/link/tok-123/accept", "user-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	published := events.published()
	require.Len(t, published, 1)
	assert.Equal(t, kafka.EventRoommateAccepted, published[0].EventType)
}

func TestAcceptLinkExpired(t *testing.T) {
	invites := &fakeInvites{
		consume: func(_ context.Context, _ string) (string, error) {
			return "", redis.ErrLinkNotFound
		},
	}

	e := newTestEcho()
	NewKnockHandler(&fakeRelationships{}, invites, &fakeEvents{}, "", testLogger()).RegisterRoutes(e.Group("/api/v1"))

	rec := doRequest(t, e, http.MethodPost, "/api/v1/knocks/link/stale/accept", "user-1", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListKnocks(t *testing.T) {
	rel := &fakeRelationships{
		listKnocks: func(_ context.Context, userID string) ([]models.Knock, error) {
			assert.Equal(t, "user-1", userID)
			return []models.Knock{{EdgeID: "knock-1", FromNodeID: "user-2", FromNickname: "sam"}}, nil
		},
	}

	e := newTestEcho()
	NewKnockHandler(rel, &fakeInvites{}, &fakeEvents{}, "", testLogger()).RegisterRoutes(e.Group("/api/v1"))

	rec := doRequest(t, e, http.MethodGet, "/api/v1/knocks", "user-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp []models.Knock
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "knock-1", resp[0].EdgeID)
}
