package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/internal/repositories"
	appctx "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(testLogger())
	return e
}

// doRequest issues a JSON request as the given user. An empty userID
// simulates an unauthenticated caller.
func doRequest(t *testing.T, e *echo.Echo, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if userID != "" {
		req = req.WithContext(appctx.SetUserID(req.Context(), userID))
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

// fakeEvents records published social events.
type fakeEvents struct {
	mu     sync.Mutex
	events []*kafka.SocialEvent
	err    error
}

func (f *fakeEvents) Publish(_ context.Context, event *kafka.SocialEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEvents) published() []*kafka.SocialEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events
}

// fakeRelationships stubs the relationship repository. Methods without
// a configured func panic, which makes an unexpected call a loud test
// failure.
type fakeRelationships struct {
	repositories.Relationships

	sendKnock   func(ctx context.Context, fromID, toID string) (string, error)
	listKnocks  func(ctx context.Context, userID string) ([]models.Knock, error)
	acceptKnock func(ctx context.Context, userID, knockID string) (*models.NewRoommate, error)
	createPair  func(ctx context.Context, userID, otherID string) (*models.NewRoommate, error)
}

func (f *fakeRelationships) SendKnock(ctx context.Context, fromID, toID string) (string, error) {
	return f.sendKnock(ctx, fromID, toID)
}

func (f *fakeRelationships) ListKnocks(ctx context.Context, userID string) ([]models.Knock, error) {
	return f.listKnocks(ctx, userID)
}

func (f *fakeRelationships) AcceptKnock(ctx context.Context, userID, knockID string) (*models.NewRoommate, error) {
	return f.acceptKnock(ctx, userID, knockID)
}

func (f *fakeRelationships) CreateRoommatePair(ctx context.Context, userID, otherID string) (*models.NewRoommate, error) {
	return f.createPair(ctx, userID, otherID)
}

// fakeInvites stubs the invite link store.
type fakeInvites struct {
	create  func(ctx context.Context, creatorID string) (string, error)
	consume func(ctx context.Context, token string) (string, error)
}

func (f *fakeInvites) Create(ctx context.Context, creatorID string) (string, error) {
	return f.create(ctx, creatorID)
}

func (f *fakeInvites) Consume(ctx context.Context, token string) (string, error) {
	return f.consume(ctx, token)
}
