package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrTooManyLinks is returned when a user exceeds the active link bound
	ErrTooManyLinks = errors.New("too many active invite links")
	// ErrLinkNotFound is returned for unknown, used, or expired tokens
	ErrLinkNotFound = errors.New("invite link not found")
)

const (
	inviteTokenPrefix = "invite:token:"
	inviteCountPrefix = "invite:count:"
)

// InviteLinks stores single-use roommate invite tokens. Tokens expire
// after the configured TTL and each user may have at most maxActive
// outstanding at once.
type InviteLinks struct {
	client    *Client
	ttl       time.Duration
	maxActive int
}

// NewInviteLinks creates a new invite link store
func NewInviteLinks(client *Client, ttl time.Duration, maxActive int) *InviteLinks {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if maxActive <= 0 {
		maxActive = 5
	}
	return &InviteLinks{
		client:    client,
		ttl:       ttl,
		maxActive: maxActive,
	}
}

// Create mints a new token for the given creator. Returns
// ErrTooManyLinks once the per-user bound is reached; the counter
// relaxes as it expires alongside the oldest link.
func (s *InviteLinks) Create(ctx context.Context, creatorID string) (string, error) {
	countKey := inviteCountPrefix + creatorID

	n, err := s.client.Incr(ctx, countKey)
	if err != nil {
		return "", err
	}
	if n == 1 {
		if err := s.client.Expire(ctx, countKey, s.ttl); err != nil {
			return "", err
		}
	}
	if n > int64(s.maxActive) {
		return "", ErrTooManyLinks
	}

	token := uuid.New().String()
	if err := s.client.Set(ctx, inviteTokenPrefix+token, creatorID, s.ttl); err != nil {
		return "", err
	}

	s.client.logger.WithContext(ctx).WithField("creator_id", creatorID).Debug("Created invite link")
	return token, nil
}

// Consume resolves a token to its creator and deletes it atomically so
// a link can be redeemed at most once.
func (s *InviteLinks) Consume(ctx context.Context, token string) (string, error) {
	creatorID, err := s.client.rdb.GetDel(ctx, inviteTokenPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrLinkNotFound
	}
	if err != nil {
		return "", err
	}
	return creatorID, nil
}
