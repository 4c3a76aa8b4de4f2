// Package repositories defines the data-access contracts handlers
// depend on. Implementations live one package per aggregate and run
// every operation inside a single managed graph transaction, so
// precondition checks, flag clears and receipt writes commit together
// with the reads that triggered them.
package repositories

import (
	"context"
	"time"

	"github.com/Ramsey-B/clover/pkg/models"
)

// Feed computes content visibility for a viewer.
type Feed interface {
	// GetFeed returns the viewer's feed snapshot and, in the same
	// transaction, clears cast new-flags and materializes sticker
	// receipt edges for everything it surfaced.
	GetFeed(ctx context.Context, viewerID string) (*models.FeedSnapshot, error)

	// GetNewActivity runs one poll attempt. Every flag in the returned
	// snapshot has already been cleared; an empty snapshot is not an
	// error.
	GetNewActivity(ctx context.Context, viewerID string) (*models.NewActivitySnapshot, error)

	// NeighborsWithStickers lists unread stickers of the given
	// roommate's roommates, with the same receipt side effect as
	// GetFeed.
	NeighborsWithStickers(ctx context.Context, viewerID, roommateID string) ([]models.NeighborStickers, error)
}

// Relationships drives the knock/roommate/mute/block state machine.
type Relationships interface {
	SendKnock(ctx context.Context, fromID, toID string) (string, error)
	ListKnocks(ctx context.Context, userID string) ([]models.Knock, error)
	AcceptKnock(ctx context.Context, userID, knockID string) (*models.NewRoommate, error)
	RejectKnock(ctx context.Context, userID, knockID string) error

	// CreateRoommatePair is the invite-link acceptance path: same
	// preconditions as AcceptKnock minus the knock edge.
	CreateRoommatePair(ctx context.Context, userID, otherID string) (*models.NewRoommate, error)

	ListRoommates(ctx context.Context, userID string) ([]models.Roommate, error)
	GetRoommate(ctx context.Context, userID, roommateID string) (*models.RoommateDetail, error)
	DeleteRoommate(ctx context.Context, userID, roommateID string) error
	GetMemo(ctx context.Context, userID, roommateID string) (string, error)
	SetMemo(ctx context.Context, userID, roommateID, memo string) error
	SetGroup(ctx context.Context, userID, roommateID, group string) error

	Mute(ctx context.Context, userID, targetID string) (string, error)
	Unmute(ctx context.Context, userID, targetID string) error
	ListMuted(ctx context.Context, userID string) ([]models.MutedUser, error)

	Block(ctx context.Context, userID, targetID string) (string, error)
	Unblock(ctx context.Context, userID, targetID string) error
	ListBlocked(ctx context.Context, userID string) ([]models.BlockedUser, error)
}

// Stickers manages ephemeral sticker content.
type Stickers interface {
	Create(ctx context.Context, creatorID, content string, imageURLs []string) (*models.Sticker, error)
	ListMine(ctx context.Context, userID string) ([]models.Sticker, error)
	ListByUser(ctx context.Context, viewerID, userID string) ([]models.Sticker, error)
	MarkRead(ctx context.Context, viewerID, stickerID string) error

	// SoftDelete tombstones the sticker and returns the image URLs it
	// carried so callers can reap the stored objects.
	SoftDelete(ctx context.Context, ownerID, stickerID string) ([]string, error)
	ExpireOlderThan(ctx context.Context, ttl time.Duration) (int, error)
}

// Posts manages owned post content.
type Posts interface {
	Create(ctx context.Context, creatorID string, post *models.Post) (*models.Post, error)
	ListMine(ctx context.Context, userID string) ([]models.Post, error)
	ListByUser(ctx context.Context, viewerID, userID string) ([]models.Post, error)
	Update(ctx context.Context, ownerID string, post *models.Post) (*models.Post, error)

	// SoftDelete tombstones the post and returns the image URLs it
	// carried so callers can reap the stored objects.
	SoftDelete(ctx context.Context, ownerID, postID string) ([]string, error)
}

// Casts manages time-limited broadcasts and their replies.
type Casts interface {
	// Create materializes one receiver edge per addressed recipient
	// who neither mutes nor blocks the creator, and returns the ids
	// that received one for event fan-out.
	Create(ctx context.Context, creatorID, message string, friends []string, durationMinutes int, replyVisible bool) (*models.Cast, []string, error)
	SoftDelete(ctx context.Context, ownerID, castID string) error
	Reply(ctx context.Context, authorID, castID, message string) (*models.CastReply, error)
	ListReplies(ctx context.Context, creatorID, castID string) ([]models.CastReply, error)
	ExpireElapsed(ctx context.Context) (int, error)
}

// Users manages identity nodes and profiles.
type Users interface {
	Ensure(ctx context.Context, nodeID string) error
	Get(ctx context.Context, nodeID string) (*models.User, error)
	UpdateProfile(ctx context.Context, nodeID string, update *models.ProfileUpdate) (*models.User, error)
	Search(ctx context.Context, viewerID, query string) ([]models.User, error)
}
