// Package sticker manages ephemeral sticker content. Deletion is
// always a tombstone (deleted_at set, never removed) so receipt edges
// never dangle.
package sticker

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Ramsey-B/clover/pkg/graph"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/social"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Repository handles sticker persistence
type Repository struct {
	client *graph.Client
	logger ectologger.Logger
}

// NewRepository creates a new sticker repository
func NewRepository(client *graph.Client, logger ectologger.Logger) *Repository {
	return &Repository{
		client: client,
		logger: logger,
	}
}

const createStickerCypher = `
	MATCH (u:User {node_id: $creator_id})
	CREATE (s:Sticker {
		node_id: $node_id,
		content: $content,
		image_url: $image_urls,
		created_at: $now,
		deleted_at: ''
	})
	CREATE (s)-[:creator_of_sticker]->(u)
	RETURN s
`

// Create creates a sticker owned by the given user.
func (r *Repository) Create(ctx context.Context, creatorID, content string, imageURLs []string) (*models.Sticker, error) {
	ctx, span := tracing.StartSpan(ctx, "sticker.Repository.Create")
	defer span.End()

	if imageURLs == nil {
		imageURLs = []string{}
	}

	result, err := r.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		rows, err := tx.Run(ctx, createStickerCypher, map[string]any{
			"creator_id": creatorID,
			"node_id":    uuid.New().String(),
			"content":    content,
			"image_urls": imageURLs,
			"now":        time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return nil, err
		}
		if !rows.Next(ctx) {
			if err := rows.Err(); err != nil {
				return nil, err
			}
			return nil, social.NotFound("user %s not found", creatorID)
		}
		node, _ := rows.Record().Get("s")
		sticker := models.StickerFromProps(node.(neo4j.Node).Props)
		return &sticker, nil
	})
	if err != nil {
		if social.IsNotFound(err) {
			return nil, err
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create sticker")
		return nil, social.Upstream(err, "failed to create sticker")
	}

	metrics.ContentCreated.WithLabelValues("sticker").Inc()
	return result.(*models.Sticker), nil
}

// ListMine lists the caller's own live stickers.
func (r *Repository) ListMine(ctx context.Context, userID string) ([]models.Sticker, error) {
	ctx, span := tracing.StartSpan(ctx, "sticker.Repository.ListMine")
	defer span.End()

	return r.list(ctx, `
		MATCH (:User {node_id: $user_id})<-[:creator_of_sticker]-(s:Sticker {deleted_at: ''})
		RETURN s
		ORDER BY s.created_at DESC
	`, map[string]any{"user_id": userID})
}

// ListByUser lists another user's live stickers, gated on block and
// mute in both the directions that matter to the viewer.
func (r *Repository) ListByUser(ctx context.Context, viewerID, userID string) ([]models.Sticker, error) {
	ctx, span := tracing.StartSpan(ctx, "sticker.Repository.ListByUser")
	defer span.End()

	if viewerID == userID {
		return r.ListMine(ctx, userID)
	}

	return r.list(ctx, `
		MATCH (me:User {node_id: $viewer_id}), (u:User {node_id: $user_id})
		WHERE NOT (me)-[:block]-(u)
		  AND NOT (me)-[:mute]->(u)
		MATCH (u)<-[:creator_of_sticker]-(s:Sticker {deleted_at: ''})
		RETURN s
		ORDER BY s.created_at DESC
	`, map[string]any{"viewer_id": viewerID, "user_id": userID})
}

func (r *Repository) list(ctx context.Context, cypher string, params map[string]any) ([]models.Sticker, error) {
	result, err := r.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		rows, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}

		stickers := []models.Sticker{}
		for rows.Next(ctx) {
			if node, ok := rows.Record().Get("s"); ok {
				stickers = append(stickers, models.StickerFromProps(node.(neo4j.Node).Props))
			}
		}
		return stickers, rows.Err()
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list stickers")
		return nil, social.Upstream(err, "failed to list stickers")
	}

	return result.([]models.Sticker), nil
}

// MarkRead sets the viewer's receipt edge to read. The write is
// monotonic: a read receipt never reverts. Creates the receipt if the
// viewer reached the sticker through a path that never materialized
// one.
const markReadCypher = `
	MATCH (me:User {node_id: $viewer_id})
	MATCH (s:Sticker {node_id: $sticker_id, deleted_at: ''})
	MERGE (s)-[rcpt:receiver_of_sticker]->(me)
	SET rcpt.read = true
	RETURN rcpt
`

func (r *Repository) MarkRead(ctx context.Context, viewerID, stickerID string) error {
	ctx, span := tracing.StartSpan(ctx, "sticker.Repository.MarkRead")
	defer span.End()

	_, err := r.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		rows, err := tx.Run(ctx, markReadCypher, map[string]any{
			"viewer_id":  viewerID,
			"sticker_id": stickerID,
		})
		if err != nil {
			return nil, err
		}
		if !rows.Next(ctx) {
			if err := rows.Err(); err != nil {
				return nil, err
			}
			return nil, social.NotFound("sticker %s not found", stickerID)
		}
		return nil, nil
	})
	if err != nil {
		if social.IsNotFound(err) {
			return err
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to mark sticker read")
		return social.Upstream(err, "failed to mark sticker read")
	}

	return nil
}

// SoftDelete tombstones a sticker. The ownership match and the write
// share one transaction. Returns the image URLs the sticker carried so
// the caller can reap the stored objects.
func (r *Repository) SoftDelete(ctx context.Context, ownerID, stickerID string) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "sticker.Repository.SoftDelete")
	defer span.End()

	result, err := r.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		rows, err := tx.Run(ctx, `
			MATCH (s:Sticker {node_id: $sticker_id, deleted_at: ''})-[:creator_of_sticker]->(:User {node_id: $owner_id})
			SET s.deleted_at = $now
			RETURN s.image_url AS image_urls
		`, map[string]any{
			"sticker_id": stickerID,
			"owner_id":   ownerID,
			"now":        time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return nil, err
		}
		if !rows.Next(ctx) {
			if err := rows.Err(); err != nil {
				return nil, err
			}
			return nil, social.NotFound("sticker %s not found", stickerID)
		}
		urls := []string{}
		if raw, ok := rows.Record().Get("image_urls"); ok {
			if items, ok := raw.([]any); ok {
				for _, item := range items {
					if u, ok := item.(string); ok {
						urls = append(urls, u)
					}
				}
			}
		}
		return urls, nil
	})
	if err != nil {
		if social.IsNotFound(err) {
			return nil, err
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete sticker")
		return nil, social.Upstream(err, "failed to delete sticker")
	}

	return result.([]string), nil
}

// ExpireOlderThan tombstones live stickers older than the TTL. The
// selection predicate excludes already-tombstoned nodes, so repeated
// runs are no-ops.
func (r *Repository) ExpireOlderThan(ctx context.Context, ttl time.Duration) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "sticker.Repository.ExpireOlderThan")
	defer span.End()

	cutoff := time.Now().UTC().Add(-ttl).Format(time.RFC3339)
	result, err := r.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		rows, err := tx.Run(ctx, `
			MATCH (s:Sticker {deleted_at: ''})
			WHERE s.created_at <= $cutoff
			SET s.deleted_at = $now
			RETURN count(s) AS expired
		`, map[string]any{
			"cutoff": cutoff,
			"now":    time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return nil, err
		}
		if rows.Next(ctx) {
			if v, ok := rows.Record().Get("expired"); ok {
				if n, ok := v.(int64); ok {
					return int(n), nil
				}
			}
		}
		return 0, rows.Err()
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to expire stickers")
		return 0, social.Upstream(err, "failed to expire stickers")
	}

	return result.(int), nil
}
