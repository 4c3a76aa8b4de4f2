// Package post manages owned post content with a public/private flag.
package post

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

// Repository handles post persistence
type Repository struct {
	client *graph.Client
	logger ectologger.Logger
}

// NewRepository creates a new post repository
func NewRepository(client *graph.Client, logger ectologger.Logger) *Repository {
	return &Repository{
		client: client,
		logger: logger,
	}
}

const createPostCypher = `
	MATCH (u:User {node_id: $creator_id})
	CREATE (p:Post {
		node_id: $node_id,
		title: $title,
		content: $content,
		image_url: $image_urls,
		tags: $tags,
		is_public: $is_public,
		created_at: $now,
		deleted_at: ''
	})
	CREATE (p)-[:is_post]->(u)
	RETURN p
`

// Create creates a post owned by the given user.
func (r *Repository) Create(ctx context.Context, creatorID string, post *models.Post) (*models.Post, error) {
	ctx, span := tracing.StartSpan(ctx, "post.Repository.Create")
	defer span.End()

	result, err := r.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		rows, err := tx.Run(ctx, createPostCypher, map[string]any{
			"creator_id": creatorID,
			"node_id":    uuid.New().String(),
			"title":      post.Title,
			"content":    post.Content,
			"image_urls": emptyIfNil(post.ImageURLs),
			"tags":       emptyIfNil(post.Tags),
			"is_public":  post.IsPublic,
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
		node, _ := rows.Record().Get("p")
		created := models.PostFromProps(node.(neo4j.Node).Props)
		return &created, nil
	})
	if err != nil {
		if social.IsNotFound(err) {
			return nil, err
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create post")
		return nil, social.Upstream(err, "failed to create post")
	}

	metrics.ContentCreated.WithLabelValues("post").Inc()
	return result.(*models.Post), nil
}

// ListMine lists the caller's own live posts, private included.
func (r *Repository) ListMine(ctx context.Context, userID string) ([]models.Post, error) {
	ctx, span := tracing.StartSpan(ctx, "post.Repository.ListMine")
	defer span.End()

	return r.list(ctx, `
		MATCH (:User {node_id: $user_id})<-[:is_post]-(p:Post {deleted_at: ''})
		RETURN p
		ORDER BY p.created_at DESC
	`, map[string]any{"user_id": userID})
}

// ListByUser lists another user's live public posts, gated on block
// and mute.
func (r *Repository) ListByUser(ctx context.Context, viewerID, userID string) ([]models.Post, error) {
	ctx, span := tracing.StartSpan(ctx, "post.Repository.ListByUser")
	defer span.End()

	if viewerID == userID {
		return r.ListMine(ctx, userID)
	}

	return r.list(ctx, `
		MATCH (me:User {node_id: $viewer_id}), (u:User {node_id: $user_id})
		WHERE NOT (me)-[:block]-(u)
		  AND NOT (me)-[:mute]->(u)
		MATCH (u)<-[:is_post]-(p:Post {deleted_at: '', is_public: true})
		RETURN p
		ORDER BY p.created_at DESC
	`, map[string]any{"viewer_id": viewerID, "user_id": userID})
}

func (r *Repository) list(ctx context.Context, cypher string, params map[string]any) ([]models.Post, error) {
	result, err := r.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		rows, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}

		posts := []models.Post{}
		for rows.Next(ctx) {
			if node, ok := rows.Record().Get("p"); ok {
				posts = append(posts, models.PostFromProps(node.(neo4j.Node).Props))
			}
		}
		return posts, rows.Err()
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list posts")
		return nil, social.Upstream(err, "failed to list posts")
	}

	return result.([]models.Post), nil
}

// Update rewrites the mutable fields of an owned post. The ownership
// match and the write share one transaction.
const updatePostCypher = `
	MATCH (p:Post {node_id: $post_id, deleted_at: ''})-[:is_post]->(:User {node_id: $owner_id})
	SET p.title = $title,
	    p.content = $content,
	    p.image_url = $image_urls,
	    p.tags = $tags,
	    p.is_public = $is_public
	RETURN p
`

func (r *Repository) Update(ctx context.Context, ownerID string, post *models.Post) (*models.Post, error) {
	ctx, span := tracing.StartSpan(ctx, "post.Repository.Update")
	defer span.End()

	result, err := r.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		rows, err := tx.Run(ctx, updatePostCypher, map[string]any{
			"post_id":    post.NodeID,
			"owner_id":   ownerID,
			"title":      post.Title,
			"content":    post.Content,
			"image_urls": emptyIfNil(post.ImageURLs),
			"tags":       emptyIfNil(post.Tags),
			"is_public":  post.IsPublic,
		})
		if err != nil {
			return nil, err
		}
		if !rows.Next(ctx) {
			if err := rows.Err(); err != nil {
				return nil, err
			}
			return nil, social.NotFound("post %s not found", post.NodeID)
		}
		node, _ := rows.Record().Get("p")
		updated := models.PostFromProps(node.(neo4j.Node).Props)
		return &updated, nil
	})
	if err != nil {
		if social.IsNotFound(err) {
			return nil, err
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update post")
		return nil, social.Upstream(err, "failed to update post")
	}

	return result.(*models.Post), nil
}

// SoftDelete tombstones an owned post. Returns the image URLs the
// post carried so the caller can reap the stored objects.
func (r *Repository) SoftDelete(ctx context.Context, ownerID, postID string) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "post.Repository.SoftDelete")
	defer span.End()

	result, err := r.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		rows, err := tx.Run(ctx, `
			MATCH (p:Post {node_id: $post_id, deleted_at: ''})-[:is_post]->(:User {node_id: $owner_id})
			SET p.deleted_at = $now
			RETURN p.image_url AS image_urls
		`, map[string]any{
			"post_id":  postID,
			"owner_id": ownerID,
			"now":      time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return nil, err
		}
		if !rows.Next(ctx) {
			if err := rows.Err(); err != nil {
				return nil, err
			}
			return nil, social.NotFound("post %s not found", postID)
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
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete post")
		return nil, social.Upstream(err, "failed to delete post")
	}

	return result.([]string), nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
