// Package user manages identity nodes and profiles.
package user

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Ramsey-B/clover/pkg/graph"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/social"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Repository handles user persistence
type Repository struct {
	client *graph.Client
	logger ectologger.Logger
}

// NewRepository creates a new user repository
func NewRepository(client *graph.Client, logger ectologger.Logger) *Repository {
	return &Repository{
		client: client,
		logger: logger,
	}
}

// Ensure upserts the identity node for a resolved subject. Called once
// per authenticated request; MERGE keeps it idempotent under
// concurrent first logins.
func (r *Repository) Ensure(ctx context.Context, nodeID string) error {
	ctx, span := tracing.StartSpan(ctx, "user.Repository.Ensure")
	defer span.End()

	_, err := r.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `
			MERGE (u:User {node_id: $node_id})
			ON CREATE SET u.nickname = '',
			              u.username = '',
			              u.tags = [],
			              u.my_memo = '',
			              u.profile_image_url = '',
			              u.created_at = $now
			RETURN u.node_id
		`, map[string]any{
			"node_id": nodeID,
			"now":     time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to ensure user node")
		return social.Upstream(err, "failed to ensure user")
	}

	return nil
}

// Get retrieves a user by node id.
func (r *Repository) Get(ctx context.Context, nodeID string) (*models.User, error) {
	ctx, span := tracing.StartSpan(ctx, "user.Repository.Get")
	defer span.End()

	result, err := r.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		rows, err := tx.Run(ctx, `
			MATCH (u:User {node_id: $node_id})
			RETURN u
		`, map[string]any{"node_id": nodeID})
		if err != nil {
			return nil, err
		}
		if !rows.Next(ctx) {
			if err := rows.Err(); err != nil {
				return nil, err
			}
			return nil, social.NotFound("user %s not found", nodeID)
		}
		node, _ := rows.Record().Get("u")
		u := models.UserFromProps(node.(neo4j.Node).Props)
		return &u, nil
	})
	if err != nil {
		if social.IsNotFound(err) {
			return nil, err
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get user")
		return nil, social.Upstream(err, "failed to get user")
	}

	return result.(*models.User), nil
}

// UpdateProfile rewrites the mutable profile fields. A nil
// ProfileImageURL leaves the stored value untouched; an empty string
// clears it.
func (r *Repository) UpdateProfile(ctx context.Context, nodeID string, update *models.ProfileUpdate) (*models.User, error) {
	ctx, span := tracing.StartSpan(ctx, "user.Repository.UpdateProfile")
	defer span.End()

	params := map[string]any{
		"node_id":  nodeID,
		"nickname": update.Nickname,
		"username": update.Username,
		"tags":     update.Tags,
		"my_memo":  update.MyMemo,
	}
	if params["tags"] == nil {
		params["tags"] = []string{}
	}

	cypher := `
		MATCH (u:User {node_id: $node_id})
		SET u.nickname = $nickname,
		    u.username = $username,
		    u.tags = $tags,
		    u.my_memo = $my_memo
	`
	if update.ProfileImageURL != nil {
		cypher += `, u.profile_image_url = $profile_image_url`
		params["profile_image_url"] = *update.ProfileImageURL
	}
	cypher += `
		RETURN u
	`

	result, err := r.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		rows, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		if !rows.Next(ctx) {
			if err := rows.Err(); err != nil {
				return nil, err
			}
			return nil, social.NotFound("user %s not found", nodeID)
		}
		node, _ := rows.Record().Get("u")
		u := models.UserFromProps(node.(neo4j.Node).Props)
		return &u, nil
	})
	if err != nil {
		if social.IsNotFound(err) {
			return nil, err
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update profile")
		return nil, social.Upstream(err, "failed to update profile")
	}

	return result.(*models.User), nil
}

// Search finds users whose nickname or username starts with the query,
// excluding the viewer and anyone in a block relation with them.
func (r *Repository) Search(ctx context.Context, viewerID, query string) ([]models.User, error) {
	ctx, span := tracing.StartSpan(ctx, "user.Repository.Search")
	defer span.End()

	result, err := r.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		rows, err := tx.Run(ctx, `
			MATCH (me:User {node_id: $viewer_id})
			MATCH (u:User)
			WHERE u.node_id <> $viewer_id
			  AND (u.nickname STARTS WITH $query OR u.username STARTS WITH $query)
			  AND NOT (me)-[:block]-(u)
			RETURN u
			ORDER BY u.nickname ASC
			LIMIT 50
		`, map[string]any{"viewer_id": viewerID, "query": query})
		if err != nil {
			return nil, err
		}

		users := []models.User{}
		for rows.Next(ctx) {
			if node, ok := rows.Record().Get("u"); ok {
				users = append(users, models.UserFromProps(node.(neo4j.Node).Props))
			}
		}
		return users, rows.Err()
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to search users")
		return nil, social.Upstream(err, "failed to search users")
	}

	return result.([]models.User), nil
}
