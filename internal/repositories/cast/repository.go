// Package cast manages time-limited broadcasts. Receiver edges are
// materialized at creation time for the recipients the creator
// addressed, unlike stickers whose receipts are lazy.
package cast

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

// Repository handles cast persistence
type Repository struct {
	client *graph.Client
	logger ectologger.Logger
}

// NewRepository creates a new cast repository
func NewRepository(client *graph.Client, logger ectologger.Logger) *Repository {
	return &Repository{
		client: client,
		logger: logger,
	}
}

// expires_at is precomputed at creation so the sweeper's selection is
// a plain string comparison on second-precision UTC timestamps.
const createCastCypher = `
	MATCH (u:User {node_id: $creator_id})
	CREATE (c:Cast {
		node_id: $node_id,
		message: $message,
		duration: $duration,
		reply_visible: $reply_visible,
		created_at: $now,
		expires_at: $expires_at,
		deleted_at: ''
	})
	CREATE (c)-[:creator_of_cast]->(u)
	RETURN c
`

// Receivers are the addressed recipients, minus anyone muting or
// blocking the creator; their edges start unopened and new. Unknown
// ids in the list are silently skipped.
const fanOutCypher = `
	MATCH (u:User {node_id: $creator_id})
	MATCH (c:Cast {node_id: $cast_id})
	UNWIND $friends AS receiver_id
	MATCH (rcv:User {node_id: receiver_id})
	WHERE rcv.node_id <> u.node_id
	  AND NOT (rcv)-[:mute]->(u)
	  AND NOT (rcv)-[:block]-(u)
	CREATE (c)-[:receiver_of_cast {open: false, new: true}]->(rcv)
	RETURN collect(DISTINCT rcv.node_id) AS receivers
`

// Create creates a cast and fans out receiver edges to the addressed
// recipients in the same transaction. Returns the ids that actually
// received an edge, for event publication.
func (r *Repository) Create(ctx context.Context, creatorID, message string, friends []string, durationMinutes int, replyVisible bool) (*models.Cast, []string, error) {
	ctx, span := tracing.StartSpan(ctx, "cast.Repository.Create")
	defer span.End()

	if durationMinutes <= 0 {
		return nil, nil, social.Conflict("cast duration must be positive")
	}
	if len(friends) == 0 {
		return nil, nil, social.Conflict("cast must address at least one recipient")
	}

	nodeID := uuid.New().String()
	createdAt := time.Now().UTC()

	type created struct {
		cast      models.Cast
		receivers []string
	}

	result, err := r.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		rows, err := tx.Run(ctx, createCastCypher, map[string]any{
			"creator_id":    creatorID,
			"node_id":       nodeID,
			"message":       message,
			"duration":      durationMinutes,
			"reply_visible": replyVisible,
			"now":           createdAt.Format(time.RFC3339),
			"expires_at":    createdAt.Add(time.Duration(durationMinutes) * time.Minute).Format(time.RFC3339),
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
		node, _ := rows.Record().Get("c")
		out := &created{cast: models.CastFromProps(node.(neo4j.Node).Props), receivers: []string{}}

		fanOut, err := tx.Run(ctx, fanOutCypher, map[string]any{
			"creator_id": creatorID,
			"cast_id":    nodeID,
			"friends":    friends,
		})
		if err != nil {
			return nil, err
		}
		if fanOut.Next(ctx) {
			if raw, ok := fanOut.Record().Get("receivers"); ok {
				for _, item := range raw.([]any) {
					if id, ok := item.(string); ok {
						out.receivers = append(out.receivers, id)
					}
				}
			}
		}
		if err := fanOut.Err(); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		if social.IsNotFound(err) {
			return nil, nil, err
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create cast")
		return nil, nil, social.Upstream(err, "failed to create cast")
	}

	metrics.ContentCreated.WithLabelValues("cast").Inc()
	c := result.(*created)
	return &c.cast, c.receivers, nil
}

// SoftDelete tombstones an owned cast.
func (r *Repository) SoftDelete(ctx context.Context, ownerID, castID string) error {
	ctx, span := tracing.StartSpan(ctx, "cast.Repository.SoftDelete")
	defer span.End()

	_, err := r.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		rows, err := tx.Run(ctx, `
			MATCH (c:Cast {node_id: $cast_id, deleted_at: ''})-[:creator_of_cast]->(:User {node_id: $owner_id})
			SET c.deleted_at = $now
			RETURN c.node_id
		`, map[string]any{
			"cast_id":  castID,
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
			return nil, social.NotFound("cast %s not found", castID)
		}
		return nil, nil
	})
	if err != nil {
		if social.IsNotFound(err) {
			return err
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete cast")
		return social.Upstream(err, "failed to delete cast")
	}

	return nil
}

// Reply attaches a reply edge from a recipient to a live cast. Only
// users holding a receiver edge may reply.
func (r *Repository) Reply(ctx context.Context, authorID, castID, message string) (*models.CastReply, error) {
	ctx, span := tracing.StartSpan(ctx, "cast.Repository.Reply")
	defer span.End()

	edgeID := uuid.New().String()
	result, err := r.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if err := requireCast(ctx, tx, castID); err != nil {
			return nil, err
		}

		rows, err := tx.Run(ctx, `
			MATCH (me:User {node_id: $author_id})<-[:receiver_of_cast]-(c:Cast {node_id: $cast_id, deleted_at: ''})
			CREATE (me)-[rp:is_reply {edge_id: $edge_id, message: $message, created_at: $now}]->(c)
			RETURN rp.edge_id
		`, map[string]any{
			"author_id": authorID,
			"cast_id":   castID,
			"edge_id":   edgeID,
			"message":   message,
			"now":       time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return nil, err
		}
		if !rows.Next(ctx) {
			if err := rows.Err(); err != nil {
				return nil, err
			}
			return nil, social.Conflict("only recipients can reply to this cast")
		}
		return &models.CastReply{EdgeID: edgeID, Message: message, AuthorID: authorID}, nil
	})
	if err != nil {
		if social.IsNotFound(err) || social.IsConflict(err) {
			return nil, err
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to reply to cast")
		return nil, social.Upstream(err, "failed to reply to cast")
	}

	return result.(*models.CastReply), nil
}

// ListReplies lists a cast's replies; only the creator may list them.
func (r *Repository) ListReplies(ctx context.Context, creatorID, castID string) ([]models.CastReply, error) {
	ctx, span := tracing.StartSpan(ctx, "cast.Repository.ListReplies")
	defer span.End()

	result, err := r.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		owned, err := tx.Run(ctx, `
			MATCH (c:Cast {node_id: $cast_id})-[:creator_of_cast]->(:User {node_id: $creator_id})
			RETURN c.node_id
		`, map[string]any{"cast_id": castID, "creator_id": creatorID})
		if err != nil {
			return nil, err
		}
		if !owned.Next(ctx) {
			if err := owned.Err(); err != nil {
				return nil, err
			}
			return nil, social.NotFound("cast %s not found", castID)
		}

		rows, err := tx.Run(ctx, `
			MATCH (author:User)-[rp:is_reply]->(:Cast {node_id: $cast_id})
			RETURN rp, author.node_id AS author_id
			ORDER BY rp.created_at ASC
		`, map[string]any{"cast_id": castID})
		if err != nil {
			return nil, err
		}

		replies := []models.CastReply{}
		for rows.Next(ctx) {
			record := rows.Record()
			edge, ok := record.Get("rp")
			if !ok {
				continue
			}
			props := edge.(neo4j.Relationship).Props
			reply := models.CastReply{}
			reply.EdgeID, _ = props["edge_id"].(string)
			reply.Message, _ = props["message"].(string)
			if v, ok := record.Get("author_id"); ok {
				reply.AuthorID, _ = v.(string)
			}
			replies = append(replies, reply)
		}
		return replies, rows.Err()
	})
	if err != nil {
		if social.IsNotFound(err) {
			return nil, err
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list cast replies")
		return nil, social.Upstream(err, "failed to list cast replies")
	}

	return result.([]models.CastReply), nil
}

// ExpireElapsed tombstones live casts whose lifetime has elapsed.
// Idempotent: tombstoned casts never match the selection.
func (r *Repository) ExpireElapsed(ctx context.Context) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "cast.Repository.ExpireElapsed")
	defer span.End()

	nowTS := time.Now().UTC().Format(time.RFC3339)
	result, err := r.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		rows, err := tx.Run(ctx, `
			MATCH (c:Cast {deleted_at: ''})
			WHERE c.expires_at <= $now
			SET c.deleted_at = $now
			RETURN count(c) AS expired
		`, map[string]any{"now": nowTS})
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
		r.logger.WithContext(ctx).WithError(err).Error("Failed to expire casts")
		return 0, social.Upstream(err, "failed to expire casts")
	}

	return result.(int), nil
}

func requireCast(ctx context.Context, tx neo4j.ManagedTransaction, castID string) error {
	rows, err := tx.Run(ctx, `
		MATCH (c:Cast {node_id: $cast_id, deleted_at: ''})
		RETURN c.node_id
	`, map[string]any{"cast_id": castID})
	if err != nil {
		return err
	}
	if !rows.Next(ctx) {
		if err := rows.Err(); err != nil {
			return err
		}
		return social.NotFound("cast %s not found", castID)
	}
	return nil
}
