// Package relationship implements the knock → accept → roommate state
// machine plus the orthogonal mute and block flags. Preconditions and
// mutations always run in the same transaction so two racing requests
// cannot both pass the same existence check.
package relationship

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

// Repository handles relationship edges between users
type Repository struct {
	client *graph.Client
	logger ectologger.Logger
}

// NewRepository creates a new relationship repository
func NewRepository(client *graph.Client, logger ectologger.Logger) *Repository {
	return &Repository{
		client: client,
		logger: logger,
	}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// The WHERE chain is the whole state machine guard: no roommate pair
// in either direction, no same-direction knock, no block either way.
const sendKnockCypher = `
	MATCH (a:User {node_id: $from_id}), (b:User {node_id: $to_id})
	WHERE NOT (a)-[:is_roommate]-(b)
	  AND NOT (a)-[:knock]->(b)
	  AND NOT (a)-[:block]-(b)
	CREATE (a)-[k:knock {edge_id: $edge_id, created_at: $now}]->(b)
	RETURN k.edge_id AS edge_id
`

const knockStateCypher = `
	MATCH (a:User {node_id: $from_id}), (b:User {node_id: $to_id})
	OPTIONAL MATCH (a)-[r:is_roommate]-(b)
	OPTIONAL MATCH (a)-[k:knock]->(b)
	OPTIONAL MATCH (a)-[bl:block]-(b)
	RETURN r IS NOT NULL AS roommates, k IS NOT NULL AS knocked, bl IS NOT NULL AS blocked
	LIMIT 1
`

// SendKnock creates a pending friend request from one user to another.
func (r *Repository) SendKnock(ctx context.Context, fromID, toID string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.SendKnock")
	defer span.End()

	if fromID == toID {
		metrics.RecordKnock("send", "conflict")
		return "", social.Conflict("cannot knock yourself")
	}

	edgeID := uuid.New().String()
	result, err := r.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if err := requireUsers(ctx, tx, fromID, toID); err != nil {
			return nil, err
		}

		created, err := tx.Run(ctx, sendKnockCypher, map[string]any{
			"from_id": fromID,
			"to_id":   toID,
			"edge_id": edgeID,
			"now":     now(),
		})
		if err != nil {
			return nil, err
		}
		if created.Next(ctx) {
			return edgeID, nil
		}
		if err := created.Err(); err != nil {
			return nil, err
		}

		// The guard rejected the pair; probe which precondition failed
		// for a descriptive conflict.
		state, err := tx.Run(ctx, knockStateCypher, map[string]any{"from_id": fromID, "to_id": toID})
		if err != nil {
			return nil, err
		}
		if state.Next(ctx) {
			record := state.Record()
			if v, _ := record.Get("roommates"); v == true {
				return nil, social.Conflict("already roommates with %s", toID)
			}
			if v, _ := record.Get("knocked"); v == true {
				return nil, social.Conflict("knock to %s already pending", toID)
			}
			if v, _ := record.Get("blocked"); v == true {
				return nil, social.Conflict("cannot knock %s", toID)
			}
		}
		return nil, social.Conflict("cannot knock %s", toID)
	})
	if err != nil {
		metrics.RecordKnock("send", outcome(err))
		if social.IsNotFound(err) || social.IsConflict(err) {
			return "", err
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to send knock")
		return "", social.Upstream(err, "failed to send knock")
	}

	metrics.RecordKnock("send", "ok")
	return result.(string), nil
}

const listKnocksCypher = `
	MATCH (a:User)-[k:knock]->(b:User {node_id: $user_id})
	RETURN k.edge_id AS edge_id, a.node_id AS from_id, a.nickname AS from_nickname
	ORDER BY k.created_at DESC
`

// ListKnocks lists pending inbound knocks with sender nicknames.
func (r *Repository) ListKnocks(ctx context.Context, userID string) ([]models.Knock, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.ListKnocks")
	defer span.End()

	result, err := r.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		rows, err := tx.Run(ctx, listKnocksCypher, map[string]any{"user_id": userID})
		if err != nil {
			return nil, err
		}

		knocks := []models.Knock{}
		for rows.Next(ctx) {
			record := rows.Record()
			knock := models.Knock{}
			if v, ok := record.Get("edge_id"); ok {
				knock.EdgeID, _ = v.(string)
			}
			if v, ok := record.Get("from_id"); ok {
				knock.FromNodeID, _ = v.(string)
			}
			if v, ok := record.Get("from_nickname"); ok {
				knock.FromNickname, _ = v.(string)
			}
			knocks = append(knocks, knock)
		}
		return knocks, rows.Err()
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list knocks")
		return nil, social.Upstream(err, "failed to list knocks")
	}

	return result.([]models.Knock), nil
}

// AcceptKnock deletes the knock and creates both directed roommate
// edges atomically. The edge pointing back at the knock sender is
// flagged new so their next poll reports the acceptance.
const acceptKnockCypher = `
	MATCH (a:User)-[k:knock {edge_id: $knock_id}]->(b:User {node_id: $user_id})
	WHERE NOT (a)-[:is_roommate]-(b)
	DELETE k
	CREATE (a)-[:is_roommate {edge_id: $ab_id, memo: '', group: '', new: false, created_at: $now}]->(b)
	CREATE (b)-[:is_roommate {edge_id: $ba_id, memo: '', group: '', new: true, created_at: $now}]->(a)
	WITH a, b
	OPTIONAL MATCH (a)-[:is_roommate]->(nb:User)
	WHERE nb.node_id <> b.node_id
	  AND NOT (a)-[:block]-(nb)
	RETURN a, collect(nb) AS neighbors
`

func (r *Repository) AcceptKnock(ctx context.Context, userID, knockID string) (*models.NewRoommate, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.AcceptKnock")
	defer span.End()

	result, err := r.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		exists, err := tx.Run(ctx, `
			MATCH (:User)-[k:knock {edge_id: $knock_id}]->(:User {node_id: $user_id})
			RETURN k.edge_id
		`, map[string]any{"knock_id": knockID, "user_id": userID})
		if err != nil {
			return nil, err
		}
		if !exists.Next(ctx) {
			if err := exists.Err(); err != nil {
				return nil, err
			}
			return nil, social.NotFound("knock %s not found", knockID)
		}

		rows, err := tx.Run(ctx, acceptKnockCypher, map[string]any{
			"knock_id": knockID,
			"user_id":  userID,
			"ab_id":    uuid.New().String(),
			"ba_id":    uuid.New().String(),
			"now":      now(),
		})
		if err != nil {
			return nil, err
		}
		if !rows.Next(ctx) {
			if err := rows.Err(); err != nil {
				return nil, err
			}
			// Knock exists but the pair is already connected: lost the
			// race against a concurrent accept or invite link.
			return nil, social.Conflict("already roommates")
		}
		return newRoommateFromRecord(rows.Record())
	})
	if err != nil {
		metrics.RecordKnock("accept", outcome(err))
		if social.IsNotFound(err) || social.IsConflict(err) {
			return nil, err
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to accept knock")
		return nil, social.Upstream(err, "failed to accept knock")
	}

	metrics.RecordKnock("accept", "ok")
	return result.(*models.NewRoommate), nil
}

// RejectKnock deletes a pending knock addressed to the caller.
func (r *Repository) RejectKnock(ctx context.Context, userID, knockID string) error {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.RejectKnock")
	defer span.End()

	_, err := r.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		rows, err := tx.Run(ctx, `
			MATCH (a:User)-[k:knock {edge_id: $knock_id}]->(b:User {node_id: $user_id})
			DELETE k
			RETURN a.node_id
		`, map[string]any{"knock_id": knockID, "user_id": userID})
		if err != nil {
			return nil, err
		}
		if !rows.Next(ctx) {
			if err := rows.Err(); err != nil {
				return nil, err
			}
			return nil, social.NotFound("knock %s not found", knockID)
		}
		return nil, nil
	})
	if err != nil {
		metrics.RecordKnock("reject", outcome(err))
		if social.IsNotFound(err) {
			return err
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to reject knock")
		return social.Upstream(err, "failed to reject knock")
	}

	metrics.RecordKnock("reject", "ok")
	return nil
}

// CreateRoommatePair connects two users directly, used when an invite
// link is redeemed. Same guards as accepting a knock, minus the knock
// edge itself; the link creator's inbound edge carries the new flag.
const createPairCypher = `
	MATCH (a:User {node_id: $creator_id}), (b:User {node_id: $user_id})
	WHERE NOT (a)-[:is_roommate]-(b)
	  AND NOT (a)-[:block]-(b)
	CREATE (a)-[:is_roommate {edge_id: $ab_id, memo: '', group: '', new: false, created_at: $now}]->(b)
	CREATE (b)-[:is_roommate {edge_id: $ba_id, memo: '', group: '', new: true, created_at: $now}]->(a)
	WITH a, b
	OPTIONAL MATCH (a)-[:is_roommate]->(nb:User)
	WHERE nb.node_id <> b.node_id
	  AND NOT (a)-[:block]-(nb)
	RETURN a, collect(nb) AS neighbors
`

func (r *Repository) CreateRoommatePair(ctx context.Context, userID, otherID string) (*models.NewRoommate, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.CreateRoommatePair")
	defer span.End()

	if userID == otherID {
		return nil, social.Conflict("cannot become your own roommate")
	}

	result, err := r.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if err := requireUsers(ctx, tx, userID, otherID); err != nil {
			return nil, err
		}

		rows, err := tx.Run(ctx, createPairCypher, map[string]any{
			"creator_id": otherID,
			"user_id":    userID,
			"ab_id":      uuid.New().String(),
			"ba_id":      uuid.New().String(),
			"now":        now(),
		})
		if err != nil {
			return nil, err
		}
		if !rows.Next(ctx) {
			if err := rows.Err(); err != nil {
				return nil, err
			}
			return nil, social.Conflict("cannot connect with %s", otherID)
		}
		return newRoommateFromRecord(rows.Record())
	})
	if err != nil {
		if social.IsNotFound(err) || social.IsConflict(err) {
			return nil, err
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create roommate pair")
		return nil, social.Upstream(err, "failed to create roommate pair")
	}

	return result.(*models.NewRoommate), nil
}

// ListRoommates returns direct roommates with the caller's edge
// attributes and each roommate's own roommates. Reading the list
// clears the new flag on the caller's inbound edges; the returned
// value reflects the pre-clear state.
const listRoommatesCypher = `
	MATCH (me:User {node_id: $user_id})-[out:is_roommate]->(rm:User)
	MATCH (rm)-[inb:is_roommate]->(me)
	WITH rm, out, inb, inb.new AS was_new
	SET inb.new = false
	WITH rm, out, was_new
	OPTIONAL MATCH (rm)-[:is_roommate]->(nb:User)
	WHERE nb.node_id <> $user_id
	RETURN rm, out, was_new, collect(nb.node_id) AS neighbor_ids
	ORDER BY out.created_at DESC
`

func (r *Repository) ListRoommates(ctx context.Context, userID string) ([]models.Roommate, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.ListRoommates")
	defer span.End()

	result, err := r.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		rows, err := tx.Run(ctx, listRoommatesCypher, map[string]any{"user_id": userID})
		if err != nil {
			return nil, err
		}

		roommates := []models.Roommate{}
		for rows.Next(ctx) {
			record := rows.Record()
			node, ok := record.Get("rm")
			if !ok {
				continue
			}
			edge, _ := record.Get("out")
			rm := models.Roommate{
				User:        models.UserFromProps(node.(neo4j.Node).Props),
				Edge:        models.RoommateEdgeFromProps(edge.(neo4j.Relationship).Props),
				NeighborIDs: []string{},
			}
			if v, _ := record.Get("was_new"); v == true {
				rm.Edge.New = true
			}
			if raw, ok := record.Get("neighbor_ids"); ok {
				for _, item := range raw.([]any) {
					if id, ok := item.(string); ok {
						rm.NeighborIDs = append(rm.NeighborIDs, id)
					}
				}
			}
			roommates = append(roommates, rm)
		}
		return roommates, rows.Err()
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list roommates")
		return nil, social.Upstream(err, "failed to list roommates")
	}

	return result.([]models.Roommate), nil
}

// GetRoommate returns one roommate's profile, the caller's edge
// attributes, and the roommate's live stickers and public posts.
const roommateDetailCypher = `
	MATCH (me:User {node_id: $user_id})-[out:is_roommate]->(rm:User {node_id: $roommate_id})
	WHERE NOT (me)-[:block]-(rm)
	OPTIONAL MATCH (rm)<-[:creator_of_sticker]-(s:Sticker {deleted_at: ''})
	WITH rm, out, collect(DISTINCT s) AS stickers
	OPTIONAL MATCH (rm)<-[:is_post]-(p:Post {deleted_at: '', is_public: true})
	RETURN rm, out, stickers, collect(DISTINCT p) AS posts
`

func (r *Repository) GetRoommate(ctx context.Context, userID, roommateID string) (*models.RoommateDetail, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.GetRoommate")
	defer span.End()

	result, err := r.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		rows, err := tx.Run(ctx, roommateDetailCypher, map[string]any{
			"user_id":     userID,
			"roommate_id": roommateID,
		})
		if err != nil {
			return nil, err
		}
		if !rows.Next(ctx) {
			if err := rows.Err(); err != nil {
				return nil, err
			}
			return nil, social.NotFound("roommate %s not found", roommateID)
		}

		record := rows.Record()
		node, _ := record.Get("rm")
		edge, _ := record.Get("out")
		detail := &models.RoommateDetail{
			User:     models.UserFromProps(node.(neo4j.Node).Props),
			Edge:     models.RoommateEdgeFromProps(edge.(neo4j.Relationship).Props),
			Stickers: []models.Sticker{},
			Posts:    []models.Post{},
		}
		if raw, ok := record.Get("stickers"); ok {
			for _, item := range raw.([]any) {
				if n, ok := item.(neo4j.Node); ok {
					detail.Stickers = append(detail.Stickers, models.StickerFromProps(n.Props))
				}
			}
		}
		if raw, ok := record.Get("posts"); ok {
			for _, item := range raw.([]any) {
				if n, ok := item.(neo4j.Node); ok {
					detail.Posts = append(detail.Posts, models.PostFromProps(n.Props))
				}
			}
		}
		return detail, nil
	})
	if err != nil {
		if social.IsNotFound(err) {
			return nil, err
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get roommate")
		return nil, social.Upstream(err, "failed to get roommate")
	}

	return result.(*models.RoommateDetail), nil
}

// DeleteRoommate removes both directed roommate edges.
func (r *Repository) DeleteRoommate(ctx context.Context, userID, roommateID string) error {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.DeleteRoommate")
	defer span.End()

	_, err := r.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		rows, err := tx.Run(ctx, `
			MATCH (me:User {node_id: $user_id})-[out:is_roommate]->(rm:User {node_id: $roommate_id})
			MATCH (rm)-[inb:is_roommate]->(me)
			DELETE out, inb
			RETURN rm.node_id
		`, map[string]any{"user_id": userID, "roommate_id": roommateID})
		if err != nil {
			return nil, err
		}
		if !rows.Next(ctx) {
			if err := rows.Err(); err != nil {
				return nil, err
			}
			return nil, social.NotFound("roommate %s not found", roommateID)
		}
		return nil, nil
	})
	if err != nil {
		if social.IsNotFound(err) {
			return err
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete roommate")
		return social.Upstream(err, "failed to delete roommate")
	}

	return nil
}

// GetMemo reads the caller's private memo on a roommate edge.
func (r *Repository) GetMemo(ctx context.Context, userID, roommateID string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.GetMemo")
	defer span.End()

	result, err := r.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		rows, err := tx.Run(ctx, `
			MATCH (:User {node_id: $user_id})-[out:is_roommate]->(:User {node_id: $roommate_id})
			RETURN out.memo AS memo
		`, map[string]any{"user_id": userID, "roommate_id": roommateID})
		if err != nil {
			return nil, err
		}
		if !rows.Next(ctx) {
			if err := rows.Err(); err != nil {
				return nil, err
			}
			return nil, social.NotFound("roommate %s not found", roommateID)
		}
		memo, _ := rows.Record().Get("memo")
		s, _ := memo.(string)
		return s, nil
	})
	if err != nil {
		if social.IsNotFound(err) {
			return "", err
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get memo")
		return "", social.Upstream(err, "failed to get memo")
	}

	return result.(string), nil
}

// SetMemo writes the caller-side memo; last write wins.
func (r *Repository) SetMemo(ctx context.Context, userID, roommateID, memo string) error {
	return r.setEdgeProp(ctx, "relationship.Repository.SetMemo", userID, roommateID, "memo", memo)
}

// SetGroup writes the caller-side group label; last write wins.
func (r *Repository) SetGroup(ctx context.Context, userID, roommateID, group string) error {
	return r.setEdgeProp(ctx, "relationship.Repository.SetGroup", userID, roommateID, "group", group)
}

func (r *Repository) setEdgeProp(ctx context.Context, spanName, userID, roommateID, prop, value string) error {
	ctx, span := tracing.StartSpan(ctx, spanName)
	defer span.End()

	cypher := `
		MATCH (:User {node_id: $user_id})-[out:is_roommate]->(:User {node_id: $roommate_id})
		SET out.` + prop + ` = $value
		RETURN out.edge_id
	`

	_, err := r.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		rows, err := tx.Run(ctx, cypher, map[string]any{
			"user_id":     userID,
			"roommate_id": roommateID,
			"value":       value,
		})
		if err != nil {
			return nil, err
		}
		if !rows.Next(ctx) {
			if err := rows.Err(); err != nil {
				return nil, err
			}
			return nil, social.NotFound("roommate %s not found", roommateID)
		}
		return nil, nil
	})
	if err != nil {
		if social.IsNotFound(err) {
			return err
		}
		r.logger.WithContext(ctx).WithError(err).Errorf("Failed to set roommate %s", prop)
		return social.Upstream(err, "failed to update roommate edge")
	}

	return nil
}

// Mute adds a directed mute edge. Duplicate and self mutes conflict.
func (r *Repository) Mute(ctx context.Context, userID, targetID string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.Mute")
	defer span.End()

	if userID == targetID {
		return "", social.Conflict("cannot mute yourself")
	}

	edgeID := uuid.New().String()
	_, err := r.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if err := requireUsers(ctx, tx, userID, targetID); err != nil {
			return nil, err
		}

		rows, err := tx.Run(ctx, `
			MATCH (a:User {node_id: $user_id}), (b:User {node_id: $target_id})
			WHERE NOT (a)-[:mute]->(b)
			CREATE (a)-[m:mute {edge_id: $edge_id, created_at: $now}]->(b)
			RETURN m.edge_id
		`, map[string]any{
			"user_id":   userID,
			"target_id": targetID,
			"edge_id":   edgeID,
			"now":       now(),
		})
		if err != nil {
			return nil, err
		}
		if !rows.Next(ctx) {
			if err := rows.Err(); err != nil {
				return nil, err
			}
			return nil, social.Conflict("%s is already muted", targetID)
		}
		return nil, nil
	})
	if err != nil {
		if social.IsNotFound(err) || social.IsConflict(err) {
			return "", err
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to mute user")
		return "", social.Upstream(err, "failed to mute user")
	}

	return edgeID, nil
}

// Unmute removes the caller's mute edge.
func (r *Repository) Unmute(ctx context.Context, userID, targetID string) error {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.Unmute")
	defer span.End()

	_, err := r.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		rows, err := tx.Run(ctx, `
			MATCH (a:User {node_id: $user_id})-[m:mute]->(b:User {node_id: $target_id})
			DELETE m
			RETURN b.node_id
		`, map[string]any{"user_id": userID, "target_id": targetID})
		if err != nil {
			return nil, err
		}
		if !rows.Next(ctx) {
			if err := rows.Err(); err != nil {
				return nil, err
			}
			return nil, social.NotFound("%s is not muted", targetID)
		}
		return nil, nil
	})
	if err != nil {
		if social.IsNotFound(err) {
			return err
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to unmute user")
		return social.Upstream(err, "failed to unmute user")
	}

	return nil
}

// ListMuted lists users the caller has muted.
func (r *Repository) ListMuted(ctx context.Context, userID string) ([]models.MutedUser, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.ListMuted")
	defer span.End()

	result, err := r.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		rows, err := tx.Run(ctx, `
			MATCH (a:User {node_id: $user_id})-[m:mute]->(b:User)
			RETURN m.edge_id AS edge_id, b
			ORDER BY m.created_at DESC
		`, map[string]any{"user_id": userID})
		if err != nil {
			return nil, err
		}

		muted := []models.MutedUser{}
		for rows.Next(ctx) {
			record := rows.Record()
			node, ok := record.Get("b")
			if !ok {
				continue
			}
			mu := models.MutedUser{User: models.UserFromProps(node.(neo4j.Node).Props)}
			if v, ok := record.Get("edge_id"); ok {
				mu.EdgeID, _ = v.(string)
			}
			muted = append(muted, mu)
		}
		return muted, rows.Err()
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list muted users")
		return nil, social.Upstream(err, "failed to list muted users")
	}

	return result.([]models.MutedUser), nil
}

// Block creates a directed block edge (matched undirected everywhere)
// and, in the same transaction, tears down any knock or roommate edges
// between the pair so the roommate/block exclusion invariant holds.
const blockCypher = `
	MATCH (a:User {node_id: $user_id}), (b:User {node_id: $target_id})
	WHERE NOT (a)-[:block]-(b)
	CREATE (a)-[bl:block {edge_id: $edge_id, created_at: $now}]->(b)
	WITH a, b, bl
	OPTIONAL MATCH (a)-[k:knock]-(b)
	DELETE k
	WITH DISTINCT a, b, bl
	OPTIONAL MATCH (a)-[rm:is_roommate]-(b)
	DELETE rm
	RETURN DISTINCT bl.edge_id
`

func (r *Repository) Block(ctx context.Context, userID, targetID string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.Block")
	defer span.End()

	if userID == targetID {
		return "", social.Conflict("cannot block yourself")
	}

	edgeID := uuid.New().String()
	_, err := r.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if err := requireUsers(ctx, tx, userID, targetID); err != nil {
			return nil, err
		}

		rows, err := tx.Run(ctx, blockCypher, map[string]any{
			"user_id":   userID,
			"target_id": targetID,
			"edge_id":   edgeID,
			"now":       now(),
		})
		if err != nil {
			return nil, err
		}
		if !rows.Next(ctx) {
			if err := rows.Err(); err != nil {
				return nil, err
			}
			return nil, social.Conflict("%s is already blocked", targetID)
		}
		return nil, nil
	})
	if err != nil {
		if social.IsNotFound(err) || social.IsConflict(err) {
			return "", err
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to block user")
		return "", social.Upstream(err, "failed to block user")
	}

	return edgeID, nil
}

// Unblock removes the caller's own block edge only; a block held by
// the other side stays in force.
func (r *Repository) Unblock(ctx context.Context, userID, targetID string) error {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.Unblock")
	defer span.End()

	_, err := r.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		rows, err := tx.Run(ctx, `
			MATCH (a:User {node_id: $user_id})-[bl:block]->(b:User {node_id: $target_id})
			DELETE bl
			RETURN b.node_id
		`, map[string]any{"user_id": userID, "target_id": targetID})
		if err != nil {
			return nil, err
		}
		if !rows.Next(ctx) {
			if err := rows.Err(); err != nil {
				return nil, err
			}
			return nil, social.NotFound("%s is not blocked", targetID)
		}
		return nil, nil
	})
	if err != nil {
		if social.IsNotFound(err) {
			return err
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to unblock user")
		return social.Upstream(err, "failed to unblock user")
	}

	return nil
}

// ListBlocked lists users the caller has blocked.
func (r *Repository) ListBlocked(ctx context.Context, userID string) ([]models.BlockedUser, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.ListBlocked")
	defer span.End()

	result, err := r.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		rows, err := tx.Run(ctx, `
			MATCH (a:User {node_id: $user_id})-[bl:block]->(b:User)
			RETURN bl.edge_id AS edge_id, b
			ORDER BY bl.created_at DESC
		`, map[string]any{"user_id": userID})
		if err != nil {
			return nil, err
		}

		blocked := []models.BlockedUser{}
		for rows.Next(ctx) {
			record := rows.Record()
			node, ok := record.Get("b")
			if !ok {
				continue
			}
			bu := models.BlockedUser{User: models.UserFromProps(node.(neo4j.Node).Props)}
			if v, ok := record.Get("edge_id"); ok {
				bu.EdgeID, _ = v.(string)
			}
			blocked = append(blocked, bu)
		}
		return blocked, rows.Err()
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list blocked users")
		return nil, social.Upstream(err, "failed to list blocked users")
	}

	return result.([]models.BlockedUser), nil
}

func newRoommateFromRecord(record *neo4j.Record) (*models.NewRoommate, error) {
	node, ok := record.Get("a")
	if !ok {
		return nil, social.Internal(nil, "roommate record missing user node")
	}
	nr := &models.NewRoommate{
		User:      models.UserFromProps(node.(neo4j.Node).Props),
		Neighbors: []models.User{},
	}
	if raw, ok := record.Get("neighbors"); ok {
		for _, item := range raw.([]any) {
			if nb, ok := item.(neo4j.Node); ok {
				nr.Neighbors = append(nr.Neighbors, models.UserFromProps(nb.Props))
			}
		}
	}
	return nr, nil
}

// requireUsers fails with NotFound naming the first missing node.
func requireUsers(ctx context.Context, tx neo4j.ManagedTransaction, ids ...string) error {
	for _, id := range ids {
		rows, err := tx.Run(ctx, `MATCH (u:User {node_id: $id}) RETURN u.node_id`, map[string]any{"id": id})
		if err != nil {
			return err
		}
		if !rows.Next(ctx) {
			if err := rows.Err(); err != nil {
				return err
			}
			return social.NotFound("user %s not found", id)
		}
	}
	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case social.IsNotFound(err):
		return "not_found"
	case social.IsConflict(err):
		return "conflict"
	default:
		return "error"
	}
}
