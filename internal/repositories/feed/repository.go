// Package feed implements the visibility engine. Every query runs in a
// single write transaction because reading the feed has side effects:
// cast new-flags are cleared and sticker receipt edges are
// materialized by the same traversal that surfaces them.
package feed

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Ramsey-B/clover/pkg/graph"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/social"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Repository computes feed and new-activity snapshots
type Repository struct {
	client *graph.Client
	logger ectologger.Logger
}

// NewRepository creates a new feed repository
func NewRepository(client *graph.Client, logger ectologger.Logger) *Repository {
	return &Repository{
		client: client,
		logger: logger,
	}
}

const viewerExistsCypher = `
	MATCH (me:User {node_id: $viewer_id})
	RETURN me.node_id
`

// Clearing new and setting open are one-way writes: a cast surfaced
// once never comes back as new, and an opened edge never reverts, even
// when the same feed is read again.
const directCastsCypher = `
	MATCH (me:User {node_id: $viewer_id})<-[r:receiver_of_cast]-(c:Cast {deleted_at: ''})-[:creator_of_cast]->(creator:User)
	WHERE NOT (me)-[:block]-(creator)
	  AND NOT (me)-[:mute]->(creator)
	SET r.new = false, r.open = true
	RETURN c, creator.node_id AS creator_id
`

// The MERGE is the lazy receipt materialization: the first traversal
// that reaches a visible sticker creates the (at most one) receipt
// edge for this viewer, unread by default.
const roommateStickersCypher = `
	MATCH (me:User {node_id: $viewer_id})-[:is_roommate]->(rm:User)<-[:creator_of_sticker]-(s:Sticker {deleted_at: ''})
	WHERE NOT (me)-[:block]-(rm)
	  AND NOT (me)-[:mute]->(rm)
	  AND NOT (s)-[:receiver_of_sticker {read: true}]->(me)
	MERGE (s)-[rcpt:receiver_of_sticker]->(me)
	ON CREATE SET rcpt.read = false
	RETURN DISTINCT rm.node_id AS roommate_id
`

const neighborStickersCypher = `
	MATCH (me:User {node_id: $viewer_id})-[:is_roommate]->(:User)-[:is_roommate]->(nb:User)
	WHERE nb.node_id <> $viewer_id
	  AND NOT (me)-[:is_roommate]->(nb)
	  AND NOT (me)-[:block]-(nb)
	  AND NOT (me)-[:mute]->(nb)
	MATCH (nb)<-[:creator_of_sticker]-(s:Sticker {deleted_at: ''})
	WHERE NOT (s)-[:receiver_of_sticker {read: true}]->(me)
	MERGE (s)-[rcpt:receiver_of_sticker]->(me)
	ON CREATE SET rcpt.read = false
	RETURN DISTINCT nb.node_id AS neighbor_id
`

// GetFeed assembles the viewer's feed: direct casts, roommate stickers
// and 2-hop neighbor stickers, with flag-clear and receipt side
// effects committed atomically with the read.
func (r *Repository) GetFeed(ctx context.Context, viewerID string) (*models.FeedSnapshot, error) {
	ctx, span := tracing.StartSpan(ctx, "feed.Repository.GetFeed")
	defer span.End()

	start := time.Now()
	result, err := r.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if err := requireViewer(ctx, tx, viewerID); err != nil {
			return nil, err
		}

		snapshot := &models.FeedSnapshot{
			Casts:            []models.ReceivedCast{},
			StickerRoommates: []string{},
			StickerNeighbors: []string{},
		}

		casts, err := tx.Run(ctx, directCastsCypher, map[string]any{"viewer_id": viewerID})
		if err != nil {
			return nil, err
		}
		for casts.Next(ctx) {
			record := casts.Record()
			node, ok := record.Get("c")
			if !ok {
				continue
			}
			creatorID, _ := record.Get("creator_id")
			snapshot.Casts = append(snapshot.Casts, models.ReceivedCast{
				Cast:      models.CastFromProps(node.(neo4j.Node).Props),
				CreatorID: creatorID.(string),
			})
		}
		if err := casts.Err(); err != nil {
			return nil, err
		}

		roommates, err := tx.Run(ctx, roommateStickersCypher, map[string]any{"viewer_id": viewerID})
		if err != nil {
			return nil, err
		}
		ids, err := collectStrings(ctx, roommates, "roommate_id")
		if err != nil {
			return nil, err
		}
		snapshot.StickerRoommates = ids

		neighbors, err := tx.Run(ctx, neighborStickersCypher, map[string]any{"viewer_id": viewerID})
		if err != nil {
			return nil, err
		}
		ids, err = collectStrings(ctx, neighbors, "neighbor_id")
		if err != nil {
			return nil, err
		}
		snapshot.StickerNeighbors = ids

		return snapshot, nil
	})
	if err != nil {
		if social.IsNotFound(err) {
			return nil, err
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to build feed snapshot")
		return nil, social.Upstream(err, "failed to build feed")
	}

	snapshot := result.(*models.FeedSnapshot)
	metrics.FeedFetchDuration.Observe(time.Since(start).Seconds())
	metrics.ReceiptsCreated.WithLabelValues("roommate").Add(float64(len(snapshot.StickerRoommates)))
	metrics.ReceiptsCreated.WithLabelValues("neighbor").Add(float64(len(snapshot.StickerNeighbors)))

	return snapshot, nil
}

const newRoommatesCypher = `
	MATCH (me:User {node_id: $viewer_id})<-[r:is_roommate {new: true}]-(rm:User)
	SET r.new = false
	WITH rm
	OPTIONAL MATCH (rm)-[:is_roommate]->(nb:User)
	WHERE nb.node_id <> $viewer_id
	  AND NOT (rm)-[:block]-(nb)
	RETURN rm, collect(nb) AS neighbors
`

const newCastsCypher = `
	MATCH (me:User {node_id: $viewer_id})<-[r:receiver_of_cast {new: true}]-(c:Cast {deleted_at: ''})-[:creator_of_cast]->(creator:User)
	WHERE NOT (me)-[:block]-(creator)
	  AND NOT (me)-[:mute]->(creator)
	SET r.new = false, r.open = true
	RETURN c, creator.node_id AS creator_id
`

// Unlike the feed query this matches only stickers with no receipt at
// all; once a receipt exists the sticker is no longer "new" here even
// if still unread.
const newStickersCypher = `
	MATCH (me:User {node_id: $viewer_id})-[:is_roommate]->(rm:User)<-[:creator_of_sticker]-(s:Sticker {deleted_at: ''})
	WHERE NOT (me)-[:block]-(rm)
	  AND NOT (me)-[:mute]->(rm)
	  AND NOT (s)-[:receiver_of_sticker]->(me)
	MERGE (s)-[rcpt:receiver_of_sticker]->(me)
	ON CREATE SET rcpt.read = false
	RETURN DISTINCT rm.node_id AS roommate_id
`

// GetNewActivity runs a single poll attempt. Flags are cleared in the
// same transaction that reports them, so each piece of new activity is
// returned exactly once across repeated calls.
func (r *Repository) GetNewActivity(ctx context.Context, viewerID string) (*models.NewActivitySnapshot, error) {
	ctx, span := tracing.StartSpan(ctx, "feed.Repository.GetNewActivity")
	defer span.End()

	result, err := r.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if err := requireViewer(ctx, tx, viewerID); err != nil {
			return nil, err
		}

		snapshot := &models.NewActivitySnapshot{
			NewRoommates:  []models.NewRoommate{},
			CastsReceived: []models.ReceivedCast{},
			StickersFrom:  []string{},
		}

		roommates, err := tx.Run(ctx, newRoommatesCypher, map[string]any{"viewer_id": viewerID})
		if err != nil {
			return nil, err
		}
		for roommates.Next(ctx) {
			record := roommates.Record()
			node, ok := record.Get("rm")
			if !ok {
				continue
			}
			nr := models.NewRoommate{
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
			snapshot.NewRoommates = append(snapshot.NewRoommates, nr)
		}
		if err := roommates.Err(); err != nil {
			return nil, err
		}

		casts, err := tx.Run(ctx, newCastsCypher, map[string]any{"viewer_id": viewerID})
		if err != nil {
			return nil, err
		}
		for casts.Next(ctx) {
			record := casts.Record()
			node, ok := record.Get("c")
			if !ok {
				continue
			}
			creatorID, _ := record.Get("creator_id")
			snapshot.CastsReceived = append(snapshot.CastsReceived, models.ReceivedCast{
				Cast:      models.CastFromProps(node.(neo4j.Node).Props),
				CreatorID: creatorID.(string),
			})
		}
		if err := casts.Err(); err != nil {
			return nil, err
		}

		stickers, err := tx.Run(ctx, newStickersCypher, map[string]any{"viewer_id": viewerID})
		if err != nil {
			return nil, err
		}
		ids, err := collectStrings(ctx, stickers, "roommate_id")
		if err != nil {
			return nil, err
		}
		snapshot.StickersFrom = ids

		return snapshot, nil
	})
	if err != nil {
		if social.IsNotFound(err) {
			return nil, err
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to poll new activity")
		return nil, social.Upstream(err, "failed to poll new activity")
	}

	return result.(*models.NewActivitySnapshot), nil
}

const roommateNeighborStickersCypher = `
	MATCH (me:User {node_id: $viewer_id})-[:is_roommate]->(rm:User {node_id: $roommate_id})
	MATCH (rm)-[:is_roommate]->(nb:User)
	WHERE nb.node_id <> $viewer_id
	  AND NOT (me)-[:is_roommate]->(nb)
	  AND NOT (me)-[:block]-(nb)
	  AND NOT (me)-[:mute]->(nb)
	MATCH (nb)<-[:creator_of_sticker]-(s:Sticker {deleted_at: ''})
	WHERE NOT (s)-[:receiver_of_sticker {read: true}]->(me)
	MERGE (s)-[rcpt:receiver_of_sticker]->(me)
	ON CREATE SET rcpt.read = false
	RETURN nb, collect(s.node_id) AS sticker_ids
`

// NeighborsWithStickers lists unread stickers from the given
// roommate's own roommates. NotFound when the two users are not
// roommates.
func (r *Repository) NeighborsWithStickers(ctx context.Context, viewerID, roommateID string) ([]models.NeighborStickers, error) {
	ctx, span := tracing.StartSpan(ctx, "feed.Repository.NeighborsWithStickers")
	defer span.End()

	result, err := r.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		pair, err := tx.Run(ctx, `
			MATCH (me:User {node_id: $viewer_id})-[:is_roommate]->(rm:User {node_id: $roommate_id})
			RETURN rm.node_id
		`, map[string]any{"viewer_id": viewerID, "roommate_id": roommateID})
		if err != nil {
			return nil, err
		}
		if !pair.Next(ctx) {
			if err := pair.Err(); err != nil {
				return nil, err
			}
			return nil, social.NotFound("roommate %s not found", roommateID)
		}

		rows, err := tx.Run(ctx, roommateNeighborStickersCypher, map[string]any{
			"viewer_id":   viewerID,
			"roommate_id": roommateID,
		})
		if err != nil {
			return nil, err
		}

		out := []models.NeighborStickers{}
		for rows.Next(ctx) {
			record := rows.Record()
			node, ok := record.Get("nb")
			if !ok {
				continue
			}
			ns := models.NeighborStickers{
				Neighbor:   models.UserFromProps(node.(neo4j.Node).Props),
				StickerIDs: []string{},
			}
			if raw, ok := record.Get("sticker_ids"); ok {
				for _, item := range raw.([]any) {
					if id, ok := item.(string); ok {
						ns.StickerIDs = append(ns.StickerIDs, id)
					}
				}
			}
			out = append(out, ns)
		}
		return out, rows.Err()
	})
	if err != nil {
		if social.IsNotFound(err) {
			return nil, err
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list neighbor stickers")
		return nil, social.Upstream(err, "failed to list neighbor stickers")
	}

	return result.([]models.NeighborStickers), nil
}

func requireViewer(ctx context.Context, tx neo4j.ManagedTransaction, viewerID string) error {
	result, err := tx.Run(ctx, viewerExistsCypher, map[string]any{"viewer_id": viewerID})
	if err != nil {
		return err
	}
	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return err
		}
		return social.NotFound("user %s not found", viewerID)
	}
	return nil
}

func collectStrings(ctx context.Context, result neo4j.ResultWithContext, key string) ([]string, error) {
	out := []string{}
	for result.Next(ctx) {
		if v, ok := result.Record().Get(key); ok {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out, result.Err()
}
