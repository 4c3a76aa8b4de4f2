package integration

import (
	"context"
	"os"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	castrepo "github.com/Ramsey-B/clover/internal/repositories/cast"
	feedrepo "github.com/Ramsey-B/clover/internal/repositories/feed"
	"github.com/Ramsey-B/clover/pkg/graph"
)

// graphTestClient connects to a live graph database, or skips the test
// when none is configured.
func graphTestClient(t *testing.T) *graph.Client {
	t.Helper()

	host := os.Getenv("GRAPH_DB_HOST")
	if host == "" {
		t.Skip("Requires running graph database - set GRAPH_DB_HOST")
	}
	port := 7687
	if v := os.Getenv("GRAPH_DB_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		require.NoError(t, err)
		port = p
	}

	client, err := graph.NewClient(graph.Config{
		Host:     host,
		Port:     port,
		Username: os.Getenv("GRAPH_DB_USER"),
		Password: os.Getenv("GRAPH_DB_PASSWORD"),
	}, testLogger())
	require.NoError(t, err)
	require.NoError(t, client.VerifyConnectivity(context.Background()))

	t.Cleanup(func() {
		_ = client.Close(context.Background())
	})
	return client
}

func runCypher(t *testing.T, client *graph.Client, cypher string, params map[string]any) {
	t.Helper()
	_, err := client.ExecuteWrite(context.Background(), func(tx neo4j.ManagedTransaction) (any, error) {
		rows, err := tx.Run(context.Background(), cypher, params)
		if err != nil {
			return nil, err
		}
		return nil, rows.Err()
	})
	require.NoError(t, err)
}

func countCypher(t *testing.T, client *graph.Client, cypher string, params map[string]any) int {
	t.Helper()
	result, err := client.ExecuteRead(context.Background(), func(tx neo4j.ManagedTransaction) (any, error) {
		rows, err := tx.Run(context.Background(), cypher, params)
		if err != nil {
			return nil, err
		}
		if !rows.Next(context.Background()) {
			return int64(0), rows.Err()
		}
		n, _ := rows.Record().Get("n")
		return n, rows.Err()
	})
	require.NoError(t, err)
	return int(result.(int64))
}

// seedUsers creates user nodes and registers a teardown that detaches
// everything the test created around them.
func seedUsers(t *testing.T, client *graph.Client, ids ...string) {
	t.Helper()
	runCypher(t, client, `
		UNWIND $ids AS id
		CREATE (:User {node_id: id, nickname: id, deleted_at: ''})
	`, map[string]any{"ids": ids})

	t.Cleanup(func() {
		runCypher(t, client, `
			MATCH (u:User) WHERE u.node_id IN $ids
			OPTIONAL MATCH (u)<-[:creator_of_sticker|creator_of_cast|is_post]-(content)
			DETACH DELETE u, content
		`, map[string]any{"ids": ids})
	})
}

func seedRoommates(t *testing.T, client *graph.Client, a, b string) {
	t.Helper()
	runCypher(t, client, `
		MATCH (a:User {node_id: $a}), (b:User {node_id: $b})
		CREATE (a)-[:is_roommate {new: false}]->(b)
		CREATE (b)-[:is_roommate {new: false}]->(a)
	`, map[string]any{"a": a, "b": b})
}

func seedSticker(t *testing.T, client *graph.Client, ownerID, stickerID, deletedAt string) {
	t.Helper()
	runCypher(t, client, `
		MATCH (u:User {node_id: $owner_id})
		CREATE (s:Sticker {
			node_id: $sticker_id,
			content: 'hello',
			image_url: [],
			created_at: '2026-01-01T00:00:00Z',
			deleted_at: $deleted_at
		})
		CREATE (s)-[:creator_of_sticker]->(u)
	`, map[string]any{"owner_id": ownerID, "sticker_id": stickerID, "deleted_at": deletedAt})
}

// Reading the same feed twice must leave exactly one receipt edge per
// surfaced sticker, unread until the viewer marks it.
func TestFeedMaterializesSingleStickerReceipt(t *testing.T) {
	client := graphTestClient(t)
	feedRepo := feedrepo.NewRepository(client, testLogger())

	viewer := "it-" + uuid.New().String()
	owner := "it-" + uuid.New().String()
	stickerID := uuid.New().String()
	seedUsers(t, client, viewer, owner)
	seedRoommates(t, client, viewer, owner)
	seedSticker(t, client, owner, stickerID, "")

	ctx := context.Background()
	snapshot, err := feedRepo.GetFeed(ctx, viewer)
	require.NoError(t, err)
	assert.Equal(t, []string{owner}, snapshot.StickerRoommates)

	_, err = feedRepo.GetFeed(ctx, viewer)
	require.NoError(t, err)

	receipts := countCypher(t, client, `
		MATCH (:Sticker {node_id: $sticker_id})-[r:receiver_of_sticker]->(:User {node_id: $viewer})
		RETURN count(r) AS n
	`, map[string]any{"sticker_id": stickerID, "viewer": viewer})
	assert.Equal(t, 1, receipts)

	unread := countCypher(t, client, `
		MATCH (:Sticker {node_id: $sticker_id})-[r:receiver_of_sticker {read: false}]->(:User {node_id: $viewer})
		RETURN count(r) AS n
	`, map[string]any{"sticker_id": stickerID, "viewer": viewer})
	assert.Equal(t, 1, unread)
}

// A block hides content in both directions regardless of which side
// created the edge; a mute hides only what the muter would see.
func TestFeedBlockAndMuteExclusion(t *testing.T) {
	client := graphTestClient(t)
	feedRepo := feedrepo.NewRepository(client, testLogger())

	viewer := "it-" + uuid.New().String()
	blocked := "it-" + uuid.New().String()
	muted := "it-" + uuid.New().String()
	seedUsers(t, client, viewer, blocked, muted)
	seedRoommates(t, client, viewer, blocked)
	seedRoommates(t, client, viewer, muted)
	seedSticker(t, client, blocked, uuid.New().String(), "")
	seedSticker(t, client, muted, uuid.New().String(), "")

	// The blocked user owns the block edge, not the viewer.
	runCypher(t, client, `
		MATCH (b:User {node_id: $blocked}), (v:User {node_id: $viewer})
		CREATE (b)-[:block {edge_id: $edge_id}]->(v)
	`, map[string]any{"blocked": blocked, "viewer": viewer, "edge_id": uuid.New().String()})
	runCypher(t, client, `
		MATCH (v:User {node_id: $viewer}), (m:User {node_id: $muted})
		CREATE (v)-[:mute {edge_id: $edge_id}]->(m)
	`, map[string]any{"viewer": viewer, "muted": muted, "edge_id": uuid.New().String()})

	snapshot, err := feedRepo.GetFeed(context.Background(), viewer)
	require.NoError(t, err)
	assert.Empty(t, snapshot.StickerRoommates)

	receipts := countCypher(t, client, `
		MATCH (:Sticker)-[r:receiver_of_sticker]->(:User {node_id: $viewer})
		RETURN count(r) AS n
	`, map[string]any{"viewer": viewer})
	assert.Equal(t, 0, receipts, "hidden stickers must not grow receipt edges")
}

// Tombstoned content never surfaces and never grows receipts.
func TestFeedExcludesTombstonedStickers(t *testing.T) {
	client := graphTestClient(t)
	feedRepo := feedrepo.NewRepository(client, testLogger())

	viewer := "it-" + uuid.New().String()
	owner := "it-" + uuid.New().String()
	stickerID := uuid.New().String()
	seedUsers(t, client, viewer, owner)
	seedRoommates(t, client, viewer, owner)
	seedSticker(t, client, owner, stickerID, "2026-01-02T00:00:00Z")

	snapshot, err := feedRepo.GetFeed(context.Background(), viewer)
	require.NoError(t, err)
	assert.Empty(t, snapshot.StickerRoommates)

	receipts := countCypher(t, client, `
		MATCH (:Sticker {node_id: $sticker_id})-[r:receiver_of_sticker]->()
		RETURN count(r) AS n
	`, map[string]any{"sticker_id": stickerID})
	assert.Equal(t, 0, receipts)
}

// Cast receiver edges start closed and flip open on the first feed
// read; the flip is one-way and the edge stays unique across reads.
func TestCastReceiverEdgeOpensOnRead(t *testing.T) {
	client := graphTestClient(t)
	feedRepo := feedrepo.NewRepository(client, testLogger())
	castRepo := castrepo.NewRepository(client, testLogger())

	creator := "it-" + uuid.New().String()
	receiver := "it-" + uuid.New().String()
	seedUsers(t, client, creator, receiver)

	ctx := context.Background()
	cast, receivers, err := castRepo.Create(ctx, creator, "movie night", []string{receiver}, 30, true)
	require.NoError(t, err)
	require.Equal(t, []string{receiver}, receivers)

	closed := countCypher(t, client, `
		MATCH (:Cast {node_id: $cast_id})-[r:receiver_of_cast {open: false, new: true}]->(:User {node_id: $receiver})
		RETURN count(r) AS n
	`, map[string]any{"cast_id": cast.NodeID, "receiver": receiver})
	require.Equal(t, 1, closed)

	_, err = feedRepo.GetFeed(ctx, receiver)
	require.NoError(t, err)
	_, err = feedRepo.GetFeed(ctx, receiver)
	require.NoError(t, err)

	opened := countCypher(t, client, `
		MATCH (:Cast {node_id: $cast_id})-[r:receiver_of_cast {open: true, new: false}]->(:User {node_id: $receiver})
		RETURN count(r) AS n
	`, map[string]any{"cast_id": cast.NodeID, "receiver": receiver})
	assert.Equal(t, 1, opened)
}

// Addressing a cast to a user who mutes or blocks the creator must not
// materialize an edge for them.
func TestCastFanOutSkipsMutersAndBlockers(t *testing.T) {
	client := graphTestClient(t)
	castRepo := castrepo.NewRepository(client, testLogger())

	creator := "it-" + uuid.New().String()
	friendly := "it-" + uuid.New().String()
	muter := "it-" + uuid.New().String()
	seedUsers(t, client, creator, friendly, muter)

	runCypher(t, client, `
		MATCH (m:User {node_id: $muter}), (c:User {node_id: $creator})
		CREATE (m)-[:mute {edge_id: $edge_id}]->(c)
	`, map[string]any{"muter": muter, "creator": creator, "edge_id": uuid.New().String()})

	cast, receivers, err := castRepo.Create(context.Background(), creator, "lunch?", []string{friendly, muter}, 15, false)
	require.NoError(t, err)
	assert.Equal(t, []string{friendly}, receivers)

	edges := countCypher(t, client, `
		MATCH (:Cast {node_id: $cast_id})-[r:receiver_of_cast]->()
		RETURN count(r) AS n
	`, map[string]any{"cast_id": cast.NodeID})
	assert.Equal(t, 1, edges)
}
