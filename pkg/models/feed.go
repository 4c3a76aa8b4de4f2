package models

// FeedSnapshot is the result of one atomic feed traversal: casts
// addressed to the viewer plus the roommates and neighbors with
// unread stickers. Receipt edges for surfaced stickers are
// materialized by the same transaction that built the snapshot.
type FeedSnapshot struct {
	Casts            []ReceivedCast `json:"casts"`
	StickerRoommates []string       `json:"sticker_roommates"`
	StickerNeighbors []string       `json:"sticker_neighbors"`
}

// NewRoommate is a freshly accepted roommate plus their own roommates.
type NewRoommate struct {
	User      User   `json:"user"`
	Neighbors []User `json:"neighbors"`
}

// NewActivitySnapshot is the result of one new-activity poll attempt.
// Every flag it reports has already been cleared by the transaction
// that produced it.
type NewActivitySnapshot struct {
	NewRoommates  []NewRoommate  `json:"new_roommates"`
	CastsReceived []ReceivedCast `json:"casts_received"`
	StickersFrom  []string       `json:"stickers_from"`
}

// IsEmpty reports whether the snapshot carries no new activity.
func (s NewActivitySnapshot) IsEmpty() bool {
	return len(s.NewRoommates) == 0 && len(s.CastsReceived) == 0 && len(s.StickersFrom) == 0
}

// NeighborStickers lists one neighbor's unread stickers as seen
// through a specific roommate.
type NeighborStickers struct {
	Neighbor   User     `json:"neighbor"`
	StickerIDs []string `json:"sticker_ids"`
}
