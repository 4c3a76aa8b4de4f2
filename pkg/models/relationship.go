package models

// RoommateEdge holds the per-direction attributes of an is_roommate
// edge. Memo and group belong to the edge owner only; new is set on
// the receiving side when the pair is created and cleared on first
// read.
type RoommateEdge struct {
	EdgeID string `json:"edge_id"`
	Memo   string `json:"memo"`
	Group  string `json:"group"`
	New    bool   `json:"new"`
}

func RoommateEdgeFromProps(props map[string]any) RoommateEdge {
	return RoommateEdge{
		EdgeID: propString(props, "edge_id"),
		Memo:   propString(props, "memo"),
		Group:  propString(props, "group"),
		New:    propBool(props, "new"),
	}
}

// Roommate is a confirmed friend plus the viewer's edge attributes and
// the friend's own roommates (for the neighbor-suggestion UI).
type Roommate struct {
	User        User         `json:"user"`
	Edge        RoommateEdge `json:"edge"`
	NeighborIDs []string     `json:"neighbor_ids"`
}

// Knock is a pending inbound friend request.
type Knock struct {
	EdgeID       string `json:"knock_id"`
	FromNodeID   string `json:"from_node_id"`
	FromNickname string `json:"from_nickname"`
}

// MutedUser is a user the viewer has muted.
type MutedUser struct {
	EdgeID string `json:"mute_id"`
	User   User   `json:"user"`
}

// BlockedUser is a user the viewer has blocked.
type BlockedUser struct {
	EdgeID string `json:"block_id"`
	User   User   `json:"user"`
}

// RoommateDetail is the full view of one roommate: profile, the
// viewer's edge, and the roommate's live content.
type RoommateDetail struct {
	User     User         `json:"user"`
	Edge     RoommateEdge `json:"edge"`
	Stickers []Sticker    `json:"stickers"`
	Posts    []Post       `json:"posts"`
}
