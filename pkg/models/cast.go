package models

// Cast is a time-limited broadcast message. Duration is minutes; the
// sweeper tombstones casts once created_at + duration has elapsed.
type Cast struct {
	NodeID       string `json:"node_id"`
	Message      string `json:"message"`
	Duration     int    `json:"duration"`
	ReplyVisible bool   `json:"reply_visible"`
	CreatedAt    string `json:"created_at"`
	DeletedAt    string `json:"deleted_at"`
}

func CastFromProps(props map[string]any) Cast {
	return Cast{
		NodeID:       propString(props, "node_id"),
		Message:      propString(props, "message"),
		Duration:     propInt(props, "duration"),
		ReplyVisible: propBool(props, "reply_visible"),
		CreatedAt:    propString(props, "created_at"),
		DeletedAt:    propString(props, "deleted_at"),
	}
}

// ReceivedCast pairs a cast with its creator for feed responses.
type ReceivedCast struct {
	Cast      Cast   `json:"cast"`
	CreatorID string `json:"creator_id"`
}

// CastReply is an is_reply edge authored by one of the recipients.
type CastReply struct {
	EdgeID   string `json:"edge_id"`
	Message  string `json:"message"`
	AuthorID string `json:"author_id"`
}
