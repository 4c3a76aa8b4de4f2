package models

// Timestamps are stored on nodes as second-precision UTC ISO-8601
// strings; an empty deleted_at means the content is alive.

// Sticker is an ephemeral piece of content visible to roommates and
// neighbors. Stickers older than the service TTL are tombstoned by the
// sweeper.
type Sticker struct {
	NodeID    string   `json:"node_id"`
	Content   string   `json:"content"`
	ImageURLs []string `json:"image_url"`
	CreatedAt string   `json:"created_at"`
	DeletedAt string   `json:"deleted_at"`
}

func StickerFromProps(props map[string]any) Sticker {
	return Sticker{
		NodeID:    propString(props, "node_id"),
		Content:   propString(props, "content"),
		ImageURLs: propStringSlice(props, "image_url"),
		CreatedAt: propString(props, "created_at"),
		DeletedAt: propString(props, "deleted_at"),
	}
}

// Post is longer-lived owned content with a public/private flag.
type Post struct {
	NodeID    string   `json:"node_id"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	ImageURLs []string `json:"image_url"`
	Tags      []string `json:"tags"`
	IsPublic  bool     `json:"is_public"`
	CreatedAt string   `json:"created_at"`
	DeletedAt string   `json:"deleted_at"`
}

func PostFromProps(props map[string]any) Post {
	return Post{
		NodeID:    propString(props, "node_id"),
		Title:     propString(props, "title"),
		Content:   propString(props, "content"),
		ImageURLs: propStringSlice(props, "image_url"),
		Tags:      propStringSlice(props, "tags"),
		IsPublic:  propBool(props, "is_public"),
		CreatedAt: propString(props, "created_at"),
		DeletedAt: propString(props, "deleted_at"),
	}
}
