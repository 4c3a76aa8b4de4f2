package models

// User is the identity node of the social graph.
type User struct {
	NodeID          string   `json:"node_id"`
	Nickname        string   `json:"nickname"`
	Username        string   `json:"username"`
	Tags            []string `json:"tags"`
	MyMemo          string   `json:"my_memo"`
	ProfileImageURL string   `json:"profile_image_url"`
}

// UserFromProps decodes a user node's property map.
func UserFromProps(props map[string]any) User {
	return User{
		NodeID:          propString(props, "node_id"),
		Nickname:        propString(props, "nickname"),
		Username:        propString(props, "username"),
		Tags:            propStringSlice(props, "tags"),
		MyMemo:          propString(props, "my_memo"),
		ProfileImageURL: propString(props, "profile_image_url"),
	}
}

// ProfileUpdate carries the mutable profile fields.
type ProfileUpdate struct {
	Nickname        string   `json:"nickname"`
	Username        string   `json:"username"`
	Tags            []string `json:"tags"`
	MyMemo          string   `json:"my_memo"`
	ProfileImageURL *string  `json:"profile_image_url,omitempty"`
}
