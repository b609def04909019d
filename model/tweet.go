// Package model defines the normalized domain objects produced by the
// interception pipeline and the relational row shapes derived from them.
package model

// Tweet is the normalized domain object extracted from a timeline entry.
// RestID is globally unique per tweet. Quoted is resolved at most one level
// deep; the nested tweet's own Quoted field is always nil.
type Tweet struct {
	RestID string      `json:"rest_id"`
	Legacy TweetLegacy `json:"legacy"`

	// Author of the tweet, from core.user_results.result.
	Author *User `json:"author,omitempty"`

	// NoteText carries the long-form note-tweet body when present. The
	// legacy full_text is kept as-is; substitution happens in the mapper.
	NoteText string `json:"note_text,omitempty"`

	// Quoted is the quoted tweet, populated only when the source entry
	// carried a resolvable quoted_status_result.
	Quoted *Tweet `json:"quoted,omitempty"`
}

// TweetLegacy mirrors the legacy block of a tweet result: engagement
// counters, text, reply linkage and entities.
type TweetLegacy struct {
	FullText      string `json:"full_text"`
	CreatedAt     string `json:"created_at"`
	FavoriteCount int    `json:"favorite_count"`
	RetweetCount  int    `json:"retweet_count"`
	ReplyCount    int    `json:"reply_count"`
	QuoteCount    int    `json:"quote_count"`
	IsQuoteStatus bool   `json:"is_quote_status"`

	InReplyToStatusID   string `json:"in_reply_to_status_id_str,omitempty"`
	InReplyToUserID     string `json:"in_reply_to_user_id_str,omitempty"`
	InReplyToScreenName string `json:"in_reply_to_screen_name,omitempty"`

	Entities TweetEntities `json:"entities"`
}

// TweetEntities holds the entity lists attached to a tweet. Slices are nil
// when the source payload carried none.
type TweetEntities struct {
	URLs         []URLEntity     `json:"urls,omitempty"`
	UserMentions []MentionEntity `json:"user_mentions,omitempty"`
	Media        []MediaEntity   `json:"media,omitempty"`
}

type URLEntity struct {
	URL         string `json:"url"`
	ExpandedURL string `json:"expanded_url"`
	DisplayURL  string `json:"display_url"`
}

type MentionEntity struct {
	UserID     string `json:"id_str"`
	ScreenName string `json:"screen_name"`
	Name       string `json:"name,omitempty"`
}

type MediaEntity struct {
	MediaID  string `json:"id_str"`
	MediaURL string `json:"media_url_https"`
	Type     string `json:"type"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// User is the normalized profile object extracted from a user result.
type User struct {
	RestID string     `json:"rest_id"`
	Legacy UserLegacy `json:"legacy"`
}

// UserLegacy mirrors the legacy profile block of a user result.
type UserLegacy struct {
	ScreenName      string `json:"screen_name"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	Location        string `json:"location,omitempty"`
	WebsiteURL      string `json:"url,omitempty"`
	FollowersCount  int    `json:"followers_count"`
	FriendsCount    int    `json:"friends_count"`
	FavouritesCount int    `json:"favourites_count"`
	StatusesCount   int    `json:"statuses_count"`
	CreatedAt       string `json:"created_at,omitempty"`
	AvatarURL       string `json:"profile_image_url_https,omitempty"`
	BannerURL       string `json:"profile_banner_url,omitempty"`
}
