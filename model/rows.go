package model

// Relational row shapes derived from a Tweet by the mapper. They are
// disposable projections: recomputed on every mapping call, never mutated.

// RowGroup bundles the rows produced for one tweet. Account and Profile are
// nil when an identical row already appears earlier in the mapping result
// (shared author between a quoting and a quoted tweet). Media, URLs and
// Mentions are nil when the tweet carries none.
type RowGroup struct {
	Account  *AccountRow      `json:"account,omitempty"`
	Profile  *ProfileRow      `json:"profile,omitempty"`
	Tweet    TweetRow         `json:"tweet"`
	Media    []TweetMediaRow  `json:"media,omitempty"`
	URLs     []TweetURLRow    `json:"urls,omitempty"`
	Mentions []UserMentionRow `json:"mentions,omitempty"`
}

type AccountRow struct {
	AccountID          string `json:"account_id"`
	Username           string `json:"username"`
	AccountDisplayName string `json:"account_display_name"`
	CreatedAt          string `json:"created_at,omitempty"`
}

type ProfileRow struct {
	AccountID      string `json:"account_id"`
	Bio            string `json:"bio,omitempty"`
	Website        string `json:"website,omitempty"`
	Location       string `json:"location,omitempty"`
	AvatarMediaURL string `json:"avatar_media_url,omitempty"`
	HeaderMediaURL string `json:"header_media_url,omitempty"`
}

type TweetRow struct {
	TweetID       string `json:"tweet_id"`
	AccountID     string `json:"account_id"`
	CreatedAt     string `json:"created_at"`
	FullText      string `json:"full_text"`
	FavoriteCount int    `json:"favorite_count"`

	// RetweetCount merges legacy retweet_count and quote_count into one
	// counter. This is intentional and must be preserved.
	RetweetCount int `json:"retweet_count"`

	ReplyToTweetID  string `json:"reply_to_tweet_id,omitempty"`
	ReplyToUserID   string `json:"reply_to_user_id,omitempty"`
	ReplyToUsername string `json:"reply_to_username,omitempty"`
}

type TweetMediaRow struct {
	MediaID   string `json:"media_id"`
	TweetID   string `json:"tweet_id"`
	MediaURL  string `json:"media_url"`
	MediaType string `json:"media_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

type TweetURLRow struct {
	TweetID     string `json:"tweet_id"`
	URL         string `json:"url"`
	ExpandedURL string `json:"expanded_url"`
	DisplayURL  string `json:"display_url"`
}

type UserMentionRow struct {
	TweetID           string `json:"tweet_id"`
	MentionedUserID   string `json:"mentioned_user_id"`
	MentionedUsername string `json:"mentioned_username"`
}
