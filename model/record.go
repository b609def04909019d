package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record is a persisted intercepted record. Its identity for dedup purposes
// is the (Type, OriginatorID, ItemID) triple; ID is a local surrogate key.
type Record struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	OriginatorID string          `json:"originator_id"`
	ItemID       string          `json:"item_id"`
	UserID       string          `json:"user_id"`
	Data         json.RawMessage `json:"data"`

	// Timestamp is the remote-confirmed upload time. nil means the record
	// has not yet been confirmed uploaded and is eligible for reprocessing.
	Timestamp *time.Time `json:"timestamp"`

	// DateAdded is the local capture time.
	DateAdded time.Time `json:"date_added"`

	// CanSendToCA records the outcome of the last upload attempt; nil means
	// no attempt has been made yet. Reason carries a human-readable
	// explanation when the record was rejected or failed validation.
	CanSendToCA *bool  `json:"can_send_to_ca,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// Identity returns the dedup key for the record.
func (r *Record) Identity() Identity {
	return Identity{Type: r.Type, OriginatorID: r.OriginatorID, ItemID: r.ItemID}
}

// Identity is the (type, originator, item) triple used as the dedup and
// upsert key for intercepted records.
type Identity struct {
	Type         string `json:"type"`
	OriginatorID string `json:"originator_id"`
	ItemID       string `json:"item_id"`
}

// Key returns a stable string form usable as a lock or cache key.
func (id Identity) Key() string {
	return id.Type + "/" + id.OriginatorID + "/" + id.ItemID
}

// Validate checks that the identity triple is fully populated.
func (id Identity) Validate() error {
	if id.Type == "" {
		return fmt.Errorf("record type cannot be empty")
	}
	if id.OriginatorID == "" {
		return fmt.Errorf("originator_id cannot be empty")
	}
	if id.ItemID == "" {
		return fmt.Errorf("item_id cannot be empty")
	}
	return nil
}

// Record types produced by the interceptors.
const (
	TypeHomeTimeline   = "home_timeline"
	TypeUserTweets     = "user_tweets"
	TypeLikes          = "likes"
	TypeBookmarks      = "bookmarks"
	TypeFollowing      = "following"
	TypeSearch         = "search"
	TypeTweetDetail    = "tweet_detail"
	TypeFavoriteAction = "favorite"
	TypeUnfavorite     = "unfavorite"
)
