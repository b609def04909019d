// Package matcher decides which response schema applies to an intercepted
// network exchange by matching the request URL against an ordered list of
// endpoint patterns.
package matcher

import (
	"regexp"

	"github.com/feedscope/feedscope/model"
)

// Schema identifies one supported response family.
type Schema string

const (
	SchemaHomeTimeline Schema = "HomeTimeline"
	SchemaUserTweets   Schema = "UserTweets"
	SchemaLikes        Schema = "Likes"
	SchemaBookmarks    Schema = "Bookmarks"
	SchemaFollowing    Schema = "Following"
	SchemaSearch       Schema = "SearchTimeline"
	SchemaTweetDetail  Schema = "TweetDetail"
	SchemaFavorite     Schema = "FavoriteTweet"
	SchemaUnfavorite   Schema = "UnfavoriteTweet"
)

// RecordType returns the persisted record type for responses of this schema.
func (s Schema) RecordType() string {
	switch s {
	case SchemaHomeTimeline:
		return model.TypeHomeTimeline
	case SchemaUserTweets:
		return model.TypeUserTweets
	case SchemaLikes:
		return model.TypeLikes
	case SchemaBookmarks:
		return model.TypeBookmarks
	case SchemaFollowing:
		return model.TypeFollowing
	case SchemaSearch:
		return model.TypeSearch
	case SchemaTweetDetail:
		return model.TypeTweetDetail
	case SchemaFavorite:
		return model.TypeFavoriteAction
	case SchemaUnfavorite:
		return model.TypeUnfavorite
	}
	return ""
}

type pattern struct {
	re     *regexp.Regexp
	schema Schema
}

// patterns is tested in order; the first match wins. HomeTimeline and
// HomeLatestTimeline are endpoint-name variants of the same schema.
var patterns = []pattern{
	{regexp.MustCompile(`/graphql/[^/]+/Home(?:Latest)?Timeline\b`), SchemaHomeTimeline},
	{regexp.MustCompile(`/graphql/[^/]+/UserTweets(?:AndReplies)?\b`), SchemaUserTweets},
	{regexp.MustCompile(`/graphql/[^/]+/Likes\b`), SchemaLikes},
	{regexp.MustCompile(`/graphql/[^/]+/Bookmarks\b`), SchemaBookmarks},
	{regexp.MustCompile(`/graphql/[^/]+/Following\b`), SchemaFollowing},
	{regexp.MustCompile(`/graphql/[^/]+/SearchTimeline\b`), SchemaSearch},
	{regexp.MustCompile(`/graphql/[^/]+/TweetDetail\b`), SchemaTweetDetail},
	{regexp.MustCompile(`/graphql/[^/]+/FavoriteTweet\b`), SchemaFavorite},
	{regexp.MustCompile(`/graphql/[^/]+/UnfavoriteTweet\b`), SchemaUnfavorite},
}

// Match returns the schema for the given request URL. The second return is
// false for unrelated traffic, which is the common case and stays cheap: a
// URL that never mentions /graphql/ fails every pattern on the first
// literal.
func Match(url string) (Schema, bool) {
	for _, p := range patterns {
		if p.re.MatchString(url) {
			return p.schema, true
		}
	}
	return "", false
}
