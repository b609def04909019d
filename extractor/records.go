package extractor

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/feedscope/feedscope/metrics"
	"github.com/feedscope/feedscope/model"
)

// Item-level union discriminants.
const (
	typenameTweet           = "Tweet"
	typenameTweetVisibility = "TweetWithVisibilityResults"
	typenameTombstone       = "TweetTombstone"
	typenameUser            = "User"

	itemTweet = "TimelineTweet"
	itemUser  = "TimelineUser"
)

// Tweets flattens a timeline instruction list into normalized tweets. Only
// the first TimelineAddEntries instruction is consulted; input entry order
// is preserved; a malformed entry is skipped without aborting the batch.
// No deduplication happens here — that is the gate's job at the persisted
// record level.
func Tweets(instructions []Instruction) []model.Tweet {
	entries := addedEntries(instructions)
	if entries == nil {
		return nil
	}

	tweets := make([]model.Tweet, 0, len(entries))
	for _, raw := range entries {
		extracted, err := tweetsFromEntry(raw)
		if err != nil {
			metrics.EntriesSkipped.WithLabelValues("malformed").Inc()
			log.Debug().Err(err).Msg("Skipping malformed timeline entry")
			continue
		}
		tweets = append(tweets, extracted...)
	}

	metrics.RecordsExtracted.WithLabelValues("tweet").Add(float64(len(tweets)))
	return tweets
}

// Users flattens a user-list instruction set (following, who-to-follow)
// into normalized users, with the same per-entry failure isolation.
func Users(instructions []Instruction) []model.User {
	entries := addedEntries(instructions)
	if entries == nil {
		return nil
	}

	users := make([]model.User, 0, len(entries))
	for _, raw := range entries {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			metrics.EntriesSkipped.WithLabelValues("malformed").Inc()
			continue
		}
		content, ok := entry["content"].(map[string]interface{})
		if !ok {
			metrics.EntriesSkipped.WithLabelValues("malformed").Inc()
			continue
		}
		ic, ok := content["itemContent"].(map[string]interface{})
		if !ok {
			metrics.EntriesSkipped.WithLabelValues("shape").Inc()
			continue
		}
		if it, _ := ic["itemType"].(string); it != itemUser {
			metrics.EntriesSkipped.WithLabelValues("non_user").Inc()
			continue
		}
		if u, ok := userFromItemContent(ic); ok {
			users = append(users, u)
		}
	}

	metrics.RecordsExtracted.WithLabelValues("user").Add(float64(len(users)))
	return users
}

// addedEntries finds the first TimelineAddEntries instruction and returns
// its raw entries. Other instruction tags are ignored without failure.
func addedEntries(instructions []Instruction) []interface{} {
	for _, in := range instructions {
		if in.Type() != instructionAddEntries {
			continue
		}
		entries, _ := in["entries"].([]interface{})
		return entries
	}
	return nil
}

// tweetsFromEntry classifies one entry and extracts zero or more tweets
// from it. Cursor and unknown entries yield nothing; malformed entries
// return an error for the caller to count and skip.
func tweetsFromEntry(raw interface{}) ([]model.Tweet, error) {
	entry, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("entry is not an object")
	}

	entryID, _ := entry["entryId"].(string)
	content, ok := entry["content"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("entry %q has no content", entryID)
	}

	switch classifyEntry(entryID, content) {
	case entryCursor:
		metrics.EntriesSkipped.WithLabelValues("cursor").Inc()
		return nil, nil

	case entryItem:
		ic, ok := content["itemContent"].(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("item entry %q has no itemContent", entryID)
		}
		if t, ok := tweetFromItemContent(ic); ok {
			return []model.Tweet{t}, nil
		}
		return nil, nil

	case entryThread:
		var tweets []model.Tweet
		for _, ic := range threadItems(content) {
			if t, ok := tweetFromItemContent(ic); ok {
				tweets = append(tweets, t)
			}
		}
		return tweets, nil

	default:
		metrics.EntriesSkipped.WithLabelValues("unknown").Inc()
		return nil, nil
	}
}

// tweetFromItemContent resolves the item-level union inside itemContent and
// builds a normalized tweet. Tombstones and non-tweet items yield no
// record.
func tweetFromItemContent(ic map[string]interface{}) (model.Tweet, bool) {
	if it, _ := ic["itemType"].(string); it != "" && it != itemTweet {
		return model.Tweet{}, false
	}

	results, ok := ic["tweet_results"].(map[string]interface{})
	if !ok {
		return model.Tweet{}, false
	}
	result, ok := results["result"].(map[string]interface{})
	if !ok {
		return model.Tweet{}, false
	}

	result, ok = resolveTweetUnion(result)
	if !ok {
		return model.Tweet{}, false
	}
	return buildTweet(result, true)
}

// resolveTweetUnion unwraps the tweet/visibility/tombstone union to the
// inner tweet object. Tombstones resolve to nothing.
func resolveTweetUnion(result map[string]interface{}) (map[string]interface{}, bool) {
	switch tn, _ := result["__typename"].(string); tn {
	case typenameTweetVisibility:
		inner, ok := result["tweet"].(map[string]interface{})
		return inner, ok
	case typenameTombstone:
		metrics.EntriesSkipped.WithLabelValues("tombstone").Inc()
		return nil, false
	case typenameTweet, "":
		// Older payloads omit __typename on plain tweets.
		return result, true
	default:
		metrics.EntriesSkipped.WithLabelValues("unknown_result").Inc()
		return nil, false
	}
}

// buildTweet normalizes one resolved tweet object. Quoted tweets are
// expanded exactly one level: the nested call passes resolveQuote=false so
// a quote-of-a-quote is never followed.
func buildTweet(result map[string]interface{}, resolveQuote bool) (model.Tweet, bool) {
	restID, _ := result["rest_id"].(string)
	if restID == "" {
		return model.Tweet{}, false
	}

	t := model.Tweet{RestID: restID}

	if legacy, ok := result["legacy"].(map[string]interface{}); ok {
		t.Legacy = buildLegacy(legacy)
	}

	if core, ok := result["core"].(map[string]interface{}); ok {
		if ur, ok := core["user_results"].(map[string]interface{}); ok {
			if u, ok := ur["result"].(map[string]interface{}); ok {
				if user, ok := userFromResult(u); ok {
					t.Author = &user
				}
			}
		}
	}

	// note_tweet long-form text supersedes legacy.full_text downstream, but
	// both are kept here; substitution is the mapper's concern.
	if nt, ok := result["note_tweet"].(map[string]interface{}); ok {
		if ntr, ok := nt["note_tweet_results"].(map[string]interface{}); ok {
			if r, ok := ntr["result"].(map[string]interface{}); ok {
				if text, ok := r["text"].(string); ok {
					t.NoteText = text
				}
			}
		}
	}

	if resolveQuote {
		if qsr, ok := result["quoted_status_result"].(map[string]interface{}); ok {
			if qres, ok := qsr["result"].(map[string]interface{}); ok {
				if qres, ok := resolveTweetUnion(qres); ok {
					if quoted, ok := buildTweet(qres, false); ok {
						t.Quoted = &quoted
					}
				}
			}
		}
	}

	return t, true
}

func buildLegacy(legacy map[string]interface{}) model.TweetLegacy {
	l := model.TweetLegacy{
		FullText:      str(legacy, "full_text"),
		CreatedAt:     str(legacy, "created_at"),
		FavoriteCount: num(legacy, "favorite_count"),
		RetweetCount:  num(legacy, "retweet_count"),
		ReplyCount:    num(legacy, "reply_count"),
		QuoteCount:    num(legacy, "quote_count"),

		InReplyToStatusID:   str(legacy, "in_reply_to_status_id_str"),
		InReplyToUserID:     str(legacy, "in_reply_to_user_id_str"),
		InReplyToScreenName: str(legacy, "in_reply_to_screen_name"),
	}
	l.IsQuoteStatus, _ = legacy["is_quote_status"].(bool)

	if entities, ok := legacy["entities"].(map[string]interface{}); ok {
		l.Entities = buildEntities(entities)
	}
	return l
}

func buildEntities(entities map[string]interface{}) model.TweetEntities {
	var out model.TweetEntities

	if urls, ok := entities["urls"].([]interface{}); ok {
		for _, raw := range urls {
			if u, ok := raw.(map[string]interface{}); ok {
				out.URLs = append(out.URLs, model.URLEntity{
					URL:         str(u, "url"),
					ExpandedURL: str(u, "expanded_url"),
					DisplayURL:  str(u, "display_url"),
				})
			}
		}
	}

	if mentions, ok := entities["user_mentions"].([]interface{}); ok {
		for _, raw := range mentions {
			if m, ok := raw.(map[string]interface{}); ok {
				out.UserMentions = append(out.UserMentions, model.MentionEntity{
					UserID:     str(m, "id_str"),
					ScreenName: str(m, "screen_name"),
					Name:       str(m, "name"),
				})
			}
		}
	}

	if media, ok := entities["media"].([]interface{}); ok {
		for _, raw := range media {
			m, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			entity := model.MediaEntity{
				MediaID:  str(m, "id_str"),
				MediaURL: str(m, "media_url_https"),
				Type:     str(m, "type"),
			}
			if sizes, ok := m["original_info"].(map[string]interface{}); ok {
				entity.Width = num(sizes, "width")
				entity.Height = num(sizes, "height")
			}
			out.Media = append(out.Media, entity)
		}
	}

	return out
}

// userFromItemContent extracts a user from a TimelineUser itemContent.
func userFromItemContent(ic map[string]interface{}) (model.User, bool) {
	results, ok := ic["user_results"].(map[string]interface{})
	if !ok {
		return model.User{}, false
	}
	result, ok := results["result"].(map[string]interface{})
	if !ok {
		return model.User{}, false
	}
	return userFromResult(result)
}

func userFromResult(result map[string]interface{}) (model.User, bool) {
	if tn, _ := result["__typename"].(string); tn != "" && tn != typenameUser {
		return model.User{}, false
	}
	restID, _ := result["rest_id"].(string)
	if restID == "" {
		return model.User{}, false
	}

	u := model.User{RestID: restID}
	if legacy, ok := result["legacy"].(map[string]interface{}); ok {
		u.Legacy = model.UserLegacy{
			ScreenName:      str(legacy, "screen_name"),
			Name:            str(legacy, "name"),
			Description:     str(legacy, "description"),
			Location:        str(legacy, "location"),
			WebsiteURL:      str(legacy, "url"),
			FollowersCount:  num(legacy, "followers_count"),
			FriendsCount:    num(legacy, "friends_count"),
			FavouritesCount: num(legacy, "favourites_count"),
			StatusesCount:   num(legacy, "statuses_count"),
			CreatedAt:       str(legacy, "created_at"),
			AvatarURL:       str(legacy, "profile_image_url_https"),
			BannerURL:       str(legacy, "profile_banner_url"),
		}
	}
	return u, true
}

func str(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

// num tolerates both float64 (decoded JSON) and int (synthetic test data).
func num(m map[string]interface{}, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
