// Package mapper projects normalized tweets into flat relational row
// groups for the remote store.
package mapper

import (
	"fmt"
	"reflect"

	"github.com/feedscope/feedscope/model"
)

// ValidationError reports a tweet that cannot be mapped into rows. Its
// Reason is human-readable and is attached to the persisted record so the
// record can be selected for manual reprocessing.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// MapAll maps a tweet into relational row groups. The first group is the
// input tweet itself; when the tweet is a quote and carries a resolved
// quoted tweet, the quoted tweet's group is appended. Account, profile,
// media, url and mention sub-objects structurally identical to ones already
// present are omitted from later groups so a shared author never produces
// duplicate inserts. Expansion depth is exactly one level, matching the
// extractor's quoted-tweet policy.
//
// MapAll is a pure function: identical input always yields identical
// output, and nothing is retained between calls.
func MapAll(t model.Tweet) ([]model.RowGroup, error) {
	base, err := mapOne(t)
	if err != nil {
		return nil, err
	}
	groups := []model.RowGroup{base}

	if t.Legacy.IsQuoteStatus && t.Quoted != nil {
		quoted, err := mapOne(*t.Quoted)
		if err != nil {
			return nil, fmt.Errorf("quoted tweet: %w", err)
		}
		dedupAgainst(&quoted, groups)
		groups = append(groups, quoted)
	}

	return groups, nil
}

func mapOne(t model.Tweet) (model.RowGroup, error) {
	if t.RestID == "" {
		return model.RowGroup{}, &ValidationError{Reason: "tweet has no rest_id"}
	}
	if t.Author == nil || t.Author.RestID == "" {
		return model.RowGroup{}, &ValidationError{Reason: "tweet " + t.RestID + " has no author"}
	}

	account := model.AccountRow{
		AccountID:          t.Author.RestID,
		Username:           t.Author.Legacy.ScreenName,
		AccountDisplayName: t.Author.Legacy.Name,
		CreatedAt:          t.Author.Legacy.CreatedAt,
	}
	profile := model.ProfileRow{
		AccountID:      t.Author.RestID,
		Bio:            t.Author.Legacy.Description,
		Website:        t.Author.Legacy.WebsiteURL,
		Location:       t.Author.Legacy.Location,
		AvatarMediaURL: t.Author.Legacy.AvatarURL,
		HeaderMediaURL: t.Author.Legacy.BannerURL,
	}

	group := model.RowGroup{
		Account: &account,
		Profile: &profile,
		Tweet: model.TweetRow{
			TweetID:       t.RestID,
			AccountID:     t.Author.RestID,
			CreatedAt:     t.Legacy.CreatedAt,
			FullText:      fullText(t),
			FavoriteCount: t.Legacy.FavoriteCount,
			// Retweets and quote-tweets are merged into one counter on
			// purpose; keep this even though it looks like a bug.
			RetweetCount:    t.Legacy.RetweetCount + t.Legacy.QuoteCount,
			ReplyToTweetID:  t.Legacy.InReplyToStatusID,
			ReplyToUserID:   t.Legacy.InReplyToUserID,
			ReplyToUsername: t.Legacy.InReplyToScreenName,
		},
		Media:    mapMedia(t.RestID, t.Legacy.Entities.Media),
		URLs:     mapURLs(t.RestID, t.Legacy.Entities.URLs),
		Mentions: mapMentions(t.RestID, t.Legacy.Entities.UserMentions),
	}
	return group, nil
}

// fullText prefers the note-tweet long-form body over the legacy text.
func fullText(t model.Tweet) string {
	if t.NoteText != "" {
		return t.NoteText
	}
	return t.Legacy.FullText
}

// mapMedia returns nil, not an empty slice, when there is nothing to map,
// so callers can omit the key entirely.
func mapMedia(tweetID string, media []model.MediaEntity) []model.TweetMediaRow {
	if len(media) == 0 {
		return nil
	}
	rows := make([]model.TweetMediaRow, 0, len(media))
	for _, m := range media {
		rows = append(rows, model.TweetMediaRow{
			MediaID:   m.MediaID,
			TweetID:   tweetID,
			MediaURL:  m.MediaURL,
			MediaType: m.Type,
			Width:     m.Width,
			Height:    m.Height,
		})
	}
	return rows
}

func mapURLs(tweetID string, urls []model.URLEntity) []model.TweetURLRow {
	if len(urls) == 0 {
		return nil
	}
	rows := make([]model.TweetURLRow, 0, len(urls))
	for _, u := range urls {
		rows = append(rows, model.TweetURLRow{
			TweetID:     tweetID,
			URL:         u.URL,
			ExpandedURL: u.ExpandedURL,
			DisplayURL:  u.DisplayURL,
		})
	}
	return rows
}

func mapMentions(tweetID string, mentions []model.MentionEntity) []model.UserMentionRow {
	if len(mentions) == 0 {
		return nil
	}
	rows := make([]model.UserMentionRow, 0, len(mentions))
	for _, m := range mentions {
		rows = append(rows, model.UserMentionRow{
			TweetID:           tweetID,
			MentionedUserID:   m.UserID,
			MentionedUsername: m.ScreenName,
		})
	}
	return rows
}

// dedupAgainst clears sub-objects of group that are structurally identical
// to ones already present in earlier groups.
func dedupAgainst(group *model.RowGroup, earlier []model.RowGroup) {
	for _, prev := range earlier {
		if group.Account != nil && prev.Account != nil && *group.Account == *prev.Account {
			group.Account = nil
		}
		if group.Profile != nil && prev.Profile != nil && *group.Profile == *prev.Profile {
			group.Profile = nil
		}
		if group.Media != nil && reflect.DeepEqual(group.Media, prev.Media) {
			group.Media = nil
		}
		if group.URLs != nil && reflect.DeepEqual(group.URLs, prev.URLs) {
			group.URLs = nil
		}
		if group.Mentions != nil && reflect.DeepEqual(group.Mentions, prev.Mentions) {
			group.Mentions = nil
		}
	}
}
