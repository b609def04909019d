package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedscope/feedscope/model"
)

func sampleAuthor(id, screenName string) *model.User {
	return &model.User{
		RestID: id,
		Legacy: model.UserLegacy{
			ScreenName:  screenName,
			Name:        screenName,
			Description: "bio of " + screenName,
			AvatarURL:   "https://pbs.twimg.com/" + id + ".jpg",
		},
	}
}

func sampleTweet(id string, author *model.User) model.Tweet {
	return model.Tweet{
		RestID: id,
		Author: author,
		Legacy: model.TweetLegacy{
			FullText:      "tweet " + id,
			CreatedAt:     "Mon Sep 01 10:00:00 +0000 2025",
			FavoriteCount: 10,
			RetweetCount:  4,
			QuoteCount:    3,
			ReplyCount:    1,
		},
	}
}

func TestMapAll_BasicProjection(t *testing.T) {
	tweet := sampleTweet("1001", sampleAuthor("77", "ada"))

	groups, err := MapAll(tweet)
	require.NoError(t, err)
	require.Len(t, groups, 1)

	g := groups[0]
	require.NotNil(t, g.Account)
	assert.Equal(t, "77", g.Account.AccountID)
	assert.Equal(t, "ada", g.Account.Username)
	require.NotNil(t, g.Profile)
	assert.Equal(t, "bio of ada", g.Profile.Bio)
	assert.Equal(t, "1001", g.Tweet.TweetID)
	assert.Equal(t, "77", g.Tweet.AccountID)
	assert.Equal(t, "tweet 1001", g.Tweet.FullText)
	assert.Equal(t, 10, g.Tweet.FavoriteCount)
	assert.Nil(t, g.Media)
	assert.Nil(t, g.URLs)
	assert.Nil(t, g.Mentions)
}

func TestMapAll_RetweetCountMergesQuotes(t *testing.T) {
	tweet := sampleTweet("1001", sampleAuthor("77", "ada"))
	tweet.Legacy.RetweetCount = 4
	tweet.Legacy.QuoteCount = 3

	groups, err := MapAll(tweet)
	require.NoError(t, err)
	assert.Equal(t, 7, groups[0].Tweet.RetweetCount)
}

func TestMapAll_NoteTextOverridesFullText(t *testing.T) {
	tweet := sampleTweet("1001", sampleAuthor("77", "ada"))
	tweet.NoteText = "the long-form body"

	groups, err := MapAll(tweet)
	require.NoError(t, err)
	assert.Equal(t, "the long-form body", groups[0].Tweet.FullText)
}

func TestMapAll_QuoteProducesSecondGroup(t *testing.T) {
	quoted := sampleTweet("2001", sampleAuthor("88", "grace"))
	tweet := sampleTweet("1001", sampleAuthor("77", "ada"))
	tweet.Legacy.IsQuoteStatus = true
	tweet.Quoted = &quoted

	groups, err := MapAll(tweet)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "1001", groups[0].Tweet.TweetID)
	assert.Equal(t, "2001", groups[1].Tweet.TweetID)
	require.NotNil(t, groups[1].Account)
	assert.Equal(t, "88", groups[1].Account.AccountID)
}

func TestMapAll_SelfQuoteDedupsSharedAuthor(t *testing.T) {
	author := sampleAuthor("77", "ada")
	quoted := sampleTweet("2001", author)
	tweet := sampleTweet("1001", author)
	tweet.Legacy.IsQuoteStatus = true
	tweet.Quoted = &quoted

	groups, err := MapAll(tweet)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	assert.NotNil(t, groups[0].Account)
	assert.NotNil(t, groups[0].Profile)
	assert.Nil(t, groups[1].Account, "identical account must be omitted from the quoted group")
	assert.Nil(t, groups[1].Profile, "identical profile must be omitted from the quoted group")
}

func TestMapAll_QuoteFlagWithoutResolvedQuote(t *testing.T) {
	tweet := sampleTweet("1001", sampleAuthor("77", "ada"))
	tweet.Legacy.IsQuoteStatus = true
	tweet.Quoted = nil

	groups, err := MapAll(tweet)
	require.NoError(t, err)
	assert.Len(t, groups, 1)
}

func TestMapAll_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		tweet model.Tweet
	}{
		{name: "missing rest id", tweet: model.Tweet{Author: sampleAuthor("77", "ada")}},
		{name: "missing author", tweet: model.Tweet{RestID: "1001"}},
		{name: "author without id", tweet: model.Tweet{RestID: "1001", Author: &model.User{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MapAll(tt.tweet)
			require.Error(t, err)

			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestMapAll_QuotedValidationFailureFailsWhole(t *testing.T) {
	quoted := model.Tweet{RestID: "2001"} // no author
	tweet := sampleTweet("1001", sampleAuthor("77", "ada"))
	tweet.Legacy.IsQuoteStatus = true
	tweet.Quoted = &quoted

	_, err := MapAll(tweet)
	require.Error(t, err)

	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestMapAll_EntityRows(t *testing.T) {
	tweet := sampleTweet("1001", sampleAuthor("77", "ada"))
	tweet.Legacy.Entities = model.TweetEntities{
		URLs:         []model.URLEntity{{URL: "https://t.co/a", ExpandedURL: "https://example.com", DisplayURL: "example.com"}},
		UserMentions: []model.MentionEntity{{UserID: "99", ScreenName: "lin"}},
		Media:        []model.MediaEntity{{MediaID: "701", MediaURL: "https://pbs.twimg.com/701.jpg", Type: "photo", Width: 1200, Height: 800}},
	}
	tweet.Legacy.InReplyToStatusID = "900"
	tweet.Legacy.InReplyToUserID = "901"
	tweet.Legacy.InReplyToScreenName = "lin"

	groups, err := MapAll(tweet)
	require.NoError(t, err)

	g := groups[0]
	require.Len(t, g.URLs, 1)
	assert.Equal(t, "1001", g.URLs[0].TweetID)
	require.Len(t, g.Mentions, 1)
	assert.Equal(t, "99", g.Mentions[0].MentionedUserID)
	require.Len(t, g.Media, 1)
	assert.Equal(t, "701", g.Media[0].MediaID)
	assert.Equal(t, 1200, g.Media[0].Width)
	assert.Equal(t, "900", g.Tweet.ReplyToTweetID)
	assert.Equal(t, "lin", g.Tweet.ReplyToUsername)
}

func TestMapAll_IsPure(t *testing.T) {
	quoted := sampleTweet("2001", sampleAuthor("77", "ada"))
	tweet := sampleTweet("1001", sampleAuthor("77", "ada"))
	tweet.Legacy.IsQuoteStatus = true
	tweet.Quoted = &quoted

	first, err := MapAll(tweet)
	require.NoError(t, err)
	second, err := MapAll(tweet)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
