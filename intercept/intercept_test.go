package intercept

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedscope/feedscope/gate"
	"github.com/feedscope/feedscope/model"
	"github.com/feedscope/feedscope/relay"
	"github.com/feedscope/feedscope/service"
	"github.com/feedscope/feedscope/store"
)

// fakeRemote remembers upserted identities so replays can be suppressed.
type fakeRemote struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{seen: make(map[string]time.Time)}
}

func (f *fakeRemote) LatestTimestamp(ctx context.Context, id model.Identity) (*time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ts, ok := f.seen[id.Key()]; ok {
		return &ts, nil
	}
	return nil, nil
}

func (f *fakeRemote) UpsertRecord(ctx context.Context, rec model.Record) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := model.Identity{Type: rec.Type, OriginatorID: rec.OriginatorID, ItemID: rec.ItemID}
	ts := time.Now().UTC()
	f.seen[id.Key()] = ts
	return ts, nil
}

func (f *fakeRemote) InsertRows(ctx context.Context, groups []model.RowGroup) error { return nil }

func (f *fakeRemote) Close() {}

func newPipelineHandler(t *testing.T, local store.Store) relay.Handler {
	t.Helper()
	remote := newFakeRemote()
	g := gate.New(local, remote, 3*time.Hour)
	return service.New(local, remote, g, service.Options{})
}

// captureChannel records every relayed request and answers success.
type captureChannel struct {
	sent []relay.SendInterceptedDataRequest
	fail bool
}

func (c *captureChannel) Send(ctx context.Context, req relay.SendInterceptedDataRequest) relay.SendInterceptedDataResponse {
	if c.fail {
		return relay.SendInterceptedDataResponse{Success: false, Error: "relay down"}
	}
	c.sent = append(c.sent, req)
	return relay.SendInterceptedDataResponse{Success: true, Admitted: true}
}

func (c *captureChannel) Query(ctx context.Context, req relay.QueryRequest) relay.QueryResponse {
	return relay.QueryResponse{Success: true}
}

func (c *captureChannel) Close() error { return nil }

const homeTimelineURL = "https://x.com/i/api/graphql/AbCdEf/HomeTimeline"

func tweetEntryJSON(id, authorID, screenName, text string) string {
	return `{
		"entryId": "tweet-` + id + `",
		"content": {
			"entryType": "TimelineTimelineItem",
			"itemContent": {
				"itemType": "TimelineTweet",
				"tweet_results": {
					"result": {
						"__typename": "Tweet",
						"rest_id": "` + id + `",
						"core": {"user_results": {"result": {"__typename": "User", "rest_id": "` + authorID + `", "legacy": {"screen_name": "` + screenName + `"}}}},
						"legacy": {"full_text": "` + text + `"}
					}
				}
			}
		}
	}`
}

func homeTimelineBody(entries ...string) []byte {
	joined := ""
	for i, e := range entries {
		if i > 0 {
			joined += ","
		}
		joined += e
	}
	return []byte(`{
		"data": {"home": {"home_timeline_urt": {"instructions": [
			{"type": "TimelineAddEntries", "entries": [` + joined + `]}
		]}}}
	}`)
}

func TestHandleExchange_HomeTimelineRelaysInOrder(t *testing.T) {
	channel := &captureChannel{}
	i := New(channel, "u1")

	sent := i.HandleExchange(context.Background(), model.Exchange{
		URL: homeTimelineURL,
		ResponseBody: homeTimelineBody(
			tweetEntryJSON("1001", "77", "ada", "first"),
			tweetEntryJSON("1002", "88", "grace", "second"),
			`{"entryId": "cursor-bottom-1", "content": {"entryType": "TimelineTimelineCursor"}}`,
			tweetEntryJSON("1003", "77", "ada", "third"),
		),
	})

	assert.Equal(t, 3, sent)
	require.Len(t, channel.sent, 3)
	assert.Equal(t, "1001", channel.sent[0].ItemID)
	assert.Equal(t, "1002", channel.sent[1].ItemID)
	assert.Equal(t, "1003", channel.sent[2].ItemID)
	assert.Equal(t, model.TypeHomeTimeline, channel.sent[0].Type)
	assert.Equal(t, "77", channel.sent[0].OriginatorID)
	assert.Equal(t, "88", channel.sent[1].OriginatorID)
	assert.Equal(t, "u1", channel.sent[0].UserID)
}

func TestHandleExchange_UnmatchedTrafficIgnored(t *testing.T) {
	channel := &captureChannel{}
	i := New(channel, "u1")

	sent := i.HandleExchange(context.Background(), model.Exchange{
		URL:          "https://abs.twimg.com/responsive-web/main.js",
		ResponseBody: []byte("var x = 1;"),
	})

	assert.Zero(t, sent)
	assert.Empty(t, channel.sent)
}

func TestHandleExchange_MalformedResponseYieldsNothing(t *testing.T) {
	channel := &captureChannel{}
	i := New(channel, "u1")

	sent := i.HandleExchange(context.Background(), model.Exchange{
		URL:          homeTimelineURL,
		ResponseBody: []byte("<html>rate limited</html>"),
	})
	assert.Zero(t, sent)

	sent = i.HandleExchange(context.Background(), model.Exchange{
		URL:          homeTimelineURL,
		ResponseBody: []byte(`{"data": {}}`),
	})
	assert.Zero(t, sent)
	assert.Empty(t, channel.sent)
}

func TestHandleExchange_RelayFailureNeverPanics(t *testing.T) {
	channel := &captureChannel{fail: true}
	i := New(channel, "u1")

	sent := i.HandleExchange(context.Background(), model.Exchange{
		URL:          homeTimelineURL,
		ResponseBody: homeTimelineBody(tweetEntryJSON("1001", "77", "ada", "hello")),
	})
	assert.Zero(t, sent, "rejected records are not counted as relayed")
}

func TestHandleExchange_FollowingRelaysUsers(t *testing.T) {
	channel := &captureChannel{}
	i := New(channel, "u1")

	body := []byte(`{
		"data": {"user": {"result": {"timeline": {"timeline": {"instructions": [
			{"type": "TimelineAddEntries", "entries": [
				{
					"entryId": "user-77",
					"content": {
						"entryType": "TimelineTimelineItem",
						"itemContent": {
							"itemType": "TimelineUser",
							"user_results": {"result": {"__typename": "User", "rest_id": "77", "legacy": {"screen_name": "ada"}}}
						}
					}
				}
			]}
		]}}}}}
	}`)

	sent := i.HandleExchange(context.Background(), model.Exchange{
		URL:          "https://x.com/i/api/graphql/PoIuYt/Following",
		ResponseBody: body,
	})

	assert.Equal(t, 1, sent)
	require.Len(t, channel.sent, 1)
	assert.Equal(t, model.TypeFollowing, channel.sent[0].Type)
	assert.Equal(t, "77", channel.sent[0].ItemID)
	assert.Equal(t, "77", channel.sent[0].OriginatorID)
}

func TestHandleExchange_FavoriteActionUsesRequestVariables(t *testing.T) {
	channel := &captureChannel{}
	i := New(channel, "u1")

	sent := i.HandleExchange(context.Background(), model.Exchange{
		URL:          "https://x.com/i/api/graphql/EdCrFv/FavoriteTweet",
		RequestBody:  []byte(`{"variables": {"tweet_id": "9001"}}`),
		ResponseBody: []byte(`{"data": {"favorite_tweet": "Done"}}`),
	})

	assert.Equal(t, 1, sent)
	require.Len(t, channel.sent, 1)
	assert.Equal(t, model.TypeFavoriteAction, channel.sent[0].Type)
	assert.Equal(t, "9001", channel.sent[0].ItemID)
	assert.Equal(t, "u1", channel.sent[0].OriginatorID)

	// An action without a tweet id in the request yields nothing.
	sent = i.HandleExchange(context.Background(), model.Exchange{
		URL:          "https://x.com/i/api/graphql/EdCrFv/FavoriteTweet",
		RequestBody:  []byte(`{"variables": {}}`),
		ResponseBody: []byte(`{"data": {"favorite_tweet": "Done"}}`),
	})
	assert.Zero(t, sent)
}

// TestPipeline_EndToEnd drives a captured home timeline response through
// the real channel, gate and store, and checks what an administrator would
// see afterwards.
func TestPipeline_EndToEnd(t *testing.T) {
	local := store.NewMemory()
	defer local.Close()

	handler := newPipelineHandler(t, local)
	channel := relay.NewDirect(handler)
	i := New(channel, "u1")

	ctx := context.Background()
	sent := i.HandleExchange(ctx, model.Exchange{
		URL: homeTimelineURL,
		ResponseBody: homeTimelineBody(
			tweetEntryJSON("1001", "77", "ada", "first"),
			tweetEntryJSON("1002", "88", "grace", "second"),
		),
	})
	require.Equal(t, 2, sent)

	qresp := channel.Query(ctx, relay.NewQueryRequest(store.Filters{}, 1, 20))
	require.True(t, qresp.Success)
	assert.Equal(t, 2, qresp.Overview.TotalRecords)
	assert.Equal(t, 2, qresp.Overview.TypeCounts[model.TypeHomeTimeline])
	assert.Len(t, qresp.Data, 2)

	// The same capture replayed within the freshness window is suppressed.
	sent = i.HandleExchange(ctx, model.Exchange{
		URL:          homeTimelineURL,
		ResponseBody: homeTimelineBody(tweetEntryJSON("1001", "77", "ada", "first")),
	})
	require.Equal(t, 1, sent, "suppression is still a successful relay")

	qresp = channel.Query(ctx, relay.NewQueryRequest(store.Filters{}, 1, 20))
	require.True(t, qresp.Success)
	assert.Equal(t, 2, qresp.Overview.TotalRecords, "no duplicate record was stored")
}
