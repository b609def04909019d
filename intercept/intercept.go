// Package intercept is the page-context entry point: it takes intercepted
// network exchanges, selects a schema, extracts normalized records and
// relays them to the background service. Nothing in this package may break
// the host page: every failure is logged, counted and recovered.
package intercept

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/feedscope/feedscope/extractor"
	"github.com/feedscope/feedscope/matcher"
	"github.com/feedscope/feedscope/metrics"
	"github.com/feedscope/feedscope/model"
	"github.com/feedscope/feedscope/relay"
)

// Interceptor turns network exchanges into relayed records.
type Interceptor struct {
	channel relay.Channel
	userID  string
}

// New creates an interceptor relaying on behalf of the given user.
func New(channel relay.Channel, userID string) *Interceptor {
	return &Interceptor{channel: channel, userID: userID}
}

// HandleExchange processes one intercepted exchange and returns the number
// of records relayed. Unmatched traffic is the common case and returns
// immediately. Extraction failures yield zero records; the surrounding
// request is never affected.
func (i *Interceptor) HandleExchange(ctx context.Context, ex model.Exchange) int {
	schema, ok := matcher.Match(ex.URL)
	if !ok {
		return 0
	}

	switch schema {
	case matcher.SchemaFavorite, matcher.SchemaUnfavorite:
		return i.relayAction(ctx, schema, ex)
	case matcher.SchemaFollowing:
		return i.relayUsers(ctx, schema, ex)
	default:
		return i.relayTweets(ctx, schema, ex)
	}
}

func (i *Interceptor) relayTweets(ctx context.Context, schema matcher.Schema, ex model.Exchange) int {
	instructions, ok := i.instructions(schema, ex)
	if !ok {
		return 0
	}

	sent := 0
	for _, t := range extractor.Tweets(instructions) {
		originator := ""
		if t.Author != nil {
			originator = t.Author.RestID
		}
		if i.relayRecord(ctx, t, schema.RecordType(), originator, t.RestID) {
			sent++
		}
	}
	return sent
}

func (i *Interceptor) relayUsers(ctx context.Context, schema matcher.Schema, ex model.Exchange) int {
	instructions, ok := i.instructions(schema, ex)
	if !ok {
		return 0
	}

	sent := 0
	for _, u := range extractor.Users(instructions) {
		if i.relayRecord(ctx, u, schema.RecordType(), u.RestID, u.RestID) {
			sent++
		}
	}
	return sent
}

// relayAction records a favorite/unfavorite action. The action response
// carries no tweet payload; the target tweet ID lives in the request
// variables.
func (i *Interceptor) relayAction(ctx context.Context, schema matcher.Schema, ex model.Exchange) int {
	var body struct {
		Variables struct {
			TweetID string `json:"tweet_id"`
		} `json:"variables"`
	}
	if err := json.Unmarshal(ex.RequestBody, &body); err != nil || body.Variables.TweetID == "" {
		metrics.EntriesSkipped.WithLabelValues("action_shape").Inc()
		log.Debug().Str("schema", string(schema)).Msg("Action request carried no tweet id")
		return 0
	}

	if i.relayRecord(ctx, body.Variables, schema.RecordType(), i.userID, body.Variables.TweetID) {
		return 1
	}
	return 0
}

func (i *Interceptor) instructions(schema matcher.Schema, ex model.Exchange) ([]extractor.Instruction, bool) {
	var payload map[string]interface{}
	if err := json.Unmarshal(ex.ResponseBody, &payload); err != nil {
		metrics.ShapeMismatches.WithLabelValues(string(schema)).Inc()
		log.Debug().Err(err).Str("schema", string(schema)).Msg("Response body is not JSON")
		return nil, false
	}

	instructions, err := extractor.Instructions(schema, payload)
	if err != nil {
		metrics.ShapeMismatches.WithLabelValues(string(schema)).Inc()
		log.Debug().Err(err).Str("url", ex.URL).Msg("Skipping response with unexpected shape")
		return nil, false
	}
	return instructions, true
}

func (i *Interceptor) relayRecord(ctx context.Context, payload interface{}, recordType, originatorID, itemID string) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("item_id", itemID).Msg("Failed to marshal record payload")
		return false
	}

	req := relay.NewSendInterceptedDataRequest(data, recordType, originatorID, itemID, i.userID)
	resp := i.channel.Send(ctx, req)
	if !resp.Success {
		log.Warn().
			Str("item_id", itemID).
			Str("type", recordType).
			Str("error", resp.Error).
			Msg("Relay rejected intercepted record")
		return false
	}
	return true
}
