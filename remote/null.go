package remote

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/feedscope/feedscope/model"
)

// Null is a no-op remote store for offline runs: every freshness check
// misses and every upsert succeeds locally without leaving the process.
type Null struct{}

func NewNull() *Null { return &Null{} }

func (*Null) LatestTimestamp(ctx context.Context, id model.Identity) (*time.Time, error) {
	return nil, nil
}

func (*Null) UpsertRecord(ctx context.Context, rec model.Record) (time.Time, error) {
	log.Debug().Str("item", rec.ItemID).Str("type", rec.Type).Msg("Null remote: discarding record")
	return time.Now().UTC(), nil
}

func (*Null) InsertRows(ctx context.Context, groups []model.RowGroup) error { return nil }

func (*Null) Close() {}
