// Package remote defines the contract with the upstream database and its
// implementations. The gate consults it for freshness checks; the service
// pushes confirmed records and relational rows through it.
package remote

import (
	"context"
	"errors"
	"time"

	"github.com/feedscope/feedscope/model"
)

// ErrUnavailable wraps transport or auth failures talking to the remote
// store. Callers surface it as a structured failure and leave the local
// record unconfirmed so a later reprocessing pass can retry.
var ErrUnavailable = errors.New("remote store unavailable")

// Store is the upstream contract. Upserts are idempotent on the identity
// triple: concurrent duplicate admissions from racing tabs collapse into
// one remote row.
type Store interface {
	// LatestTimestamp returns the most recent confirmed upload time for an
	// identity, or nil when the identity has never been uploaded.
	LatestTimestamp(ctx context.Context, id model.Identity) (*time.Time, error)

	// UpsertRecord writes the record keyed by its identity triple and
	// returns the confirmed timestamp.
	UpsertRecord(ctx context.Context, rec model.Record) (time.Time, error)

	// InsertRows writes the relational projections of a tweet. Nil
	// sub-objects in a row group are skipped.
	InsertRows(ctx context.Context, groups []model.RowGroup) error

	Close()
}
