// Package store persists intercepted records in the background context and
// answers the administrative queries over them.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/feedscope/feedscope/model"
)

// ErrNotFound is returned when no record exists for the requested item.
var ErrNotFound = errors.New("record not found")

// CanSendStatus filter values. Pending selects records with no upload
// outcome recorded yet.
const (
	CanSendTrue    = "true"
	CanSendFalse   = "false"
	CanSendPending = "pending"
)

// Filters narrows List and Overview results. Zero values match everything.
type Filters struct {
	Type          string
	CanSendStatus string
	Reason        string
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalCount int `json:"totalCount"`
	TotalPages int `json:"totalPages"`
}

// Overview is the count breakdown shown in the administrative listing.
// Failed and pending records are visible here with their reasons; they are
// never silently discarded.
type Overview struct {
	TypeCounts                 map[string]int `json:"typeCounts"`
	ReasonCounts               map[string]int `json:"reasonCounts"`
	CanSendCounts              map[string]int `json:"canSendCounts"`
	ReprocessableCountByReason map[string]int `json:"reprocessableCountByReason"`
	TotalRecords               int            `json:"totalRecords"`
}

// Store is the local persisted store for intercepted records. The record
// table is keyed by item ID and additionally indexed by originator,
// timestamp and upload outcome. Implementations are safe for concurrent
// use; multi-step read-modify-write sequences belong to the gate, not here.
type Store interface {
	// Put inserts or replaces the record for its item ID.
	Put(ctx context.Context, rec model.Record) error

	// Get returns the record for an item ID, or ErrNotFound.
	Get(ctx context.Context, itemID string) (model.Record, error)

	// List returns one page of records matching the filters, newest first
	// by capture time.
	List(ctx context.Context, f Filters, page, pageSize int) ([]model.Record, Pagination, error)

	// Overview returns the count breakdowns for records matching the
	// filters.
	Overview(ctx context.Context, f Filters) (Overview, error)

	// MarkOutcome records the result of an upload attempt: the confirmed
	// remote timestamp on success, or a reason on failure.
	MarkOutcome(ctx context.Context, itemID string, canSend bool, reason string, confirmed *time.Time) error

	// Sweep deletes records whose capture time is before cutoff and
	// returns the number deleted. It deletes by predicate in a single
	// operation so it is safe against concurrent admits.
	Sweep(ctx context.Context, cutoff time.Time) (int64, error)

	Close() error
}

// Config selects and parameterizes a store backend.
type Config struct {
	// Backend is "sqlite" or "memory".
	Backend string

	// Path is the SQLite database path; ":memory:" is accepted.
	Path string
}

// New creates the store implementation named by the configuration.
func New(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", "sqlite":
		return OpenSQLite(cfg.Path)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
