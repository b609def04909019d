// Package gate decides whether a just-intercepted record should be
// persisted or suppressed as a recent duplicate.
package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/feedscope/feedscope/metrics"
	"github.com/feedscope/feedscope/model"
	"github.com/feedscope/feedscope/remote"
	"github.com/feedscope/feedscope/store"
)

// AdmitRequest carries one candidate record through the gate.
type AdmitRequest struct {
	OriginatorID string
	ItemID       string
	Type         string
	UserID       string
	Payload      json.RawMessage
}

// AdmitResult reports the gate's decision.
type AdmitResult struct {
	Admitted bool
	// Record is the stored record when Admitted is true.
	Record model.Record
}

// Gate implements the freshness state machine over identity triples.
// Check-then-write for one identity is serialized within the process by a
// lock scoped to that identity key; across processes or tabs the race is
// tolerated — the remote upsert is idempotent on the triple, so duplicate
// admission degrades to wasted work, never to duplicate rows.
type Gate struct {
	local  store.Store
	remote remote.Store
	window time.Duration
	locks  *keyedMutex

	// now is replaceable in tests.
	now func() time.Time
}

// New creates a gate with the given freshness window.
func New(local store.Store, rs remote.Store, window time.Duration) *Gate {
	return &Gate{
		local:  local,
		remote: rs,
		window: window,
		locks:  newKeyedMutex(),
		now:    time.Now,
	}
}

// Admit runs one record through the state machine:
//
//	UNSEEN      -> admit: store locally with nil timestamp
//	SEEN_FRESH  -> suppress: no write at all
//	SEEN_STALE  -> admit again
//
// A remote failure on the freshness check does not drop the record: it is
// admitted with a reason so the reprocessing pass can settle it later.
func (g *Gate) Admit(ctx context.Context, req AdmitRequest) (AdmitResult, error) {
	id := model.Identity{Type: req.Type, OriginatorID: req.OriginatorID, ItemID: req.ItemID}
	if err := id.Validate(); err != nil {
		return AdmitResult{}, err
	}

	unlock := g.locks.lock(id.Key())
	defer unlock()

	reason := ""
	latest, err := g.remote.LatestTimestamp(ctx, id)
	if err != nil {
		// Fail open: keeping the record beats losing it to a flaky remote.
		log.Warn().Err(err).Str("identity", id.Key()).Msg("Freshness check failed, admitting record")
		metrics.AdmitDecisions.WithLabelValues("check_failed").Inc()
		reason = fmt.Sprintf("freshness check failed: %v", err)
	} else if latest != nil && g.now().Sub(*latest) < g.window {
		metrics.AdmitDecisions.WithLabelValues("suppressed").Inc()
		log.Debug().Str("identity", id.Key()).Time("last_seen", *latest).Msg("Suppressing fresh duplicate")
		return AdmitResult{Admitted: false}, nil
	}

	rec := model.Record{
		ID:           uuid.New().String(),
		Type:         req.Type,
		OriginatorID: req.OriginatorID,
		ItemID:       req.ItemID,
		UserID:       req.UserID,
		Data:         req.Payload,
		Timestamp:    nil, // not yet confirmed uploaded
		DateAdded:    g.now().UTC(),
		Reason:       reason,
	}
	if err := g.local.Put(ctx, rec); err != nil {
		return AdmitResult{}, fmt.Errorf("failed to persist admitted record: %w", err)
	}

	metrics.AdmitDecisions.WithLabelValues("admitted").Inc()
	return AdmitResult{Admitted: true, Record: rec}, nil
}
