// Package service is the privileged background side of the pipeline: it
// admits relayed records through the dedup gate, uploads confirmed records
// and their relational rows to the remote store, answers administrative
// queries, reprocesses failed uploads and runs the retention sweep.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/feedscope/feedscope/gate"
	"github.com/feedscope/feedscope/mapper"
	"github.com/feedscope/feedscope/metrics"
	"github.com/feedscope/feedscope/model"
	"github.com/feedscope/feedscope/relay"
	"github.com/feedscope/feedscope/remote"
	"github.com/feedscope/feedscope/store"
)

// Options tune the service's background behavior and query defaults.
type Options struct {
	SweepInterval   time.Duration
	RetentionAge    time.Duration
	DefaultPageSize int
	MaxPageSize     int
}

// Service wires the gate, the local store and the remote store into the
// relay.Handler contract.
type Service struct {
	local  store.Store
	remote remote.Store
	gate   *gate.Gate
	opts   Options
}

// New creates the service. Zero option fields fall back to safe defaults.
func New(local store.Store, rs remote.Store, g *gate.Gate, opts Options) *Service {
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 6 * time.Hour
	}
	if opts.RetentionAge <= 0 {
		opts.RetentionAge = 30 * 24 * time.Hour
	}
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = 20
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = 200
	}
	return &Service{local: local, remote: rs, gate: g, opts: opts}
}

// SendInterceptedData admits one relayed record and, when admitted,
// attempts the upload immediately. A suppressed duplicate is a success with
// Admitted false. An upload failure leaves the record stored locally and
// unconfirmed, so the reprocessing pass can settle it.
func (s *Service) SendInterceptedData(ctx context.Context, req relay.SendInterceptedDataRequest) relay.SendInterceptedDataResponse {
	result, err := s.gate.Admit(ctx, gate.AdmitRequest{
		OriginatorID: req.OriginatorID,
		ItemID:       req.ItemID,
		Type:         req.Type,
		UserID:       req.UserID,
		Payload:      req.Data,
	})
	if err != nil {
		log.Error().Stack().Err(err).Str("item_id", req.ItemID).Msg("Failed to admit intercepted record")
		return relay.SendInterceptedDataResponse{Success: false, Error: err.Error()}
	}
	if !result.Admitted {
		return relay.SendInterceptedDataResponse{Success: true, Admitted: false}
	}

	if err := s.upload(ctx, result.Record); err != nil {
		log.Warn().Err(err).
			Str("item_id", req.ItemID).
			Str("trace_id", req.TraceID).
			Msg("Upload failed, record retained for reprocessing")
		return relay.SendInterceptedDataResponse{Success: false, Admitted: true, Error: err.Error()}
	}
	return relay.SendInterceptedDataResponse{Success: true, Admitted: true}
}

// GetAllInterceptedData returns one page of local records with the overview
// breakdown.
func (s *Service) GetAllInterceptedData(ctx context.Context, req relay.QueryRequest) relay.QueryResponse {
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = s.opts.DefaultPageSize
	}
	if pageSize > s.opts.MaxPageSize {
		pageSize = s.opts.MaxPageSize
	}

	records, pagination, err := s.local.List(ctx, req.Filters, page, pageSize)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Failed to list intercepted records")
		return relay.QueryResponse{Success: false, Error: err.Error()}
	}
	overview, err := s.local.Overview(ctx, req.Filters)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Failed to build records overview")
		return relay.QueryResponse{Success: false, Error: err.Error()}
	}
	return relay.QueryResponse{
		Success:    true,
		Data:       records,
		Pagination: pagination,
		Overview:   overview,
	}
}

// upload pushes one admitted record upstream: the record row itself, then
// its relational projections for tweet payloads. The confirmed timestamp is
// written back locally only after the remote accepted everything, so an
// interrupted upload stays reprocessable.
func (s *Service) upload(ctx context.Context, rec model.Record) error {
	groups, err := s.rowGroups(rec)
	if err != nil {
		// Payload failed validation: permanent, never uploadable.
		if markErr := s.local.MarkOutcome(ctx, rec.ItemID, false, err.Error(), nil); markErr != nil {
			log.Error().Stack().Err(markErr).Str("item_id", rec.ItemID).Msg("Failed to mark record outcome")
		}
		return err
	}

	confirmed, err := s.remote.UpsertRecord(ctx, rec)
	if err != nil {
		reason := fmt.Sprintf("record upload failed: %v", err)
		if markErr := s.local.MarkOutcome(ctx, rec.ItemID, false, reason, nil); markErr != nil {
			log.Error().Stack().Err(markErr).Str("item_id", rec.ItemID).Msg("Failed to mark record outcome")
		}
		return err
	}

	if len(groups) > 0 {
		if err := s.remote.InsertRows(ctx, groups); err != nil {
			reason := fmt.Sprintf("row insert failed: %v", err)
			if markErr := s.local.MarkOutcome(ctx, rec.ItemID, false, reason, nil); markErr != nil {
				log.Error().Stack().Err(markErr).Str("item_id", rec.ItemID).Msg("Failed to mark record outcome")
			}
			return err
		}
	}

	return s.local.MarkOutcome(ctx, rec.ItemID, true, "", &confirmed)
}

// rowGroups builds the relational projections for tweet-family payloads.
// Non-tweet record types have no projection and upload the record row only.
func (s *Service) rowGroups(rec model.Record) ([]model.RowGroup, error) {
	switch rec.Type {
	case model.TypeHomeTimeline, model.TypeUserTweets, model.TypeLikes,
		model.TypeBookmarks, model.TypeSearch, model.TypeTweetDetail:
	default:
		return nil, nil
	}

	var tweet model.Tweet
	if err := json.Unmarshal(rec.Data, &tweet); err != nil {
		return nil, &mapper.ValidationError{Reason: fmt.Sprintf("payload is not a tweet: %v", err)}
	}
	return mapper.MapAll(tweet)
}

// ReprocessReport summarizes one reprocessing pass.
type ReprocessReport struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Reprocess re-runs the upload path for locally retained records that were
// never confirmed. The remote upsert is idempotent on the identity triple,
// so a record that actually made it upstream before a crash converges
// instead of duplicating.
func (s *Service) Reprocess(ctx context.Context, f store.Filters) (ReprocessReport, error) {
	report := ReprocessReport{}

	// Collect the pending records before touching any of them. A successful
	// upload clears the record's failure reason, which would shrink a
	// reason-filtered listing while it is still being paged over.
	var pending []model.Record
	page := 1
	for {
		records, pagination, err := s.local.List(ctx, f, page, s.opts.MaxPageSize)
		if err != nil {
			return report, fmt.Errorf("failed to list records for reprocessing: %w", err)
		}
		for _, rec := range records {
			if rec.Timestamp != nil {
				continue // already confirmed
			}
			pending = append(pending, rec)
		}
		if page >= pagination.TotalPages {
			break
		}
		page++
	}

	for _, rec := range pending {
		report.Processed++
		if err := s.upload(ctx, rec); err != nil {
			report.Failed++
			log.Warn().Err(err).Str("item_id", rec.ItemID).Msg("Reprocess attempt failed")
			continue
		}
		report.Succeeded++
	}
	log.Info().
		Int("processed", report.Processed).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Msg("Reprocessing pass completed")
	return report, nil
}

// SweepOnce deletes local records older than the retention age and returns
// the number deleted.
func (s *Service) SweepOnce(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-s.opts.RetentionAge)
	deleted, err := s.local.Sweep(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("retention sweep failed: %w", err)
	}
	metrics.SweepDeleted.Add(float64(deleted))
	log.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("Retention sweep completed")
	return deleted, nil
}

// Run starts the background loops and blocks until the context is canceled.
// The sweep runs once at startup and then on its interval.
func (s *Service) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if _, err := s.SweepOnce(ctx); err != nil {
			log.Error().Stack().Err(err).Msg("Startup retention sweep failed")
		}
		ticker := time.NewTicker(s.opts.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if _, err := s.SweepOnce(ctx); err != nil {
					log.Error().Stack().Err(err).Msg("Retention sweep failed")
				}
			}
		}
	})

	return g.Wait()
}
