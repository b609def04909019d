package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/feedscope/feedscope/model"
)

// Memory is an in-process store used in tests and offline runs. All access
// goes through a single RWMutex.
type Memory struct {
	mu      sync.RWMutex
	records map[string]model.Record
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]model.Record)}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) Put(ctx context.Context, rec model.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ItemID] = rec
	return nil
}

func (m *Memory) Get(ctx context.Context, itemID string) (model.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[itemID]
	if !ok {
		return model.Record{}, ErrNotFound
	}
	return rec, nil
}

func (m *Memory) List(ctx context.Context, f Filters, page, pageSize int) ([]model.Record, Pagination, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}

	matched := m.matching(f)
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].DateAdded.After(matched[j].DateAdded)
	})

	total := len(matched)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return matched[start:end], paginate(page, pageSize, total), nil
}

func (m *Memory) Overview(ctx context.Context, f Filters) (Overview, error) {
	ov := Overview{
		TypeCounts:                 make(map[string]int),
		ReasonCounts:               make(map[string]int),
		CanSendCounts:              make(map[string]int),
		ReprocessableCountByReason: make(map[string]int),
	}

	for _, rec := range m.matching(f) {
		ov.TotalRecords++
		ov.TypeCounts[rec.Type]++
		if rec.Reason != "" {
			ov.ReasonCounts[rec.Reason]++
		}
		ov.CanSendCounts[recordCanSendLabel(rec)]++
		if rec.Timestamp == nil {
			key := rec.Reason
			if key == "" {
				key = "pending"
			}
			ov.ReprocessableCountByReason[key]++
		}
	}
	return ov, nil
}

func (m *Memory) MarkOutcome(ctx context.Context, itemID string, canSend bool, reason string, confirmed *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[itemID]
	if !ok {
		return ErrNotFound
	}
	rec.CanSendToCA = &canSend
	rec.Reason = reason
	if confirmed != nil {
		rec.Timestamp = confirmed
	}
	m.records[itemID] = rec
	return nil
}

func (m *Memory) Sweep(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for id, rec := range m.records {
		if rec.DateAdded.Before(cutoff) {
			delete(m.records, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *Memory) matching(f Filters) []model.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Record, 0, len(m.records))
	for _, rec := range m.records {
		if f.Type != "" && rec.Type != f.Type {
			continue
		}
		if f.Reason != "" && !strings.EqualFold(rec.Reason, f.Reason) {
			continue
		}
		if f.CanSendStatus != "" && recordCanSendLabel(rec) != f.CanSendStatus {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func recordCanSendLabel(rec model.Record) string {
	if rec.CanSendToCA == nil {
		return CanSendPending
	}
	if *rec.CanSendToCA {
		return CanSendTrue
	}
	return CanSendFalse
}
