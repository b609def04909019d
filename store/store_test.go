package store

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedscope/feedscope/model"
)

// forEachBackend runs one test body against both store implementations so
// their behavior cannot drift apart.
func forEachBackend(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		s := NewMemory()
		defer s.Close()
		fn(t, s)
	})

	t.Run("sqlite", func(t *testing.T) {
		s, err := OpenSQLite(filepath.Join(t.TempDir(), "records.db"))
		require.NoError(t, err)
		defer s.Close()
		fn(t, s)
	})
}

func testRecord(itemID, recordType string, added time.Time) model.Record {
	return model.Record{
		ID:           "id-" + itemID,
		Type:         recordType,
		OriginatorID: "77",
		ItemID:       itemID,
		UserID:       "u1",
		Data:         json.RawMessage(`{"rest_id":"` + itemID + `"}`),
		DateAdded:    added,
	}
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		added := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
		rec := testRecord("1001", model.TypeHomeTimeline, added)

		require.NoError(t, s.Put(ctx, rec))

		got, err := s.Get(ctx, "1001")
		require.NoError(t, err)
		assert.Equal(t, rec.ID, got.ID)
		assert.Equal(t, rec.Type, got.Type)
		assert.Equal(t, rec.OriginatorID, got.OriginatorID)
		assert.JSONEq(t, string(rec.Data), string(got.Data))
		assert.True(t, got.DateAdded.Equal(added))
		assert.Nil(t, got.Timestamp)
		assert.Nil(t, got.CanSendToCA)
	})
}

func TestStore_GetMissing(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		_, err := s.Get(context.Background(), "no-such-item")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_PutReplacesByItemID(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		base := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)

		first := testRecord("1001", model.TypeHomeTimeline, base)
		require.NoError(t, s.Put(ctx, first))

		second := testRecord("1001", model.TypeLikes, base.Add(time.Hour))
		second.ID = "id-replaced"
		require.NoError(t, s.Put(ctx, second))

		got, err := s.Get(ctx, "1001")
		require.NoError(t, err)
		assert.Equal(t, "id-replaced", got.ID)
		assert.Equal(t, model.TypeLikes, got.Type)

		_, pagination, err := s.List(ctx, Filters{}, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, 1, pagination.TotalCount)
	})
}

func TestStore_ListNewestFirstWithPagination(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		base := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)

		for i := 0; i < 5; i++ {
			rec := testRecord(fmt.Sprintf("100%d", i), model.TypeHomeTimeline, base.Add(time.Duration(i)*time.Minute))
			require.NoError(t, s.Put(ctx, rec))
		}

		page1, pagination, err := s.List(ctx, Filters{}, 1, 2)
		require.NoError(t, err)
		require.Len(t, page1, 2)
		assert.Equal(t, "1004", page1[0].ItemID)
		assert.Equal(t, "1003", page1[1].ItemID)
		assert.Equal(t, 5, pagination.TotalCount)
		assert.Equal(t, 3, pagination.TotalPages)

		page3, _, err := s.List(ctx, Filters{}, 3, 2)
		require.NoError(t, err)
		require.Len(t, page3, 1)
		assert.Equal(t, "1000", page3[0].ItemID)

		empty, _, err := s.List(ctx, Filters{}, 4, 2)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})
}

func TestStore_ListFilters(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		base := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)

		home := testRecord("1001", model.TypeHomeTimeline, base)
		require.NoError(t, s.Put(ctx, home))

		likes := testRecord("2001", model.TypeLikes, base.Add(time.Minute))
		require.NoError(t, s.Put(ctx, likes))

		confirmed := time.Date(2025, 9, 1, 11, 0, 0, 0, time.UTC)
		require.NoError(t, s.MarkOutcome(ctx, "1001", true, "", &confirmed))
		require.NoError(t, s.MarkOutcome(ctx, "2001", false, "row insert failed: boom", nil))

		byType, _, err := s.List(ctx, Filters{Type: model.TypeLikes}, 1, 10)
		require.NoError(t, err)
		require.Len(t, byType, 1)
		assert.Equal(t, "2001", byType[0].ItemID)

		sent, _, err := s.List(ctx, Filters{CanSendStatus: CanSendTrue}, 1, 10)
		require.NoError(t, err)
		require.Len(t, sent, 1)
		assert.Equal(t, "1001", sent[0].ItemID)

		failed, _, err := s.List(ctx, Filters{CanSendStatus: CanSendFalse}, 1, 10)
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.Equal(t, "2001", failed[0].ItemID)

		byReason, _, err := s.List(ctx, Filters{Reason: "row insert failed: boom"}, 1, 10)
		require.NoError(t, err)
		require.Len(t, byReason, 1)
		assert.Equal(t, "2001", byReason[0].ItemID)
	})
}

func TestStore_MarkOutcome(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		base := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
		require.NoError(t, s.Put(ctx, testRecord("1001", model.TypeHomeTimeline, base)))

		confirmed := time.Date(2025, 9, 1, 10, 5, 0, 0, time.UTC)
		require.NoError(t, s.MarkOutcome(ctx, "1001", true, "", &confirmed))

		got, err := s.Get(ctx, "1001")
		require.NoError(t, err)
		require.NotNil(t, got.CanSendToCA)
		assert.True(t, *got.CanSendToCA)
		require.NotNil(t, got.Timestamp)
		assert.True(t, got.Timestamp.Equal(confirmed))

		// A later failure keeps the existing confirmed timestamp.
		require.NoError(t, s.MarkOutcome(ctx, "1001", false, "later failure", nil))
		got, err = s.Get(ctx, "1001")
		require.NoError(t, err)
		require.NotNil(t, got.Timestamp)
		assert.True(t, got.Timestamp.Equal(confirmed))
		assert.Equal(t, "later failure", got.Reason)

		assert.ErrorIs(t, s.MarkOutcome(ctx, "missing", true, "", nil), ErrNotFound)
	})
}

func TestStore_Overview(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		base := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)

		require.NoError(t, s.Put(ctx, testRecord("1001", model.TypeHomeTimeline, base)))
		require.NoError(t, s.Put(ctx, testRecord("1002", model.TypeHomeTimeline, base.Add(time.Minute))))
		require.NoError(t, s.Put(ctx, testRecord("2001", model.TypeLikes, base.Add(2*time.Minute))))

		confirmed := base.Add(time.Hour)
		require.NoError(t, s.MarkOutcome(ctx, "1001", true, "", &confirmed))
		require.NoError(t, s.MarkOutcome(ctx, "2001", false, "record upload failed: down", nil))

		ov, err := s.Overview(ctx, Filters{})
		require.NoError(t, err)

		assert.Equal(t, 3, ov.TotalRecords)
		assert.Equal(t, 2, ov.TypeCounts[model.TypeHomeTimeline])
		assert.Equal(t, 1, ov.TypeCounts[model.TypeLikes])
		assert.Equal(t, 1, ov.CanSendCounts[CanSendTrue])
		assert.Equal(t, 1, ov.CanSendCounts[CanSendFalse])
		assert.Equal(t, 1, ov.CanSendCounts[CanSendPending])
		assert.Equal(t, 1, ov.ReasonCounts["record upload failed: down"])
		// 1002 never attempted, 2001 failed: both are reprocessable.
		assert.Equal(t, 1, ov.ReprocessableCountByReason["pending"])
		assert.Equal(t, 1, ov.ReprocessableCountByReason["record upload failed: down"])
	})
}

func TestStore_SweepDeletesOnlyExpired(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		base := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)

		require.NoError(t, s.Put(ctx, testRecord("old-1", model.TypeHomeTimeline, base.Add(-48*time.Hour))))
		require.NoError(t, s.Put(ctx, testRecord("old-2", model.TypeLikes, base.Add(-25*time.Hour))))
		require.NoError(t, s.Put(ctx, testRecord("new-1", model.TypeHomeTimeline, base.Add(-time.Hour))))

		deleted, err := s.Sweep(ctx, base.Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(2), deleted)

		_, err = s.Get(ctx, "old-1")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.Get(ctx, "new-1")
		assert.NoError(t, err)

		// Nothing left to delete on a second pass.
		deleted, err = s.Sweep(ctx, base.Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Zero(t, deleted)
	})
}

func TestNew_BackendSelection(t *testing.T) {
	s, err := New(Config{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)
	s.Close()

	s, err = New(Config{Backend: "sqlite", Path: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, s)
	s.Close()

	_, err = New(Config{Backend: "bolt"})
	assert.Error(t, err)
}
