package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/feedscope/feedscope/model"
)

// SQLite is the default persisted store.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the record database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		path = "feedscope.db"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open record database: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS intercepted_records (
	  item_id        TEXT PRIMARY KEY,
	  id             TEXT NOT NULL,
	  type           TEXT NOT NULL,
	  originator_id  TEXT NOT NULL,
	  user_id        TEXT NOT NULL DEFAULT '',
	  data           TEXT NOT NULL,
	  timestamp      INTEGER,
	  date_added     INTEGER NOT NULL,
	  can_send_to_ca INTEGER,
	  reason         TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_records_originator ON intercepted_records(originator_id);
	CREATE INDEX IF NOT EXISTS idx_records_timestamp ON intercepted_records(timestamp);
	CREATE INDEX IF NOT EXISTS idx_records_can_send ON intercepted_records(can_send_to_ca);
	`)
	if err != nil {
		return fmt.Errorf("failed to migrate record table: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Put(ctx context.Context, rec model.Record) error {
	var ts *int64
	if rec.Timestamp != nil {
		v := rec.Timestamp.Unix()
		ts = &v
	}
	var canSend *int
	if rec.CanSendToCA != nil {
		v := 0
		if *rec.CanSendToCA {
			v = 1
		}
		canSend = &v
	}

	_, err := s.db.ExecContext(ctx, `
	INSERT INTO intercepted_records
	  (item_id, id, type, originator_id, user_id, data, timestamp, date_added, can_send_to_ca, reason)
	VALUES (?,?,?,?,?,?,?,?,?,?)
	ON CONFLICT(item_id) DO UPDATE SET
	  id=excluded.id, type=excluded.type, originator_id=excluded.originator_id,
	  user_id=excluded.user_id, data=excluded.data, timestamp=excluded.timestamp,
	  date_added=excluded.date_added, can_send_to_ca=excluded.can_send_to_ca,
	  reason=excluded.reason`,
		rec.ItemID, rec.ID, rec.Type, rec.OriginatorID, rec.UserID, string(rec.Data),
		ts, rec.DateAdded.Unix(), canSend, rec.Reason)
	if err != nil {
		return fmt.Errorf("failed to store record %s: %w", rec.ItemID, err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, itemID string) (model.Record, error) {
	row := s.db.QueryRowContext(ctx, `
	SELECT item_id, id, type, originator_id, user_id, data, timestamp, date_added, can_send_to_ca, reason
	FROM intercepted_records WHERE item_id = ?`, itemID)
	rec, err := scanRecord(row.Scan)
	if err == sql.ErrNoRows {
		return model.Record{}, ErrNotFound
	}
	return rec, err
}

func (s *SQLite) List(ctx context.Context, f Filters, page, pageSize int) ([]model.Record, Pagination, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}

	where, args := buildWhere(f)

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM intercepted_records"+where, args...).Scan(&total); err != nil {
		return nil, Pagination{}, fmt.Errorf("failed to count records: %w", err)
	}

	query := "SELECT item_id, id, type, originator_id, user_id, data, timestamp, date_added, can_send_to_ca, reason FROM intercepted_records" +
		where + " ORDER BY date_added DESC LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ctx, query, append(args, pageSize, (page-1)*pageSize)...)
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []model.Record
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, Pagination{}, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, Pagination{}, err
	}

	return records, paginate(page, pageSize, total), nil
}

func (s *SQLite) Overview(ctx context.Context, f Filters) (Overview, error) {
	where, args := buildWhere(f)

	ov := Overview{
		TypeCounts:                 make(map[string]int),
		ReasonCounts:               make(map[string]int),
		CanSendCounts:              make(map[string]int),
		ReprocessableCountByReason: make(map[string]int),
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT type, reason, can_send_to_ca, timestamp IS NULL
	FROM intercepted_records`+where, args...)
	if err != nil {
		return Overview{}, fmt.Errorf("failed to build overview: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var typ, reason string
		var canSend sql.NullInt64
		var pendingUpload bool
		if err := rows.Scan(&typ, &reason, &canSend, &pendingUpload); err != nil {
			return Overview{}, err
		}

		ov.TotalRecords++
		ov.TypeCounts[typ]++
		if reason != "" {
			ov.ReasonCounts[reason]++
		}
		ov.CanSendCounts[canSendLabel(canSend)]++
		if pendingUpload {
			key := reason
			if key == "" {
				key = "pending"
			}
			ov.ReprocessableCountByReason[key]++
		}
	}
	return ov, rows.Err()
}

func (s *SQLite) MarkOutcome(ctx context.Context, itemID string, canSend bool, reason string, confirmed *time.Time) error {
	var ts *int64
	if confirmed != nil {
		v := confirmed.Unix()
		ts = &v
	}
	v := 0
	if canSend {
		v = 1
	}
	res, err := s.db.ExecContext(ctx, `
	UPDATE intercepted_records SET can_send_to_ca = ?, reason = ?, timestamp = COALESCE(?, timestamp)
	WHERE item_id = ?`, v, reason, ts, itemID)
	if err != nil {
		return fmt.Errorf("failed to mark outcome for %s: %w", itemID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) Sweep(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM intercepted_records WHERE date_added < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("retention sweep failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("Retention sweep removed records")
	}
	return n, nil
}

func buildWhere(f Filters) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if f.Type != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, f.Type)
	}
	if f.Reason != "" {
		clauses = append(clauses, "reason = ?")
		args = append(args, f.Reason)
	}
	switch f.CanSendStatus {
	case CanSendTrue:
		clauses = append(clauses, "can_send_to_ca = 1")
	case CanSendFalse:
		clauses = append(clauses, "can_send_to_ca = 0")
	case CanSendPending:
		clauses = append(clauses, "can_send_to_ca IS NULL")
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func canSendLabel(v sql.NullInt64) string {
	if !v.Valid {
		return CanSendPending
	}
	if v.Int64 != 0 {
		return CanSendTrue
	}
	return CanSendFalse
}

func paginate(page, pageSize, total int) Pagination {
	totalPages := total / pageSize
	if total%pageSize != 0 {
		totalPages++
	}
	return Pagination{Page: page, PageSize: pageSize, TotalCount: total, TotalPages: totalPages}
}

type scanFunc func(dest ...interface{}) error

func scanRecord(scan scanFunc) (model.Record, error) {
	var rec model.Record
	var data string
	var ts sql.NullInt64
	var added int64
	var canSend sql.NullInt64

	err := scan(&rec.ItemID, &rec.ID, &rec.Type, &rec.OriginatorID, &rec.UserID,
		&data, &ts, &added, &canSend, &rec.Reason)
	if err != nil {
		return model.Record{}, err
	}

	rec.Data = []byte(data)
	rec.DateAdded = time.Unix(added, 0).UTC()
	if ts.Valid {
		t := time.Unix(ts.Int64, 0).UTC()
		rec.Timestamp = &t
	}
	if canSend.Valid {
		b := canSend.Int64 != 0
		rec.CanSendToCA = &b
	}
	return rec, nil
}
