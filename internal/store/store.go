// Package store handles SQLite persistence of finished results.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verte-zerg/typist/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

const (
	// DefaultPageSize is used when a history query does not set one.
	DefaultPageSize = 20
	// DefaultLeaderboardLimit is used when a leaderboard query does not set one.
	DefaultLeaderboardLimit = 10
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("result not found")

// ErrSave matches every *SaveError.
var ErrSave = errors.New("failed to save result")

// SaveError reports a failed save. The caller still holds the result and
// may retry when Retryable is true.
type SaveError struct {
	SessionID string
	Err       error
	retryable bool
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("failed to save result %s: %v", e.SessionID, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrSave) hold for every save failure.
func (e *SaveError) Is(target error) bool { return target == ErrSave }

// Retryable reports whether the same result may succeed on a later attempt.
func (e *SaveError) Retryable() bool { return e.retryable }

// Store wraps SQLite access for result data.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// The save worker and the UI share the file; one connection serializes
	// them instead of surfacing SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_uuid TEXT NOT NULL UNIQUE,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			mode_kind TEXT NOT NULL,
			mode_value INTEGER NOT NULL,
			lang TEXT NOT NULL,
			wpm REAL NOT NULL,
			raw_wpm REAL NOT NULL,
			accuracy REAL NOT NULL,
			consistency REAL NOT NULL,
			char_count INTEGER NOT NULL,
			error_count INTEGER NOT NULL,
			duration_ns INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS samples (
			result_id INTEGER NOT NULL,
			idx INTEGER NOT NULL,
			elapsed_ns INTEGER NOT NULL,
			wpm REAL NOT NULL,
			raw_wpm REAL NOT NULL,
			accuracy REAL NOT NULL,
			PRIMARY KEY (result_id, idx)
		);`,
		`CREATE TABLE IF NOT EXISTS session_char_stats (
			result_id INTEGER NOT NULL,
			char TEXT NOT NULL,
			correct INTEGER NOT NULL,
			incorrect INTEGER NOT NULL,
			latency_sum_ms INTEGER NOT NULL,
			latency_count INTEGER NOT NULL,
			PRIMARY KEY (result_id, char)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_results_finished_at ON results(finished_at, id);`,
		`CREATE INDEX IF NOT EXISTS idx_results_mode ON results(mode_kind, mode_value, wpm);`,
		`CREATE INDEX IF NOT EXISTS idx_session_char_stats_char ON session_char_stats(char);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Save stores a finished result with its series and per-character stats and
// returns its id. Saving the same session twice returns the first id, so a
// retry after a lost acknowledgement never duplicates the record.
func (s *Store) Save(ctx context.Context, res model.Result) (int64, error) {
	if res.SessionID == "" {
		return 0, &SaveError{Err: errors.New("result has no session id")}
	}
	if err := res.Mode.Validate(); err != nil {
		return 0, &SaveError{SessionID: res.SessionID, Err: err}
	}
	id, err := s.save(ctx, res)
	if err != nil {
		return 0, &SaveError{SessionID: res.SessionID, Err: err, retryable: true}
	}
	return id, nil
}

func (s *Store) save(ctx context.Context, res model.Result) (id int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	err = tx.QueryRowContext(ctx, `SELECT id FROM results WHERE session_uuid = ?`, res.SessionID).Scan(&id)
	switch {
	case err == nil:
		return id, tx.Commit()
	case !errors.Is(err, sql.ErrNoRows):
		return 0, err
	}

	inserted, err := tx.ExecContext(ctx,
		`INSERT INTO results (session_uuid, started_at, finished_at, mode_kind, mode_value, lang, wpm, raw_wpm, accuracy, consistency, char_count, error_count, duration_ns)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.SessionID,
		res.StartedAt.UnixNano(),
		res.FinishedAt.UnixNano(),
		res.Mode.Kind.String(),
		res.Mode.Value,
		res.Lang,
		res.WPM,
		res.RawWPM,
		res.Accuracy,
		res.Consistency,
		res.CharCount,
		res.ErrorCount,
		int64(res.Duration),
	)
	if err != nil {
		return 0, err
	}
	id, err = inserted.LastInsertId()
	if err != nil {
		return 0, err
	}

	if len(res.Series) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO samples (result_id, idx, elapsed_ns, wpm, raw_wpm, accuracy) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return 0, err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for i, sample := range res.Series {
			if _, err := stmt.ExecContext(ctx, id, i, int64(sample.Elapsed), sample.WPM, sample.RawWPM, sample.Accuracy); err != nil {
				return 0, err
			}
		}
	}

	if len(res.Chars) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO session_char_stats (result_id, char, correct, incorrect, latency_sum_ms, latency_count)
			 VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return 0, err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for _, cs := range res.Chars {
			if _, err := stmt.ExecContext(ctx, id, cs.Char, cs.Correct, cs.Incorrect, cs.LatencySumMs, cs.LatencyCount); err != nil {
				return 0, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

const resultColumns = `id, session_uuid, started_at, finished_at, mode_kind, mode_value, lang,
	wpm, raw_wpm, accuracy, consistency, char_count, error_count, duration_ns`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResult(row rowScanner) (model.Result, error) {
	var (
		res                   model.Result
		startedAt, finishedAt int64
		kind                  string
		duration              int64
	)
	if err := row.Scan(&res.ID, &res.SessionID, &startedAt, &finishedAt, &kind, &res.Mode.Value, &res.Lang,
		&res.WPM, &res.RawWPM, &res.Accuracy, &res.Consistency, &res.CharCount, &res.ErrorCount, &duration); err != nil {
		return model.Result{}, err
	}
	k, err := model.ParseModeKind(kind)
	if err != nil {
		return model.Result{}, err
	}
	res.Mode.Kind = k
	res.StartedAt = time.Unix(0, startedAt)
	res.FinishedAt = time.Unix(0, finishedAt)
	res.Duration = time.Duration(duration)
	return res, nil
}

func (s *Store) queryResults(ctx context.Context, query string, args ...any) ([]model.Result, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var results []model.Result
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// Get returns one result with its series and per-character stats.
func (s *Store) Get(ctx context.Context, id int64) (model.Result, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+resultColumns+` FROM results WHERE id = ?`, id)
	res, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Result{}, ErrNotFound
	}
	if err != nil {
		return model.Result{}, fmt.Errorf("failed to load result %d: %w", id, err)
	}
	if res.Series, err = s.loadSeries(ctx, id); err != nil {
		return model.Result{}, err
	}
	if res.Chars, err = s.loadChars(ctx, id); err != nil {
		return model.Result{}, err
	}
	return res, nil
}

func (s *Store) loadSeries(ctx context.Context, id int64) ([]model.Sample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT elapsed_ns, wpm, raw_wpm, accuracy FROM samples WHERE result_id = ? ORDER BY idx ASC`, id)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var series []model.Sample
	for rows.Next() {
		var sample model.Sample
		var elapsed int64
		if err := rows.Scan(&elapsed, &sample.WPM, &sample.RawWPM, &sample.Accuracy); err != nil {
			return nil, err
		}
		sample.Elapsed = time.Duration(elapsed)
		series = append(series, sample)
	}
	return series, rows.Err()
}

func (s *Store) loadChars(ctx context.Context, id int64) ([]model.CharStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT char, correct, incorrect, latency_sum_ms, latency_count
		 FROM session_char_stats WHERE result_id = ? ORDER BY char ASC`, id)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var chars []model.CharStats
	for rows.Next() {
		var cs model.CharStats
		if err := rows.Scan(&cs.Char, &cs.Correct, &cs.Incorrect, &cs.LatencySumMs, &cs.LatencyCount); err != nil {
			return nil, err
		}
		chars = append(chars, cs)
	}
	return chars, rows.Err()
}

// Delete removes a result together with its series and character stats.
func (s *Store) Delete(ctx context.Context, id int64) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	deleted, err := tx.ExecContext(ctx, `DELETE FROM results WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := deleted.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		err = ErrNotFound
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM samples WHERE result_id = ?`, id); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM session_char_stats WHERE result_id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// ListHistory returns one page of results, newest first. The first call
// (AsOf zero) pins the snapshot to the newest id; passing the returned AsOf
// back keeps later pages stable while new results are saved. Ids are never
// reused, so results saved after the snapshot are excluded.
func (s *Store) ListHistory(ctx context.Context, q model.HistoryQuery) (model.HistoryPage, error) {
	if q.Page < 0 {
		return model.HistoryPage{}, fmt.Errorf("invalid page %d", q.Page)
	}
	size := q.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	asOf := q.AsOf
	if asOf <= 0 {
		if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM results`).Scan(&asOf); err != nil {
			return model.HistoryPage{}, err
		}
	}
	page := model.HistoryPage{Page: q.Page, AsOf: asOf}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM results WHERE id <= ?`, asOf).Scan(&page.Total); err != nil {
		return model.HistoryPage{}, err
	}
	records, err := s.queryResults(ctx,
		`SELECT `+resultColumns+` FROM results
		 WHERE id <= ?
		 ORDER BY finished_at DESC, id DESC
		 LIMIT ? OFFSET ?`, asOf, size, q.Page*size)
	if err != nil {
		return model.HistoryPage{}, err
	}
	page.Records = records
	return page, nil
}

// Leaderboard returns the best results recorded with exactly the given mode:
// highest WPM first, ties broken by higher accuracy, then by the earlier
// finish, then by the lower id.
func (s *Store) Leaderboard(ctx context.Context, mode model.Mode, limit int) ([]model.Result, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	return s.queryResults(ctx,
		`SELECT `+resultColumns+` FROM results
		 WHERE mode_kind = ? AND mode_value = ?
		 ORDER BY wpm DESC, accuracy DESC, finished_at ASC, id ASC
		 LIMIT ?`, mode.Kind.String(), mode.Value, limit)
}

// ListResults returns results filtered by stats config, oldest first.
func (s *Store) ListResults(ctx context.Context, cfg model.StatsConfig) ([]model.Result, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.Lang != "" {
		clauses = append(clauses, "lang = ?")
		args = append(args, cfg.Lang)
	}
	if cfg.Mode != nil {
		clauses = append(clauses, "mode_kind = ? AND mode_value = ?")
		args = append(args, cfg.Mode.Kind.String(), cfg.Mode.Value)
	}
	if cfg.Since != nil {
		clauses = append(clauses, "finished_at >= ?")
		args = append(args, cfg.Since.UnixNano())
	}
	query := fmt.Sprintf(`SELECT %s FROM results
		WHERE %s
		ORDER BY finished_at ASC, id ASC`, resultColumns, strings.Join(clauses, " AND "))
	return s.queryResults(ctx, query, args...)
}

// GetWeakChars aggregates character stats over the most recent results.
func (s *Store) GetWeakChars(ctx context.Context, window int, lang string) ([]model.CharAggregate, error) {
	if window <= 0 {
		return nil, nil
	}
	query := `WITH recent_results AS (
		SELECT id FROM results
		WHERE (? = '' OR lang = ?)
		ORDER BY finished_at DESC, id DESC
		LIMIT ?
	)
	SELECT cs.char, SUM(cs.correct) AS correct, SUM(cs.incorrect) AS incorrect,
		SUM(cs.latency_sum_ms) AS latency_sum_ms, SUM(cs.latency_count) AS latency_count
	FROM session_char_stats cs
	JOIN recent_results r ON r.id = cs.result_id
	GROUP BY cs.char
	ORDER BY cs.char`

	rows, err := s.db.QueryContext(ctx, query, lang, lang, window)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.CharAggregate
	for rows.Next() {
		var agg model.CharAggregate
		if err := rows.Scan(&agg.Char, &agg.Correct, &agg.Incorrect, &agg.LatencySumMs, &agg.LatencyCount); err != nil {
			return nil, err
		}
		result = append(result, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Stats holds all-time totals for a mode.
type Stats struct {
	Tests   int
	BestWPM float64
	AvgWPM  float64
}

// ModeStats returns totals over every result recorded with the given mode.
func (s *Store) ModeStats(ctx context.Context, mode model.Mode) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(MAX(wpm), 0), COALESCE(AVG(wpm), 0)
		 FROM results WHERE mode_kind = ? AND mode_value = ?`,
		mode.Kind.String(), mode.Value).Scan(&st.Tests, &st.BestWPM, &st.AvgWPM)
	return st, err
}
