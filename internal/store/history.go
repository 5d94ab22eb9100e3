package store

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"time"
)

// ErrBuildNotFound is returned by GetBuild for an unknown build id.
var ErrBuildNotFound = stderrors.New("build not found")

// BuildRecord is one row of the build history.
type BuildRecord struct {
	ID        string         `json:"id"`
	StartedAt time.Time      `json:"startedAt"`
	Duration  time.Duration  `json:"duration"`
	Status    string         `json:"status"`
	Policy    string         `json:"policy"`
	Documents int            `json:"documents"`
	Failures  int            `json:"failures"`
	CacheHits int            `json:"cacheHits"`
	Commit    string         `json:"commit,omitempty"`
	Counts    map[string]int `json:"counts,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// RecordBuild inserts rec, replacing an existing row with the same id.
func (s *SQLiteStore) RecordBuild(ctx context.Context, rec BuildRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var countsJSON []byte
	if rec.Counts != nil {
		var err error
		countsJSON, err = json.Marshal(rec.Counts)
		if err != nil {
			return storeError(err, "marshal counts")
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO builds
			(id, started_at, duration_ms, status, policy, documents, failures, cache_hits, commit_hash, counts, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.StartedAt.UnixMilli(), rec.Duration.Milliseconds(), rec.Status, rec.Policy,
		rec.Documents, rec.Failures, rec.CacheHits, rec.Commit, string(countsJSON), rec.Error,
	)
	if err != nil {
		return storeError(err, "insert build")
	}
	return nil
}

// ListBuilds returns the most recent builds first. limit <= 0 returns all.
func (s *SQLiteStore) ListBuilds(ctx context.Context, limit int) ([]BuildRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, duration_ms, status, policy, documents, failures, cache_hits, commit_hash, counts, error
		FROM builds ORDER BY started_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, storeError(err, "query builds")
	}
	defer rows.Close()

	var out []BuildRecord
	for rows.Next() {
		rec, err := scanBuild(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(err, "iterate rows")
	}
	return out, nil
}

// GetBuild returns the build with the given id.
func (s *SQLiteStore) GetBuild(ctx context.Context, id string) (BuildRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, duration_ms, status, policy, documents, failures, cache_hits, commit_hash, counts, error
		FROM builds WHERE id = ?`,
		id,
	)
	rec, err := scanBuild(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return BuildRecord{}, ErrBuildNotFound
	}
	return rec, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBuild(row scanner) (BuildRecord, error) {
	var (
		rec        BuildRecord
		startedMS  int64
		durationMS int64
		commit     sql.NullString
		counts     sql.NullString
		errText    sql.NullString
	)
	err := row.Scan(&rec.ID, &startedMS, &durationMS, &rec.Status, &rec.Policy,
		&rec.Documents, &rec.Failures, &rec.CacheHits, &commit, &counts, &errText)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, storeError(err, "scan build")
	}

	rec.StartedAt = time.UnixMilli(startedMS).UTC()
	rec.Duration = time.Duration(durationMS) * time.Millisecond
	rec.Commit = commit.String
	rec.Error = errText.String
	if counts.String != "" {
		if err := json.Unmarshal([]byte(counts.String), &rec.Counts); err != nil {
			return rec, storeError(err, "unmarshal counts")
		}
	}
	return rec, nil
}
