package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"
)

// GetRendered returns the cached payload for key and refreshes its use time.
func (s *SQLiteStore) GetRendered(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var payload []byte
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM render_cache WHERE key = ?", key).Scan(&payload)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storeError(err, "query render cache")
	}

	if _, err := s.db.ExecContext(ctx, "UPDATE render_cache SET used_at = ? WHERE key = ?", time.Now().Unix(), key); err != nil {
		return nil, false, storeError(err, "touch render cache entry")
	}
	return payload, true, nil
}

// PutRendered stores payload under key.
func (s *SQLiteStore) PutRendered(ctx context.Context, key string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO render_cache (key, payload, used_at) VALUES (?, ?, ?)",
		key, payload, time.Now().Unix(),
	)
	if err != nil {
		return storeError(err, "insert render cache entry")
	}
	return nil
}

// PruneRendered drops entries last used before cutoff and reports how many were removed.
func (s *SQLiteStore) PruneRendered(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM render_cache WHERE used_at < ?", cutoff.Unix())
	if err != nil {
		return 0, storeError(err, "prune render cache")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storeError(err, "prune render cache")
	}
	return n, nil
}
