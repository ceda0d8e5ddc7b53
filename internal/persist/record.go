package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Get when no record exists under the key,
// or when the record is older than the caller's TTL. Stale records are
// reported as absent but left in place - a later fetch failure may still
// fall back to them via GetStale.
var ErrNotFound = errors.New("record not found")

// Record is one durable snapshot with its write metadata.
type Record struct {
	Key       string
	Value     []byte
	WrittenAt time.Time
	Marker    string
}

// Put stores value under key with the current timestamp and an optional
// revalidation marker. An existing record under the same key is replaced.
func (s *Store) Put(ctx context.Context, key string, value []byte, marker string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO records (key, value, written_at, marker)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			written_at = excluded.written_at,
			marker = excluded.marker
	`, key, string(value), time.Now().UnixMilli(), marker)
	if err != nil {
		return fmt.Errorf("put record %q: %w", key, err)
	}
	return nil
}

// Get returns the record under key if it was written within ttl of now.
// A missing record and a stale record both return ErrNotFound; staleness
// does not delete the row.
func (s *Store) Get(ctx context.Context, key string, ttl time.Duration) (Record, error) {
	rec, err := s.GetStale(ctx, key)
	if err != nil {
		return Record{}, err
	}
	if time.Since(rec.WrittenAt) > ttl {
		return Record{}, fmt.Errorf("record %q older than ttl %s: %w", key, ttl, ErrNotFound)
	}
	return rec, nil
}

// GetStale returns the record under key regardless of age.
// Used as the fallback path when a fresh copy cannot be fetched.
func (s *Store) GetStale(ctx context.Context, key string) (Record, error) {
	var (
		value     string
		writtenAt int64
		marker    string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT value, written_at, marker FROM records WHERE key = ?
	`, key).Scan(&value, &writtenAt, &marker)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("record %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get record %q: %w", key, err)
	}

	return Record{
		Key:       key,
		Value:     []byte(value),
		WrittenAt: time.UnixMilli(writtenAt),
		Marker:    marker,
	}, nil
}

// Age returns how long ago the record under key was written.
// Returns ErrNotFound if no record exists.
func (s *Store) Age(ctx context.Context, key string) (time.Duration, error) {
	rec, err := s.GetStale(ctx, key)
	if err != nil {
		return 0, err
	}
	return time.Since(rec.WrittenAt), nil
}

// Marker returns the revalidation marker of the record under key, or ""
// when no record exists.
func (s *Store) Marker(ctx context.Context, key string) string {
	rec, err := s.GetStale(ctx, key)
	if err != nil {
		return ""
	}
	return rec.Marker
}

// Touch refreshes the write timestamp of an existing record without
// changing its value, extending its freshness window. Used after a
// conditional fetch revalidates the cached copy (HTTP 304).
//
// Returns false if no record exists under the key.
func (s *Store) Touch(ctx context.Context, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE records SET written_at = ? WHERE key = ?
	`, time.Now().UnixMilli(), key)
	if err != nil {
		return false, fmt.Errorf("touch record %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("touch record %q: %w", key, err)
	}
	return n > 0, nil
}

// Delete removes the record under key. Deleting a missing key is a no-op.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete record %q: %w", key, err)
	}
	return nil
}

// backdate rewinds a record's write timestamp by d. Used for testing
// TTL expiry without sleeping.
func (s *Store) backdate(ctx context.Context, key string, d time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE records SET written_at = written_at - ? WHERE key = ?
	`, d.Milliseconds(), key)
	return err
}
