// Package clientdata provides the persistent cache for upstream source payloads.
// Entries are keyed by (entity, field set, period) and stored as msgpack blobs
// with their fetch time and source id; freshness is decided at read time.
package clientdata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/screener/internal/domain"
)

// Key identifies a cache entry
type Key struct {
	EntityID string
	FieldSet domain.FieldSet
	PeriodID string
}

// NewKey builds the key for fetching fs of entity at time now
func NewKey(entity domain.Entity, fs domain.FieldSet, now time.Time) Key {
	return Key{EntityID: entity.ID(), FieldSet: fs, PeriodID: fs.AsOfPeriod(now)}
}

// String renders the key as "entity|field-set|period"
func (k Key) String() string {
	return k.EntityID + "|" + string(k.FieldSet) + "|" + k.PeriodID
}

// Row is a stored cache row
type Row struct {
	Key       Key
	Payload   []byte
	FetchedAt time.Time
	SourceID  string
}

// Repository provides SQL access to the cache_entries table.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new cache repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Upsert stores a row, replacing any existing row with the same key.
func (r *Repository) Upsert(ctx context.Context, row Row) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO cache_entries (entity_id, field_set, period_id, payload, fetched_at, source_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`, row.Key.EntityID, string(row.Key.FieldSet), row.Key.PeriodID, row.Payload, row.FetchedAt.UnixMilli(), row.SourceID)
	if err != nil {
		return fmt.Errorf("failed to store cache entry %s: %w", row.Key, err)
	}
	return nil
}

// Find returns the row for key regardless of age, or nil if absent.
func (r *Repository) Find(ctx context.Context, key Key) (*Row, error) {
	var (
		payload   []byte
		fetchedAt int64
		sourceID  string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT payload, fetched_at, source_id FROM cache_entries
		WHERE entity_id = ? AND field_set = ? AND period_id = ?
	`, key.EntityID, string(key.FieldSet), key.PeriodID).Scan(&payload, &fetchedAt, &sourceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry %s: %w", key, err)
	}

	return &Row{
		Key:       key,
		Payload:   payload,
		FetchedAt: time.UnixMilli(fetchedAt),
		SourceID:  sourceID,
	}, nil
}

// Delete removes a single row.
func (r *Repository) Delete(ctx context.Context, key Key) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM cache_entries WHERE entity_id = ? AND field_set = ? AND period_id = ?
	`, key.EntityID, string(key.FieldSet), key.PeriodID)
	if err != nil {
		return fmt.Errorf("failed to delete cache entry %s: %w", key, err)
	}
	return nil
}

// DeleteFetchedBefore removes rows of a field set fetched before cutoff.
// Returns the number of rows deleted.
func (r *Repository) DeleteFetchedBefore(ctx context.Context, fs domain.FieldSet, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM cache_entries WHERE field_set = ? AND fetched_at < ?
	`, string(fs), cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale %s entries: %w", fs, err)
	}
	return result.RowsAffected()
}

// CountByFieldSet returns the number of stored rows per field set.
func (r *Repository) CountByFieldSet(ctx context.Context) (map[domain.FieldSet]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT field_set, COUNT(*) FROM cache_entries GROUP BY field_set`)
	if err != nil {
		return nil, fmt.Errorf("failed to count cache entries: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.FieldSet]int64)
	for rows.Next() {
		var (
			fs    string
			count int64
		)
		if err := rows.Scan(&fs, &count); err != nil {
			return nil, fmt.Errorf("failed to scan cache count: %w", err)
		}
		counts[domain.FieldSet(fs)] = count
	}
	return counts, rows.Err()
}
