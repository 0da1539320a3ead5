package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// BeginScan clears the liveness flag on every currently-live entry. Run it
// before feeding a directory walk through Observe; entries not re-observed by
// the time Sweep runs are removed.
func (s *Store) BeginScan(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE entries SET is_live = 0 WHERE is_live = 1`); err != nil {
		return fmt.Errorf("begin scan: %w", err)
	}
	return nil
}

// Observe upserts one filesystem observation keyed by (path, base_label).
// A conflicting row is re-activated in place: liveness is asserted and name,
// content hash, and modified timestamp are overwritten. Returns the entry id.
func (s *Store) Observe(ctx context.Context, params ObserveParams) (int64, error) {
	row := s.db.QueryRowContext(
		ctx,
		`INSERT INTO entries (name, path, base_label, content_hash, is_live, updated_at)
         VALUES (?, ?, ?, ?, 1, ?)
         ON CONFLICT (path, base_label) DO UPDATE SET
             is_live = 1,
             name = excluded.name,
             content_hash = excluded.content_hash,
             updated_at = excluded.updated_at
         RETURNING id`,
		nullableString(params.Name),
		params.Path,
		params.BaseLabel,
		strings.ToLower(params.ContentHash),
		params.ModifiedAt,
	)

	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("observe entry: %w", err)
	}
	return id, nil
}

// Sweep permanently deletes every entry whose liveness flag is still false and
// returns the count removed. Run only after all observations for the cycle
// completed; an early sweep drops live entries that were not observed yet.
func (s *Store) Sweep(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE is_live = 0`)
	if err != nil {
		return 0, fmt.Errorf("sweep entries: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep rows affected: %w", err)
	}
	return removed, nil
}

// SoftDelete clears liveness for one entry and returns its relative path and
// base label so the caller can relocate the underlying files. Sibling rows
// sharing the content hash are untouched.
func (s *Store) SoftDelete(ctx context.Context, id int64) (string, string, error) {
	row := s.db.QueryRowContext(
		ctx,
		`UPDATE entries SET is_live = 0 WHERE id = ? RETURNING path, base_label`,
		id,
	)

	var path, baseLabel string
	if err := row.Scan(&path, &baseLabel); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", ErrNotFound
		}
		return "", "", fmt.Errorf("soft delete entry %d: %w", id, err)
	}
	return path, baseLabel, nil
}

// GetByID fetches an entry by identifier regardless of liveness.
func (s *Store) GetByID(ctx context.Context, id int64) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return entry, nil
}

// GetByHash fetches the most recently updated live entry with the given
// content hash.
func (s *Store) GetByHash(ctx context.Context, hash string) (*Entry, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+entryColumns+` FROM entries WHERE is_live = 1 AND content_hash = ? ORDER BY updated_at DESC LIMIT 1`,
		strings.ToLower(hash),
	)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry by hash: %w", err)
	}
	return entry, nil
}

// List returns live entries newest first plus the total live count.
func (s *Store) List(ctx context.Context, limit, offset int64) ([]Entry, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+entryColumns+` FROM entries WHERE is_live = 1 ORDER BY updated_at DESC LIMIT ? OFFSET ?`,
		limit,
		offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate entries: %w", err)
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(id) FROM entries WHERE is_live = 1`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count entries: %w", err)
	}
	return entries, total, nil
}

// UpdateNote replaces the free-text note on one entry.
func (s *Store) UpdateNote(ctx context.Context, id int64, note string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE entries SET note = ? WHERE id = ?`, note, id)
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update note rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetModelName records the provider-reported model name for one entry.
func (s *Store) SetModelName(ctx context.Context, id int64, modelName string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE entries SET model_name = ? WHERE id = ?`, modelName, id)
	if err != nil {
		return fmt.Errorf("set model name: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set model name rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats reports catalog counters for status surfaces.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(id) FROM entries`).Scan(&stats.TotalEntries); err != nil {
		return Stats{}, fmt.Errorf("count total entries: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(id) FROM entries WHERE is_live = 1`).Scan(&stats.LiveEntries); err != nil {
		return Stats{}, fmt.Errorf("count live entries: %w", err)
	}
	if err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM (
            SELECT content_hash FROM entries WHERE is_live = 1 GROUP BY content_hash HAVING COUNT(*) > 1
        )`,
	).Scan(&stats.DuplicateGroups); err != nil {
		return Stats{}, fmt.Errorf("count duplicate groups: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(id) FROM jobs WHERE state = ?`, JobRunning).Scan(&stats.RunningJobs); err != nil {
		return Stats{}, fmt.Errorf("count running jobs: %w", err)
	}
	return stats, nil
}
