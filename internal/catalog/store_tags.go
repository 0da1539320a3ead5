package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// foldTagName normalizes a tag for storage. Names are case-folded on write so
// the tag-intersection search compares plain equality against folded tokens.
func foldTagName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// EnsureTag returns the id of the named tag, creating it if necessary.
func (s *Store) EnsureTag(ctx context.Context, name string) (int64, error) {
	folded := foldTagName(name)
	if folded == "" {
		return 0, fmt.Errorf("ensure tag: empty name")
	}

	row := s.db.QueryRowContext(
		ctx,
		`INSERT INTO tags (name) VALUES (?)
         ON CONFLICT (name) DO UPDATE SET name = excluded.name
         RETURNING id`,
		folded,
	)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("ensure tag %q: %w", folded, err)
	}
	return id, nil
}

// ReplaceTags sets the full tag list for one entry, discarding previous
// associations. Empty and duplicate names are dropped after folding.
func (s *Store) ReplaceTags(ctx context.Context, entryID int64, names []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace tags: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entry_tags WHERE entry_id = ?`, entryID); err != nil {
		return fmt.Errorf("clear entry tags: %w", err)
	}

	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		folded := foldTagName(name)
		if folded == "" {
			continue
		}
		if _, ok := seen[folded]; ok {
			continue
		}
		seen[folded] = struct{}{}

		row := tx.QueryRowContext(
			ctx,
			`INSERT INTO tags (name) VALUES (?)
             ON CONFLICT (name) DO UPDATE SET name = excluded.name
             RETURNING id`,
			folded,
		)
		var tagID int64
		if err := row.Scan(&tagID); err != nil {
			return fmt.Errorf("ensure tag %q: %w", folded, err)
		}

		if _, err := tx.ExecContext(
			ctx,
			`INSERT OR IGNORE INTO entry_tags (entry_id, tag_id) VALUES (?, ?)`,
			entryID, tagID,
		); err != nil {
			return fmt.Errorf("associate tag %q: %w", folded, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace tags: %w", err)
	}
	return nil
}

// EntryTags returns the tag names attached to one entry in sorted order.
func (s *Store) EntryTags(ctx context.Context, entryID int64) ([]string, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT t.name FROM tags t
         JOIN entry_tags et ON et.tag_id = t.id
         WHERE et.entry_id = ?
         ORDER BY t.name`,
		entryID,
	)
	if err != nil {
		return nil, fmt.Errorf("entry tags: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan tag name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	return names, nil
}

// TagsForEntries aggregates tag usage across the given entries, most used
// first. Drives the tag sidebar rendered next to search results.
func (s *Store) TagsForEntries(ctx context.Context, entryIDs []int64) ([]TagCount, error) {
	if len(entryIDs) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(entryIDs))
	for _, id := range entryIDs {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT t.name, COUNT(et.entry_id) FROM tags t
         JOIN entry_tags et ON et.tag_id = t.id
         WHERE et.entry_id IN (`+makePlaceholders(len(entryIDs))+`)
         GROUP BY t.id
         ORDER BY COUNT(et.entry_id) DESC, t.name`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("tags for entries: %w", err)
	}
	defer rows.Close()

	return collectTagCounts(rows)
}

// ListTags returns every tag with its use count, most used first.
func (s *Store) ListTags(ctx context.Context) ([]TagCount, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT t.name, COUNT(et.entry_id) FROM tags t
         LEFT JOIN entry_tags et ON et.tag_id = t.id
         GROUP BY t.id
         ORDER BY COUNT(et.entry_id) DESC, t.name`,
	)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	return collectTagCounts(rows)
}

func collectTagCounts(rows *sql.Rows) ([]TagCount, error) {
	var counts []TagCount
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.Name, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan tag count: %w", err)
		}
		counts = append(counts, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tag counts: %w", err)
	}
	return counts, nil
}
