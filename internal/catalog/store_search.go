package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// SearchParams selects entries through the hybrid search.
type SearchParams struct {
	Text          string
	Limit         int64
	Offset        int64
	TagOnly       bool
	DuplicateOnly bool
}

// SearchResult carries the merged result list and the approximate total.
// ApproxTotal sums the per-phase match counts; an entry that could match both
// phases is counted twice even though the merged list holds it once. Callers
// paginate against this knowingly inflated figure.
type SearchResult struct {
	Entries     []Entry
	ApproxTotal int64
}

// Search runs the two-phase hybrid search over live entries.
//
// Phase one matches Text as a case-insensitive substring of the display name
// or the provider model name (skipped when TagOnly). Phase two folds Text into
// whitespace-separated tokens and selects entries carrying every token as a
// tag, excluding entries the name predicate already matched. Each phase is
// ordered newest first and paginated independently with Limit/Offset; the
// merged list preserves phase-one-first order and drops duplicate ids.
func (s *Store) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	result := &SearchResult{}
	seen := make(map[int64]struct{})
	merge := func(entries []Entry) {
		for _, entry := range entries {
			if _, ok := seen[entry.ID]; ok {
				continue
			}
			seen[entry.ID] = struct{}{}
			result.Entries = append(result.Entries, entry)
		}
	}

	pattern := "%" + params.Text + "%"

	if !params.TagOnly {
		entries, total, err := s.searchByName(ctx, pattern, params.DuplicateOnly, limit, offset)
		if err != nil {
			return nil, err
		}
		merge(entries)
		result.ApproxTotal += total
	}

	tokens := foldTokens(params.Text)
	if len(tokens) > 0 {
		entries, total, err := s.searchByTags(ctx, tokens, pattern, !params.TagOnly, params.DuplicateOnly, limit, offset)
		if err != nil {
			return nil, err
		}
		merge(entries)
		result.ApproxTotal += total
	}

	return result, nil
}

func (s *Store) searchByName(ctx context.Context, pattern string, duplicateOnly bool, limit, offset int64) ([]Entry, int64, error) {
	where := ` WHERE is_live = 1
        AND (name COLLATE NOCASE LIKE ? OR model_name COLLATE NOCASE LIKE ?)`
	if duplicateOnly {
		where += duplicateCondition("content_hash")
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+entryColumns+` FROM entries`+where+` ORDER BY updated_at DESC LIMIT ? OFFSET ?`,
		pattern, pattern, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("search by name: %w", err)
	}
	entries, err := collectEntries(rows)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(id) FROM entries`+where,
		pattern, pattern,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count by name: %w", err)
	}
	return entries, total, nil
}

func (s *Store) searchByTags(ctx context.Context, tokens []string, pattern string, excludeNameMatches, duplicateOnly bool, limit, offset int64) ([]Entry, int64, error) {
	args := make([]any, 0, len(tokens)+4)
	for _, token := range tokens {
		args = append(args, token)
	}

	where := ` WHERE e.is_live = 1
        AND t.name IN (` + makePlaceholders(len(tokens)) + `)`
	if excludeNameMatches {
		where += `
        AND NOT (e.name COLLATE NOCASE LIKE ? OR e.model_name COLLATE NOCASE LIKE ?)`
		args = append(args, pattern, pattern)
	}
	if duplicateOnly {
		where += duplicateCondition("e.content_hash")
	}

	base := ` FROM entries e
        JOIN entry_tags et ON et.entry_id = e.id
        JOIN tags t ON t.id = et.tag_id` + where + `
        GROUP BY e.id
        HAVING COUNT(DISTINCT t.id) = ?`
	args = append(args, len(tokens))

	queryArgs := append(append([]any{}, args...), limit, offset)
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+entryColumnsQualified+base+` ORDER BY e.updated_at DESC LIMIT ? OFFSET ?`,
		queryArgs...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("search by tags: %w", err)
	}
	entries, err := collectEntries(rows)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM (SELECT e.id`+base+`)`,
		args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count by tags: %w", err)
	}
	return entries, total, nil
}

// duplicateCondition restricts column to content hashes occurring in more than
// one live entry. Computed per query, never cached.
func duplicateCondition(column string) string {
	return `
        AND ` + column + ` IN (
            SELECT content_hash FROM entries
            WHERE is_live = 1
            GROUP BY content_hash
            HAVING COUNT(*) > 1
        )`
}

// foldTokens splits text on whitespace into case-folded distinct tokens.
func foldTokens(text string) []string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}
	folder := cases.Fold()
	seen := make(map[string]struct{}, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		token := folder.String(field)
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		tokens = append(tokens, token)
	}
	return tokens
}

func collectEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}
