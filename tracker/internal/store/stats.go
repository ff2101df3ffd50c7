package store

import (
	"context"
	"database/sql"
	"errors"
)

// VisitTotal returns the visit count for a day bucket, zero when the day
// has no row yet.
func (s *Store) VisitTotal(ctx context.Context, bucket string) (int64, error) {
	var n int64
	err := s.DB.QueryRowContext(ctx,
		`SELECT visit FROM visits WHERE last_counter = ?`, bucket).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return n, err
}

// Visitor returns the visitor row for (bucket, actorKey), or nil when the
// actor has not been seen that day.
func (s *Store) Visitor(ctx context.Context, bucket, actorKey string) (*VisitorRow, error) {
	row := &VisitorRow{}
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, hits, honeypot, location, referred, search_engine, search_words
		FROM visitors WHERE last_counter = ? AND actor_key = ?`,
		bucket, actorKey).Scan(
		&row.ID, &row.Hits, &row.Honeypot, &row.Location,
		&row.Referred, &row.SearchEngine, &row.SearchWords,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

// VisitorRow is the read-side projection of one visitors row.
type VisitorRow struct {
	ID           int64
	Hits         int64
	Honeypot     int
	Location     string
	Referred     string
	SearchEngine string
	SearchWords  string
}

// VisitorCount returns the number of distinct visitor rows in a bucket.
func (s *Store) VisitorCount(ctx context.Context, bucket string) (int64, error) {
	var n int64
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM visitors WHERE last_counter = ?`, bucket).Scan(&n)
	return n, err
}

// PageCount returns the accumulated hit count for one page identity, zero
// when the page has no row.
func (s *Store) PageCount(ctx context.Context, bucket, pageType string, pageID int64, uri string) (int64, error) {
	var n int64
	err := s.DB.QueryRowContext(ctx, `
		SELECT count FROM pages
		WHERE date = ? AND page_type = ? AND page_id = ? AND uri = ?`,
		bucket, pageType, pageID, uri).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return n, err
}

// PageRowCount returns the number of page rows in a bucket.
func (s *Store) PageRowCount(ctx context.Context, bucket string) (int64, error) {
	var n int64
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pages WHERE date = ?`, bucket).Scan(&n)
	return n, err
}

// ExclusionCount returns the exclusion counter for (bucket, reason), zero
// when nothing was recorded.
func (s *Store) ExclusionCount(ctx context.Context, bucket, reason string) (int64, error) {
	var n int64
	err := s.DB.QueryRowContext(ctx,
		`SELECT count FROM exclusions WHERE date = ? AND reason = ?`,
		bucket, reason).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return n, err
}
