package store

import (
	"context"
	"time"
)

// BumpVisit adds coefficient to the visit total for bucket, creating the
// day row when absent. Single atomic statement; two requests racing on a
// fresh bucket cannot lose an update.
func (s *Store) BumpVisit(ctx context.Context, bucket string, at time.Time, coefficient int64) error {
	if coefficient <= 0 {
		coefficient = 1
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO visits (last_counter, last_visit, visit)
		VALUES (?,?,?)
		ON CONFLICT(last_counter) DO UPDATE SET
			visit = visit + excluded.visit,
			last_visit = excluded.last_visit`,
		bucket, at.Unix(), coefficient,
	)
	return err
}

// VisitorAttrs is the descriptive payload stored on first sight of an
// actor within a day bucket. Subsequent hits only bump the counter.
type VisitorAttrs struct {
	Referred     string
	Agent        string
	Platform     string
	Version      string
	UserAgent    string // full UA string, stored only when configured
	Location     string // ISO country code, "000" when unknown
	SearchEngine string
	SearchWords  string
	UserID       int64
	Honeypot     bool
}

// VisitorResult reports the post-increment state of the visitor row. The
// caller compares PriorHits against the robot threshold; that decision
// needs configuration this layer does not have.
type VisitorResult struct {
	VisitorID int64
	IsNew     bool
	PriorHits int64
	Honeypot  bool // persisted trap flag, set on this or any earlier hit
}

// BumpVisitor inserts the (bucket, actorKey) row with hits=1 or atomically
// increments the existing one. A duplicate-key race on simultaneous
// inserts resolves to "someone else won": both callers land on the same
// row and each contributes exactly one hit.
func (s *Store) BumpVisitor(ctx context.Context, bucket, actorKey string, attrs VisitorAttrs) (VisitorResult, error) {
	honeypot := 0
	if attrs.Honeypot {
		honeypot = 1
	}
	var (
		res  VisitorResult
		hits int64
		trap int
	)
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO visitors (
			last_counter, actor_key, referred, agent, platform, version,
			user_agent, location, search_engine, search_words, user_id,
			hits, honeypot
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,1,?)
		ON CONFLICT(last_counter, actor_key) DO UPDATE SET
			hits = hits + 1,
			honeypot = MAX(honeypot, excluded.honeypot)
		RETURNING id, hits, honeypot`,
		bucket, actorKey, attrs.Referred, attrs.Agent, attrs.Platform,
		attrs.Version, attrs.UserAgent, attrs.Location, attrs.SearchEngine,
		attrs.SearchWords, attrs.UserID, honeypot,
	).Scan(&res.VisitorID, &hits, &trap)
	if err != nil {
		return VisitorResult{}, err
	}
	res.IsNew = hits == 1
	res.PriorHits = hits - 1
	res.Honeypot = trap != 0
	return res, nil
}

// BumpPageHit adds one hit to the page identified by (bucket, pageType,
// pageID, uri) and returns the page row id. uri is only set for search
// pages, where distinct queries must not collapse into one row.
func (s *Store) BumpPageHit(ctx context.Context, bucket, pageType string, pageID int64, uri string) (int64, error) {
	var rowID int64
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO pages (date, page_type, page_id, uri, count)
		VALUES (?,?,?,?,1)
		ON CONFLICT(date, page_type, page_id, uri) DO UPDATE SET
			count = count + 1
		RETURNING id`,
		bucket, pageType, pageID, uri,
	).Scan(&rowID)
	if err != nil {
		return 0, err
	}
	return rowID, nil
}

// RecordExclusion adds one to the (bucket, reason) exclusion counter.
func (s *Store) RecordExclusion(ctx context.Context, bucket, reason string) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO exclusions (date, reason, count)
		VALUES (?,?,1)
		ON CONFLICT(date, reason) DO UPDATE SET
			count = count + 1`,
		bucket, reason,
	)
	return err
}
