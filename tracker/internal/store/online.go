package store

import (
	"context"
	"time"
)

// OnlineAttrs is the presence payload refreshed on every admitted hit.
type OnlineAttrs struct {
	Referred string
	PageType string
	PageID   int64
	UserID   int64
	Location string
}

// UpsertOnline marks actorKey as present now, inserting the row on first
// sight and refreshing timestamp and page fields afterwards. created is
// preserved across updates.
func (s *Store) UpsertOnline(ctx context.Context, actorKey string, at time.Time, attrs OnlineAttrs) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO online (actor_key, timestamp, created, referred, page_type, page_id, user_id, location)
		VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT(actor_key) DO UPDATE SET
			timestamp = excluded.timestamp,
			referred = excluded.referred,
			page_type = excluded.page_type,
			page_id = excluded.page_id,
			user_id = excluded.user_id,
			location = excluded.location`,
		actorKey, at.Unix(), at.Unix(), attrs.Referred, attrs.PageType,
		attrs.PageID, attrs.UserID, attrs.Location,
	)
	return err
}

// SweepStale deletes presence rows not seen within maxAge and returns the
// number removed. Invoked by the sweep scheduler, never per request.
func (s *Store) SweepStale(ctx context.Context, now time.Time, maxAge time.Duration) (int64, error) {
	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM online WHERE timestamp < ?`,
		now.Add(-maxAge).Unix(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// OnlineCount returns the number of presence rows seen within maxAge.
func (s *Store) OnlineCount(ctx context.Context, now time.Time, maxAge time.Duration) (int64, error) {
	var n int64
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM online WHERE timestamp >= ?`,
		now.Add(-maxAge).Unix(),
	).Scan(&n)
	return n, err
}
