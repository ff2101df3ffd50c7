// Package tracker is the hit classification and counter aggregation
// engine.
//
// One Tracker.Handle call per inbound page view: the exclusion pipeline
// classifies the request, and admitted hits update the visit, visitor,
// page and online-presence counters through race-safe upserts. Counters
// are independent aggregates; a failing update never rolls back or blocks
// its siblings.
//
// Usage:
//
//	t, err := tracker.New(cfg, tracker.WithLogger(logger))
//	defer t.Close()
//	t.Start(ctx)                       // online sweep + hostname refresh
//	res := t.Handle(ctx, requestCtx)   // once per page view
package tracker

import (
	"context"
	"log/slog"
	"time"

	"github.com/hazyhaar/statkeeper/tracker/internal/dedup"
	"github.com/hazyhaar/statkeeper/tracker/internal/exclusion"
	"github.com/hazyhaar/statkeeper/tracker/internal/referrer"
	"github.com/hazyhaar/statkeeper/tracker/internal/store"
)

// Tracker is the top-level hit orchestrator.
type Tracker struct {
	cfg      *Config
	store    *store.Store
	pipeline *exclusion.Pipeline
	hosts    *exclusion.HostCache
	keys     *dedup.Builder
	geo      Locator
	logger   *slog.Logger
}

type options struct {
	logger  *slog.Logger
	geo     Locator
	matcher exclusion.CrawlerMatcher
	lookup  exclusion.LookupFunc
}

// Option customises Tracker construction.
type Option func(*options)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithGeoLocator injects the GeoIP lookup. Default: the prefix locator
// built from cfg.Geo, or NullLocator when cfg.Geo is empty.
func WithGeoLocator(l Locator) Option {
	return func(o *options) { o.geo = l }
}

// WithCrawlerMatcher injects the crawler-signature database. Default: the
// built-in token matcher.
func WithCrawlerMatcher(m exclusion.CrawlerMatcher) Option {
	return func(o *options) { o.matcher = m }
}

// WithHostLookup injects the hostname resolver used for the
// excluded-hostname rule. Default: the system resolver.
func WithHostLookup(fn exclusion.LookupFunc) Option {
	return func(o *options) { o.lookup = fn }
}

// New opens the counter database and builds the exclusion pipeline.
func New(cfg *Config, opts ...Option) (*Tracker, error) {
	cfg.defaults()

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.geo == nil {
		if len(cfg.Geo) > 0 {
			o.geo = NewPrefixLocator(cfg.Geo)
		} else {
			o.geo = NullLocator{}
		}
	}
	if o.matcher == nil {
		o.matcher = exclusion.NewTokenMatcher()
	}

	t := &Tracker{cfg: cfg, logger: o.logger, geo: o.geo}

	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	t.store = s

	classifier := exclusion.NewClassifier(o.matcher, cfg.Exclusions.RobotList)
	t.hosts = exclusion.NewHostCache(cfg.Exclusions.ExcludedHosts, o.lookup, time.Hour, t.logger)
	t.pipeline = exclusion.New(t.pipelineOptions(), classifier, t.hosts)

	t.keys = &dedup.Builder{
		HashIPs: cfg.Privacy.HashIPs,
		Salt:    cfg.Privacy.Salt,
		Offset:  cfg.Privacy.UTCOffset,
	}
	return t, nil
}

func (t *Tracker) pipelineOptions() *exclusion.Options {
	e := t.cfg.Exclusions
	return &exclusion.Options{
		CheckCorruptAgent:   e.CorruptAgent,
		CheckBrokenLinks:    e.BrokenLinks,
		ExcludeLoginPage:    e.LoginPage,
		ExcludeAdminPage:    e.AdminPage,
		ExcludeReferrerSpam: e.ReferrerSpam,
		ExcludeFeeds:        e.Feeds,
		Exclude404:          e.NotFound,
		SelfAgent:           exclusion.SelfAgent(t.cfg.Platform, t.cfg.PlatformVersion, t.cfg.HomeURL),
		LoginURL:            t.cfg.LoginURL,
		AdminPath:           t.cfg.AdminPath,
		ExcludedIPs:         e.ExcludedIPs,
		ReferrerSpam:        e.ReferrerSpamList,
		ExcludedURLs:        e.ExcludedURLs,
		ExcludedRoles:       e.ExcludedRoles,
		ExcludedHosts:       e.ExcludedHosts,
	}
}

// Start launches the online-presence sweeper and the hostname cache
// reloader. Both stop when ctx is cancelled.
func (t *Tracker) Start(ctx context.Context) {
	t.hosts.StartReloader(ctx.Done())
	go func() {
		tick := time.NewTicker(t.cfg.Online.SweepInterval)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				n, err := t.store.SweepStale(ctx, time.Now(), t.cfg.Online.Window)
				if err != nil {
					t.logger.Warn("online sweep failed", "error", err)
				} else if n > 0 {
					t.logger.Debug("online sweep", "removed", n)
				}
			}
		}
	}()
}

// Close closes the counter database.
func (t *Tracker) Close() error {
	return t.store.Close()
}

// OnlineCount returns the number of actors seen within the liveness
// window.
func (t *Tracker) OnlineCount(ctx context.Context) (int64, error) {
	return t.store.OnlineCount(ctx, time.Now(), t.cfg.Online.Window)
}

// Handle classifies one page view and updates the counters exactly once.
// It never returns an error: counter failures degrade to "this aspect was
// not counted" and are logged, so page rendering is never blocked.
func (t *Tracker) Handle(ctx context.Context, rc *RequestContext) HandleResult {
	if rc.Timestamp.IsZero() {
		rc.Timestamp = time.Now()
	}
	sniffAgent(rc)

	verdict := t.pipeline.Evaluate(ctx, &exclusion.Request{
		IP:        rc.IP,
		UserAgent: rc.UserAgent,
		Referrer:  rc.Referrer,
		URL:       rc.URL,
		Path:      rc.Path,
		Status:    rc.Status,
		UserRole:  rc.UserRole,
		Ajax:      rc.Ajax,
		Cron:      rc.Cron,
		Feed:      rc.Feed,
	})

	bucket := t.keys.Bucket(rc.Timestamp)
	if verdict.Matched {
		t.recordExclusion(ctx, bucket, verdict.Reason)
		return HandleResult{Excluded: true, Reason: string(verdict.Reason)}
	}

	// Admitted. Honeypot pages are intentionally still recorded as
	// visitors so the trapped actor can be identified.
	reason := exclusion.ReasonNone
	honeypotPage := t.cfg.Exclusions.HoneypotPageID != 0 &&
		rc.Page.ID == t.cfg.Exclusions.HoneypotPageID
	if honeypotPage {
		reason = exclusion.ReasonHoneypot
	}

	actor := dedup.Actor{
		IP:       rc.IP,
		Agent:    rc.Agent,
		Platform: rc.Platform,
		Version:  rc.Version,
	}

	if t.cfg.Tracking.Visitors {
		res, err := t.store.BumpVisitor(ctx, bucket, t.keys.VisitorKey(actor), t.visitorAttrs(rc, honeypotPage))
		switch {
		case err != nil:
			t.logger.Warn("visitor update failed", "error", err)
		case reason != exclusion.ReasonNone:
			// honeypot page: visitor row written, hit stays excluded
		case t.cfg.Exclusions.RobotThreshold > 0 && !res.IsNew &&
			res.PriorHits+1 > t.cfg.Exclusions.RobotThreshold:
			// Late-discovered robot: the visitor row was already
			// touched, but it must not pollute the other counters.
			reason = exclusion.ReasonRobotThreshold
		case res.Honeypot:
			reason = exclusion.ReasonHoneypot
		}
	}

	if reason != exclusion.ReasonNone {
		t.recordExclusion(ctx, bucket, reason)
		if t.cfg.Tracking.OnlineUsers && t.cfg.Tracking.AlwaysOnline {
			t.upsertOnline(ctx, rc, actor)
		}
		return HandleResult{Excluded: true, Reason: string(reason)}
	}

	if ctx.Err() != nil {
		// Deadline hit mid-flight: abandon the remaining updates, keep
		// what was already applied.
		return HandleResult{}
	}

	if t.cfg.Tracking.Visits {
		if err := t.store.BumpVisit(ctx, bucket, rc.Timestamp, t.cfg.Tracking.Coefficient); err != nil {
			t.logger.Warn("visit update failed", "error", err)
		}
	}
	if t.cfg.Tracking.Pages && t.trackablePage(rc.Page) {
		uri := ""
		if rc.Page.Type == PageTypeSearch {
			uri = rc.Page.URI
		}
		if _, err := t.store.BumpPageHit(ctx, bucket, rc.Page.Type, rc.Page.ID, uri); err != nil {
			t.logger.Warn("page update failed", "error", err)
		}
	}
	if t.cfg.Tracking.OnlineUsers {
		t.upsertOnline(ctx, rc, actor)
	}
	return HandleResult{}
}

func (t *Tracker) trackablePage(p Page) bool {
	if t.cfg.Tracking.AllPages {
		return true
	}
	switch p.Type {
	case PageTypePost, PageTypePage, PageTypeHome:
		return true
	}
	return false
}

func (t *Tracker) visitorAttrs(rc *RequestContext, honeypot bool) store.VisitorAttrs {
	attrs := store.VisitorAttrs{
		Agent:    rc.Agent,
		Platform: rc.Platform,
		Version:  rc.Version,
		Location: t.geo.CountryCode(rc.IP),
		UserID:   rc.UserID,
		Honeypot: honeypot,
	}
	if t.cfg.Tracking.StoreUserAgent {
		attrs.UserAgent = rc.UserAgent
	}
	if rc.Referrer != "" {
		attrs.Referred = rc.Referrer
		if sr := referrer.Identify(rc.Referrer); sr.Engine != "" {
			attrs.SearchEngine = sr.Engine
			attrs.SearchWords = sr.Words
		}
	}
	return attrs
}

func (t *Tracker) upsertOnline(ctx context.Context, rc *RequestContext, actor dedup.Actor) {
	err := t.store.UpsertOnline(ctx, t.keys.OnlineKey(actor), rc.Timestamp, store.OnlineAttrs{
		Referred: rc.Referrer,
		PageType: rc.Page.Type,
		PageID:   rc.Page.ID,
		UserID:   rc.UserID,
		Location: t.geo.CountryCode(rc.IP),
	})
	if err != nil {
		t.logger.Warn("online update failed", "error", err)
	}
}

func (t *Tracker) recordExclusion(ctx context.Context, bucket string, reason exclusion.Reason) {
	if !t.cfg.Exclusions.Record {
		return
	}
	if err := t.store.RecordExclusion(ctx, bucket, string(reason)); err != nil {
		t.logger.Warn("exclusion record failed", "error", err, "reason", reason)
	}
}
