package tracker

import "time"

// Page types the collector distinguishes. Visit counting only cares about
// whether a type is trackable; everything else is pass-through labelling.
const (
	PageTypePost     = "post"
	PageTypePage     = "page"
	PageTypeHome     = "home"
	PageTypeCategory = "category"
	PageTypeTag      = "tag"
	PageTypeAuthor   = "author"
	PageTypeSearch   = "search"
	PageTypeArchive  = "archive"
	PageTypeNotFound = "404"
	PageTypeUnknown  = "unknown"
)

// Page is the resolved identity of the content being served.
type Page struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
	URI  string `json:"uri"`
}

// Origin distinguishes hits observed directly from hits replayed
// out-of-band, e.g. reported after a cached page was served.
type Origin string

const (
	OriginDirect Origin = "direct"
	OriginReplay Origin = "replay"
)

// RequestContext is the ephemeral, per-hit view of an inbound request.
// Created at request entry and discarded once Handle returns; never
// persisted directly.
type RequestContext struct {
	IP        string
	UserAgent string
	Agent     string // browser family, sniffed from UserAgent when empty
	Platform  string // operating system family
	Version   string // browser version
	Referrer  string
	Timestamp time.Time
	URL       string
	Path      string
	Status    int
	Page      Page
	UserID    int64 // 0 for anonymous
	UserRole  string
	Origin    Origin
	Ajax      bool
	Cron      bool
	Feed      bool
}

// HandleResult is the orchestrator's verdict for one hit.
type HandleResult struct {
	Excluded bool   `json:"excluded"`
	Reason   string `json:"reason,omitempty"`
}
