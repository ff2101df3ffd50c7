// Package dedup derives the time-bucketed identity keys that bound
// visitor and online-presence deduplication.
//
// A visitor is "the same actor" when its key matches within one day bucket.
// The key is either a salted hash of (IP, user agent) when privacy hashing
// is on, or the literal (IP, agent, platform, version) tuple otherwise.
// Online presence reuses the same key without a bucket.
package dedup

import (
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Builder derives actor keys and day buckets. The zero value produces
// unhashed keys in UTC.
type Builder struct {
	// HashIPs switches VisitorKey to the salted-hash scheme.
	HashIPs bool

	// Salt is mixed into hashed keys. Must stay stable for keys to stay
	// stable across requests.
	Salt string

	// Offset is the site timezone offset applied before bucketing, so
	// "today" follows the site clock rather than UTC.
	Offset time.Duration
}

// Actor is the raw identity material for one request.
type Actor struct {
	IP       string
	Agent    string
	Platform string
	Version  string
}

// VisitorKey returns the deduplication key for a. Combined with the day
// bucket it is the uniqueness boundary for "unique visitor today".
func (b *Builder) VisitorKey(a Actor) string {
	if b.HashIPs {
		sum := blake2b.Sum256([]byte(b.Salt + "\x00" + a.IP + "\x00" + a.Agent))
		return "#hash#" + hex.EncodeToString(sum[:])
	}
	return strings.Join([]string{a.IP, a.Agent, a.Platform, a.Version}, "|")
}

// OnlineKey returns the presence key for a. Online tracking is a sliding
// window, so the key carries no bucket.
func (b *Builder) OnlineKey(a Actor) string {
	return b.VisitorKey(a)
}

// Bucket returns the calendar-day bucket for now in the site timezone,
// formatted YYYY-MM-DD. All visits on one site-local day collapse to one
// counter row.
func (b *Builder) Bucket(now time.Time) string {
	return now.UTC().Add(b.Offset).Format("2006-01-02")
}
