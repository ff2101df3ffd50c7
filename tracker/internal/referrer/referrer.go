// Package referrer identifies search-engine referrals so visitor rows can
// be enriched with the engine name and query words. This is a side
// aggregation; it never influences whether a hit is counted.
package referrer

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// engines maps an engine's registrable-domain label to the query-string
// parameter carrying the search terms.
var engines = map[string]string{
	"google":     "q",
	"bing":       "q",
	"yahoo":      "p",
	"duckduckgo": "q",
	"yandex":     "text",
	"baidu":      "wd",
	"ecosia":     "q",
	"qwant":      "q",
	"ask":        "q",
	"startpage":  "query",
}

// Result describes a recognised search referral.
type Result struct {
	Engine string
	Words  string
}

// Identify parses rawURL and reports the search engine and query words, or
// the zero Result when the referrer is not a recognised engine. Malformed
// URLs never error; they are simply not search referrals.
func Identify(rawURL string) Result {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return Result{}
	}
	domain := Domain(rawURL)
	if domain == "" {
		return Result{}
	}
	label, _, _ := strings.Cut(domain, ".")
	param, ok := engines[label]
	if !ok {
		return Result{}
	}
	return Result{
		Engine: label,
		Words:  strings.TrimSpace(u.Query().Get(param)),
	}
}

// Domain returns the registrable domain (eTLD+1) of rawURL's host, or ""
// when the host is empty or not under a public suffix (bare IPs,
// localhost).
func Domain(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return ""
	}
	return domain
}
