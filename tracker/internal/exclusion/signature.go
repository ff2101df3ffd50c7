package exclusion

import (
	"strings"
)

// CrawlerMatcher reports whether a user agent belongs to a known crawler.
// Implementations wrap an externally maintained signature database.
type CrawlerMatcher interface {
	IsCrawler(userAgent string) bool
}

// TokenMatcher is the default CrawlerMatcher: case-insensitive substring
// containment against a token list.
type TokenMatcher struct {
	tokens []string
}

// DefaultCrawlerTokens are generic markers shared by the large majority of
// well-behaved crawlers. Specific products are handled by the robot list.
var DefaultCrawlerTokens = []string{
	"bot/", "bot;", "crawler", "spider", "scraper", "archiver",
	"http client", "httpclient", "fetcher", "monitoring",
}

// NewTokenMatcher builds a matcher over the given tokens, or
// DefaultCrawlerTokens when none are given.
func NewTokenMatcher(tokens ...string) *TokenMatcher {
	if len(tokens) == 0 {
		tokens = DefaultCrawlerTokens
	}
	lowered := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			lowered = append(lowered, t)
		}
	}
	return &TokenMatcher{tokens: lowered}
}

// IsCrawler reports whether ua contains any known crawler token.
func (m *TokenMatcher) IsCrawler(ua string) bool {
	ua = strings.ToLower(ua)
	for _, t := range m.tokens {
		if strings.Contains(ua, t) {
			return true
		}
	}
	return false
}

// minRobotNameLen skips robot-list entries too short to match reliably;
// three-character fragments hit ordinary browser agents far too often.
const minRobotNameLen = 4

// Classifier decides whether a request comes from automated software,
// independent of any persisted state.
type Classifier struct {
	matcher CrawlerMatcher
	robots  []string
}

// Classification is the classifier verdict for one user agent.
type Classification struct {
	Crawler bool   // matched the signature database (no name reported)
	Robot   string // matched robot-list entry, empty when none
}

// NewClassifier builds a classifier from a signature matcher and a
// newline-delimited robot-name list. Entries shorter than four characters
// are dropped. A nil matcher disables the signature fast path.
func NewClassifier(matcher CrawlerMatcher, robotList string) *Classifier {
	c := &Classifier{matcher: matcher}
	for _, line := range strings.Split(robotList, "\n") {
		name := strings.TrimSpace(line)
		if len(name) < minRobotNameLen {
			continue
		}
		c.robots = append(c.robots, strings.ToLower(name))
	}
	return c
}

// Classify runs the signature fast path first, then scans the robot list.
// First robot-list match wins. Pure function over its inputs.
func (c *Classifier) Classify(userAgent, ip string) Classification {
	if c.isCrawler(userAgent) {
		return Classification{Crawler: true}
	}
	return Classification{Robot: c.robotName(userAgent)}
}

func (c *Classifier) isCrawler(ua string) bool {
	return c.matcher != nil && c.matcher.IsCrawler(ua)
}

func (c *Classifier) robotName(ua string) string {
	lowered := strings.ToLower(ua)
	for _, name := range c.robots {
		if strings.Contains(lowered, name) {
			return name
		}
	}
	return ""
}
