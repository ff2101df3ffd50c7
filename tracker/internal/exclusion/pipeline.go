// Package exclusion decides whether an incoming page view represents a
// trackable human visit.
//
// The decision is an ordered chain of stateless rules over the request
// metadata plus configuration; the first matching rule wins and the chain
// short-circuits. The order is a hard contract: background transports are
// rejected before any rule that assumes a fully-formed front-end request.
package exclusion

import (
	"context"
	"fmt"
	"net/netip"
	"path"
	"strings"
)

// Reason identifies why a request was excluded from counting.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonAjax           Reason = "ajax"
	ReasonCron           Reason = "cronjob"
	ReasonCrawler        Reason = "crawler-signature"
	ReasonRobot          Reason = "named-robot"
	ReasonCorruptAgent   Reason = "corrupt-agent"
	ReasonBrokenLink     Reason = "broken-link"
	ReasonIPRange        Reason = "ip-range"
	ReasonSelfReferral   Reason = "self-referral"
	ReasonLoginPage      Reason = "login-page"
	ReasonAdminPage      Reason = "admin-page"
	ReasonReferrerSpam   Reason = "referrer-spam"
	ReasonFeed           Reason = "feed"
	ReasonNotFound       Reason = "http-404"
	ReasonExcludedURL    Reason = "excluded-url"
	ReasonUserRole       Reason = "user-role"
	ReasonHostname       Reason = "excluded-hostname"
	ReasonHoneypot       Reason = "honeypot"
	ReasonRobotThreshold Reason = "robot-threshold"
)

// Request carries the metadata the pipeline inspects. It is a projection of
// the tracker request context, kept free of tracker types so the pipeline
// is testable in isolation.
type Request struct {
	IP        string
	UserAgent string
	Referrer  string
	URL       string // full current URL
	Path      string // URL path component
	Status    int    // response status for the page being served
	UserRole  string // empty for anonymous visitors
	Ajax      bool   // async admin transport
	Cron      bool   // scheduled-job execution context
	Feed      bool   // syndication feed request
}

// Verdict is the pipeline outcome. At most one reason per request.
type Verdict struct {
	Matched bool
	Reason  Reason
}

// Options holds every toggle and list the rules consult. Disabled rules are
// skipped without consuming pipeline order.
type Options struct {
	CheckCorruptAgent   bool
	CheckBrokenLinks    bool
	ExcludeLoginPage    bool
	ExcludeAdminPage    bool
	ExcludeReferrerSpam bool
	ExcludeFeeds        bool
	Exclude404          bool

	SelfAgent     string   // the platform's own generated user agent
	LoginURL      string   // exact-match login URL
	AdminPath     string   // admin path prefix
	ExcludedIPs   []string // CIDR ranges or bare addresses
	ReferrerSpam  []string // substring blacklist for referrers
	ExcludedURLs  []string // path prefixes
	ExcludedRoles []string // logged-in roles to drop
	ExcludedHosts []string // hostnames resolved via the HostCache

	ranges []netip.Prefix
	roles  map[string]struct{}
}

// Compile parses the range list and normalises lookup sets. Invalid range
// entries are dropped rather than erroring; a malformed admin entry must
// not take the collector down.
func (o *Options) Compile() {
	o.ranges = o.ranges[:0]
	for _, raw := range o.ExcludedIPs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if p, err := netip.ParsePrefix(raw); err == nil {
			o.ranges = append(o.ranges, p)
			continue
		}
		if a, err := netip.ParseAddr(raw); err == nil {
			o.ranges = append(o.ranges, netip.PrefixFrom(a, a.BitLen()))
		}
	}
	o.roles = make(map[string]struct{}, len(o.ExcludedRoles))
	for _, r := range o.ExcludedRoles {
		o.roles[strings.ToLower(strings.TrimSpace(r))] = struct{}{}
	}
}

// loopback is the sentinel for unparseable remote addresses, keeping range
// containment well-defined instead of erroring on malformed input.
var loopback = netip.MustParseAddr("127.0.0.1")

func parseAddr(ip string) netip.Addr {
	a, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return loopback
	}
	return a.Unmap()
}

// appExtensions are URL extensions handled by the application itself; a 404
// on one of these is a missing page, not a broken asset link.
var appExtensions = map[string]struct{}{
	".php": {}, ".html": {}, ".htm": {}, ".xhtml": {},
}

// Rule is one step of the chain. Enabled gates the rule on configuration;
// Match runs only for enabled rules.
type Rule struct {
	Reason  Reason
	Enabled func(o *Options) bool
	Match   func(ctx context.Context, r *Request, o *Options) bool
}

// Pipeline evaluates the ordered rule chain.
type Pipeline struct {
	opts       *Options
	classifier *Classifier
	hosts      *HostCache
	rules      []Rule

	// Trace, when set, observes every rule actually evaluated, in order.
	// Test hook; nil in production.
	Trace func(Reason)
}

func alwaysOn(*Options) bool { return true }

// New builds the pipeline. opts is compiled in place; classifier and hosts
// may be nil, disabling the corresponding rules' positive matches.
func New(opts *Options, classifier *Classifier, hosts *HostCache) *Pipeline {
	opts.Compile()
	p := &Pipeline{opts: opts, classifier: classifier, hosts: hosts}
	p.rules = []Rule{
		{ReasonAjax, alwaysOn, func(_ context.Context, r *Request, _ *Options) bool {
			return r.Ajax
		}},
		{ReasonCron, alwaysOn, func(_ context.Context, r *Request, _ *Options) bool {
			return r.Cron
		}},
		{ReasonCrawler, alwaysOn, func(_ context.Context, r *Request, _ *Options) bool {
			return p.classifier != nil && p.classifier.isCrawler(r.UserAgent)
		}},
		{ReasonRobot, alwaysOn, func(_ context.Context, r *Request, _ *Options) bool {
			return p.classifier != nil && p.classifier.robotName(r.UserAgent) != ""
		}},
		{ReasonCorruptAgent, func(o *Options) bool { return o.CheckCorruptAgent }, func(_ context.Context, r *Request, _ *Options) bool {
			return r.UserAgent == "" && r.IP == ""
		}},
		{ReasonBrokenLink, func(o *Options) bool { return o.CheckBrokenLinks }, func(_ context.Context, r *Request, _ *Options) bool {
			if r.Status != 404 {
				return false
			}
			ext := strings.ToLower(path.Ext(r.Path))
			if ext == "" {
				return false
			}
			_, app := appExtensions[ext]
			return !app
		}},
		{ReasonIPRange, alwaysOn, func(_ context.Context, r *Request, o *Options) bool {
			addr := parseAddr(r.IP)
			for _, pfx := range o.ranges {
				if pfx.Contains(addr) {
					return true
				}
			}
			return false
		}},
		{ReasonSelfReferral, alwaysOn, func(_ context.Context, r *Request, o *Options) bool {
			return o.SelfAgent != "" && r.UserAgent == o.SelfAgent
		}},
		{ReasonLoginPage, func(o *Options) bool { return o.ExcludeLoginPage }, func(_ context.Context, r *Request, o *Options) bool {
			return o.LoginURL != "" && trimURL(r.URL) == trimURL(o.LoginURL)
		}},
		{ReasonAdminPage, func(o *Options) bool { return o.ExcludeAdminPage }, func(_ context.Context, r *Request, o *Options) bool {
			return o.AdminPath != "" && strings.HasPrefix(r.Path, o.AdminPath)
		}},
		{ReasonReferrerSpam, func(o *Options) bool { return o.ExcludeReferrerSpam }, func(_ context.Context, r *Request, o *Options) bool {
			if r.Referrer == "" {
				return false
			}
			for _, spam := range o.ReferrerSpam {
				if spam != "" && strings.Contains(r.Referrer, spam) {
					return true
				}
			}
			return false
		}},
		{ReasonFeed, func(o *Options) bool { return o.ExcludeFeeds }, func(_ context.Context, r *Request, _ *Options) bool {
			return r.Feed
		}},
		{ReasonNotFound, func(o *Options) bool { return o.Exclude404 }, func(_ context.Context, r *Request, _ *Options) bool {
			return r.Status == 404
		}},
		{ReasonExcludedURL, alwaysOn, func(_ context.Context, r *Request, o *Options) bool {
			for _, u := range o.ExcludedURLs {
				if u != "" && strings.HasPrefix(r.Path, u) {
					return true
				}
			}
			return false
		}},
		{ReasonUserRole, alwaysOn, func(_ context.Context, r *Request, o *Options) bool {
			if r.UserRole == "" {
				return false
			}
			_, ok := o.roles[strings.ToLower(r.UserRole)]
			return ok
		}},
		{ReasonHostname, alwaysOn, func(ctx context.Context, r *Request, o *Options) bool {
			return p.hosts != nil && p.hosts.Contains(ctx, r.IP)
		}},
	}
	return p
}

// Evaluate runs the chain in order and returns on the first match.
// Never errors: malformed input degrades to non-matching rules.
func (p *Pipeline) Evaluate(ctx context.Context, r *Request) Verdict {
	for _, rule := range p.rules {
		if !rule.Enabled(p.opts) {
			continue
		}
		if p.Trace != nil {
			p.Trace(rule.Reason)
		}
		if rule.Match(ctx, r, p.opts) {
			return Verdict{Matched: true, Reason: rule.Reason}
		}
	}
	return Verdict{}
}

// SelfAgent renders the platform's own user agent signature, which marks
// loopback requests the platform makes to itself.
func SelfAgent(platform, version, homeURL string) string {
	return fmt.Sprintf("%s/%s; %s", platform, version, homeURL)
}

func trimURL(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}
