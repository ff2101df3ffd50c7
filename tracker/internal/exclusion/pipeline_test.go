package exclusion

import (
	"context"
	"testing"
)

func newTestPipeline(o *Options) *Pipeline {
	cls := NewClassifier(NewTokenMatcher("definitelyacrawler"), "Googlebot")
	return New(o, cls, nil)
}

func allChecks() *Options {
	return &Options{
		CheckCorruptAgent:   true,
		CheckBrokenLinks:    true,
		ExcludeLoginPage:    true,
		ExcludeAdminPage:    true,
		ExcludeReferrerSpam: true,
		ExcludeFeeds:        true,
		Exclude404:          true,
		SelfAgent:           "WordPress/6.4; https://example.com",
		LoginURL:            "https://example.com/wp-login.php",
		AdminPath:           "/wp-admin/",
		ExcludedIPs:         []string{"192.0.2.0/24", "198.51.100.7"},
		ReferrerSpam:        []string{"spam-domain.test"},
		ExcludedURLs:        []string{"/private/"},
		ExcludedRoles:       []string{"administrator"},
	}
}

func TestEvaluate_RuleMatches(t *testing.T) {
	p := newTestPipeline(allChecks())
	ctx := context.Background()

	tests := []struct {
		name string
		req  Request
		want Reason
	}{
		{"ajax", Request{Ajax: true}, ReasonAjax},
		{"cronjob", Request{Cron: true}, ReasonCron},
		{"crawler signature", Request{IP: "203.0.113.5", UserAgent: "definitelyacrawler/2.0"}, ReasonCrawler},
		{"named robot", Request{IP: "203.0.113.5", UserAgent: "Mozilla compatible Googlebot/2.1"}, ReasonRobot},
		{"corrupt agent", Request{}, ReasonCorruptAgent},
		{"broken link", Request{IP: "203.0.113.5", UserAgent: "Firefox", Status: 404, Path: "/assets/logo.png"}, ReasonBrokenLink},
		{"ip range", Request{IP: "192.0.2.44", UserAgent: "Firefox"}, ReasonIPRange},
		{"single excluded ip", Request{IP: "198.51.100.7", UserAgent: "Firefox"}, ReasonIPRange},
		{"self referral", Request{IP: "203.0.113.5", UserAgent: "WordPress/6.4; https://example.com"}, ReasonSelfReferral},
		{"login page", Request{IP: "203.0.113.5", UserAgent: "Firefox", URL: "https://example.com/wp-login.php/"}, ReasonLoginPage},
		{"admin page", Request{IP: "203.0.113.5", UserAgent: "Firefox", Path: "/wp-admin/options.php"}, ReasonAdminPage},
		{"referrer spam", Request{IP: "203.0.113.5", UserAgent: "Firefox", Referrer: "http://spam-domain.test/win"}, ReasonReferrerSpam},
		{"feed", Request{IP: "203.0.113.5", UserAgent: "Firefox", Feed: true}, ReasonFeed},
		{"http 404", Request{IP: "203.0.113.5", UserAgent: "Firefox", Status: 404, Path: "/missing"}, ReasonNotFound},
		{"excluded url", Request{IP: "203.0.113.5", UserAgent: "Firefox", Path: "/private/report"}, ReasonExcludedURL},
		{"user role", Request{IP: "203.0.113.5", UserAgent: "Firefox", UserRole: "Administrator"}, ReasonUserRole},
		{"clean request", Request{IP: "203.0.113.5", UserAgent: "Firefox", Path: "/hello-world"}, ReasonNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Evaluate(ctx, &tt.req)
			if tt.want == ReasonNone {
				if got.Matched {
					t.Fatalf("unexpected exclusion: %s", got.Reason)
				}
				return
			}
			if !got.Matched || got.Reason != tt.want {
				t.Fatalf("verdict = %+v, want reason %s", got, tt.want)
			}
		})
	}
}

// An ajax request that would also match several later rules must stop the
// chain at ajax: later rules assume a fully-formed front-end request.
func TestEvaluate_ShortCircuitOrder(t *testing.T) {
	p := newTestPipeline(allChecks())

	var evaluated []Reason
	p.Trace = func(r Reason) { evaluated = append(evaluated, r) }

	req := &Request{
		Ajax:      true,
		IP:        "192.0.2.44", // also in an excluded range
		UserAgent: "Googlebot",  // also a named robot
		Status:    404,
	}
	got := p.Evaluate(context.Background(), req)
	if got.Reason != ReasonAjax {
		t.Fatalf("reason = %s, want ajax", got.Reason)
	}
	if len(evaluated) != 1 || evaluated[0] != ReasonAjax {
		t.Fatalf("rules evaluated after the match: %v", evaluated)
	}
}

func TestEvaluate_OrderAcrossChain(t *testing.T) {
	p := newTestPipeline(allChecks())

	var evaluated []Reason
	p.Trace = func(r Reason) { evaluated = append(evaluated, r) }

	// Matches only ip-range; everything before it must have been
	// evaluated in the documented order.
	req := &Request{IP: "192.0.2.44", UserAgent: "Firefox"}
	if got := p.Evaluate(context.Background(), req); got.Reason != ReasonIPRange {
		t.Fatalf("reason = %s, want ip-range", got.Reason)
	}
	wantOrder := []Reason{
		ReasonAjax, ReasonCron, ReasonCrawler, ReasonRobot,
		ReasonCorruptAgent, ReasonBrokenLink, ReasonIPRange,
	}
	if len(evaluated) != len(wantOrder) {
		t.Fatalf("evaluated %v, want %v", evaluated, wantOrder)
	}
	for i := range wantOrder {
		if evaluated[i] != wantOrder[i] {
			t.Fatalf("rule %d = %s, want %s", i, evaluated[i], wantOrder[i])
		}
	}
}

func TestEvaluate_DisabledRulesSkipped(t *testing.T) {
	o := allChecks()
	o.Exclude404 = false
	o.ExcludeAdminPage = false
	p := newTestPipeline(o)

	req := &Request{IP: "203.0.113.5", UserAgent: "Firefox", Status: 404, Path: "/wp-admin/missing"}
	if got := p.Evaluate(context.Background(), req); got.Matched {
		t.Fatalf("disabled rules still matched: %s", got.Reason)
	}
}

func TestEvaluate_UnparseableIPUsesLoopback(t *testing.T) {
	o := allChecks()
	o.ExcludedIPs = []string{"127.0.0.0/8"}
	p := newTestPipeline(o)

	// Garbage IP falls back to the loopback sentinel, which the range
	// check then catches deterministically instead of erroring.
	req := &Request{IP: "not-an-ip", UserAgent: "Firefox"}
	got := p.Evaluate(context.Background(), req)
	if got.Reason != ReasonIPRange {
		t.Fatalf("reason = %s, want ip-range via loopback sentinel", got.Reason)
	}
}

func TestEvaluate_BrokenLinkAppExtensions(t *testing.T) {
	p := newTestPipeline(allChecks())
	ctx := context.Background()

	// A 404 on an application-handled extension is a missing page
	// (http-404), not a broken asset link.
	req := &Request{IP: "203.0.113.5", UserAgent: "Firefox", Status: 404, Path: "/old-page.html"}
	if got := p.Evaluate(ctx, req); got.Reason != ReasonNotFound {
		t.Fatalf("reason = %s, want http-404", got.Reason)
	}
}

func TestCompile_DropsInvalidRanges(t *testing.T) {
	o := &Options{ExcludedIPs: []string{"garbage", "192.0.2.0/24", ""}}
	o.Compile()
	if len(o.ranges) != 1 {
		t.Fatalf("ranges = %d, want 1", len(o.ranges))
	}
}

func TestSelfAgent(t *testing.T) {
	got := SelfAgent("WordPress", "6.4", "https://example.com")
	if got != "WordPress/6.4; https://example.com" {
		t.Fatalf("SelfAgent = %q", got)
	}
}
