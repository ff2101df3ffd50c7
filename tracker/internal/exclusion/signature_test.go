package exclusion

import "testing"

type stubMatcher struct{ hit bool }

func (m stubMatcher) IsCrawler(string) bool { return m.hit }

func TestClassify_CrawlerFastPath(t *testing.T) {
	c := NewClassifier(stubMatcher{hit: true}, "Googlebot")
	got := c.Classify("Mozilla/5.0 (compatible; Googlebot/2.1)", "203.0.113.5")
	if !got.Crawler {
		t.Fatal("expected crawler fast path to win")
	}
	if got.Robot != "" {
		t.Fatalf("fast path must not report a name, got %q", got.Robot)
	}
}

func TestClassify_RobotList(t *testing.T) {
	robots := "Googlebot\nAhrefsBot\n  bingbot  \nab\n\n"
	c := NewClassifier(stubMatcher{}, robots)

	tests := []struct {
		name string
		ua   string
		want string
	}{
		{"case insensitive", "Mozilla/5.0 GOOGLEBOT/2.1", "googlebot"},
		{"trimmed entry", "something bingbot something", "bingbot"},
		{"first match wins", "Googlebot AhrefsBot", "googlebot"},
		{"short entries skipped", "ab test agent", ""},
		{"no match", "Mozilla/5.0 (X11; Linux x86_64)", ""},
		{"empty agent", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.ua, "")
			if got.Crawler {
				t.Fatal("stub matcher should never report crawler")
			}
			if got.Robot != tt.want {
				t.Fatalf("Robot = %q, want %q", got.Robot, tt.want)
			}
		})
	}
}

func TestTokenMatcher_Defaults(t *testing.T) {
	m := NewTokenMatcher()
	if !m.IsCrawler("ExampleCorp-Crawler/1.0") {
		t.Fatal("crawler token not matched")
	}
	if m.IsCrawler("Mozilla/5.0 (Windows NT 10.0) Chrome/126.0") {
		t.Fatal("ordinary browser flagged as crawler")
	}
}
