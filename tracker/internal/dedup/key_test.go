package dedup

import (
	"fmt"
	"testing"
	"time"
)

func TestVisitorKey_StableAndFieldSensitive(t *testing.T) {
	b := &Builder{}
	base := Actor{IP: "203.0.113.5", Agent: "Firefox", Platform: "Linux", Version: "128"}

	if b.VisitorKey(base) != b.VisitorKey(base) {
		t.Fatal("key not stable across calls")
	}

	variants := map[string]Actor{
		"ip":       {IP: "203.0.113.6", Agent: "Firefox", Platform: "Linux", Version: "128"},
		"agent":    {IP: "203.0.113.5", Agent: "Chrome", Platform: "Linux", Version: "128"},
		"platform": {IP: "203.0.113.5", Agent: "Firefox", Platform: "Windows", Version: "128"},
		"version":  {IP: "203.0.113.5", Agent: "Firefox", Platform: "Linux", Version: "129"},
	}
	for field, a := range variants {
		if b.VisitorKey(a) == b.VisitorKey(base) {
			t.Errorf("changing %s did not change the key", field)
		}
	}
}

func TestVisitorKey_HashedNoCollisions(t *testing.T) {
	b := &Builder{HashIPs: true, Salt: "test-salt"}
	seen := make(map[string]string, 10000)
	for i := 0; i < 10000; i++ {
		ip := fmt.Sprintf("10.%d.%d.%d", i/65536, (i/256)%256, i%256)
		key := b.VisitorKey(Actor{IP: ip, Agent: "Firefox"})
		if prev, ok := seen[key]; ok {
			t.Fatalf("collision: %s and %s produced %s", prev, ip, key)
		}
		seen[key] = ip
	}
}

func TestVisitorKey_HashedHidesIP(t *testing.T) {
	b := &Builder{HashIPs: true, Salt: "s"}
	key := b.VisitorKey(Actor{IP: "203.0.113.5", Agent: "Firefox"})
	if key == "" || key == "203.0.113.5" {
		t.Fatalf("unexpected key %q", key)
	}
	for i := 0; i < len(key); i++ {
		if key[i] == '.' {
			t.Fatalf("hashed key leaks dotted quad: %q", key)
		}
	}
}

func TestOnlineKey_MatchesVisitorScheme(t *testing.T) {
	b := &Builder{HashIPs: true, Salt: "s"}
	a := Actor{IP: "203.0.113.5", Agent: "Firefox"}
	if b.OnlineKey(a) != b.VisitorKey(a) {
		t.Fatal("online key diverged from visitor key scheme")
	}
}

func TestBucket_TimezoneOffset(t *testing.T) {
	// 23:30 UTC is already "tomorrow" for a site running at UTC+1.
	now := time.Date(2026, 8, 27, 23, 30, 0, 0, time.UTC)

	utc := &Builder{}
	if got := utc.Bucket(now); got != "2026-08-27" {
		t.Fatalf("utc bucket = %s", got)
	}

	ahead := &Builder{Offset: time.Hour}
	if got := ahead.Bucket(now); got != "2026-08-28" {
		t.Fatalf("utc+1 bucket = %s", got)
	}

	behind := &Builder{Offset: -2 * time.Hour}
	if got := behind.Bucket(now); got != "2026-08-27" {
		t.Fatalf("utc-2 bucket = %s", got)
	}
}
