package tracker

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRoutes_HitEndpoint(t *testing.T) {
	tr := newTestTracker(t, nil)
	h := tr.Routes()

	body := `{
		"user_agent": "Mozilla/5.0 (X11; Linux x86_64) Firefox/128.0",
		"url": "https://example.com/hello-world",
		"path": "/hello-world",
		"status": 200,
		"page": {"type": "post", "id": 42}
	}`
	req := httptest.NewRequest("POST", "/hit", strings.NewReader(body))
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("status = %d", w.Code)
	}
	var res HandleResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.Excluded {
		t.Fatalf("hit excluded: %s", res.Reason)
	}
	if w.Header().Get("X-Trace-ID") == "" {
		t.Fatal("missing trace id header")
	}

	// The forwarded client IP, not the proxy hop, identifies the actor.
	bucket := tr.keys.Bucket(time.Now())
	row, err := tr.store.Visitor(context.Background(), bucket, tr.keys.VisitorKey(actorOf(cleanHit())))
	if err != nil || row == nil {
		t.Fatalf("visitor row missing for forwarded IP (%v)", err)
	}
}

func TestRoutes_HitExcluded(t *testing.T) {
	tr := newTestTracker(t, nil)
	h := tr.Routes()

	req := httptest.NewRequest("POST", "/hit", strings.NewReader(
		`{"user_agent": "x", "ajax": true}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var res HandleResult
	json.Unmarshal(w.Body.Bytes(), &res)
	if !res.Excluded || res.Reason != "ajax" {
		t.Fatalf("result = %+v, want ajax exclusion", res)
	}
}

func TestRoutes_BadBody(t *testing.T) {
	tr := newTestTracker(t, nil)
	h := tr.Routes()

	req := httptest.NewRequest("POST", "/hit", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != 400 {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestRoutes_Online(t *testing.T) {
	tr := newTestTracker(t, nil)
	h := tr.Routes()

	req := httptest.NewRequest("POST", "/hit", strings.NewReader(
		`{"user_agent": "Mozilla/5.0 Firefox/128.0", "path": "/p", "status": 200, "page": {"type": "post", "id": 1}}`))
	req.Header.Set("X-Real-IP", "203.0.113.9")
	h.ServeHTTP(httptest.NewRecorder(), req)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/online", nil))
	if w.Code != 200 {
		t.Fatalf("status = %d", w.Code)
	}
	var res map[string]int64
	json.Unmarshal(w.Body.Bytes(), &res)
	if res["online"] != 1 {
		t.Fatalf("online = %d, want 1", res["online"])
	}
}

func TestRoutes_Healthz(t *testing.T) {
	tr := newTestTracker(t, nil)
	w := httptest.NewRecorder()
	tr.Routes().ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))
	if w.Code != 200 {
		t.Fatalf("status = %d", w.Code)
	}
}
