package tracker

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/statkeeper/webmw"
)

// HitReport is the JSON payload of POST /hit. One report per page view.
// IP is normally derived from the connection; replay reports (hits served
// from a page cache and reported out-of-band) carry the original IP.
type HitReport struct {
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent"`
	Referrer  string `json:"referrer,omitempty"`
	URL       string `json:"url"`
	Path      string `json:"path"`
	Status    int    `json:"status"`
	Page      Page   `json:"page"`
	UserID    int64  `json:"user_id,omitempty"`
	UserRole  string `json:"user_role,omitempty"`
	Origin    string `json:"origin,omitempty"`
	Ajax      bool   `json:"ajax,omitempty"`
	Cron      bool   `json:"cron,omitempty"`
	Feed      bool   `json:"feed,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"` // unix seconds, replay hits only
}

// Routes returns the collector HTTP surface.
func (t *Tracker) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(webmw.TraceID)
	r.Use(webmw.SecurityHeaders)
	r.Use(webmw.MaxBody(64 * 1024))
	r.Post("/hit", t.handleHit)
	r.Get("/online", t.handleOnline)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return r
}

func (t *Tracker) handleHit(w http.ResponseWriter, r *http.Request) {
	var report HitReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		http.Error(w, "invalid hit report", http.StatusBadRequest)
		return
	}

	rc := &RequestContext{
		IP:        report.IP,
		UserAgent: report.UserAgent,
		Referrer:  report.Referrer,
		URL:       report.URL,
		Path:      report.Path,
		Status:    report.Status,
		Page:      report.Page,
		UserID:    report.UserID,
		UserRole:  report.UserRole,
		Origin:    OriginDirect,
		Ajax:      report.Ajax,
		Cron:      report.Cron,
		Feed:      report.Feed,
	}
	if report.Origin == string(OriginReplay) {
		rc.Origin = OriginReplay
		if report.Timestamp > 0 {
			rc.Timestamp = time.Unix(report.Timestamp, 0)
		}
	}
	if rc.IP == "" {
		rc.IP = webmw.ClientIP(r)
	}

	res := t.Handle(r.Context(), rc)
	webmw.GetLogger(r.Context()).Debug("hit handled",
		"excluded", res.Excluded, "reason", res.Reason)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

func (t *Tracker) handleOnline(w http.ResponseWriter, r *http.Request) {
	n, err := t.OnlineCount(r.Context())
	if err != nil {
		http.Error(w, "online count unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int64{"online": n})
}
