package tracker

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all tracker configuration. Zero values are normalised by
// defaults(); a missing or partial file yields a collector that counts
// everything and excludes nothing extra.
type Config struct {
	DBPath string `yaml:"db_path"`
	Listen string `yaml:"listen"`

	// Platform identity, used to recognise the platform's own loopback
	// requests (self-referral exclusion).
	Platform        string `yaml:"platform"`
	PlatformVersion string `yaml:"platform_version"`
	HomeURL         string `yaml:"home_url"`
	LoginURL        string `yaml:"login_url"`
	AdminPath       string `yaml:"admin_path"`

	Tracking   TrackingConfig  `yaml:"tracking"`
	Exclusions ExclusionConfig `yaml:"exclusions"`
	Privacy    PrivacyConfig   `yaml:"privacy"`
	Online     OnlineConfig    `yaml:"online"`

	// Geo maps CIDR prefixes to ISO country codes for the built-in
	// prefix locator. Empty means every visitor resolves to "000".
	Geo map[string]string `yaml:"geo"`
}

// TrackingConfig feature-flags the individual counter paths.
type TrackingConfig struct {
	Visits       bool `yaml:"visits"`
	Visitors     bool `yaml:"visitors"`
	Pages        bool `yaml:"pages"`
	AllPages     bool `yaml:"all_pages"` // track every page type, not just post/page/home
	OnlineUsers  bool `yaml:"online_users"`
	AlwaysOnline bool `yaml:"always_online"` // keep presence rows even for excluded hits

	// Coefficient multiplies every counted visit, approximating traffic
	// when the caller samples hits.
	Coefficient int64 `yaml:"coefficient"`

	// StoreUserAgent persists the full UA string on visitor rows.
	StoreUserAgent bool `yaml:"store_user_agent"`
}

// ExclusionConfig drives the rule pipeline and the post-hoc
// reclassification thresholds.
type ExclusionConfig struct {
	Record       bool `yaml:"record"` // count excluded requests per reason
	CorruptAgent bool `yaml:"corrupt_agent"`
	BrokenLinks  bool `yaml:"broken_links"`
	LoginPage    bool `yaml:"login_page"`
	AdminPage    bool `yaml:"admin_page"`
	ReferrerSpam bool `yaml:"referrer_spam"`
	Feeds        bool `yaml:"feeds"`
	NotFound     bool `yaml:"not_found"`

	// RobotThreshold is the maximum hits-per-day for one actor; beyond it
	// further hits are reclassified as bot traffic. 0 disables.
	RobotThreshold int64 `yaml:"robot_threshold"`

	// RobotList is a newline-delimited list of robot names matched
	// case-insensitively against the user agent.
	RobotList string `yaml:"robot_list"`

	ReferrerSpamList []string `yaml:"referrer_spam_list"`
	ExcludedIPs      []string `yaml:"excluded_ips"`
	ExcludedURLs     []string `yaml:"excluded_urls"`
	ExcludedRoles    []string `yaml:"excluded_roles"`
	ExcludedHosts    []string `yaml:"excluded_hosts"`

	// HoneypotPageID marks the hidden trap page. Hits on it are recorded
	// as visitors with the honeypot flag, then excluded.
	HoneypotPageID int64 `yaml:"honeypot_page_id"`
}

// PrivacyConfig controls actor-key hashing.
type PrivacyConfig struct {
	HashIPs bool   `yaml:"hash_ips"`
	Salt    string `yaml:"salt"`

	// UTCOffset shifts day buckets to the site clock.
	UTCOffset time.Duration `yaml:"utc_offset"`
}

// OnlineConfig controls the presence table liveness window and sweep.
type OnlineConfig struct {
	Window        time.Duration `yaml:"window"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

func (c *Config) defaults() {
	if c.DBPath == "" {
		c.DBPath = "statkeeper.db"
	}
	if c.Listen == "" {
		c.Listen = ":8090"
	}
	if c.Platform == "" {
		c.Platform = "WordPress"
	}
	if c.AdminPath == "" {
		c.AdminPath = "/wp-admin/"
	}
	if c.Tracking.Coefficient <= 0 {
		c.Tracking.Coefficient = 1
	}
	if c.Online.Window <= 0 {
		c.Online.Window = 2 * time.Minute
	}
	if c.Online.SweepInterval <= 0 {
		c.Online.SweepInterval = 30 * time.Second
	}
}

// DefaultConfig returns a config that tracks everything with exclusion
// recording on.
func DefaultConfig() *Config {
	c := &Config{
		Tracking: TrackingConfig{
			Visits:      true,
			Visitors:    true,
			Pages:       true,
			OnlineUsers: true,
			Coefficient: 1,
		},
		Exclusions: ExclusionConfig{
			Record: true,
		},
	}
	c.defaults()
	return c
}

// LoadConfig reads a YAML config file and normalises it. A missing path
// returns DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, err
	}
	cfg.defaults()
	return cfg, nil
}
