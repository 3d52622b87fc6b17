package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validJSON = `{
	"telegram": {"token": "123:abc", "owner_user_ids": [42]},
	"logging": {"level": "info", "console": true, "file": {"enabled": false, "path": ""}},
	"storage": {"path": "./data/bot.db"},
	"watcher": {
		"interval": "2m",
		"feeds": [
			{"name": "main", "url": "https://example.com/listings.json", "supports_reactivation": true}
		]
	}
}`

func TestLoadJSON(t *testing.T) {
	m := NewManager(writeConfig(t, "config.json", validJSON))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" || len(cfg.Watcher.Feeds) != 1 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if !cfg.Watcher.Feeds[0].SupportsReactivation {
		t.Fatalf("feed flag lost")
	}
	if m.Get() != cfg {
		t.Fatalf("Load must commit the parsed config")
	}
}

func TestLoadYAML(t *testing.T) {
	body := `
telegram:
  token: "123:abc"
  owner_user_ids: [42]
logging:
  level: debug
  console: true
  file:
    enabled: false
    path: ""
storage:
  path: ./data/bot.db
watcher:
  interval: 90s
  feeds:
    - name: main
      url: https://example.com/listings.json
notify:
  pacing: 500ms
  failure_threshold: 5
mentions:
  watchlist: [acme, globex]
  prefix_only: [x]
`
	m := NewManager(writeConfig(t, "config.yaml", body))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load yaml: %v", err)
	}
	if cfg.Notify.FailureThreshold != 5 || cfg.Notify.Pacing != "500ms" {
		t.Fatalf("notify block mishandled: %+v", cfg.Notify)
	}
	if cfg.Mentions == nil || len(cfg.Mentions.Watchlist) != 2 {
		t.Fatalf("mentions block mishandled: %+v", cfg.Mentions)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	body := strings.Replace(validJSON, `"watcher"`, `"wotcher"`, 1)
	m := NewManager(writeConfig(t, "config.json", body))
	if _, err := m.Load(); err == nil {
		t.Fatalf("unknown key must be rejected")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	m := NewManager(writeConfig(t, "config.json", validJSON+"{}"))
	if _, err := m.Load(); err == nil {
		t.Fatalf("trailing tokens must be rejected")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(s string) string
		wantErr string
	}{
		{"missing token", func(s string) string { return strings.Replace(s, `"123:abc"`, `""`, 1) }, "telegram.token"},
		{"missing storage path", func(s string) string { return strings.Replace(s, `"./data/bot.db"`, `""`, 1) }, "storage.path"},
		{"no feeds", func(s string) string {
			return strings.Replace(s,
				`{"name": "main", "url": "https://example.com/listings.json", "supports_reactivation": true}`,
				``, 1)
		}, "watcher.feeds"},
		{"bad duration", func(s string) string { return strings.Replace(s, `"2m"`, `"soon"`, 1) }, "watcher.interval"},
	}
	for _, tc := range cases {
		m := NewManager(writeConfig(t, "config.json", tc.mutate(validJSON)))
		_, err := m.Load()
		if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
			t.Errorf("%s: err = %v, want mention of %q", tc.name, err, tc.wantErr)
		}
	}
}

func TestValidateDuplicateFeedNames(t *testing.T) {
	body := strings.Replace(validJSON,
		`{"name": "main", "url": "https://example.com/listings.json", "supports_reactivation": true}`,
		`{"name": "main", "url": "https://example.com/a.json"},
			{"name": "main", "url": "https://example.com/b.json"}`, 1)
	m := NewManager(writeConfig(t, "config.json", body))
	if _, err := m.Load(); err == nil || !strings.Contains(err.Error(), "duplicated") {
		t.Fatalf("duplicate feed names must be rejected, got %v", err)
	}
}

func TestMentionPolicyDefaults(t *testing.T) {
	var cfg Config
	pol := cfg.MentionPolicy()
	if len(pol.Watchlist) == 0 || len(pol.ForceTerms) == 0 {
		t.Fatalf("nil mentions block must yield the shipped defaults")
	}

	// Explicit empty watchlist disables company matching but keeps the
	// other defaults.
	cfg.Mentions = &MentionsConfig{Watchlist: []string{}}
	pol = cfg.MentionPolicy()
	if len(pol.Watchlist) != 0 {
		t.Fatalf("explicit empty watchlist must survive: %v", pol.Watchlist)
	}
	if len(pol.PrefixOnly) == 0 || len(pol.ForceTerms) == 0 {
		t.Fatalf("omitted lists must fall back to defaults: %+v", pol)
	}
}

func TestParseDurationField(t *testing.T) {
	if d, err := ParseDurationField("x", " 30s "); err != nil || d.Seconds() != 30 {
		t.Fatalf("ParseDurationField = (%v, %v)", d, err)
	}
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty duration = (%v, %v), want (0, nil)", d, err)
	}
	if _, err := ParseDurationField("x", "nope"); err == nil {
		t.Fatalf("invalid duration must error")
	}
}

func TestReloadSkipsUnchangedContent(t *testing.T) {
	path := writeConfig(t, "config.json", validJSON)
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	// Identical rewrite: hash matches, no publish.
	m.reload()
	select {
	case cfg := <-sub:
		t.Fatalf("unchanged content must not publish, got %+v", cfg)
	default:
	}

	// Actual change publishes.
	if err := os.WriteFile(path, []byte(strings.Replace(validJSON, "2m", "3m", 1)), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	m.reload()
	select {
	case cfg := <-sub:
		if cfg.Watcher.Interval != "3m" {
			t.Fatalf("published config stale: %+v", cfg.Watcher)
		}
	default:
		t.Fatalf("changed content must publish")
	}
}

func TestReloadRejectsBrokenEdit(t *testing.T) {
	path := writeConfig(t, "config.json", validJSON)
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := os.WriteFile(path, []byte(`{"telegram": {}}`), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	m.reload()

	// The committed config must still be the last good one.
	if got := m.Get(); got == nil || got.Telegram.Token != "123:abc" {
		t.Fatalf("broken edit reached the committed config: %+v", got)
	}
}
