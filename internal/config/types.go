package config

import (
	"fmt"
	"strings"
	"time"

	"rolewatch/internal/message"
)

// Config is the full bot configuration. Files may be JSON or YAML; YAML is
// coerced to JSON bytes and both go through the same strict decoder, so
// unknown keys are rejected either way.
//
// All durations are Go duration strings (e.g. "30s", "1m").
type Config struct {
	Telegram TelegramConfig  `json:"telegram"`
	Logging  LoggingConfig   `json:"logging"`
	Storage  StorageConfig   `json:"storage"`
	Watcher  WatcherConfig   `json:"watcher"`
	Notify   NotifyConfig    `json:"notify,omitempty"`
	Mentions *MentionsConfig `json:"mentions,omitempty"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// PollTimeout is the long-poll timeout for incoming updates.
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig points at the sqlite database holding destinations and the
// mention target. Mutated only through the bot's admin commands.
type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// WatcherConfig drives the poll scheduler.
type WatcherConfig struct {
	// Interval between poll cycles. Ticks that land while a cycle is still
	// running are dropped, not queued.
	Interval string `json:"interval,omitempty"`

	// SnapshotDir holds one pretty-printed JSON snapshot file per feed.
	SnapshotDir string `json:"snapshot_dir,omitempty"`

	Feeds []FeedConfig `json:"feeds"`
}

// FeedConfig describes one watched listing feed.
type FeedConfig struct {
	Name string `json:"name"`
	URL  string `json:"url"`

	// SupportsReactivation enables the inactive->active transition class.
	// Feeds that recycle ids without meaning a relisting keep this off.
	SupportsReactivation bool `json:"supports_reactivation,omitempty"`

	// FetchTimeout overrides the default per-fetch HTTP timeout.
	FetchTimeout string `json:"fetch_timeout,omitempty"`
}

// NotifyConfig tunes dispatch behavior.
type NotifyConfig struct {
	// Pacing is the minimum gap between sends to one destination.
	Pacing string `json:"pacing,omitempty"`
	// SendTimeout bounds a single hanging send.
	SendTimeout string `json:"send_timeout,omitempty"`
	// FailureThreshold is the consecutive retryable-failure count that
	// silences a destination until a send to it succeeds again.
	FailureThreshold int `json:"failure_threshold,omitempty"`
}

// MentionsConfig overrides the mention policy. A nil block keeps the shipped
// defaults; an explicitly empty watchlist disables company matching.
type MentionsConfig struct {
	Watchlist  []string `json:"watchlist"`
	PrefixOnly []string `json:"prefix_only,omitempty"`
	ForceTerms []string `json:"force_terms,omitempty"`
}

// Validate rejects configs the app cannot start with. Called on load and by
// the watch loop before publishing a reloaded config.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		return fmt.Errorf("storage.path is required")
	}
	if len(c.Watcher.Feeds) == 0 {
		return fmt.Errorf("watcher.feeds must list at least one feed")
	}
	seen := map[string]bool{}
	for i, f := range c.Watcher.Feeds {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return fmt.Errorf("watcher.feeds[%d].name is required", i)
		}
		if seen[name] {
			return fmt.Errorf("watcher.feeds[%d].name %q is duplicated", i, name)
		}
		seen[name] = true
		if strings.TrimSpace(f.URL) == "" {
			return fmt.Errorf("watcher.feeds[%d].url is required", i)
		}
		if _, err := ParseDurationField(fmt.Sprintf("watcher.feeds[%d].fetch_timeout", i), f.FetchTimeout); err != nil {
			return err
		}
	}
	for _, d := range []struct{ path, raw string }{
		{"telegram.poll_timeout", c.Telegram.PollTimeout},
		{"storage.busy_timeout", c.Storage.BusyTimeout},
		{"watcher.interval", c.Watcher.Interval},
		{"notify.pacing", c.Notify.Pacing},
		{"notify.send_timeout", c.Notify.SendTimeout},
	} {
		if _, err := ParseDurationField(d.path, d.raw); err != nil {
			return err
		}
	}
	if c.Notify.FailureThreshold < 0 {
		return fmt.Errorf("notify.failure_threshold must be >= 0")
	}
	return nil
}

// MentionPolicy maps the mentions block onto a policy, applying defaults
// for whatever is omitted.
func (c *Config) MentionPolicy() message.MentionPolicy {
	if c.Mentions == nil {
		return message.DefaultPolicy()
	}
	pol := message.MentionPolicy{
		Watchlist:  c.Mentions.Watchlist,
		PrefixOnly: c.Mentions.PrefixOnly,
		ForceTerms: c.Mentions.ForceTerms,
	}
	if pol.Watchlist == nil {
		pol.Watchlist = message.DefaultWatchlist
	}
	if pol.PrefixOnly == nil {
		pol.PrefixOnly = message.DefaultPrefixOnly
	}
	if pol.ForceTerms == nil {
		pol.ForceTerms = message.DefaultForceTerms
	}
	return pol
}

// ParseDurationField parses one of the config's Go-duration-string fields
// (poll_timeout, busy_timeout, interval, pacing, ...). Empty means unset and
// parses to zero; callers apply their own default. path names the field in
// the error.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with an explicit fallback for
// unset fields.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
