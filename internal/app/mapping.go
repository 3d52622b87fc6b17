package app

import (
	"strings"
	"time"

	"rolewatch/internal/config"
	"rolewatch/internal/dispatch"
	"rolewatch/internal/store"
	telegram "rolewatch/internal/transport/telegram"
	"rolewatch/internal/watcher"
)

const defaultSnapshotDir = "./data/snapshots"

func snapshotDir(cfg *config.Config) string {
	if dir := strings.TrimSpace(cfg.Watcher.SnapshotDir); dir != "" {
		return dir
	}
	return defaultSnapshotDir
}

func mapStoreConfig(cfg *config.Config) store.Config {
	busy, _ := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	return store.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}
}

func mapTelegramConfig(cfg *config.Config) (telegram.Config, error) {
	poll, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout)
	if err != nil {
		return telegram.Config{}, err
	}
	send, err := config.ParseDurationField("notify.send_timeout", cfg.Notify.SendTimeout)
	if err != nil {
		return telegram.Config{}, err
	}
	return telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: poll,
		SendTimeout: send,
	}, nil
}

func mapNotifyConfig(cfg *config.Config) (dispatch.Config, error) {
	pacing, err := config.ParseDurationField("notify.pacing", cfg.Notify.Pacing)
	if err != nil {
		return dispatch.Config{}, err
	}
	sendTimeout, err := config.ParseDurationField("notify.send_timeout", cfg.Notify.SendTimeout)
	if err != nil {
		return dispatch.Config{}, err
	}
	return dispatch.Config{
		Pacing:           pacing,
		SendTimeout:      sendTimeout,
		FailureThreshold: cfg.Notify.FailureThreshold,
	}, nil
}

func mapWatcherConfig(cfg *config.Config) (watcher.Config, error) {
	interval, err := config.ParseDurationOrDefault("watcher.interval", cfg.Watcher.Interval, time.Minute)
	if err != nil {
		return watcher.Config{}, err
	}
	feeds := make([]watcher.Feed, 0, len(cfg.Watcher.Feeds))
	for _, f := range cfg.Watcher.Feeds {
		to, err := config.ParseDurationField("watcher.feeds["+f.Name+"].fetch_timeout", f.FetchTimeout)
		if err != nil {
			return watcher.Config{}, err
		}
		feeds = append(feeds, watcher.Feed{
			Name:                 f.Name,
			URL:                  f.URL,
			SupportsReactivation: f.SupportsReactivation,
			FetchTimeout:         to,
		})
	}
	return watcher.Config{
		Interval: interval,
		Feeds:    feeds,
		Policy:   cfg.MentionPolicy(),
	}, nil
}
