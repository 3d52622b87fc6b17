package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"rolewatch/internal/config"
	"rolewatch/internal/dispatch"
	"rolewatch/internal/runtime/supervisor"
	"rolewatch/internal/store"
	telegram "rolewatch/internal/transport/telegram"
	"rolewatch/internal/watcher"
	logx "rolewatch/pkg/logx"
)

// StopReason records why the app is shutting down; it only feeds logs.
type StopReason string

const (
	StopSIGINT     StopReason = "sigint"
	StopSIGTERM    StopReason = "sigterm"
	StopFatalError StopReason = "fatal_error"
	StopAppStop    StopReason = "app_stop"
)

// App wires the feed watcher together: config manager, logging service,
// sqlite store, Telegram adapter, dispatcher and the poll scheduler.
type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	store   *store.Store
	adapter *telegram.Adapter
	disp    *dispatch.Dispatcher
	watch   *watcher.Service
	snaps   *watcher.SnapshotStore

	startedAt time.Time
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	st, err := store.Open(mapStoreConfig(cfg), log.With(logx.String("comp", "store")))
	if err != nil {
		logSvc.Close()
		return nil, err
	}

	adCfg, err := mapTelegramConfig(cfg)
	if err != nil {
		st.Close()
		logSvc.Close()
		return nil, err
	}
	ad, err := telegram.New(adCfg, log.With(logx.String("comp", "telegram")))
	if err != nil {
		st.Close()
		logSvc.Close()
		return nil, err
	}

	dispCfg, err := mapNotifyConfig(cfg)
	if err != nil {
		st.Close()
		logSvc.Close()
		return nil, err
	}
	disp := dispatch.New(dispCfg, ad, log.With(logx.String("comp", "notify")))

	snaps, err := watcher.NewSnapshotStore(snapshotDir(cfg), log.With(logx.String("comp", "snapshot")))
	if err != nil {
		st.Close()
		logSvc.Close()
		return nil, err
	}

	watchCfg, err := mapWatcherConfig(cfg)
	if err != nil {
		st.Close()
		logSvc.Close()
		return nil, err
	}
	fetcher := watcher.NewHTTPFetcher(0, log.With(logx.String("comp", "fetch")))
	wsvc := watcher.New(watchCfg, fetcher, snaps, st, disp, log.With(logx.String("comp", "watcher")))

	a := &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		store:   st,
		adapter: ad,
		disp:    disp,
		watch:   wsvc,
		snaps:   snaps,
	}

	cmds := telegram.NewCommands(st, cfg.Telegram.OwnerUserIDs, a.statusText,
		wsvc.RunCycleNow, log.With(logx.String("comp", "commands")))
	cmds.Register(ad.Bot())

	return a, nil
}

// Done is closed when the app context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.startedAt = time.Now()
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log),
		supervisor.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))

	// The adapter's long-poll loop self-heals across transient Telegram
	// outages; only ctx cancellation stops it for good.
	a.sup.GoRestart("telegram.run", a.adapter.Run)

	if err := a.watch.Start(a.sup.Context()); err != nil {
		a.sup.Cancel()
		return err
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started",
		logx.Int("feeds", len(a.cfgm.Get().Watcher.Feeds)),
		logx.String("config", a.cfgPath))
	return nil
}

// applyConfig pushes a validated reloaded config into the live components.
// Telegram token and storage path changes need a restart; everything else
// takes effect here or on the next cycle.
func (a *App) applyConfig(ctx context.Context, prev, cfg *config.Config) {
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	if dispCfg, err := mapNotifyConfig(cfg); err != nil {
		a.log.Warn("invalid notify config; keeping previous", logx.Err(err))
	} else {
		a.disp.Apply(dispCfg)
	}

	if watchCfg, err := mapWatcherConfig(cfg); err != nil {
		a.log.Warn("invalid watcher config; keeping previous", logx.Err(err))
	} else {
		a.watch.Apply(ctx, watchCfg)
	}

	if prev != nil && prev.Telegram.Token != cfg.Telegram.Token {
		a.log.Warn("telegram.token changed; restart required to take effect")
	}
	if prev != nil && prev.Storage.Path != cfg.Storage.Path {
		a.log.Warn("storage.path changed; restart required to take effect")
	}

	a.log.Info("config reloaded")
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sup.Cancel()

	// Bound each shutdown step so one stuck component cannot stall the rest.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()
		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()
		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name), logx.Err(stepCtx.Err()))
		}
	}

	step("watcher", 5*time.Second, func(c context.Context) error {
		a.watch.Stop(c)
		return nil
	})
	step("supervisor", 5*time.Second, func(c context.Context) error {
		return a.sup.Wait(c)
	})
	step("store", time.Second, func(context.Context) error {
		return a.store.Close()
	})

	a.log.Info("stopped")
	a.logs.Close()
	return nil
}

// statusText backs the /status admin command.
func (a *App) statusText() string {
	cfg := a.cfgm.Get()

	var b strings.Builder
	fmt.Fprintf(&b, "Uptime: %s\n", time.Since(a.startedAt).Round(time.Second))
	if cfg != nil {
		fmt.Fprintf(&b, "Feeds: %d\n", len(cfg.Watcher.Feeds))
	}
	if a.watch.CycleRunning() {
		b.WriteString("Cycle: running\n")
	} else {
		b.WriteString("Cycle: idle\n")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if targets, err := a.store.Destinations(ctx); err == nil {
		fmt.Fprintf(&b, "Destinations: %d\n", len(targets))
	}
	if target, err := a.store.MentionTarget(ctx); err == nil && target != "" {
		fmt.Fprintf(&b, "Mention target: %s\n", target)
	}

	total, skipped := a.disp.Health().Snapshot()
	fmt.Fprintf(&b, "Delivery health: %d tracked, %d silenced\n", total, skipped)

	if cfg != nil {
		for _, f := range cfg.Watcher.Feeds {
			st, err := a.snaps.Stat(f.Name)
			if err != nil || st.Modified == 0 {
				fmt.Fprintf(&b, "Snapshot %s: none\n", f.Name)
				continue
			}
			fmt.Fprintf(&b, "Snapshot %s: %d records, %s\n",
				f.Name, st.Records, time.Unix(st.Modified, 0).UTC().Format(time.RFC3339))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
