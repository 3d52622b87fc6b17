package watcher

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"rolewatch/internal/listing"
	"rolewatch/internal/message"
	"rolewatch/internal/transport"
	logx "rolewatch/pkg/logx"
)

// Feed is one watched listing source.
type Feed struct {
	Name                 string
	URL                  string
	SupportsReactivation bool
	FetchTimeout         time.Duration
}

// ConfigSource supplies destinations and the mention target. Read fresh
// every cycle — configuration edits take effect on the next cycle, never
// the current one.
type ConfigSource interface {
	Destinations(ctx context.Context) ([]transport.Target, error)
	MentionTarget(ctx context.Context) (string, error)
}

// Notifier fans one message out to the given destinations and returns only
// after every send it issued was attempted.
type Notifier interface {
	Dispatch(ctx context.Context, text string, targets []transport.Target)
}

type Config struct {
	Interval time.Duration
	Feeds    []Feed
	Policy   message.MentionPolicy
}

// Service is the poll scheduler: a fixed-interval trigger driving the
// fetch → diff → format → dispatch → persist pipeline across all feeds.
//
// At most one cycle is ever in flight. A tick that lands while a cycle is
// still running is dropped, not queued, so a slow upstream can never build
// a backlog; and the guard is released no matter how the cycle ends, so one
// bad cycle cannot wedge the schedule.
type Service struct {
	mu  sync.Mutex
	cfg Config

	fetch Fetcher
	snaps *SnapshotStore
	dests ConfigSource
	notif Notifier
	log   logx.Logger

	c     *cron.Cron
	entry cron.EntryID

	inCycle atomic.Bool

	// now is swappable for tests; the date stamp in messages comes from it.
	now func() time.Time
}

const defaultInterval = time.Minute

func New(cfg Config, fetch Fetcher, snaps *SnapshotStore, dests ConfigSource, notif Notifier, log logx.Logger) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:   cfg,
		fetch: fetch,
		snaps: snaps,
		dests: dests,
		notif: notif,
		log:   log,
		now:   time.Now,
	}
}

// Start begins ticking. Idempotent.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}

	c := cron.New()
	id, err := c.AddFunc(fmt.Sprintf("@every %s", s.cfg.Interval), func() { s.tick(ctx) })
	if err != nil {
		return err
	}
	s.c = c
	s.entry = id
	c.Start()

	s.log.Info("watcher started",
		logx.Duration("interval", s.cfg.Interval),
		logx.Int("feeds", len(s.cfg.Feeds)))
	return nil
}

// Stop halts the trigger and waits for an in-flight cycle to finish,
// bounded by ctx.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}

	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		// best-effort; the cycle guard still protects the next Start
	}
	s.log.Info("watcher stopped")
}

// Apply updates feeds, policy, and interval at runtime. An interval change
// reschedules the trigger in place.
func (s *Service) Apply(ctx context.Context, cfg Config) {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	changed := cfg.Interval != s.cfg.Interval
	s.cfg = cfg

	if !changed || s.c == nil {
		return
	}
	s.c.Remove(s.entry)
	id, err := s.c.AddFunc(fmt.Sprintf("@every %s", cfg.Interval), func() { s.tick(ctx) })
	if err != nil {
		s.log.Error("failed rescheduling watcher interval", logx.Err(err))
		return
	}
	s.entry = id
	s.log.Info("watcher interval updated", logx.Duration("interval", cfg.Interval))
}

// CycleRunning reports whether a cycle is currently in flight.
func (s *Service) CycleRunning() bool { return s.inCycle.Load() }

// tick attempts to start a cycle. This is the whole state machine:
// Idle -> CycleRunning on a successful swap, and back to Idle in the defer
// regardless of how the cycle body ends.
func (s *Service) tick(ctx context.Context) {
	if !s.inCycle.CompareAndSwap(false, true) {
		s.log.Debug("tick dropped; previous cycle still running")
		return
	}
	defer s.inCycle.Store(false)

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("cycle panicked",
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())))
		}
	}()

	s.runCycle(ctx)
}

// RunCycleNow runs one cycle synchronously, honoring the guard. Backs the
// /run command; returns false if a cycle was already running.
func (s *Service) RunCycleNow(ctx context.Context) bool {
	if !s.inCycle.CompareAndSwap(false, true) {
		return false
	}
	defer s.inCycle.Store(false)
	s.runCycle(ctx)
	return true
}

func (s *Service) runCycle(ctx context.Context) {
	s.mu.Lock()
	feeds := make([]Feed, len(s.cfg.Feeds))
	copy(feeds, s.cfg.Feeds)
	pol := s.cfg.Policy
	s.mu.Unlock()

	start := s.now()
	s.log.Debug("cycle started", logx.Int("feeds", len(feeds)))

	// Feeds are processed sequentially but independently: a failure in one
	// never rolls back or blocks another feed's progress.
	for _, f := range feeds {
		if ctx.Err() != nil {
			return
		}
		if err := s.runFeed(ctx, f, pol); err != nil {
			s.log.Warn("feed skipped this cycle",
				logx.String("feed", f.Name), logx.Err(err))
		}
	}

	s.log.Debug("cycle finished", logx.Duration("took", time.Since(start)))
}

func (s *Service) runFeed(ctx context.Context, f Feed, pol message.MentionPolicy) error {
	fctx := ctx
	if f.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, f.FetchTimeout)
		defer cancel()
	}

	latest, err := s.fetch.Fetch(fctx, f.URL)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	// An empty result is indistinguishable from an upstream outage and must
	// not be read as "everything deactivated". Skip: no diff, no persist.
	if len(latest) == 0 {
		return fmt.Errorf("fetch: feed returned no records")
	}

	old, err := s.snaps.Load(f.Name)
	if err != nil {
		// Corrupt baseline: diff against empty and rebuild it below.
		s.log.Warn("snapshot unreadable; treating feed as fresh",
			logx.String("feed", f.Name), logx.Err(err))
		old = nil
	}

	changes := listing.Diff(old, latest, f.SupportsReactivation)
	if !changes.Empty() {
		if err := s.notifyChanges(ctx, f, changes, pol); err != nil {
			// Without the destination list nothing was sent; leave the old
			// snapshot in place so the next cycle re-detects these changes.
			return err
		}
	}

	// Persist unconditionally, even with zero transitions; the next
	// cycle's diff is only correct against this fetch.
	if err := s.snaps.Save(f.Name, latest); err != nil {
		s.log.Error("snapshot save failed; next cycle re-diffs the stale baseline",
			logx.String("feed", f.Name), logx.Err(err))
	}

	if changes.Empty() {
		s.log.Debug("no updates", logx.String("feed", f.Name))
		return nil
	}
	s.log.Info("feed updates dispatched",
		logx.String("feed", f.Name),
		logx.Int("new", len(changes.New)),
		logx.Int("deactivated", len(changes.Deactivated)),
		logx.Int("reactivated", len(changes.Reactivated)))
	return nil
}

func (s *Service) notifyChanges(ctx context.Context, f Feed, changes listing.Changes, pol message.MentionPolicy) error {
	targets, err := s.dests.Destinations(ctx)
	if err != nil {
		return fmt.Errorf("read destinations: %w", err)
	}
	if len(targets) == 0 {
		s.log.Debug("no destinations configured; transitions not announced",
			logx.String("feed", f.Name), logx.Int("transitions", changes.Total()))
		return nil
	}
	mention, err := s.dests.MentionTarget(ctx)
	if err != nil {
		return fmt.Errorf("read mention target: %w", err)
	}

	now := s.now()
	for _, r := range changes.New {
		s.notif.Dispatch(ctx, message.Format(r, message.EventNew, mention, pol, now), targets)
	}
	for _, r := range changes.Reactivated {
		s.notif.Dispatch(ctx, message.Format(r, message.EventReactivated, mention, pol, now), targets)
	}
	// Deactivations carry no mention, so one rendering serves every
	// destination. Fanned out after the new/reactivated messages.
	for _, r := range changes.Deactivated {
		s.notif.Dispatch(ctx, message.Format(r, message.EventDeactivated, "", pol, now), targets)
	}
	return nil
}
