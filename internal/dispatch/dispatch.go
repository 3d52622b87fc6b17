package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"rolewatch/internal/transport"
	logx "rolewatch/pkg/logx"
)

type Config struct {
	// Pacing is the courtesy gap between consecutive sends to the same
	// destination. Telegram tolerates roughly one message per second per
	// chat before throttling.
	Pacing time.Duration

	// SendTimeout bounds a single hanging send; it surfaces to the health
	// tracker as a retryable failure.
	SendTimeout time.Duration

	// FailureThreshold is forwarded to the health tracker.
	FailureThreshold int
}

// Dispatcher fans one message out to many destinations concurrently.
//
// Every send it issues is joined before Dispatch returns, so callers get a
// deterministic "all sends attempted" point. Outcomes feed the health
// tracker; destinations it currently marks skipped are not attempted at all.
// Dispatch never fails: delivery problems are logged and recorded, not
// propagated.
type Dispatcher struct {
	mu  sync.Mutex
	cfg Config

	sender transport.Sender
	health *HealthTracker
	log    logx.Logger

	limMu    sync.Mutex
	limiters map[string]*rate.Limiter
}

func New(cfg Config, sender transport.Sender, log logx.Logger) *Dispatcher {
	if cfg.Pacing <= 0 {
		cfg.Pacing = time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{
		cfg:      cfg,
		sender:   sender,
		health:   NewHealthTracker(cfg.FailureThreshold),
		log:      log,
		limiters: map[string]*rate.Limiter{},
	}
}

// Health exposes the tracker for status reporting and tests.
func (d *Dispatcher) Health() *HealthTracker { return d.health }

// Apply updates pacing and timeout at runtime. The failure threshold is
// fixed at construction; changing it mid-flight would reinterpret counters.
func (d *Dispatcher) Apply(cfg Config) {
	if cfg.Pacing <= 0 {
		cfg.Pacing = time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	d.mu.Lock()
	d.cfg.Pacing = cfg.Pacing
	d.cfg.SendTimeout = cfg.SendTimeout
	d.mu.Unlock()

	d.limMu.Lock()
	for _, lim := range d.limiters {
		lim.SetLimit(rate.Every(cfg.Pacing))
	}
	d.limMu.Unlock()
}

// Dispatch sends text to every destination not currently skipped and waits
// for all of them.
func (d *Dispatcher) Dispatch(ctx context.Context, text string, targets []transport.Target) {
	if len(targets) == 0 {
		d.log.Debug("no destinations configured; nothing to send")
		return
	}

	start := time.Now()
	var sent, failed atomic.Int64
	skipped := 0

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range targets {
		if d.health.ShouldSkip(t.Key()) {
			skipped++
			d.log.Debug("destination skipped (unhealthy)", logx.String("dest", t.Key()))
			continue
		}
		t := t
		g.Go(func() error {
			if d.sendOne(gctx, t, text) == Success {
				sent.Add(1)
			} else {
				failed.Add(1)
			}
			// Sends never cancel their siblings.
			return nil
		})
	}
	_ = g.Wait()

	fields := []logx.Field{
		logx.Int("total", len(targets)),
		logx.Int64("sent", sent.Load()),
		logx.Int("skipped", skipped),
		logx.Duration("took", time.Since(start)),
	}
	if n := failed.Load(); n > 0 {
		d.log.Warn("dispatch finished with failures", append(fields, logx.Int64("failed", n))...)
		return
	}
	d.log.Debug("dispatch finished", fields...)
}

func (d *Dispatcher) sendOne(ctx context.Context, t transport.Target, text string) Outcome {
	d.mu.Lock()
	timeout := d.cfg.SendTimeout
	sender := d.sender
	d.mu.Unlock()

	key := t.Key()

	// Per-destination pacing: consecutive messages to one chat within a
	// cycle wait out the courtesy gap; other destinations are unaffected.
	// Only successful sends charge the gap, so a failed attempt never
	// pushes the destination's next message back.
	lim := d.limiterFor(key)
	if err := paceWait(ctx, lim); err != nil {
		d.health.RecordOutcome(key, RetryableFailure)
		return RetryableFailure
	}

	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := sender.SendText(sctx, t, text, &transport.SendOptions{ParseMode: "Markdown"})

	var out Outcome
	switch {
	case err == nil:
		out = Success
		lim.AllowN(time.Now(), 1)
	case transport.IsPermanent(err):
		out = PermanentFailure
		d.log.Warn("destination rejected send permanently", logx.String("dest", key), logx.Err(err))
	default:
		out = RetryableFailure
		d.log.Warn("send failed", logx.String("dest", key), logx.Err(err))
	}
	d.health.RecordOutcome(key, out)
	return out
}

// paceWait waits out the gap left by the previous successful send without
// consuming a token. The reservation is canceled before its time-to-act,
// which refunds it in full.
func paceWait(ctx context.Context, lim *rate.Limiter) error {
	r := lim.ReserveN(time.Now(), 1)
	delay := r.Delay()
	r.Cancel()
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) limiterFor(key string) *rate.Limiter {
	d.mu.Lock()
	pacing := d.cfg.Pacing
	d.mu.Unlock()

	d.limMu.Lock()
	defer d.limMu.Unlock()
	lim := d.limiters[key]
	if lim == nil {
		lim = rate.NewLimiter(rate.Every(pacing), 1)
		d.limiters[key] = lim
	}
	return lim
}
