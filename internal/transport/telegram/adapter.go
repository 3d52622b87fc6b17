// Package telegram implements the send transport and the admin command
// surface on top of telebot.
package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"rolewatch/internal/transport"
	logx "rolewatch/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration

	// SendTimeout is the transport-level bound on a single API call.
	// Hanging sends surface to the caller as plain (retryable) errors.
	SendTimeout time.Duration
}

type Adapter struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot

	runMu   sync.Mutex
	running bool
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	pollTimeout := cfg.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 10 * time.Second
	}
	sendTimeout := cfg.SendTimeout
	if sendTimeout <= 0 {
		sendTimeout = 15 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: pollTimeout},
		Client: newHTTPClient(sendTimeout),
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Adapter{cfg: cfg, log: log, bot: b}, nil
}

// Bot exposes the underlying bot for command registration.
func (a *Adapter) Bot() *tele.Bot { return a.bot }

// Run starts long-polling and blocks until ctx is cancelled. Meant to be
// driven by the app supervisor.
func (a *Adapter) Run(ctx context.Context) error {
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = true
	a.runMu.Unlock()
	defer func() {
		a.runMu.Lock()
		a.running = false
		a.runMu.Unlock()
	}()

	stop := make(chan struct{})
	go func() {
		defer close(stop)
		<-ctx.Done()
		a.bot.Stop()
	}()

	a.log.Info("polling started")
	a.bot.Start() // blocks until Stop()
	a.log.Info("polling stopped")

	<-stop
	return nil
}

// SendText implements transport.Sender.
//
// The API call itself is bounded by the adapter's HTTP client timeout; ctx
// is only checked up front so an already-abandoned fan-out does not start
// new sends.
func (a *Adapter) SendText(ctx context.Context, to transport.Target, text string, opt *transport.SendOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if opt == nil {
		opt = &transport.SendOptions{}
	}

	sendOpt := &tele.SendOptions{
		ParseMode:             opt.ParseMode,
		DisableWebPagePreview: opt.DisablePreview,
		ThreadID:              to.ThreadID,
	}

	_, err := a.bot.Send(&tele.Chat{ID: to.ChatID}, text, sendOpt)
	return classifySendErr(err)
}
