package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"rolewatch/internal/transport"
	logx "rolewatch/pkg/logx"
)

// DestinationStore is the slice of the config store the command surface
// needs. The watcher reads the same store fresh each cycle, so edits made
// here land on the next cycle.
type DestinationStore interface {
	Destinations(ctx context.Context) ([]transport.Target, error)
	AddDestination(ctx context.Context, t transport.Target) error
	RemoveDestination(ctx context.Context, t transport.Target) (bool, error)
	MentionTarget(ctx context.Context) (string, error)
	SetMentionTarget(ctx context.Context, target string) error
}

// Commands is the owner-gated admin surface for editing destinations and
// the mention target, plus a status readout.
type Commands struct {
	store  DestinationStore
	owners []int64
	status func() string
	runNow func(ctx context.Context) bool
	log    logx.Logger
}

func NewCommands(store DestinationStore, owners []int64, status func() string, runNow func(ctx context.Context) bool, log logx.Logger) *Commands {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Commands{store: store, owners: owners, status: status, runNow: runNow, log: log}
}

const cmdTimeout = 5 * time.Second

// Register installs all command handlers on the bot.
func (h *Commands) Register(bot *tele.Bot) {
	bot.Handle("/start", h.guard(h.handleHelp))
	bot.Handle("/help", h.guard(h.handleHelp))
	bot.Handle("/watch", h.guard(h.handleWatch))
	bot.Handle("/unwatch", h.guard(h.handleUnwatch))
	bot.Handle("/channels", h.guard(h.handleChannels))
	bot.Handle("/mention", h.guard(h.handleMention))
	bot.Handle("/status", h.guard(h.handleStatus))
	bot.Handle("/run", h.guard(h.handleRun))

	_ = bot.SetCommands([]tele.Command{
		{Text: "watch", Description: "Send listing notifications to this chat"},
		{Text: "unwatch", Description: "Stop notifications for this chat"},
		{Text: "channels", Description: "List notification destinations"},
		{Text: "mention", Description: "Set or clear the mention target"},
		{Text: "status", Description: "Show watcher status"},
		{Text: "run", Description: "Run a poll cycle now"},
	})
}

func (h *Commands) guard(next func(c tele.Context) error) func(c tele.Context) error {
	return func(c tele.Context) error {
		sender := c.Sender()
		if sender == nil || !h.isOwner(sender.ID) {
			return c.Reply("You are not allowed to configure this bot.")
		}
		if err := next(c); err != nil {
			h.log.Warn("command failed",
				logx.String("text", c.Text()), logx.Err(err))
			return c.Reply("Something went wrong; check the logs.")
		}
		return nil
	}
}

func (h *Commands) isOwner(id int64) bool {
	for _, o := range h.owners {
		if o == id {
			return true
		}
	}
	return false
}

func targetOf(c tele.Context) transport.Target {
	t := transport.Target{ChatID: c.Chat().ID}
	if m := c.Message(); m != nil {
		t.ThreadID = m.ThreadID
	}
	return t
}

func (h *Commands) handleHelp(c tele.Context) error {
	return c.Reply("Commands:\n" +
		"/watch — notify this chat about listing changes\n" +
		"/unwatch — stop notifying this chat\n" +
		"/channels — list destinations\n" +
		"/mention <token>|off — mention target for watched companies\n" +
		"/status — watcher status\n" +
		"/run — run a poll cycle now")
}

func (h *Commands) handleWatch(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), cmdTimeout)
	defer cancel()

	t := targetOf(c)
	if err := h.store.AddDestination(ctx, t); err != nil {
		return err
	}
	h.log.Info("destination added", logx.String("dest", t.Key()))
	return c.Reply("This chat will now receive listing notifications.")
}

func (h *Commands) handleUnwatch(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), cmdTimeout)
	defer cancel()

	t := targetOf(c)
	removed, err := h.store.RemoveDestination(ctx, t)
	if err != nil {
		return err
	}
	if !removed {
		return c.Reply("This chat was not receiving notifications.")
	}
	h.log.Info("destination removed", logx.String("dest", t.Key()))
	return c.Reply("This chat will no longer receive notifications.")
}

func (h *Commands) handleChannels(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), cmdTimeout)
	defer cancel()

	targets, err := h.store.Destinations(ctx)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return c.Reply("No destinations are configured.")
	}
	var b strings.Builder
	b.WriteString("Destinations:\n")
	for _, t := range targets {
		fmt.Fprintf(&b, "- %s\n", t.Key())
	}
	return c.Reply(b.String())
}

func (h *Commands) handleMention(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), cmdTimeout)
	defer cancel()

	arg := ""
	if m := c.Message(); m != nil {
		arg = strings.TrimSpace(m.Payload)
	}
	switch {
	case arg == "":
		cur, err := h.store.MentionTarget(ctx)
		if err != nil {
			return err
		}
		if cur == "" {
			return c.Reply("No mention target is configured. Use /mention <token> or /mention off.")
		}
		return c.Reply("Current mention target: " + cur)
	case strings.EqualFold(arg, "off"):
		if err := h.store.SetMentionTarget(ctx, ""); err != nil {
			return err
		}
		return c.Reply("Mention target cleared.")
	default:
		if err := h.store.SetMentionTarget(ctx, arg); err != nil {
			return err
		}
		return c.Reply("Mention target set to " + arg + ".")
	}
}

func (h *Commands) handleStatus(c tele.Context) error {
	if h.status == nil {
		return c.Reply("Status unavailable.")
	}
	return c.Reply(h.status())
}

func (h *Commands) handleRun(c tele.Context) error {
	if h.runNow == nil {
		return c.Reply("Manual runs are unavailable.")
	}
	if !h.runNow(context.Background()) {
		return c.Reply("A poll cycle is already running.")
	}
	return c.Reply("Poll cycle finished.")
}
