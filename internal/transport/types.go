// Package transport defines the platform-neutral send surface.
//
// The watcher core talks to destinations only through Sender and Target;
// the Telegram implementation lives in transport/telegram.
package transport

import (
	"context"
	"errors"
	"fmt"
)

// Target is one configured delivery destination: a chat plus an optional
// forum topic thread (0 when none).
type Target struct {
	ChatID   int64
	ThreadID int
}

// Key returns the stable identity used by the health tracker.
func (t Target) Key() string {
	if t.ThreadID == 0 {
		return fmt.Sprintf("%d", t.ChatID)
	}
	return fmt.Sprintf("%d:%d", t.ChatID, t.ThreadID)
}

// SendOptions carries per-message rendering hints.
type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Sender sends one message to one destination. Implementations classify
// unrecoverable failures by wrapping the returned error with Permanent.
type Sender interface {
	SendText(ctx context.Context, to Target, text string, opt *SendOptions) error
}

// Permanent marks a send error as non-retryable (authorization problems,
// destinations that cannot ever receive messages). Transient failures are
// returned unwrapped.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent reports whether err is wrapped with Permanent.
func IsPermanent(err error) bool {
	var e permanentError
	return errors.As(err, &e)
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return fmt.Sprintf("permanent: %v", e.err) }
func (e permanentError) Unwrap() error { return e.err }
