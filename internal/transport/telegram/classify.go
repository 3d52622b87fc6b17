package telegram

import (
	"errors"
	"net/http"
	"time"

	tele "gopkg.in/telebot.v4"

	"rolewatch/internal/transport"
)

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// classifySendErr maps Telegram API failures onto the dispatch taxonomy.
//
// Authorization failures (bot kicked, chat admin revoked the bot, bad
// token) can never heal on retry, so they are marked permanent and silence
// the destination for the rest of the process lifetime. Everything else —
// including "chat not found", flood waits, and plain network trouble — is
// left retryable and handled by the failure counter.
func classifySendErr(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return transport.Permanent(err)
		}
	}
	return err
}
