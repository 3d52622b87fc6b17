package telegram

import (
	"errors"
	"fmt"
	"testing"

	tele "gopkg.in/telebot.v4"

	"rolewatch/internal/transport"
)

func TestClassifySendErr(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		permanent bool
	}{
		{"nil", nil, false},
		{"forbidden is permanent", &tele.Error{Code: 403, Description: "Forbidden: bot was kicked"}, true},
		{"unauthorized is permanent", &tele.Error{Code: 401, Description: "Unauthorized"}, true},
		{"chat not found stays retryable", &tele.Error{Code: 400, Description: "Bad Request: chat not found"}, false},
		{"flood stays retryable", &tele.Error{Code: 429, Description: "Too Many Requests"}, false},
		{"server error stays retryable", &tele.Error{Code: 502, Description: "Bad Gateway"}, false},
		{"plain network error stays retryable", errors.New("dial tcp: timeout"), false},
		{"wrapped api error unwraps", fmt.Errorf("send: %w", &tele.Error{Code: 403}), true},
	}
	for _, tc := range cases {
		got := classifySendErr(tc.err)
		if tc.err == nil {
			if got != nil {
				t.Errorf("%s: classify(nil) = %v", tc.name, got)
			}
			continue
		}
		if got == nil {
			t.Errorf("%s: error dropped", tc.name)
			continue
		}
		if transport.IsPermanent(got) != tc.permanent {
			t.Errorf("%s: IsPermanent = %v, want %v", tc.name, transport.IsPermanent(got), tc.permanent)
		}
	}
}

func TestPermanentWrapKeepsCause(t *testing.T) {
	cause := &tele.Error{Code: 403, Description: "Forbidden"}
	got := classifySendErr(cause)

	var apiErr *tele.Error
	if !errors.As(got, &apiErr) || apiErr.Code != 403 {
		t.Fatalf("wrapped error lost its cause: %v", got)
	}
}
