package sender

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	tele "gopkg.in/telebot.v4"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"deadline", fmt.Errorf("send: %w", context.DeadlineExceeded), "timeout"},
		{"dns", &net.DNSError{Err: "no such host", Name: "api.telegram.org"}, "dns"},
		{"dial", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, "dial"},
		{"flood", tele.FloodError{RetryAfter: 3}, "http_4xx"},
		{"api 5xx", errors.New("telegram: Internal Server Error (502)"), "http_5xx"},
		{"plain", errors.New("boom"), "unknown"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, 429, StatusOf(tele.FloodError{RetryAfter: 1}))
	assert.Equal(t, 400, StatusOf(errors.New("telegram: Bad Request: chat not found (400)")))
	assert.Zero(t, StatusOf(errors.New("no code here")))
	assert.Zero(t, StatusOf(nil))
}

func TestRedact(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123456:AAE-x_y/sendPhoto": dial tcp: i/o timeout`)
	got := Redact(err)
	assert.NotContains(t, got, "123456:AAE-x_y")
	assert.Contains(t, got, "bot<redacted>/sendPhoto")
	assert.Empty(t, Redact(nil))
}

func TestLogHelpersDoNotPanic(t *testing.T) {
	Failed(context.Background(), "sendMessage", errors.New("boom"), 15*time.Millisecond)
	Sent(context.Background(), "sendMessage", time.Millisecond)
}
