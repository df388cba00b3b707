package telegram

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/memebot/core/config"
	"github.com/m3rciful/memebot/core/metrics"

	tele "gopkg.in/telebot.v4"
)

const testToken = "123:abc"

type webhookFixture struct {
	handler *HTTPHandler
	ready   atomic.Bool

	mu      sync.Mutex
	updates []tele.Update
}

func newWebhookFixture(secret string) *webhookFixture {
	f := &webhookFixture{}
	f.ready.Store(true)
	f.handler = NewHTTPHandler(HTTPOptions{
		Token:       testToken,
		SecretToken: secret,
		Ready:       f.ready.Load,
		Process: func(u tele.Update) {
			f.mu.Lock()
			f.updates = append(f.updates, u)
			f.mu.Unlock()
		},
		Metrics: metrics.New(),
	})
	return f
}

func (f *webhookFixture) processed() []tele.Update {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tele.Update(nil), f.updates...)
}

func (f *webhookFixture) do(method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = f.handler.Drain(ctx)
	return rec
}

const textUpdate = `{"update_id":7,"message":{"message_id":1,"date":1,"chat":{"id":42,"type":"private"},"from":{"id":42,"first_name":"Ada"},"text":"hi"}}`

func TestWebhook_ProcessesUpdate(t *testing.T) {
	f := newWebhookFixture("")
	rec := f.do(http.MethodPost, "/bot/"+testToken, textUpdate, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	updates := f.processed()
	require.Len(t, updates, 1)
	assert.Equal(t, 7, updates[0].ID)
	require.NotNil(t, updates[0].Message)
	assert.Equal(t, "hi", updates[0].Message.Text)
	assert.Equal(t, int64(42), updates[0].Message.Chat.ID)
}

func TestWebhook_AlwaysAcknowledges(t *testing.T) {
	t.Run("malformed body", func(t *testing.T) {
		f := newWebhookFixture("")
		rec := f.do(http.MethodPost, "/bot/"+testToken, "{not json", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", rec.Body.String())
		assert.Empty(t, f.processed())
	})
	t.Run("not ready", func(t *testing.T) {
		f := newWebhookFixture("")
		f.ready.Store(false)
		rec := f.do(http.MethodPost, "/bot/"+testToken, textUpdate, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, f.processed())
	})
	t.Run("wrong secret", func(t *testing.T) {
		f := newWebhookFixture("s3cret")
		rec := f.do(http.MethodPost, "/bot/"+testToken, textUpdate, map[string]string{SecretHeader: "nope"})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, f.processed())

		rec = f.do(http.MethodPost, "/bot/"+testToken, textUpdate, map[string]string{SecretHeader: "s3cret"})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, f.processed(), 1)
	})
}

func TestWebhook_AcknowledgesBeforeSlowUpdate(t *testing.T) {
	release := make(chan struct{})
	var done atomic.Bool
	h := NewHTTPHandler(HTTPOptions{
		Token: testToken,
		Process: func(tele.Update) {
			<-release
			done.Store(true)
		},
	})
	srv := httptest.NewUnstartedServer(h)
	srv.Config.WriteTimeout = 200 * time.Millisecond
	srv.Start()
	defer srv.Close()

	resp, err := srv.Client().Post(srv.URL+"/bot/"+testToken, "application/json", strings.NewReader(textUpdate))
	require.NoError(t, err, "delivery must be answered while the update is still running")
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
	assert.False(t, done.Load())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.Drain(ctx), context.DeadlineExceeded)

	time.Sleep(300 * time.Millisecond)
	close(release)
	require.NoError(t, h.Drain(context.Background()))
	assert.True(t, done.Load())
}

func TestWebhook_ProcessPanicIsContained(t *testing.T) {
	h := NewHTTPHandler(HTTPOptions{
		Token:   testToken,
		Process: func(tele.Update) { panic("boom") },
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/bot/"+testToken, strings.NewReader(textUpdate)))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, h.Drain(context.Background()))
}

func TestWebhook_UnknownTokenPath(t *testing.T) {
	f := newWebhookFixture("")
	rec := f.do(http.MethodPost, "/bot/other", textUpdate, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, f.processed())
}

func TestWebhook_MetricsCountResults(t *testing.T) {
	f := newWebhookFixture("")
	f.do(http.MethodPost, "/bot/"+testToken, textUpdate, nil)
	f.do(http.MethodPost, "/bot/"+testToken, "[", nil)

	rec := f.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `memebot_webhook_updates_total{result="ok"} 1`)
	assert.Contains(t, body, `memebot_webhook_updates_total{result="malformed"} 1`)
}

func TestHealthz(t *testing.T) {
	f := newWebhookFixture("")
	f.ready.Store(false)
	rec := f.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	f.ready.Store(true)
	rec = f.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestHTTPHandler_LongPollHasNoWebhookRoute(t *testing.T) {
	h := NewHTTPHandler(HTTPOptions{Token: testToken})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/bot/"+testToken, strings.NewReader(textUpdate)))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBuildPoller(t *testing.T) {
	assert.Nil(t, BuildPoller(configFor("webhook")))
	lp, ok := BuildPoller(configFor("longpoll")).(*tele.LongPoller)
	require.True(t, ok)
	assert.Equal(t, "10s", lp.Timeout.String())
}

func configFor(mode string) config.BotConfig {
	return config.BotConfig{RunMode: mode}
}
