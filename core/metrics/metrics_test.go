package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.WebhookUpdate("ok")
		m.UpdateReceived("message")
		m.EventHandled("text", "ok")
		m.Transition("NONE", "CREATE_STARTED")
		m.ProviderCall("imgflip", "caption", time.Second, nil)
		m.Rendered(time.Second, errors.New("boom"))
		m.MessageSent("photo")
		m.FilesSwept(3)
	})
	assert.Nil(t, m.Registry())
}

func TestCounters(t *testing.T) {
	m := New()
	m.EventHandled("text", "ok")
	m.EventHandled("text", "ok")
	m.Transition("NONE", "CREATE_STARTED")
	m.ProviderCall("openai", "generate", 10*time.Millisecond, errors.New("rejected"))
	m.FilesSwept(2)
	m.FilesSwept(0)
	m.UpdateReceived("callback")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.events.WithLabelValues("text", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("NONE", "CREATE_STARTED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerCalls.WithLabelValues("openai", "generate", "fail")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.swept))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.received.WithLabelValues("callback")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.MessageSent("text")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `memebot_outbound_messages_total{kind="text"} 1`)
}
