package telegram

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/m3rciful/memebot/core/logger"
	"github.com/m3rciful/memebot/core/metrics"

	tele "gopkg.in/telebot.v4"
)

// SecretHeader carries the webhook secret_token on every Telegram delivery.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

const maxUpdateBytes = 1 << 20

// Webhook delivery outcomes, used as the metrics result label.
const (
	UpdateOK           = "ok"
	UpdateMalformed    = "malformed"
	UpdateUnauthorized = "unauthorized"
	UpdateNotReady     = "not_ready"
)

// HTTPOptions configures the inbound HTTP surface.
type HTTPOptions struct {
	Token       string
	SecretToken string
	MetricsPath string

	// Ready gates update processing and /healthz.
	Ready func() bool
	// Process handles one decoded update off the request goroutine.
	// Nil in long-poll mode.
	Process func(tele.Update)
	Metrics *metrics.Metrics
}

// HTTPHandler is the inbound HTTP surface. Accepted updates keep running
// after their delivery was acknowledged; Drain waits for them.
type HTTPHandler struct {
	http.Handler
	inflight sync.WaitGroup
}

// NewHTTPHandler serves POST /bot/{token}, GET /healthz and the metrics
// endpoint. Deliveries on the right path are acknowledged with 200 before
// the update is processed so Telegram never redelivers; failures are visible
// in logs and metrics only.
func NewHTTPHandler(opts HTTPOptions) *HTTPHandler {
	if opts.Ready == nil {
		opts.Ready = func() bool { return true }
	}
	h := &HTTPHandler{}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !opts.Ready() {
			writePlain(w, http.StatusServiceUnavailable, "starting")
			return
		}
		writePlain(w, http.StatusOK, "ok")
	})

	if opts.Metrics != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, opts.Metrics.Handler())
	}

	if opts.Process != nil {
		r.Post("/bot/{token}", func(w http.ResponseWriter, req *http.Request) {
			if !equal(chi.URLParam(req, "token"), opts.Token) {
				http.NotFound(w, req)
				return
			}
			upd, result := accept(req, opts)
			opts.Metrics.WebhookUpdate(result)
			if upd != nil {
				h.dispatch(req.Context(), opts.Process, *upd)
			}
			writePlain(w, http.StatusOK, "ok")
		})
	}
	h.Handler = r
	return h
}

// Drain blocks until every dispatched update finished or ctx is done.
// Call it after the HTTP server stopped accepting requests.
func (h *HTTPHandler) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *HTTPHandler) dispatch(ctx context.Context, process func(tele.Update), upd tele.Update) {
	rid := middleware.GetReqID(ctx)
	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Error(context.Background(), logger.CompHTTP, "webhook.panic",
					slog.Any("panic", r),
					slog.String("rid", rid),
					slog.Int("update_id", upd.ID),
				)
			}
		}()
		process(upd)
	}()
}

func accept(req *http.Request, opts HTTPOptions) (*tele.Update, string) {
	ctx := req.Context()
	if opts.SecretToken != "" && !equal(req.Header.Get(SecretHeader), opts.SecretToken) {
		logger.Warn(ctx, logger.CompHTTP, "webhook.unauthorized",
			slog.String("remote", req.RemoteAddr),
		)
		return nil, UpdateUnauthorized
	}
	if !opts.Ready() {
		logger.Warn(ctx, logger.CompHTTP, "webhook.not_ready",
			slog.String("err_code", "store_not_ready"),
		)
		return nil, UpdateNotReady
	}

	var upd tele.Update
	if err := json.NewDecoder(io.LimitReader(req.Body, maxUpdateBytes)).Decode(&upd); err != nil {
		logger.Warn(ctx, logger.CompHTTP, "webhook.malformed", slog.Any("err", err))
		return nil, UpdateMalformed
	}
	return &upd, UpdateOK
}

func equal(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func writePlain(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = io.WriteString(w, body)
}

// requestLogger writes one line per request. The bot token in the path is
// never logged.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		level := logger.Debug
		if ww.Status() >= http.StatusInternalServerError {
			level = logger.Warn
		}
		level(r.Context(), logger.CompHTTP, "http.request",
			slog.String("method", r.Method),
			slog.String("route", route),
			slog.Int("code", ww.Status()),
			slog.String("rid", middleware.GetReqID(r.Context())),
			slog.Duration("duration", logger.Took(start)),
		)
	})
}
