package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"laundry/pkg/config"
	"laundry/pkg/logger"
	"laundry/pkg/metrics"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(ctx context.Context, rp *readpref.ReadPref) error {
	return f.err
}

type countingHandler struct {
	posts int
}

func (h *countingHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/machines", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	})
	router.POST("/reservations", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		h.posts++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"r1"}`))
	})
	router.GET("/panic", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		panic("boom")
	})
}

func newTestApp(t *testing.T, pinger Pinger) (*Application, *countingHandler, *metrics.Metrics) {
	t.Helper()
	cfg := &config.Config{
		Port:              "0",
		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
		RequestTimeout:    time.Second,
		IdempotencyTTL:    time.Minute,
		MaxRequestSize:    1 << 20,
		ShutdownTimeout:   time.Second,
		Log:               logger.Discard(),
	}
	m := metrics.New()
	h := &countingHandler{}

	a := NewApplication(cfg, WithMetrics(m), WithPinger(pinger))
	a.SetApp(h)
	t.Cleanup(func() {
		a.idempotencyStore.Stop()
		a.rateLimiter.Stop()
	})
	return a, h, m
}

func do(a *Application, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	return rec
}

func TestApplication_HealthAndReady(t *testing.T) {
	a, _, _ := newTestApp(t, &fakePinger{})

	rec := do(a, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(a, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready","database":"ok"}`, rec.Body.String())
}

func TestApplication_ReadyFailsWithoutDatabase(t *testing.T) {
	a, _, _ := newTestApp(t, &fakePinger{err: errors.New("no reachable servers")})

	rec := do(a, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"error"`)
}

func TestApplication_MetricsEndpoint(t *testing.T) {
	a, _, _ := newTestApp(t, &fakePinger{})

	rec := do(a, httptest.NewRequest(http.MethodGet, "/machines", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(a, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `laundry_http_requests_total{method="GET",route="/machines",status="200"} 1`)
}

func TestApplication_RequiresJSONContentType(t *testing.T) {
	a, h, _ := newTestApp(t, &fakePinger{})

	req := httptest.NewRequest(http.MethodPost, "/reservations", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "text/plain")
	rec := do(a, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Zero(t, h.posts)
}

func TestApplication_IdempotentCreateReplays(t *testing.T) {
	a, h, _ := newTestApp(t, &fakePinger{})

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/reservations", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", "key-1")
		req.Header.Set("X-Apartment-Number", "4B")
		return do(a, req)
	}

	first := send()
	second := send()

	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, h.posts)
}

func TestApplication_RecoversFromPanic(t *testing.T) {
	a, _, _ := newTestApp(t, &fakePinger{})

	rec := do(a, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
