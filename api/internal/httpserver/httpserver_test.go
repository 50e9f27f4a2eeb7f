package httpserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screen-bot/api/internal/metrics"
)

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestHealthz(t *testing.T) {
	code, body := get(t, Handler(nil, nil), "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)

	code, body = get(t, Handler(nil, pinger{}), "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)

	code, body = get(t, Handler(nil, pinger{err: errors.New("refused")}), "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, "refused")
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	m.Capture("slot", true)
	code, body := get(t, Handler(m.Registry, nil), "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `screenbot_captures_total{mode="slot",result="ok"} 1`)
}

func TestUnknownPath(t *testing.T) {
	code, _ := get(t, Handler(nil, nil), "/nope")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = get(t, Handler(nil, nil), "/metrics")
	assert.Equal(t, http.StatusNotFound, code)
}
