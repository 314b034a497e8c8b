package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestHTTP_Index(t *testing.T) {
	code, body := get(t, Handler(pinger{}), "/")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "/export_csv")

	code, _ = get(t, Handler(pinger{}), "/export/csv")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHTTP_Healthz(t *testing.T) {
	code, body := get(t, Handler(pinger{}), "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)

	code, _ = get(t, Handler(pinger{err: errors.New("down")}), "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestHTTP_Metrics(t *testing.T) {
	code, body := get(t, Handler(pinger{}), "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "ecoreport_")
}
