package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type fakeBroker struct {
	submitted []any
	err       error
}

func (b *fakeBroker) Submit(ctx context.Context, job any) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	b.submitted = append(b.submitted, job)
	return "job-1", nil
}

func (b *fakeBroker) StatusString(ctx context.Context) string {
	return "ready=0 delayed=0 pending=0 complete=0"
}

func newTestRouter(t *testing.T) (*gin.Engine, *fakeBroker) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	m := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { rdb.Close() })
	b := &fakeBroker{}
	return NewRouter(b, rdb), b
}

func TestSubmitJob(t *testing.T) {
	r, b := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(`{"type":"echo","data":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	require.Contains(t, w.Body.String(), "job-1")
	require.Len(t, b.submitted, 1)
}

func TestSubmitRejectsBadJSON(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(`{nope`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "ready=0")
}

func TestHealthz(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}
