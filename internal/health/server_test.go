package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func getStatus(t *testing.T, h http.Handler) (int, Status) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	var s Status
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&s))
	return rec.Code, s
}

func TestHealthEndpoint(t *testing.T) {
	m := NewMonitor()
	h := NewRouter(m)

	code, s := getStatus(t, h)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "not started", s.LastPollStatus)
	require.Empty(t, s.LastPollTime)

	m.RecordPoll(4, nil)
	code, s = getStatus(t, h)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "success", s.LastPollStatus)
	require.Equal(t, 4, s.PendingTickets)
	require.NotEmpty(t, s.LastPollTime)

	m.RecordPoll(0, errors.New("network down"))
	code, s = getStatus(t, h)
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "degraded", s.Status)
	require.Equal(t, "error: network down", s.LastPollStatus)
	require.Equal(t, 4, s.PendingTickets)
}

func TestLiveness(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRouter(NewMonitor()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestRefresh(t *testing.T) {
	m := NewMonitor()
	h := NewRouter(m)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/refresh", nil))
	require.Equal(t, http.StatusNotImplemented, rec.Code)

	calls := 0
	m.SetRefresh(func(context.Context) error {
		calls++
		m.RecordPoll(2, nil)
		return nil
	})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/refresh", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, calls)

	var s Status
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&s))
	require.Equal(t, 2, s.PendingTickets)
}
