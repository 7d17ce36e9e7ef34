package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventclock/internal/clock"
	"eventclock/internal/config"
	"eventclock/internal/driver"
	"eventclock/internal/metrics"
	"eventclock/internal/model"
	"eventclock/internal/status"
)

var now = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, cfg *config.Config) (*httptest.Server, *driver.Driver, *Board) {
	t.Helper()

	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	board := NewBoard()
	d := driver.New(board, []model.Event{
		{ID: "past", Title: "Breakfast", Start: now.Add(-7 * time.Hour).Format(time.RFC3339)},
		{ID: "live", Title: "基調講演", Start: now.Add(-10 * time.Minute).Format(time.RFC3339)},
		{ID: "next", Title: "Panel", Start: now.Add(90 * time.Minute).Format(time.RFC3339)},
		{ID: "tbd", Title: "TBD"},
	}, driver.Options{
		Classifier: status.NewClassifier(3*time.Minute, 6*time.Hour),
		Clocks: []driver.ClockZone{
			{Label: "UTC", Timezone: "UTC"},
			{Label: "Tokyo", Timezone: "Asia/Tokyo"},
		},
		Clock:    clock.Fixed(now),
		Recorder: m,
	})
	d.Tick(now)

	ts := httptest.NewServer(NewServer(cfg, board, d, reg).Handler())
	t.Cleanup(ts.Close)
	return ts, d, board
}

func getBoard(t *testing.T, url string) Snapshot {
	t.Helper()
	resp, err := http.Get(url + "/api/board")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	return snap
}

func TestBoardAPI(t *testing.T) {
	ts, _, _ := newTestServer(t, config.DefaultConfig())

	snap := getBoard(t, ts.URL)

	assert.True(t, snap.Ready)
	require.Len(t, snap.Clocks, 2)
	assert.Equal(t, "21:00:00", snap.Clocks[1].Time)

	require.Len(t, snap.Events, 4)
	assert.Equal(t, "Already happened", snap.Events[0].Label)
	assert.Equal(t, "Live now", snap.Events[1].Label)
	assert.True(t, snap.Events[1].Expanded)
	assert.Equal(t, "Upcoming: 01:30:00", snap.Events[2].Label)
	require.NotNil(t, snap.Events[2].Status)
	assert.Equal(t, status.Remaining{Hours: 1, Minutes: 30}, snap.Events[2].Status.Remaining)
	assert.Nil(t, snap.Events[3].Status)
	assert.Equal(t, driver.ViewState{Expanded: "live", Scroll: "live"}, snap.State)
}

func TestToggleAPI(t *testing.T) {
	ts, d, _ := newTestServer(t, config.DefaultConfig())

	resp, err := http.Post(ts.URL+"/api/board/next/toggle", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "next", d.State().Expanded)

	snap := getBoard(t, ts.URL)
	assert.False(t, snap.Events[1].Expanded)
	assert.True(t, snap.Events[2].Expanded)

	resp, err = http.Post(ts.URL+"/api/board/missing/toggle", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestIndexPage(t *testing.T) {
	ts, _, _ := newTestServer(t, config.DefaultConfig())

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	page := string(body)
	assert.Contains(t, page, `data-ready="true"`)
	assert.Contains(t, page, "基調講演")
	assert.Contains(t, page, `id="event-live"`)
	assert.True(t, strings.Contains(page, `data-id="live" class="live" open>`), page)
}

func TestHealthAndMetrics(t *testing.T) {
	ts, _, _ := newTestServer(t, config.DefaultConfig())

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `eventclock_events{status="live"} 1`)
	assert.Contains(t, string(body), "eventclock_skipped_events 1")
}

func TestBasicAuth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "pw"}
	ts, _, _ := newTestServer(t, cfg)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/board")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/board", nil)
	req.SetBasicAuth("admin", "pw")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBoard_SetEventsDropsStaleStatuses(t *testing.T) {
	b := NewBoard()
	b.SetEvents([]model.Event{{ID: "a"}, {ID: "b"}})
	b.UpdateEvent("a", status.Status{Kind: status.Live}, "Live now")
	b.UpdateEvent("b", status.Status{Kind: status.Passed}, "Already happened")

	b.SetEvents([]model.Event{{ID: "b"}, {ID: "c"}})
	snap := b.Snapshot()

	require.Len(t, snap.Events, 2)
	assert.Equal(t, "Already happened", snap.Events[0].Label)
	assert.Empty(t, snap.Events[1].Label)
	assert.Empty(t, snap.Clocks)
}
