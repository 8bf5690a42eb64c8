package daemon

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ot2lab/liquidtrack/pkg/api"
	"github.com/ot2lab/liquidtrack/pkg/config"
	"github.com/ot2lab/liquidtrack/pkg/events"
	"github.com/ot2lab/liquidtrack/pkg/tracker"
	"github.com/ot2lab/liquidtrack/pkg/tube"
	"github.com/ot2lab/liquidtrack/pkg/version"
)

func newTestRouter(t *testing.T) (*gin.Engine, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "liquidtrack.json")
	router, err := setup(config.NewFileFromConfig(&config.RawFileConfig{}, path))
	require.NoError(t, err)

	t.Cleanup(func() {
		sweeper.Stop()
		sseHub.Close()
		now = time.Now
	})
	return router, path
}

func do(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestGetVersionAndStatus(t *testing.T) {
	router, _ := newTestRouter(t)

	w := do(t, router, http.MethodGet, "/version", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, version.Version, decode[string](t, w))

	w = do(t, router, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	st := decode[api.DaemonStatus](t, w)
	assert.Equal(t, 0, st.ActiveTrackers)
	assert.NotEmpty(t, st.NextSweep)
}

func TestTubes(t *testing.T) {
	router, _ := newTestRouter(t)

	w := do(t, router, http.MethodGet, "/tubes", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]tube.Geometry](t, w), len(tube.Types()))

	w = do(t, router, http.MethodGet, "/tubes/"+tube.Tube15mL, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, tube.Tube15mL, decode[tube.Geometry](t, w).Type)

	w = do(t, router, http.MethodGet, "/tubes/96_well_plate", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPostInitialHeight(t *testing.T) {
	router, _ := newTestRouter(t)

	w := do(t, router, http.MethodPost, "/initial-height", `{"tubeType":"15mL_tubes","startVolumeUL":12000}`)
	require.Equal(t, http.StatusOK, w.Code)
	want, err := tracker.InitialHeight(tube.Tube15mL, 12000)
	require.NoError(t, err)
	assert.InDelta(t, want, decode[api.InitialHeightResponse](t, w).HeightMM, 1e-9)

	tests := []struct {
		name string
		body string
	}{
		{"unknown tube", `{"tubeType":"bucket","startVolumeUL":100}`},
		{"negative volume", `{"tubeType":"15mL_tubes","startVolumeUL":-1}`},
		{"malformed", `{"tubeType":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/initial-height", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestPostStep(t *testing.T) {
	router, _ := newTestRouter(t)

	w := do(t, router, http.MethodPost, "/step", `{"tubeType":"15mL_tubes","deltaVolumeUL":200,"currentHeightMM":80,"direction":"emptying"}`)
	require.Equal(t, http.StatusOK, w.Code)
	want, err := tracker.Step(tube.Tube15mL, 200, 80, tracker.Emptying)
	require.NoError(t, err)
	assert.Equal(t, want, decode[tracker.Result](t, w))

	w = do(t, router, http.MethodPost, "/step", `{"tubeType":"15mL_tubes","deltaVolumeUL":200,"currentHeightMM":80,"direction":"sideways"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTrackerLifecycle(t *testing.T) {
	router, _ := newTestRouter(t)
	ch := sseHub.Subscribe()

	w := do(t, router, http.MethodPost, "/trackers", `{"id":"a1","tubeType":"1.5mL_tubes","startVolumeUL":200}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	s := decode[api.Session](t, w)
	assert.Equal(t, "a1", s.ID)
	assert.Equal(t, tracker.PhaseActive, s.Phase)
	assert.Equal(t, tracker.Emptying, s.Direction)

	w = do(t, router, http.MethodPost, "/trackers", `{"id":"a1","tubeType":"1.5mL_tubes","startVolumeUL":200}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	exhausted := false
	for i := 0; i < 50 && !exhausted; i++ {
		w = do(t, router, http.MethodPost, "/trackers/a1/step", `{"deltaVolumeUL":20}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		exhausted = decode[tracker.Result](t, w).BottomReached
	}
	require.True(t, exhausted, "tube should run dry within 50 steps")

	select {
	case ev := <-ch:
		require.Equal(t, events.TrackerExhausted, ev.Name)
		payload, err := events.DecodeAs[events.TrackerExhaustedEvent](ev)
		require.NoError(t, err)
		assert.Equal(t, "a1", payload.ID)
		assert.Equal(t, tube.Tube1_5mL, payload.TubeType)
	case <-time.After(time.Second):
		t.Fatal("no exhausted event published")
	}

	w = do(t, router, http.MethodGet, "/trackers/a1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, tracker.PhaseExhausted, decode[api.Session](t, w).Phase)

	w = do(t, router, http.MethodGet, "/status", "")
	st := decode[api.DaemonStatus](t, w)
	assert.Equal(t, 1, st.ActiveTrackers)
	assert.Equal(t, 1, st.ExhaustedTrackers)

	w = do(t, router, http.MethodDelete, "/trackers/a1", "")
	require.Equal(t, http.StatusOK, w.Code)
	ev := <-ch
	assert.Equal(t, events.TrackerRemoved, ev.Name)

	w = do(t, router, http.MethodGet, "/trackers/a1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, router, http.MethodPost, "/trackers/a1/step", `{"deltaVolumeUL":20}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, router, http.MethodDelete, "/trackers/a1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateTrackerDefaults(t *testing.T) {
	router, _ := newTestRouter(t)

	w := do(t, router, http.MethodPost, "/trackers", `{"startHeightMM":50,"direction":"filling"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	s := decode[api.Session](t, w)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, tube.Tube15mL, s.TubeType)
	assert.Equal(t, tracker.Filling, s.Direction)
	assert.InDelta(t, 50, s.HeightMM, 1e-9)

	w = do(t, router, http.MethodGet, "/trackers", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]api.Session](t, w), 1)
}

func TestCreateTrackerRejectsBadInput(t *testing.T) {
	router, _ := newTestRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"no start", `{"tubeType":"15mL_tubes"}`},
		{"both starts", `{"tubeType":"15mL_tubes","startVolumeUL":100,"startHeightMM":10}`},
		{"unknown tube", `{"tubeType":"bucket","startVolumeUL":100}`},
		{"bad direction", `{"tubeType":"15mL_tubes","startVolumeUL":100,"direction":"up"}`},
		{"negative height", `{"tubeType":"15mL_tubes","startHeightMM":-3}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/trackers", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
	assert.Equal(t, 0, sessions.len())
}

func TestSetConfigValues(t *testing.T) {
	router, path := newTestRouter(t)

	w := do(t, router, http.MethodPut, "/default-tube-type", `"bucket"`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodPut, "/default-tube-type", `"50mL_tubes"`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, tube.Tube50mL, conf.DefaultTubeType())

	w = do(t, router, http.MethodPut, "/tracker-ttl", `-5`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, router, http.MethodPut, "/tracker-ttl", `30`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 30, conf.TrackerTTLMinutes())

	w = do(t, router, http.MethodPut, "/sweep-schedule", `"whenever"`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, router, http.MethodPut, "/sweep-schedule", `"@every 1m"`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "@every 1m", conf.SweepSchedule())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var saved config.RawFileConfig
	require.NoError(t, json.Unmarshal(b, &saved))
	require.NotNil(t, saved.DefaultTubeType)
	assert.Equal(t, tube.Tube50mL, *saved.DefaultTubeType)

	w = do(t, router, http.MethodGet, "/config", "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[config.RawFileConfig](t, w)
	require.NotNil(t, got.TrackerTTLMinutes)
	assert.Equal(t, 30, *got.TrackerTTLMinutes)
}

func TestSweepIdleTrackers(t *testing.T) {
	router, _ := newTestRouter(t)
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	now = func() time.Time { return base }
	conf.SetTrackerTTLMinutes(10)

	for _, id := range []string{"idle", "busy"} {
		w := do(t, router, http.MethodPost, "/trackers", `{"id":"`+id+`","tubeType":"15mL_tubes","startVolumeUL":12000}`)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	now = func() time.Time { return base.Add(8 * time.Minute) }
	w := do(t, router, http.MethodPost, "/trackers/busy/step", `{"deltaVolumeUL":100}`)
	require.Equal(t, http.StatusOK, w.Code)

	now = func() time.Time { return base.Add(15 * time.Minute) }
	require.NoError(t, sweepIdleTrackers())

	ids := []string{}
	for _, s := range sessions.list() {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"busy"}, ids)
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w := do(t, router, http.MethodPost, "/trackers", `{"id":"m","tubeType":"15mL_tubes","startVolumeUL":5000}`)
	require.Equal(t, http.StatusCreated, w.Code)
	w = do(t, router, http.MethodPost, "/trackers/m/step", `{"deltaVolumeUL":100}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `liquidtrack_steps_total{direction="emptying",tube_type="15mL_tubes"} 1`)
	assert.Contains(t, body, "liquidtrack_active_trackers 1")
}
