package daemon

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ot2lab/liquidtrack/pkg/api"
	"github.com/ot2lab/liquidtrack/pkg/config"
	"github.com/ot2lab/liquidtrack/pkg/events"
	"github.com/ot2lab/liquidtrack/pkg/tracker"
	"github.com/ot2lab/liquidtrack/pkg/tube"
	"github.com/ot2lab/liquidtrack/pkg/version"
)

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}

func getStatus(c *gin.Context) {
	all := sessions.list()
	exhausted := 0
	for _, s := range all {
		if s.Phase == tracker.PhaseExhausted {
			exhausted++
		}
	}

	st := api.DaemonStatus{
		Version:           version.Version,
		ActiveTrackers:    len(all),
		ExhaustedTrackers: exhausted,
		EventSubscribers:  sseHub.Subscribers(),
	}
	if next, _ := sweeper.Status(); !next.IsZero() {
		st.NextSweep = next.Format(time.RFC3339)
	}

	c.IndentedJSON(http.StatusOK, st)
}

func getConfig(c *gin.Context) {
	fc, err := config.NewRawFileConfigFromConfig(conf)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, fc)
}

func saveConfig(c *gin.Context) bool {
	if err := conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		abortWithError(c, http.StatusInternalServerError, err)
		return false
	}
	return true
}

func setDefaultTubeType(c *gin.Context) {
	var t string
	if err := c.ShouldBindJSON(&t); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	if !tube.IsKnown(t) {
		abortWithError(c, http.StatusBadRequest, fmt.Errorf("%w: %q", tube.ErrUnknownTubeType, t))
		return
	}

	conf.SetDefaultTubeType(t)
	if !saveConfig(c) {
		return
	}

	logrus.Infof("set default tube type to %s", t)

	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("default tube type set to %s", t))
}

func setTrackerTTL(c *gin.Context) {
	var minutes int
	if err := c.ShouldBindJSON(&minutes); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	if minutes < 0 {
		abortWithError(c, http.StatusBadRequest, fmt.Errorf("tracker ttl must not be negative, got %d", minutes))
		return
	}

	conf.SetTrackerTTLMinutes(minutes)
	if !saveConfig(c) {
		return
	}

	msg := fmt.Sprintf("idle trackers are removed after %d minutes", minutes)
	if minutes == 0 {
		msg = "idle trackers are kept until deleted"
	}
	logrus.Info(msg)

	c.IndentedJSON(http.StatusCreated, msg)
}

func setSweepSchedule(c *gin.Context) {
	var expr string
	if err := c.ShouldBindJSON(&expr); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	if err := sweeper.Schedule(expr); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	conf.SetSweepSchedule(expr)
	if !saveConfig(c) {
		return
	}

	logrus.Infof("set sweep schedule to %q", expr)

	c.IndentedJSON(http.StatusCreated, "ok")
}

func listTubes(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, tube.All())
}

func getTube(c *gin.Context) {
	g, err := tube.Lookup(c.Param("type"))
	if err != nil {
		abortWithError(c, http.StatusNotFound, err)
		return
	}
	c.IndentedJSON(http.StatusOK, g)
}

func postInitialHeight(c *gin.Context) {
	var req api.InitialHeightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	h, err := tracker.InitialHeight(req.TubeType, req.StartVolumeUL)
	if err != nil {
		abortWithError(c, statusForError(err), err)
		return
	}

	c.IndentedJSON(http.StatusOK, api.InitialHeightResponse{TubeType: req.TubeType, HeightMM: h})
}

func postStep(c *gin.Context) {
	var req api.StepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	direction, err := parseDirection(req.Direction)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	res, err := tracker.Step(req.TubeType, req.DeltaVolumeUL, req.CurrentHeightMM, direction)
	if err != nil {
		abortWithError(c, statusForError(err), err)
		return
	}

	c.IndentedJSON(http.StatusOK, res)
}

func createTracker(c *gin.Context) {
	var req api.CreateTrackerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	if (req.StartVolumeUL == nil) == (req.StartHeightMM == nil) {
		abortWithError(c, http.StatusBadRequest, errors.New("exactly one of startVolumeUL and startHeightMM must be set"))
		return
	}

	direction, err := parseDirection(req.Direction)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.NewString()
	}
	tubeType := req.TubeType
	if tubeType == "" {
		tubeType = conf.DefaultTubeType()
	}

	opts := []tracker.Option{
		tracker.WithHistorySize(conf.HistorySize()),
		tracker.WithLogger(logrus.WithField("tracker", id)),
	}

	var t *tracker.Tracker
	if req.StartVolumeUL != nil {
		t, err = tracker.New(tubeType, *req.StartVolumeUL, direction, opts...)
	} else {
		t, err = tracker.NewAtHeight(tubeType, *req.StartHeightMM, direction, opts...)
	}
	if err != nil {
		abortWithError(c, statusForError(err), err)
		return
	}

	s, err := sessions.add(id, t, now())
	if err != nil {
		abortWithError(c, statusForError(err), fmt.Errorf("%w: %s", err, id))
		return
	}
	metrics.activeTrackers.Set(float64(sessions.len()))

	logrus.WithFields(logrus.Fields{
		"tracker":   id,
		"tubeType":  tubeType,
		"direction": direction,
		"heightMM":  t.HeightMM(),
	}).Info("tracker created")

	c.IndentedJSON(http.StatusCreated, s.view())
}

func listTrackers(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, sessions.list())
}

func getTracker(c *gin.Context) {
	s, err := sessions.get(c.Param("id"))
	if err != nil {
		abortWithError(c, http.StatusNotFound, fmt.Errorf("%w: %s", err, c.Param("id")))
		return
	}
	c.IndentedJSON(http.StatusOK, s.view())
}

func deleteTracker(c *gin.Context) {
	id := c.Param("id")
	if err := sessions.remove(id); err != nil {
		abortWithError(c, http.StatusNotFound, fmt.Errorf("%w: %s", err, id))
		return
	}
	metrics.activeTrackers.Set(float64(sessions.len()))

	logrus.WithField("tracker", id).Info("tracker deleted")
	sseHub.Publish(events.TrackerRemoved, events.TrackerRemovedEvent{
		ID:     id,
		Reason: "deleted",
		Ts:     now().Unix(),
	})

	c.IndentedJSON(http.StatusOK, "ok")
}

func stepTracker(c *gin.Context) {
	id := c.Param("id")
	s, err := sessions.get(id)
	if err != nil {
		abortWithError(c, http.StatusNotFound, fmt.Errorf("%w: %s", err, id))
		return
	}

	var req api.TrackerStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	res, exhaustedNow, view, err := s.step(req.DeltaVolumeUL, now())
	if err != nil {
		abortWithError(c, statusForError(err), err)
		return
	}
	metrics.steps.WithLabelValues(view.TubeType, string(view.Direction)).Inc()

	if exhaustedNow {
		metrics.exhausted.Inc()
		sseHub.Publish(events.TrackerExhausted, events.TrackerExhaustedEvent{
			ID:                id,
			TubeType:          view.TubeType,
			Steps:             view.Steps,
			HeightMM:          view.HeightMM,
			PipettingHeightMM: res.PipettingHeightMM,
			Ts:                now().Unix(),
		})
	}

	c.IndentedJSON(http.StatusOK, res)
}

func streamEvents(c *gin.Context) {
	ch := sseHub.Subscribe()
	defer sseHub.Unsubscribe(ch)

	c.Stream(func(_ io.Writer) bool {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, string(ev.Data))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
