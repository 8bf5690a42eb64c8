package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ot2lab/liquidtrack/pkg/config"
	"github.com/ot2lab/liquidtrack/pkg/events"
)

var (
	conf     config.Config
	sessions *registry
	sseHub   *events.EventHub
	sweeper  *Scheduler
	metrics  *daemonMetrics
	now      = time.Now
)

func setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.GET("/version", getVersion)
	router.GET("/status", getStatus)
	router.GET("/config", getConfig)
	router.PUT("/default-tube-type", setDefaultTubeType)
	router.PUT("/tracker-ttl", setTrackerTTL)
	router.PUT("/sweep-schedule", setSweepSchedule)
	router.GET("/tubes", listTubes)
	router.GET("/tubes/:type", getTube)
	router.POST("/initial-height", postInitialHeight)
	router.POST("/step", postStep)
	router.POST("/trackers", createTracker)
	router.GET("/trackers", listTrackers)
	router.GET("/trackers/:id", getTracker)
	router.DELETE("/trackers/:id", deleteTracker)
	router.POST("/trackers/:id/step", stepTracker)
	router.GET("/events", streamEvents)
	router.GET("/metrics", metrics.handler())

	return router
}

// setup initializes the daemon state around c and returns the router.
func setup(c config.Config) (*gin.Engine, error) {
	conf = c
	sessions = newRegistry()
	sseHub = events.NewEventHub()
	metrics = newMetrics()
	sweeper = NewScheduler(sweepIdleTrackers, func(data any) {
		logrus.Errorf("sweeper: %v", data)
	})
	if err := sweeper.Schedule(conf.SweepSchedule()); err != nil {
		return nil, err
	}

	return setupRoutes(), nil
}

// sweepIdleTrackers removes sessions that were not used within the TTL.
func sweepIdleTrackers() error {
	ttl := time.Duration(conf.TrackerTTLMinutes()) * time.Minute
	removed := sessions.sweep(ttl, now())
	for _, id := range removed {
		logrus.WithField("tracker", id).Info("removed idle tracker")
		sseHub.Publish(events.TrackerRemoved, events.TrackerRemovedEvent{
			ID:     id,
			Reason: "idle",
			Ts:     now().Unix(),
		})
	}
	metrics.swept.Add(float64(len(removed)))
	metrics.activeTrackers.Set(float64(sessions.len()))
	return nil
}

func Run(configPath string, unixSocketPath string, allowNonRoot bool) error {
	c, err := config.NewFile(configPath)
	if err != nil {
		logrus.Fatalf("failed to parse config during startup: %v", err)
	}
	logrus.WithFields(c.LogrusFields()).Infof("config loaded")

	router, err := setup(c)
	if err != nil {
		logrus.Fatalf("failed to set up daemon: %v", err)
	}

	// Receive SIGHUP to reload config
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGHUP)
		for range sigc {
			err := conf.Load()
			if err != nil {
				logrus.Errorf("failed to reload config: %v", err)
				continue
			}
			if err := sweeper.Schedule(conf.SweepSchedule()); err != nil {
				logrus.Errorf("failed to apply sweep schedule: %v", err)
			}
			logrus.WithFields(conf.LogrusFields()).Infof("config reloaded")
		}
	}()

	srv := &http.Server{
		Handler: router,
	}

	// A socket left behind by a crashed daemon would make Listen fail.
	if _, err := os.Stat(unixSocketPath); err == nil {
		logrus.Warnf("removing stale socket %s", unixSocketPath)
		if err := os.Remove(unixSocketPath); err != nil {
			logrus.Fatal(err)
		}
	}

	// Create the socket to listen on:
	l, err := net.Listen("unix", unixSocketPath)
	if err != nil {
		logrus.Fatal(err)
	}

	if conf.AllowNonRootAccess() || allowNonRoot {
		logrus.Infof("non-root access is allowed, changing permissions of %s to 0777", unixSocketPath)
		err = os.Chmod(unixSocketPath, 0777)
		if err != nil {
			logrus.Fatal(err)
		}
	}

	// Serve HTTP on unix socket
	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal(err)
		}
	}()

	sweeper.Start()

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	// Wait for a SIGINT or SIGTERM:
	sig := <-sigc
	logrus.Infof("caught signal \"%s\": shutting down.", sig)

	logrus.Info("stopping sweeper")
	sweeper.Stop()

	// Event streams never end on their own; close them before shutdown waits
	// for open connections.
	logrus.Info("closing event streams")
	sseHub.Close()

	logrus.Info("shutting down http server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = srv.Shutdown(ctx)
	if err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	cancel()

	if n := sessions.len(); n > 0 {
		logrus.Warnf("discarding %d tracker session(s)", n)
	}

	logrus.Info("exiting")
	return nil
}
