package config

import "github.com/sirupsen/logrus"

type Config interface {
	// DefaultTubeType is used when a tracker is created without a tube type.
	DefaultTubeType() string
	AllowNonRootAccess() bool
	// TrackerTTLMinutes is how long an idle tracker session is kept.
	// Zero keeps sessions until they are deleted.
	TrackerTTLMinutes() int
	// SweepSchedule is the cron expression for removing idle sessions.
	SweepSchedule() string
	HistorySize() int

	SetDefaultTubeType(string)
	SetAllowNonRootAccess(bool)
	SetTrackerTTLMinutes(int)
	SetSweepSchedule(string)
	SetHistorySize(int)

	LogrusFields() logrus.Fields

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error
}
