package api

import (
	"time"

	"github.com/ot2lab/liquidtrack/pkg/tracker"
)

// InitialHeightRequest is the body of POST /initial-height.
type InitialHeightRequest struct {
	TubeType      string  `json:"tubeType"`
	StartVolumeUL float64 `json:"startVolumeUL"`
}

// InitialHeightResponse is returned by POST /initial-height.
type InitialHeightResponse struct {
	TubeType string  `json:"tubeType"`
	HeightMM float64 `json:"heightMM"`
}

// StepRequest is the body of the stateless POST /step.
type StepRequest struct {
	TubeType        string            `json:"tubeType"`
	DeltaVolumeUL   float64           `json:"deltaVolumeUL"`
	CurrentHeightMM float64           `json:"currentHeightMM"`
	Direction       tracker.Direction `json:"direction"`
}

// CreateTrackerRequest is the body of POST /trackers. Exactly one of
// StartVolumeUL and StartHeightMM must be set. ID and TubeType are optional.
type CreateTrackerRequest struct {
	ID            string            `json:"id,omitempty"`
	TubeType      string            `json:"tubeType,omitempty"`
	StartVolumeUL *float64          `json:"startVolumeUL,omitempty"`
	StartHeightMM *float64          `json:"startHeightMM,omitempty"`
	Direction     tracker.Direction `json:"direction"`
}

// TrackerStepRequest is the body of POST /trackers/:id/step.
type TrackerStepRequest struct {
	DeltaVolumeUL float64 `json:"deltaVolumeUL"`
}

// Session describes a tracker session held by the daemon.
type Session struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	LastUsedAt time.Time `json:"lastUsedAt"`
	tracker.Status
}

// DaemonStatus is returned by GET /status.
type DaemonStatus struct {
	Version           string `json:"version"`
	ActiveTrackers    int    `json:"activeTrackers"`
	ExhaustedTrackers int    `json:"exhaustedTrackers"`
	EventSubscribers  int    `json:"eventSubscribers"`
	NextSweep         string `json:"nextSweep,omitempty"`
}
