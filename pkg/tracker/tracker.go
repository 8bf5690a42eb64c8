package tracker

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ot2lab/liquidtrack/pkg/tube"
)

// ErrUninitialized is returned when stepping a tracker that was not created
// with New or NewAtHeight.
var ErrUninitialized = errors.New("tracker not initialized")

// DefaultHistorySize is the number of steps a tracker remembers by default.
const DefaultHistorySize = 100

// Phase is the lifecycle state of a tracked tube.
type Phase string

const (
	PhaseUninitialized Phase = "Uninitialized"
	PhaseActive        Phase = "Active"
	PhaseExhausted     Phase = "Exhausted"
)

// Tracker follows the liquid height of one physical tube across a run.
// It is not safe for concurrent use.
type Tracker struct {
	tubeType  string
	geometry  *tube.Geometry
	direction Direction
	heightMM  float64
	phase     Phase
	steps     int

	historySize int
	history     *History
	logger      logrus.FieldLogger
	now         func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger used for step and exhaustion messages.
func WithLogger(l logrus.FieldLogger) Option {
	return func(t *Tracker) {
		t.logger = l
	}
}

// WithHistorySize sets how many steps are remembered.
func WithHistorySize(n int) Option {
	return func(t *Tracker) {
		t.historySize = n
	}
}

// New creates an active tracker for a tube holding startVolumeUL.
func New(tubeType string, startVolumeUL float64, direction Direction, opts ...Option) (*Tracker, error) {
	h, err := InitialHeight(tubeType, startVolumeUL)
	if err != nil {
		return nil, err
	}
	return NewAtHeight(tubeType, h, direction, opts...)
}

// NewAtHeight creates an active tracker whose surface is already known.
func NewAtHeight(tubeType string, heightMM float64, direction Direction, opts ...Option) (*Tracker, error) {
	g, err := tube.Lookup(tubeType)
	if err != nil {
		return nil, err
	}
	if err := checkHeight(heightMM); err != nil {
		return nil, err
	}
	if !direction.valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDirection, direction)
	}

	t := &Tracker{
		tubeType:    tubeType,
		geometry:    g,
		direction:   direction,
		heightMM:    heightMM,
		phase:       PhaseActive,
		historySize: DefaultHistorySize,
		logger:      logrus.StandardLogger(),
		now:         time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	t.history = NewHistory(t.historySize)

	t.logger.WithFields(t.fields()).Debug("tracker initialized")

	return t, nil
}

// Step accounts for one aspirate (Emptying) or fill (Filling) of
// deltaVolumeUL and returns where to place the tip. Steps after exhaustion
// are still computed; stopping is up to the caller.
func (t *Tracker) Step(deltaVolumeUL float64) (Result, error) {
	if t == nil || t.phase == PhaseUninitialized || t.phase == "" {
		return Result{}, ErrUninitialized
	}
	if err := checkVolume(deltaVolumeUL); err != nil {
		return Result{}, err
	}

	res := step(t.geometry, deltaVolumeUL, t.heightMM, t.direction)
	t.heightMM = res.NewHeightMM
	t.steps++
	t.history.AddRecord(Record{
		Index:         t.steps,
		Time:          t.now(),
		DeltaVolumeUL: deltaVolumeUL,
		Result:        res,
	})

	entry := t.logger.WithFields(t.fields()).WithFields(logrus.Fields{
		"deltaVolumeUL":     deltaVolumeUL,
		"pipettingHeightMM": res.PipettingHeightMM,
		"bottomReached":     res.BottomReached,
	})
	entry.Debug("step")

	if res.BottomReached && t.phase == PhaseActive {
		t.phase = PhaseExhausted
		entry.Warn("tube is about to run dry")
	}
	if t.direction == Filling && t.heightMM > t.geometry.MaxHeightMM {
		entry.WithField("maxHeightMM", t.geometry.MaxHeightMM).Warn("filled past the usable height of the tube")
	}

	return res, nil
}

// HeightMM is the current liquid surface height.
func (t *Tracker) HeightMM() float64 { return t.heightMM }

// Phase returns the lifecycle phase.
func (t *Tracker) Phase() Phase {
	if t == nil || t.phase == "" {
		return PhaseUninitialized
	}
	return t.phase
}

func (t *Tracker) Direction() Direction { return t.direction }
func (t *Tracker) TubeType() string     { return t.tubeType }
func (t *Tracker) Steps() int           { return t.steps }

// Geometry returns a copy of the tube geometry.
func (t *Tracker) Geometry() tube.Geometry { return *t.geometry }

// History returns the recorded steps, oldest first.
func (t *Tracker) History() []Record { return t.history.GetRecords() }

// Status is a JSON-friendly view of a tracker.
type Status struct {
	TubeType  string    `json:"tubeType"`
	Direction Direction `json:"direction"`
	Phase     Phase     `json:"phase"`
	HeightMM  float64   `json:"heightMM"`
	Steps     int       `json:"steps"`
	Last      *Record   `json:"last,omitempty"`
}

// Snapshot returns the current status.
func (t *Tracker) Snapshot() Status {
	s := Status{
		TubeType:  t.tubeType,
		Direction: t.direction,
		Phase:     t.Phase(),
		HeightMM:  t.heightMM,
		Steps:     t.steps,
	}
	if t.history != nil {
		if last, ok := t.history.Last(); ok {
			s.Last = &last
		}
	}
	return s
}

func (t *Tracker) fields() logrus.Fields {
	return logrus.Fields{
		"tubeType":  t.tubeType,
		"direction": t.direction,
		"heightMM":  t.heightMM,
		"phase":     t.phase,
		"steps":     t.steps,
	}
}
