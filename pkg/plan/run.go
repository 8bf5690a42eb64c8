package plan

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ot2lab/liquidtrack/pkg/tracker"
)

// StepResult is one executed pipetting step.
type StepResult struct {
	// Index counts executed steps across the whole plan, starting at 1.
	Index int    `json:"index" yaml:"index"`
	Tube  string `json:"tube" yaml:"tube"`
	// DeltaVolumeUL is the volume moved by this step.
	DeltaVolumeUL float64 `json:"deltaVolumeUL" yaml:"deltaVolumeUL"`
	tracker.Result `yaml:",inline"`
}

// TubeReport summarizes one tube after the plan ran.
type TubeReport struct {
	Name     string            `json:"name" yaml:"name"`
	TubeType string            `json:"tubeType" yaml:"tubeType"`
	Start    float64           `json:"startHeightMM" yaml:"startHeightMM"`
	Final    float64           `json:"finalHeightMM" yaml:"finalHeightMM"`
	Steps    int               `json:"steps" yaml:"steps"`
	Phase    tracker.Phase     `json:"phase" yaml:"phase"`
	Dir      tracker.Direction `json:"direction" yaml:"direction"`
	// ExhaustedAt is the plan-wide index of the first step that reported
	// bottom reached, or 0.
	ExhaustedAt int `json:"exhaustedAt,omitempty" yaml:"exhaustedAt,omitempty"`
}

// Report is the outcome of Run.
type Report struct {
	Steps []StepResult `json:"steps" yaml:"steps"`
	Tubes []TubeReport `json:"tubes" yaml:"tubes"`
}

// Exhausted returns the names of tubes that reached the bottom.
func (r *Report) Exhausted() []string {
	var ret []string
	for _, t := range r.Tubes {
		if t.ExhaustedAt > 0 {
			ret = append(ret, t.Name)
		}
	}
	return ret
}

// Run drives one tracker per tube through the plan's steps. Steps on a tube
// that already reached the bottom are still computed.
func Run(p *Plan, logger logrus.FieldLogger) (*Report, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	trackers := make(map[string]*tracker.Tracker, len(p.Tubes))
	reports := make(map[string]*TubeReport, len(p.Tubes))
	order := make([]string, 0, len(p.Tubes))

	for _, t := range p.Tubes {
		opts := []tracker.Option{
			tracker.WithLogger(logger.WithField("tube", t.Name)),
			tracker.WithHistorySize(0),
		}

		var (
			tr  *tracker.Tracker
			err error
		)
		if t.StartVolumeUL != nil {
			tr, err = tracker.New(t.TubeType, *t.StartVolumeUL, t.Direction, opts...)
		} else {
			tr, err = tracker.NewAtHeight(t.TubeType, *t.StartHeightMM, t.Direction, opts...)
		}
		if err != nil {
			return nil, fmt.Errorf("tube %q: %w", t.Name, err)
		}

		trackers[t.Name] = tr
		reports[t.Name] = &TubeReport{
			Name:     t.Name,
			TubeType: t.TubeType,
			Start:    tr.HeightMM(),
			Dir:      tr.Direction(),
		}
		order = append(order, t.Name)
	}

	report := &Report{}
	index := 0
	for i, s := range p.Steps {
		repeat := s.Repeat
		if repeat == 0 {
			repeat = 1
		}

		tr := trackers[s.Tube]
		if tr == nil {
			return nil, fmt.Errorf("steps[%d]: unknown tube %q", i, s.Tube)
		}
		for n := 0; n < repeat; n++ {
			res, err := tr.Step(s.VolumeUL)
			if err != nil {
				return nil, fmt.Errorf("steps[%d]: %w", i, err)
			}
			index++
			report.Steps = append(report.Steps, StepResult{
				Index:         index,
				Tube:          s.Tube,
				DeltaVolumeUL: s.VolumeUL,
				Result:        res,
			})
			if rep := reports[s.Tube]; res.BottomReached && rep.ExhaustedAt == 0 {
				rep.ExhaustedAt = index
			}
		}
	}

	for _, name := range order {
		r := reports[name]
		tr := trackers[name]
		r.Final = tr.HeightMM()
		r.Steps = tr.Steps()
		r.Phase = tr.Phase()
		report.Tubes = append(report.Tubes, *r)
	}

	return report, nil
}
