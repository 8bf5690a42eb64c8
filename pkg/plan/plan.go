// Package plan reads pipetting plans from YAML and runs them against
// in-memory trackers, so a protocol can be checked before it touches a robot.
package plan

import (
	"fmt"
	"os"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/ot2lab/liquidtrack/pkg/tracker"
	"github.com/ot2lab/liquidtrack/pkg/tube"
)

// Plan is a set of source tubes and the ordered steps drawn from them.
type Plan struct {
	Name  string `yaml:"name"`
	Tubes []Tube `yaml:"tubes"`
	Steps []Step `yaml:"steps"`
}

// Tube declares one physical tube. Exactly one of StartVolumeUL and
// StartHeightMM is set.
type Tube struct {
	Name          string            `yaml:"name"`
	TubeType      string            `yaml:"tubeType"`
	StartVolumeUL *float64          `yaml:"startVolumeUL,omitempty"`
	StartHeightMM *float64          `yaml:"startHeightMM,omitempty"`
	Direction     tracker.Direction `yaml:"direction,omitempty"`
}

// Step moves VolumeUL into or out of the named tube, Repeat times.
type Step struct {
	Tube     string  `yaml:"tube"`
	VolumeUL float64 `yaml:"volumeUL"`
	Repeat   int     `yaml:"repeat,omitempty"`
}

// Load reads and validates the plan at path.
func Load(path string) (*Plan, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to read plan %s", path)
	}

	p, err := Parse(b)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "invalid plan %s", path)
	}
	return p, nil
}

// Parse decodes a YAML plan and validates it.
func Parse(b []byte) (*Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks tube declarations and step references. Directions are
// normalized in place.
func (p *Plan) Validate() error {
	if len(p.Tubes) == 0 {
		return fmt.Errorf("plan declares no tubes")
	}

	seen := make(map[string]struct{}, len(p.Tubes))
	for i := range p.Tubes {
		t := &p.Tubes[i]
		t.Name = strings.TrimSpace(t.Name)
		if t.Name == "" {
			return fmt.Errorf("tubes[%d]: name is required", i)
		}
		if _, ok := seen[t.Name]; ok {
			return fmt.Errorf("tubes[%d]: duplicate tube name %q", i, t.Name)
		}
		seen[t.Name] = struct{}{}

		if _, err := tube.Lookup(t.TubeType); err != nil {
			return fmt.Errorf("tube %q: %w", t.Name, err)
		}
		if (t.StartVolumeUL == nil) == (t.StartHeightMM == nil) {
			return fmt.Errorf("tube %q: exactly one of startVolumeUL and startHeightMM must be set", t.Name)
		}

		if t.Direction == "" {
			t.Direction = tracker.Emptying
		}
		d, err := tracker.ParseDirection(string(t.Direction))
		if err != nil {
			return fmt.Errorf("tube %q: %w", t.Name, err)
		}
		t.Direction = d
	}

	for i, s := range p.Steps {
		if _, ok := seen[s.Tube]; !ok {
			return fmt.Errorf("steps[%d]: unknown tube %q", i, s.Tube)
		}
		if s.VolumeUL < 0 {
			return fmt.Errorf("steps[%d]: %w: %v", i, tracker.ErrInvalidVolume, s.VolumeUL)
		}
		if s.Repeat < 0 {
			return fmt.Errorf("steps[%d]: repeat must not be negative", i)
		}
	}

	return nil
}
