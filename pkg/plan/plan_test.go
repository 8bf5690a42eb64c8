package plan

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ot2lab/liquidtrack/pkg/tracker"
	"github.com/ot2lab/liquidtrack/pkg/tube"
)

func TestLoad(t *testing.T) {
	p, err := Load("testdata/elution.yaml")
	require.NoError(t, err)

	assert.Equal(t, "elution buffer split", p.Name)
	require.Len(t, p.Tubes, 3)
	assert.Equal(t, tracker.Emptying, p.Tubes[0].Direction)
	assert.Equal(t, tracker.Filling, p.Tubes[1].Direction)
	assert.Equal(t, tracker.Emptying, p.Tubes[2].Direction, "missing direction defaults to emptying")
	require.Len(t, p.Steps, 3)
	assert.Equal(t, 10, p.Steps[0].Repeat)
}

func TestLoadUnknownTube(t *testing.T) {
	_, err := Load("testdata/unknown_tube.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown tube "bufer"`)

	_, err = Load("testdata/missing.yaml")
	require.Error(t, err)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		is   error
	}{
		{"no tubes", "steps: []\n", nil},
		{"unknown tube type", "tubes:\n- name: a\n  tubeType: bucket\n  startVolumeUL: 10\n", tube.ErrUnknownTubeType},
		{"no start", "tubes:\n- name: a\n  tubeType: 15mL_tubes\n", nil},
		{"both starts", "tubes:\n- name: a\n  tubeType: 15mL_tubes\n  startVolumeUL: 10\n  startHeightMM: 3\n", nil},
		{"duplicate", "tubes:\n- name: a\n  tubeType: 15mL_tubes\n  startVolumeUL: 10\n- name: a\n  tubeType: 2mL_tubes\n  startVolumeUL: 10\n", nil},
		{"bad direction", "tubes:\n- name: a\n  tubeType: 15mL_tubes\n  startVolumeUL: 10\n  direction: sideways\n", tracker.ErrInvalidDirection},
		{"negative volume", "tubes:\n- name: a\n  tubeType: 15mL_tubes\n  startVolumeUL: 10\nsteps:\n- tube: a\n  volumeUL: -5\n", tracker.ErrInvalidVolume},
		{"malformed", "tubes: [", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			if tt.is != nil {
				assert.True(t, errors.Is(err, tt.is), "got %v", err)
			}
		})
	}
}

func TestRun(t *testing.T) {
	p, err := Load("testdata/elution.yaml")
	require.NoError(t, err)

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	report, err := Run(p, logger)
	require.NoError(t, err)
	require.Len(t, report.Steps, 32)
	for i, s := range report.Steps {
		assert.Equal(t, i+1, s.Index)
	}

	require.Len(t, report.Tubes, 3)
	buffer, waste, enzyme := report.Tubes[0], report.Tubes[1], report.Tubes[2]

	assert.Equal(t, 10, buffer.Steps)
	assert.Less(t, buffer.Final, buffer.Start)
	assert.Zero(t, buffer.ExhaustedAt)

	assert.Equal(t, 2, waste.Steps)
	assert.Greater(t, waste.Final, waste.Start)

	assert.Equal(t, 20, enzyme.Steps)
	assert.Equal(t, tracker.PhaseExhausted, enzyme.Phase)
	assert.Greater(t, enzyme.ExhaustedAt, 10)
	assert.LessOrEqual(t, enzyme.ExhaustedAt, 30)
	assert.True(t, report.Steps[enzyme.ExhaustedAt-1].BottomReached)
	assert.Equal(t, "enzyme", report.Steps[enzyme.ExhaustedAt-1].Tube)
	assert.Equal(t, []string{"enzyme"}, report.Exhausted())

	var dry int
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "tube is about to run dry" {
			dry++
			assert.Equal(t, "enzyme", e.Data["tube"])
		}
	}
	assert.Equal(t, 1, dry)
}

func TestRunMatchesDirectSteps(t *testing.T) {
	p, err := Parse([]byte("tubes:\n- name: a\n  tubeType: 15mL_tubes\n  startVolumeUL: 12000\nsteps:\n- tube: a\n  volumeUL: 200\n  repeat: 3\n"))
	require.NoError(t, err)

	report, err := Run(p, nil)
	require.NoError(t, err)

	h, err := tracker.InitialHeight(tube.Tube15mL, 12000)
	require.NoError(t, err)
	for _, s := range report.Steps {
		want, err := tracker.Step(tube.Tube15mL, 200, h, tracker.Emptying)
		require.NoError(t, err)
		if diff := cmp.Diff(want, s.Result); diff != "" {
			t.Errorf("step %d mismatch (-want +got):\n%s", s.Index, diff)
		}
		h = want.NewHeightMM
	}
}
