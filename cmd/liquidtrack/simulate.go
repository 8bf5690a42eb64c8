package main

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ot2lab/liquidtrack/pkg/plan"
	"github.com/ot2lab/liquidtrack/pkg/tracker"
)

func NewSimulateCommand() *cobra.Command {
	var (
		planPath  string
		direction = string(tracker.Emptying)
		steps     = 0
	)

	cmd := &cobra.Command{
		Use:     "simulate [tube-type start-volume-uL step-volume-uL]",
		Short:   "Dry-run a sequence of pipetting steps",
		GroupID: gBasic,
		Long: `Dry-run pipetting steps without a robot.

Either pass --plan with a YAML plan file describing several tubes and their
steps, or give a tube type, a starting volume and a per-step volume to simulate
a single tube. Without --steps a single-tube run continues until the tube
reports that the bottom is reached.`,
		Example: `  liquidtrack simulate --plan elution.yaml
  liquidtrack simulate 15mL_tubes 12000 200
  liquidtrack simulate 50mL_tubes 0 1000 --direction filling --steps 20`,
		Annotations: map[string]string{annotationOffline: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var p *plan.Plan
			switch {
			case planPath != "" && len(args) > 0:
				return fmt.Errorf("--plan cannot be combined with positional arguments")
			case planPath != "":
				var err error
				p, err = plan.Load(planPath)
				if err != nil {
					return err
				}
			case len(args) == 3:
				var err error
				p, err = singleTubePlan(args, direction, steps)
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("either --plan or <tube-type> <start-volume-uL> <step-volume-uL> is required")
			}

			report, err := plan.Run(p, logrus.StandardLogger())
			if err != nil {
				return err
			}

			if outputJSON {
				return printJSON(cmd.OutOrStdout(), report)
			}
			printReport(cmd, p, report)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&planPath, "plan", "p", "", "YAML plan file")
	f.StringVarP(&direction, "direction", "d", direction, "emptying or filling (single tube only)")
	f.IntVarP(&steps, "steps", "n", steps, "number of steps (single tube only, 0 runs until the bottom is reached)")

	return cmd
}

// maxUntilBottomSteps bounds a single-tube run that waits for the bottom.
const maxUntilBottomSteps = 10000

func singleTubePlan(args []string, direction string, steps int) (*plan.Plan, error) {
	start, err := parseFloatArg(args[1], "start volume")
	if err != nil {
		return nil, err
	}
	vol, err := parseFloatArg(args[2], "step volume")
	if err != nil {
		return nil, err
	}
	if steps < 0 {
		return nil, fmt.Errorf("invalid steps: %d", steps)
	}

	p := &plan.Plan{
		Name: "single tube",
		Tubes: []plan.Tube{{
			Name:          args[0],
			TubeType:      args[0],
			StartVolumeUL: &start,
			Direction:     tracker.Direction(direction),
		}},
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if steps > 0 {
		p.Steps = []plan.Step{{Tube: args[0], VolumeUL: vol, Repeat: steps}}
		return p, nil
	}

	// Find how many steps it takes to reach the bottom.
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	t, err := tracker.New(args[0], start, p.Tubes[0].Direction, tracker.WithHistorySize(0), tracker.WithLogger(quiet))
	if err != nil {
		return nil, err
	}
	n := 0
	for n < maxUntilBottomSteps {
		n++
		res, err := t.Step(vol)
		if err != nil {
			return nil, err
		}
		if res.BottomReached {
			break
		}
	}
	p.Steps = []plan.Step{{Tube: args[0], VolumeUL: vol, Repeat: n}}
	return p, nil
}

func printReport(cmd *cobra.Command, p *plan.Plan, report *plan.Report) {
	if p.Name != "" {
		cmd.Println(bold("Plan: %s", p.Name))
	}

	for _, s := range report.Steps {
		line := fmt.Sprintf("  #%-4d %-12s %8.1f µL  surface %s  tip %s",
			s.Index, s.Tube, s.DeltaVolumeUL, mm(s.NewHeightMM), mm(s.PipettingHeightMM))
		if s.BottomReached {
			line += "  " + warn("bottom reached")
		}
		cmd.Println(line)
	}

	cmd.Println()
	cmd.Println(bold("Tubes:"))
	for _, t := range report.Tubes {
		cmd.Printf("  %s (%s, %s): %s -> %s after %d steps",
			bold("%s", t.Name), t.TubeType, t.Dir, mm(t.Start), mm(t.Final), t.Steps)
		if t.ExhaustedAt > 0 {
			cmd.Printf(", %s at step #%d", warn("bottom reached"), t.ExhaustedAt)
		}
		cmd.Println()
	}
}
