package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ot2lab/liquidtrack/pkg/tracker"
	"github.com/ot2lab/liquidtrack/pkg/tube"
	"github.com/ot2lab/liquidtrack/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version",
		Annotations: map[string]string{annotationOffline: "true"},
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}

func NewTubesCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "tubes [type]",
		Short:       "List supported tube types and their geometry",
		GroupID:     gBasic,
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{annotationOffline: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var geoms []tube.Geometry
			if len(args) == 1 {
				g, err := tube.Lookup(args[0])
				if err != nil {
					return fmt.Errorf("%w (known types: %v)", err, tube.Types())
				}
				geoms = append(geoms, *g)
			} else {
				geoms = tube.All()
			}

			if outputJSON {
				return printJSON(cmd.OutOrStdout(), geoms)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, bold("TYPE")+"\t"+bold("TOP Ø")+"\t"+bold("TIP Ø")+"\t"+bold("CONE")+"\t"+bold("MAX")+"\t"+bold("TIP VOLUME"))
			for _, g := range geoms {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.0f µL\n",
					g.Type, mm(g.TopDiameter), mm(g.TipDiameter), mm(g.ConicalTipHeight), mm(g.MaxHeightMM), g.ConicalTipVolume())
			}
			return w.Flush()
		},
	}
}

func NewHeightCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "height <tube-type> <volume-uL>",
		Short:   "Compute the liquid height for a starting volume",
		GroupID: gBasic,
		Long: `Compute the height of the liquid surface above the bottom of a tube that holds
the given volume. The conical tip is modelled as a frustum and the rest of the
tube as a cylinder.`,
		Args:        cobra.ExactArgs(2),
		Annotations: map[string]string{annotationOffline: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			volume, err := parseFloatArg(args[1], "volume")
			if err != nil {
				return err
			}

			h, err := tracker.InitialHeight(args[0], volume)
			if err != nil {
				return err
			}

			if outputJSON {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"tubeType":      args[0],
					"startVolumeUL": volume,
					"heightMM":      h,
				})
			}
			cmd.Printf("%s holding %.1f µL: liquid surface at %s\n", args[0], volume, bold("%s", mm(h)))
			return nil
		},
	}
}

func NewStepCommand() *cobra.Command {
	direction := string(tracker.Emptying)

	cmd := &cobra.Command{
		Use:     "step <tube-type> <volume-uL> <current-height-mm>",
		Short:   "Compute one pipetting step from a known height",
		GroupID: gBasic,
		Long: `Compute the new liquid height and the pipetting height after moving a volume
into or out of a tube whose surface is currently at the given height.`,
		Args:        cobra.ExactArgs(3),
		Annotations: map[string]string{annotationOffline: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			volume, err := parseFloatArg(args[1], "volume")
			if err != nil {
				return err
			}
			height, err := parseFloatArg(args[2], "height")
			if err != nil {
				return err
			}
			d, err := tracker.ParseDirection(direction)
			if err != nil {
				return err
			}

			res, err := tracker.Step(args[0], volume, height, d)
			if err != nil {
				return err
			}

			if outputJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			printResult(cmd, res)
			return nil
		},
	}

	cmd.Flags().StringVarP(&direction, "direction", "d", direction, "emptying or filling")

	return cmd
}

func printResult(cmd *cobra.Command, res tracker.Result) {
	cmd.Printf("  New height:       %s\n", mm(res.NewHeightMM))
	cmd.Printf("  Pipetting height: %s\n", bold("%s", mm(res.PipettingHeightMM)))
	cmd.Printf("  Bottom reached:   %s\n", bool2Text(res.BottomReached))
}
