package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ot2lab/liquidtrack/pkg/api"
	"github.com/ot2lab/liquidtrack/pkg/events"
	"github.com/ot2lab/liquidtrack/pkg/tracker"
)

func NewTrackerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tracker",
		Aliases: []string{"trackers"},
		Short:   "Manage tracker sessions held by the daemon",
		GroupID: gTracking,
		Long: `Manage tracker sessions held by the daemon.

A tracker follows one physical tube through a protocol run. Create it with the
starting volume (or a measured height), then step it once per aspirate or
dispense and place the tip at the returned pipetting height.`,
	}

	cmd.AddCommand(
		newTrackerCreateCommand(),
		newTrackerStepCommand(),
		newTrackerGetCommand(),
		newTrackerListCommand(),
		newTrackerDeleteCommand(),
		newTrackerWatchCommand(),
	)

	return cmd
}

func newTrackerCreateCommand() *cobra.Command {
	var (
		id        string
		tubeType  string
		volume    float64
		height    float64
		direction = string(tracker.Emptying)
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a tracker session",
		Example: `  liquidtrack tracker create --id buffer --tube-type 15mL_tubes --volume 12000
  liquidtrack tracker create --tube-type 50mL_tubes --height 0 --direction filling`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := api.CreateTrackerRequest{
				ID:        id,
				TubeType:  tubeType,
				Direction: tracker.Direction(direction),
			}
			if cmd.Flags().Changed("volume") {
				req.StartVolumeUL = &volume
			}
			if cmd.Flags().Changed("height") {
				req.StartHeightMM = &height
			}

			s, err := apiClient.CreateTracker(req)
			if err != nil {
				return err
			}

			if outputJSON {
				return printJSON(cmd.OutOrStdout(), s)
			}
			logrus.Infof("created tracker %s", s.ID)
			printSession(cmd, *s)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&id, "id", "", "tracker id (generated when empty)")
	f.StringVarP(&tubeType, "tube-type", "t", "", "tube type (daemon default when empty)")
	f.Float64VarP(&volume, "volume", "v", 0, "starting volume in µL")
	f.Float64Var(&height, "height", 0, "starting liquid height in mm")
	f.StringVarP(&direction, "direction", "d", direction, "emptying or filling")
	cmd.MarkFlagsMutuallyExclusive("volume", "height")

	return cmd
}

func newTrackerStepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "step <id> <volume-uL>",
		Short: "Account for one aspirate or dispense",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			volume, err := parseFloatArg(args[1], "volume")
			if err != nil {
				return err
			}

			res, err := apiClient.StepTracker(args[0], volume)
			if err != nil {
				return err
			}

			if outputJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			printResult(cmd, *res)
			if res.BottomReached {
				logrus.Warnf("tracker %s reached the bottom of its tube", args[0])
			}
			return nil
		},
	}
}

func newTrackerGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a tracker session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := apiClient.GetTracker(args[0])
			if err != nil {
				return err
			}

			if outputJSON {
				return printJSON(cmd.OutOrStdout(), s)
			}
			printSession(cmd, *s)
			return nil
		},
	}
}

func newTrackerListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tracker sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := apiClient.ListTrackers()
			if err != nil {
				return err
			}

			if outputJSON {
				return printJSON(cmd.OutOrStdout(), list)
			}
			if len(list) == 0 {
				cmd.Println("No trackers.")
				return nil
			}
			for _, s := range list {
				printSession(cmd, s)
			}
			return nil
		},
	}
}

func newTrackerDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a tracker session",
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ret, err := apiClient.DeleteTracker(args[0])
			if err != nil {
				return fmt.Errorf("failed to delete tracker %s: %w", args[0], err)
			}

			if ret != "" {
				logrus.Debugf("daemon responded: %s", ret)
			}

			logrus.Infof("successfully deleted tracker %s", args[0])
			return nil
		},
	}
}

func newTrackerWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print tracker events as they happen",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return apiClient.Events(ctx, func(ev events.Event) error {
				if outputJSON {
					return printJSON(cmd.OutOrStdout(), ev)
				}

				switch ev.Name {
				case events.TrackerExhausted:
					e, err := events.DecodeAs[events.TrackerExhaustedEvent](ev)
					if err != nil {
						return err
					}
					cmd.Printf("%s %s %s after %d steps, surface at %s\n",
						time.Unix(e.Ts, 0).Format(time.Kitchen), bold("%s", e.ID), warn("bottom reached"), e.Steps, mm(e.HeightMM))
				case events.TrackerRemoved:
					e, err := events.DecodeAs[events.TrackerRemovedEvent](ev)
					if err != nil {
						return err
					}
					cmd.Printf("%s %s removed (%s)\n", time.Unix(e.Ts, 0).Format(time.Kitchen), bold("%s", e.ID), e.Reason)
				default:
					logrus.Debugf("ignoring event %s", ev.Name)
				}
				return nil
			})
		},
	}
}

func printSession(cmd *cobra.Command, s api.Session) {
	cmd.Println(bold("Tracker %s:", s.ID))
	cmd.Printf("  Tube type: %s\n", s.TubeType)
	cmd.Printf("  Direction: %s\n", s.Direction)
	phase := string(s.Phase)
	if s.Phase == tracker.PhaseExhausted {
		phase = warn("%s", phase)
	}
	cmd.Printf("  Phase:     %s\n", phase)
	cmd.Printf("  Height:    %s\n", mm(s.HeightMM))
	cmd.Printf("  Steps:     %d\n", s.Steps)
	if s.Last != nil {
		cmd.Printf("  Last tip:  %s\n", mm(s.Last.PipettingHeightMM))
	}
	cmd.Printf("  Last used: %s\n", s.LastUsedAt.Local().Format(time.DateTime))
}
