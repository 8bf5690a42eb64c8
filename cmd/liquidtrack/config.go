package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func NewDefaultTubeTypeCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "default-tube-type <type>",
		Short:   "Set the tube type used when a tracker does not name one",
		GroupID: gAdvanced,
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ret, err := apiClient.SetDefaultTubeType(args[0])
			if err != nil {
				return fmt.Errorf("failed to set default tube type: %w", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}
			return nil
		},
	}
}

func NewTrackerTTLCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "tracker-ttl <minutes>",
		Short:   "Set how long an unused tracker is kept",
		GroupID: gAdvanced,
		Long: `Set how long an unused tracker is kept by the daemon.

Trackers that were not stepped for longer than this are removed by the idle
sweeper. 0 keeps trackers until they are deleted.`,
		RunE: func(_ *cobra.Command, args []string) error {
			minutes, err := parseIntArg(args, "minutes")
			if err != nil {
				return err
			}

			ret, err := apiClient.SetTrackerTTL(minutes)
			if err != nil {
				return fmt.Errorf("failed to set tracker ttl: %w", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}
			return nil
		},
	}
}

func NewSweepScheduleCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "sweep-schedule <cron>",
		Short:   "Set when the daemon looks for idle trackers",
		GroupID: gAdvanced,
		Example: `  liquidtrack sweep-schedule "@every 10m"
  liquidtrack sweep-schedule "0 */15 * * * *"`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ret, err := apiClient.SetSweepSchedule(args[0])
			if err != nil {
				return fmt.Errorf("failed to set sweep schedule: %w", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			logrus.Infof("successfully set sweep schedule to %q", args[0])
			return nil
		},
	}
}
