package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ot2lab/liquidtrack/pkg/api"
	"github.com/ot2lab/liquidtrack/pkg/config"
)

type statusJSON struct {
	Daemon        *api.DaemonStatus     `json:"daemon"`
	Configuration *config.RawFileConfig `json:"configuration"`
}

func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		GroupID: gBasic,
		Short:   "Get the current status of the daemon",
		Long:    `Get daemon status, tracker counts, and configuration.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := apiClient.GetStatus()
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}
			raw, err := apiClient.GetConfig()
			if err != nil {
				return fmt.Errorf("failed to get config: %w", err)
			}

			if outputJSON {
				return printJSON(cmd.OutOrStdout(), statusJSON{Daemon: st, Configuration: raw})
			}

			conf := config.NewFileFromConfig(raw, "")

			cmd.Println(bold("Daemon:"))
			cmd.Printf("  Version:           %s\n", st.Version)
			cmd.Printf("  Trackers:          %d\n", st.ActiveTrackers)
			if st.ExhaustedTrackers > 0 {
				cmd.Printf("  Bottom reached:    %s\n", warn("%d", st.ExhaustedTrackers))
			} else {
				cmd.Printf("  Bottom reached:    %d\n", st.ExhaustedTrackers)
			}
			cmd.Printf("  Event listeners:   %d\n", st.EventSubscribers)
			if st.NextSweep != "" {
				cmd.Printf("  Next idle sweep:   %s\n", st.NextSweep)
			}
			cmd.Println()

			cmd.Println(bold("Configuration:"))
			cmd.Printf("  Default tube type: %s\n", bold("%s", conf.DefaultTubeType()))
			if ttl := conf.TrackerTTLMinutes(); ttl > 0 {
				cmd.Printf("  Idle tracker TTL:  %d minutes\n", ttl)
			} else {
				cmd.Printf("  Idle tracker TTL:  never expire\n")
			}
			cmd.Printf("  Sweep schedule:    %s\n", conf.SweepSchedule())
			cmd.Printf("  History size:      %d\n", conf.HistorySize())
			cmd.Printf("  Allow non-root:    %s\n", bool2Text(conf.AllowNonRootAccess()))

			return nil
		},
	}
}
