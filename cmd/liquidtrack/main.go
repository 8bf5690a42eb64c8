package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ot2lab/liquidtrack/pkg/client"
)

var (
	logLevel       = "info"
	unixSocketPath = "/tmp/liquidtrack.sock"
	configPath     = "/etc/liquidtrack.json"
	outputJSON     = false
)

var apiClient *client.Client

var (
	gBasic        = "Basic:"
	gTracking     = "Tracking:"
	gAdvanced     = "Advanced:"
	commandGroups = []string{
		gBasic,
		gTracking,
		gAdvanced,
	}
)

// annotationOffline marks commands that compute locally and never contact the daemon.
const annotationOffline = "offline"

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}

	return nil
}

func handleCmdError(err error) {
	if errors.Is(err, client.ErrDaemonNotRunning) {
		fmt.Fprintln(os.Stderr, "\nError: liquidtrack daemon is not running")
		fmt.Fprintln(os.Stderr, "Start it with 'liquidtrack daemon' or check --daemon-socket.")
	} else if errors.Is(err, client.ErrPermissionDenied) {
		fmt.Fprintln(os.Stderr, "\nError: Permission Denied")
		fmt.Fprintln(os.Stderr, "  - Try running the command again with 'sudo'")
		fmt.Fprintln(os.Stderr, "  - Or start the daemon with '--always-allow-non-root-access' to grant permissions to your user")
	}
}

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "liquidtrack",
		Short: "liquidtrack tracks liquid levels in OT-2 tubes",
		Long: `liquidtrack tracks the liquid surface in lab tubes while a pipetting robot
draws from or fills them, and tells where to place the pipette tip for each step.

It can be used offline (tubes, height, step, simulate) or through a local daemon
that holds one tracker per physical tube for the duration of a protocol run.`,
		SilenceUsage: true,
		PersistentPreRunE: func(c *cobra.Command, _ []string) error {
			err := setupLogger()
			if err != nil {
				return err
			}

			apiClient = client.NewClient(unixSocketPath)
			if c.Annotations[annotationOffline] != "" {
				return nil
			}

			if clientVersion, daemonVersion, err := getVersion(); err == nil {
				if daemonVersion != clientVersion {
					logrus.WithFields(logrus.Fields{
						"clientVersion": clientVersion,
						"daemonVersion": daemonVersion,
					}).Warn("Version mismatch between client and daemon. Restart the daemon after upgrading liquidtrack.")
				}
			}

			return nil
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVar(&configPath, "config", configPath, "config file path")
	globalFlags.StringVar(&unixSocketPath, "daemon-socket", unixSocketPath, "liquidtrack daemon unix socket path")
	globalFlags.BoolVar(&outputJSON, "json", false, "print results as JSON")

	for _, i := range commandGroups {
		cmd.AddGroup(&cobra.Group{
			ID:    i,
			Title: i,
		})
	}

	cmd.AddCommand(
		NewDaemonCommand(),
		NewVersionCommand(),
		NewTubesCommand(),
		NewHeightCommand(),
		NewStepCommand(),
		NewSimulateCommand(),
		NewStatusCommand(),
		NewTrackerCommand(),
		NewDefaultTubeTypeCommand(),
		NewTrackerTTLCommand(),
		NewSweepScheduleCommand(),
		NewInstallCommand(),
		NewUninstallCommand(),
	)

	return cmd
}
