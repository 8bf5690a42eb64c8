package main

import (
	"fmt"
	"os"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ot2lab/liquidtrack/pkg/config"
	daemonutils "github.com/ot2lab/liquidtrack/pkg/utils/daemon"
)

var gInstallation = "Installation:"

func init() {
	commandGroups = append(commandGroups, gInstallation)
}

// NewInstallCommand .
func NewInstallCommand() *cobra.Command {
	allowNonRootAccess := false

	cmd := &cobra.Command{
		Use:         "install",
		Short:       "Install liquidtrack daemon (system-wide)",
		GroupID:     gInstallation,
		Annotations: map[string]string{annotationOffline: "true"},
		Long: `Install liquidtrack daemon as a systemd service (system-wide).

This makes the daemon run in the background and automatically start on boot. You must run this command as root.

By default, only root user is allowed to access the daemon. If protocol scripts run as another user, use the --allow-non-root-access flag so they can reach the socket without sudo.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := config.NewFile(configPath)
			if err != nil {
				return err
			}

			conf.SetAllowNonRootAccess(allowNonRootAccess)
			if allowNonRootAccess {
				logrus.Info("non-root users are allowed to access the liquidtrack daemon.")
			} else {
				logrus.Info("only root user is allowed to access the liquidtrack daemon.")
			}

			err = daemonutils.Install(daemonutils.UnitOptions{
				ConfigPath:   configPath,
				SocketPath:   unixSocketPath,
				AllowNonRoot: allowNonRootAccess,
			})
			if err != nil {
				// check if current user is root
				if os.Geteuid() != 0 {
					logrus.Errorf("you must run this command as root")
				}
				return fmt.Errorf("failed to install daemon: %v. Are you root?", err)
			}

			err = conf.Save()
			if err != nil {
				return pkgerrors.Wrapf(err, "failed to save config")
			}

			logrus.Infof("installation succeeded")

			exePath, _ := os.Executable()

			cmd.Printf("systemd will use current binary (%s) at startup so please make sure you do not move this binary. Once this binary is moved or deleted, you will need to run `liquidtrack install' again.\n", exePath)

			return nil
		},
	}

	cmd.Flags().BoolVar(&allowNonRootAccess, "allow-non-root-access", false, "Allow non-root users to access liquidtrack daemon.")

	return cmd
}

// NewUninstallCommand .
func NewUninstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "uninstall",
		Short:       "Uninstall liquidtrack daemon (system-wide)",
		GroupID:     gInstallation,
		Annotations: map[string]string{annotationOffline: "true"},
		Long: `Uninstall liquidtrack daemon from systemd (system-wide).

This stops the daemon and removes its unit. Tracker sessions held by the daemon are lost.

You must run this command as root.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := daemonutils.Uninstall()
			if err != nil {
				// check if current user is root
				if os.Geteuid() != 0 {
					logrus.Errorf("you must run this command as root")
				}
				return fmt.Errorf("failed to uninstall daemon: %v", err)
			}

			logrus.Infof("successfully uninstalled")

			cmd.Printf("Your config is kept in %s, in case you want to use `liquidtrack' again. If you want a complete uninstall, you can remove both config file and liquidtrack itself manually.\n", configPath)

			return nil
		},
	}
}
