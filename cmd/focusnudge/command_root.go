package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/focusnudge/focusnudge/internal/config"
)

// configPath is the --config flag shared by every command
var configPath string

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "focusnudge",
		Short:         "Nudges you when you stay on one application for too long",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to configuration file. Defaults to ./focusnudge.yaml or ~/.config/focusnudge/focusnudge.yaml")

	root.AddCommand(newRunCmd())
	root.AddCommand(newStartCmd())
	root.AddCommand(newStopCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newProcessesCmd())
	root.AddCommand(newNotifyCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newVersionCmd())

	return root
}

func loadConfig() (*config.Loader, *config.Config, error) {
	loader := config.NewLoader(configPath)
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return loader, cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "focusnudge version %s\n", version)
		},
	}
}
