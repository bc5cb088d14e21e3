package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/focusnudge/focusnudge/internal/daemon"
	"github.com/focusnudge/focusnudge/internal/watcher"
	"github.com/focusnudge/focusnudge/pkg/detector"
	"github.com/focusnudge/focusnudge/pkg/utils"
)

type daemonStatus struct {
	PID           int             `json:"pid"`
	Uptime        string          `json:"uptime"`
	WatcherActive bool            `json:"watcher_active"`
	Watcher       *watcher.Status `json:"watcher"`
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and watcher state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			running, pid, err := daemon.New(cfg.Daemon.PIDFile).IsRunning()
			if err != nil {
				return fmt.Errorf("failed to check daemon status: %w", err)
			}

			if !running {
				fmt.Fprintln(out, "Status: Not running")
			} else {
				fmt.Fprintf(out, "Status: Running (PID: %d)\n", pid)

				var st daemonStatus
				if err := getJSON(cmd.Context(), cfg, "/api/status", &st); err != nil {
					fmt.Fprintf(out, "Could not query daemon: %v\n", err)
				} else {
					printWatcherStatus(cmd, st)
				}
			}

			fmt.Fprintf(out, "\nDisplay Server: %s\n", detector.DetectDisplayServer())
			return nil
		},
	}
}

func printWatcherStatus(cmd *cobra.Command, st daemonStatus) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Uptime: %s\n", st.Uptime)

	if !st.WatcherActive || st.Watcher == nil {
		fmt.Fprintln(out, "Watcher: disabled (no active-window facility)")
		return
	}

	w := st.Watcher
	fmt.Fprintf(out, "Watcher: every %v, threshold %v, cooldown %v\n", w.Interval, w.Threshold, w.Cooldown)
	if w.Session != nil {
		fmt.Fprintf(out, "  Focused: %s for %s\n", w.Session.AppName, utils.HumanizeElapsed(time.Since(w.Session.Since)))
	}

	apps := make([]string, 0, len(w.Cooldowns))
	for app := range w.Cooldowns {
		apps = append(apps, app)
	}
	sort.Strings(apps)
	for _, app := range apps {
		ago := int64(time.Since(w.Cooldowns[app]).Seconds())
		fmt.Fprintf(out, "  Last nudge for %s: %s ago\n", app, utils.FormatRoundedUnit(ago))
	}
}
