package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"

	"github.com/focusnudge/focusnudge/internal/config"
	"github.com/focusnudge/focusnudge/internal/daemon"
	"github.com/focusnudge/focusnudge/internal/database"
	"github.com/focusnudge/focusnudge/internal/journal"
	"github.com/focusnudge/focusnudge/internal/notify"
	"github.com/focusnudge/focusnudge/internal/procsnap"
	"github.com/focusnudge/focusnudge/internal/watcher"
	"github.com/focusnudge/focusnudge/internal/web"
	"github.com/focusnudge/focusnudge/pkg/detector"
)

// journalRetention bounds the in-memory journal of a long session
const journalRetention = 24 * time.Hour

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the watcher and API in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runDaemon(loader, cfg)
		},
	}
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the watcher and API as a background daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, cfg, err := loadConfig()
			if err != nil {
				return err
			}

			dm := daemon.New(cfg.Daemon.PIDFile)
			running, pid, err := dm.IsRunning()
			if err != nil {
				return fmt.Errorf("failed to check daemon status: %w", err)
			}
			if running {
				return fmt.Errorf("daemon is already running (PID: %d)", pid)
			}

			if daemon.IsChild() {
				logFile, err := os.OpenFile(cfg.Daemon.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
				if err == nil {
					log.SetOutput(logFile)
					defer logFile.Close()
				}
				return runDaemon(loader, cfg)
			}

			pid, err = dm.Detach(os.Args)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Daemon started successfully (PID: %d)\n", pid)
			fmt.Fprintf(out, "Web API available at: http://%s\n", cfg.Address())
			fmt.Fprintf(out, "Logs: %s\n", cfg.Daemon.LogFile)
			return nil
		},
	}
}

func policyFromConfig(cfg *config.Config) watcher.Policy {
	return watcher.Policy{
		Interval:  cfg.Watcher.PollInterval,
		Threshold: cfg.Watcher.Threshold,
		Cooldown:  cfg.Watcher.Cooldown,
		Retention: cfg.Watcher.CooldownRetention,
	}
}

func runDaemon(loader *config.Loader, cfg *config.Config) error {
	dm := daemon.New(cfg.Daemon.PIDFile)
	if running, pid, _ := dm.IsRunning(); running && pid != os.Getpid() {
		return fmt.Errorf("daemon is already running (PID: %d)", pid)
	}

	db, err := database.Connect(database.DefaultDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Initialize(); err != nil {
		return err
	}

	if err := dm.WritePID(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	defer dm.RemovePID()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stream := notify.NewBroadcaster[notify.Result](64)
	defer stream.Stop()

	dispatcher := notify.NewDispatcher(notify.NewDesktopAlerts(cfg.Notify.AppName), notify.Zenity{}, stream)
	defer dispatcher.Close()

	jrnl := journal.New(database.NewRepository(db))
	results, err := stream.Subscribe()
	if err != nil {
		return err
	}

	var wg conc.WaitGroup
	wg.Go(func() { jrnl.Follow(ctx, results) })
	wg.Go(func() { pruneJournal(ctx, jrnl) })

	deps := web.Deps{
		Processes: procsnap.New(procsnap.DefaultLister(), nil),
		Notifier:  dispatcher,
		Events:    stream,
		Journal:   jrnl,
	}

	// a missing active-window facility disables the watcher, nothing else
	det, err := detector.New()
	if err != nil {
		log.Printf("Focus watcher disabled: %v", err)
	} else {
		defer det.Close()
		log.Printf("Window detector initialized: %s", det.GetDisplayServer())

		fw := watcher.New(det, dispatcher, policyFromConfig(cfg), watcher.WithJournal(jrnl))
		deps.Watcher = fw

		if loader.Watch(func(c *config.Config) {
			if err := fw.SetPolicy(policyFromConfig(c)); err != nil {
				log.Printf("Ignoring watcher policy: %v", err)
			}
		}) {
			log.Printf("Watching %s for changes", loader.ConfigFile())
		}

		wg.Go(func() {
			if err := fw.Run(ctx); err != nil {
				log.Printf("Watcher error: %v", err)
			}
		})
	}

	webServer := web.NewServer(cfg, web.NewHandler(cfg, deps))
	listener, err := webServer.Listen()
	if err != nil {
		cancel()
		wg.Wait()
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := webServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	log.Println("Starting focusnudge daemon...")
	log.Printf("Web API available at: http://%s", webServer.GetAddress())
	log.Printf("Configuration:\n%s", cfg.String())

	select {
	case <-ctx.Done():
		log.Println("Received shutdown signal")
	case err := <-serveErr:
		log.Printf("Web server error: %v", err)
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := webServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down web server: %v", err)
	}

	cancel()
	wg.Wait()

	log.Println("Daemon stopped successfully")
	return nil
}

func pruneJournal(ctx context.Context, j *journal.Journal) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := j.Prune(journalRetention); err != nil {
				log.Printf("Failed to prune journal: %v", err)
			} else if n > 0 {
				log.Printf("Pruned %d journal entries", n)
			}
		}
	}
}
