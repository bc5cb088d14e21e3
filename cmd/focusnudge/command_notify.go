package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/focusnudge/focusnudge/internal/config"
	"github.com/focusnudge/focusnudge/internal/daemon"
	"github.com/focusnudge/focusnudge/internal/notify"
)

type notifyRequest struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	UseDialog *bool  `json:"useDialog,omitempty"`
}

type notifyResponse struct {
	ID     string `json:"id"`
	Dialog bool   `json:"dialog"`
	Error  string `json:"error"`
}

func newNotifyCmd() *cobra.Command {
	var (
		title     string
		body      string
		useDialog bool
		wait      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Show a notification and print the answer",
		Long: `Show a notification and print the answer.

When the daemon is running the notification is sent through it, so the
answer also reaches its event stream and journal. Otherwise it is shown
directly by this process.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if title == "" {
				title = "Notification"
			}
			req := notifyRequest{Title: title, Body: body}
			if cmd.Flags().Changed("dialog") {
				req.UseDialog = &useDialog
			}

			ctx := cmd.Context()
			if wait > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, wait)
				defer cancel()
			}

			var res notify.Result
			if running, _, _ := daemon.New(cfg.Daemon.PIDFile).IsRunning(); running {
				res, err = notifyViaDaemon(ctx, cfg, req)
			} else {
				res, err = notifyLocally(ctx, cfg, req)
			}
			if err != nil {
				return err
			}

			return json.NewEncoder(cmd.OutOrStdout()).Encode(res)
		},
	}

	cmd.Flags().StringVar(&title, "title", "Notification", "Notification title")
	cmd.Flags().StringVar(&body, "body", "", "Notification body")
	cmd.Flags().BoolVar(&useDialog, "dialog", false, "Use a modal dialog (--dialog=false forces an alert; default: notify.prefer_dialog)")
	cmd.Flags().DurationVar(&wait, "wait", 0, "Give up waiting for an answer after this long (0 waits forever)")
	return cmd
}

// preferDialog resolves the channel: an explicit choice wins over config
func preferDialog(cfg *config.Config, req notifyRequest) bool {
	if req.UseDialog != nil {
		return *req.UseDialog
	}
	return cfg.Notify.PreferDialog
}

func notifyLocally(ctx context.Context, cfg *config.Config, req notifyRequest) (notify.Result, error) {
	d := notify.NewDispatcher(notify.NewDesktopAlerts(cfg.Notify.AppName), notify.Zenity{}, nil)
	defer d.Close()

	p, err := d.Notify(ctx, req.Title, req.Body, preferDialog(cfg, req))
	if err != nil {
		return notify.Result{}, err
	}

	res, err := p.Wait(ctx)
	if err != nil {
		return notify.Result{}, fmt.Errorf("no answer to notification %s: %w", p.ID, err)
	}
	return res, nil
}

// notifyViaDaemon subscribes to the daemon's event stream before posting,
// then waits for the event carrying the new notification's ID
func notifyViaDaemon(ctx context.Context, cfg *config.Config, req notifyRequest) (notify.Result, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, "ws://"+cfg.Address()+"/api/events", nil)
	if err != nil {
		return notify.Result{}, fmt.Errorf("failed to subscribe to daemon events: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	var resp notifyResponse
	if err := postJSON(ctx, cfg, "/api/notifications", req, &resp); err != nil {
		return notify.Result{}, err
	}
	if resp.Error != "" {
		return notify.Result{}, errors.New(resp.Error)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return notify.Result{}, fmt.Errorf("no answer to notification %s: %w", resp.ID, ctx.Err())
			}
			return notify.Result{}, fmt.Errorf("daemon event stream closed: %w", err)
		}

		var res notify.Result
		if err := json.Unmarshal(data, &res); err != nil {
			continue
		}
		if res.ID == resp.ID {
			return res, nil
		}
	}
}
