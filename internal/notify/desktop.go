package notify

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"strconv"
	"sync"

	dbusnotify "github.com/esiqveland/notify"
	"github.com/godbus/dbus/v5"
	"github.com/ncruces/zenity"
	"go.uber.org/multierr"
)

// ErrActionsUnsupported means the alert backend cannot render action buttons
var ErrActionsUnsupported = errors.New("notification actions not supported")

// notificationServer is the part of the freedesktop notification service
// the alert backend talks to
type notificationServer interface {
	SendNotification(n dbusnotify.Notification) (uint32, error)
	GetCapabilities() ([]string, error)
	CloseNotification(id uint32) (bool, error)
	Close() error
}

type serverDialer func(onAction dbusnotify.ActionInvokedHandler, onClosed dbusnotify.NotificationClosedHandler) (notificationServer, error)

// DesktopAlerts shows freedesktop notifications over the session D-Bus and
// maps the ActionInvoked and NotificationClosed signals onto AlertCallbacks
type DesktopAlerts struct {
	AppName string

	dial serverDialer

	mu      sync.Mutex
	server  notificationServer
	waiting map[uint32]AlertCallbacks
}

func NewDesktopAlerts(appName string) *DesktopAlerts {
	return newDesktopAlerts(appName, dialSessionBus)
}

func newDesktopAlerts(appName string, dial serverDialer) *DesktopAlerts {
	return &DesktopAlerts{
		AppName: appName,
		dial:    dial,
		waiting: make(map[uint32]AlertCallbacks),
	}
}

type sessionServer struct {
	dbusnotify.Notifier
	conn *dbus.Conn
}

func (s *sessionServer) Close() error {
	return multierr.Combine(s.Notifier.Close(), s.conn.Close())
}

func dialSessionBus(onAction dbusnotify.ActionInvokedHandler, onClosed dbusnotify.NotificationClosedHandler) (notificationServer, error) {
	conn, err := dbus.SessionBusPrivate()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	if err := conn.Auth(nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("session bus auth failed: %w", err)
	}
	if err := conn.Hello(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("session bus hello failed: %w", err)
	}

	notifier, err := dbusnotify.New(conn,
		dbusnotify.WithOnAction(onAction),
		dbusnotify.WithOnClosed(onClosed),
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to attach notification service: %w", err)
	}

	return &sessionServer{Notifier: notifier, conn: conn}, nil
}

// connect dials the notification service on first use. A failed dial is
// retried on the next alert, since the daemon may start before the desktop
// session does. Callers hold d.mu.
func (d *DesktopAlerts) connect() error {
	if d.server != nil {
		return nil
	}

	server, err := d.dial(d.onAction, d.onClosed)
	if err != nil {
		return err
	}

	caps, err := server.GetCapabilities()
	if err != nil {
		server.Close()
		return fmt.Errorf("failed to query notification capabilities: %w", err)
	}
	if !slices.Contains(caps, "actions") {
		server.Close()
		return ErrActionsUnsupported
	}

	d.server = server
	return nil
}

// ShowAlert sends the notification and returns; the callbacks fire when the
// server reports an action or the notification closing.
func (d *DesktopAlerts) ShowAlert(ctx context.Context, alert Alert, cb AlertCallbacks) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// held across the send so a signal for the new ID waits for its callbacks
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.connect(); err != nil {
		return err
	}

	n := dbusnotify.Notification{
		AppName: d.AppName,
		Summary: alert.Title,
		Body:    alert.Body,
	}
	for i, label := range alert.Actions {
		n.Actions = append(n.Actions, dbusnotify.Action{Key: strconv.Itoa(i), Label: label})
	}

	id, err := d.server.SendNotification(n)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}

	d.waiting[id] = cb
	return nil
}

// take removes and returns the callbacks of one notification
func (d *DesktopAlerts) take(id uint32) (AlertCallbacks, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cb, ok := d.waiting[id]
	delete(d.waiting, id)
	return cb, ok
}

// onAction handles ActionInvoked. Keys that are not an action index, such
// as "default" for a click on the body, count as closing without a choice.
func (d *DesktopAlerts) onAction(sig *dbusnotify.ActionInvokedSignal) {
	cb, ok := d.take(sig.ID)
	if !ok {
		return
	}

	if index, err := strconv.Atoi(sig.ActionKey); err == nil {
		cb.OnAction(index)
		return
	}
	cb.OnClose()
}

func (d *DesktopAlerts) onClosed(sig *dbusnotify.NotificationClosedSignal) {
	if cb, ok := d.take(sig.ID); ok {
		cb.OnClose()
	}
}

// Close withdraws alerts that are still waiting, fires their OnClose and
// disconnects from the bus
func (d *DesktopAlerts) Close() error {
	d.mu.Lock()
	server := d.server
	waiting := d.waiting
	d.server = nil
	d.waiting = make(map[uint32]AlertCallbacks)
	d.mu.Unlock()

	var err error
	for id, cb := range waiting {
		if server != nil {
			if _, closeErr := server.CloseNotification(id); closeErr != nil {
				err = multierr.Append(err, closeErr)
			}
		}
		cb.OnClose()
	}

	if server != nil {
		err = multierr.Append(err, server.Close())
	}
	return err
}

type questionFunc func(text string, options ...zenity.Option) error

// Zenity shows modal questions through github.com/ncruces/zenity, which uses
// the zenity tool on Unix desktops and native dialogs on macOS and Windows
type Zenity struct {
	question questionFunc
}

// ShowDialog returns the default button for OK and the cancel button for
// ErrCanceled. A dialog that ends any other way, such as its window being
// killed or ctx ending, is reported as ErrDismissed.
func (z Zenity) ShowDialog(ctx context.Context, dialog Dialog) (int, error) {
	if len(dialog.Buttons) != 2 {
		return 0, fmt.Errorf("zenity supports exactly two buttons, got %d", len(dialog.Buttons))
	}

	question := z.question
	if question == nil {
		question = zenity.Question
	}

	err := question(dialog.Message,
		zenity.Title(dialog.Title),
		zenity.OKLabel(dialog.Buttons[dialog.DefaultID]),
		zenity.CancelLabel(dialog.Buttons[dialog.CancelID]),
		zenity.Context(ctx),
	)

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return dialog.DefaultID, nil
	case errors.Is(err, zenity.ErrCanceled):
		return dialog.CancelID, nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), errors.As(err, &exitErr):
		return 0, ErrDismissed
	default:
		return 0, fmt.Errorf("failed to show dialog: %w", err)
	}
}
