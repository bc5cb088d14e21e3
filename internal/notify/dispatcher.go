// Package notify presents interruptions to the user through an actionable
// alert or a modal dialog and reduces every answer to a single Result.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"
)

var logger = log.New(io.Discard, "notify: ", log.LstdFlags)

// SetLogOutput enables the package's internal logging
func SetLogOutput(w io.Writer) {
	logger.SetOutput(w)
}

// ErrDismissed is returned by a Dialoger when the dialog went away without
// an answer, for example because its parent window was closed.
var ErrDismissed = errors.New("dialog dismissed without a choice")

// ErrNoBackend is returned when no alert or dialog backend is configured
var ErrNoBackend = errors.New("no notification backend configured")

// Labels of the two choices offered on both channels
var choiceLabels = []string{"Okay", "Cancel"}

// Alert is a non-blocking system notification carrying labelled actions
type Alert struct {
	Title   string
	Body    string
	Actions []string
}

// AlertCallbacks are the completion triggers of one alert. OnAction receives
// the index of the chosen action; OnClose fires when the alert is closed
// without one. Either may be called from any goroutine.
type AlertCallbacks struct {
	OnAction func(index int)
	OnClose  func()
}

// Alerter shows alerts. ShowAlert must return once the alert is on screen
// and report the user's answer later through the callbacks.
type Alerter interface {
	ShowAlert(ctx context.Context, alert Alert, cb AlertCallbacks) error
}

// Dialog is a modal two-button question
type Dialog struct {
	Title     string
	Message   string
	Buttons   []string
	DefaultID int
	CancelID  int
}

// Dialoger shows modal dialogs and blocks until the user answers
type Dialoger interface {
	ShowDialog(ctx context.Context, dialog Dialog) (int, error)
}

// Sink receives every Result exactly once
type Sink interface {
	Publish(Result)
}

// DispatchError reports that neither channel could show the notification
type DispatchError struct {
	Alert  error // nil when the dialog was requested directly
	Dialog error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("notification dispatch failed: %v", multierr.Combine(e.Alert, e.Dialog))
}

func (e *DispatchError) Unwrap() []error {
	return multierr.Errors(multierr.Combine(e.Alert, e.Dialog))
}

// Pending is the future of one dispatched notification
type Pending struct {
	ID      string
	Channel Channel

	once   sync.Once
	done   chan struct{}
	result Result
}

func newPending(id string, channel Channel) *Pending {
	return &Pending{ID: id, Channel: channel, done: make(chan struct{})}
}

// Done is closed once the notification has a result
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Result returns the outcome if it is already known
func (p *Pending) Result() (Result, bool) {
	select {
	case <-p.done:
		return p.result, true
	default:
		return Result{}, false
	}
}

// Wait blocks until the result arrives or ctx ends. Giving up waiting does
// not withdraw the notification.
func (p *Pending) Wait(ctx context.Context) (Result, error) {
	select {
	case <-p.done:
		return p.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Dispatcher routes notifications to an alert or dialog backend
type Dispatcher struct {
	alerter  Alerter
	dialoger Dialoger
	sink     Sink
}

// NewDispatcher wires the backends. Either backend may be nil; a nil sink
// discards results.
func NewDispatcher(alerter Alerter, dialoger Dialoger, sink Sink) *Dispatcher {
	return &Dispatcher{alerter: alerter, dialoger: dialoger, sink: sink}
}

// Notify interrupts the user. With preferDialog it blocks until the dialog
// is answered and returns an already resolved Pending. Otherwise it shows an
// alert and returns at once; the result arrives later on the sink and the
// Pending. If the alert cannot be shown the dialog is used instead.
func (d *Dispatcher) Notify(ctx context.Context, title, body string, preferDialog bool) (*Pending, error) {
	id := uuid.NewString()

	if preferDialog {
		p, err := d.showDialog(ctx, id, title, body)
		if err != nil {
			return nil, &DispatchError{Dialog: err}
		}
		return p, nil
	}

	p, alertErr := d.showAlert(ctx, id, title, body)
	if alertErr == nil {
		return p, nil
	}

	logger.Printf("Alert %s could not be shown, falling back to dialog: %v", id, alertErr)
	p, dialogErr := d.showDialog(ctx, id, title, body)
	if dialogErr != nil {
		return nil, &DispatchError{Alert: alertErr, Dialog: dialogErr}
	}
	return p, nil
}

func (d *Dispatcher) showAlert(ctx context.Context, id, title, body string) (*Pending, error) {
	if d.alerter == nil {
		return nil, ErrNoBackend
	}

	p := newPending(id, ChannelAlert)
	err := d.alerter.ShowAlert(ctx, Alert{Title: title, Body: body, Actions: choiceLabels}, AlertCallbacks{
		OnAction: func(index int) {
			d.resolve(p, chosen(id, ChannelAlert, index))
		},
		OnClose: func() {
			d.resolve(p, dismissed(id, ChannelAlert))
		},
	})
	if err != nil {
		// late triggers of an alert that failed to show must not emit
		p.once.Do(func() {})
		return nil, err
	}

	return p, nil
}

func (d *Dispatcher) showDialog(ctx context.Context, id, title, body string) (*Pending, error) {
	if d.dialoger == nil {
		return nil, ErrNoBackend
	}

	index, err := d.dialoger.ShowDialog(ctx, Dialog{
		Title:     title,
		Message:   body,
		Buttons:   choiceLabels,
		DefaultID: 0,
		CancelID:  1,
	})

	p := newPending(id, ChannelDialog)
	switch {
	case errors.Is(err, ErrDismissed):
		d.resolve(p, dismissed(id, ChannelDialog))
	case err != nil:
		return nil, err
	default:
		d.resolve(p, chosen(id, ChannelDialog, index))
	}

	return p, nil
}

// resolve settles p and emits its result; only the first call has effect
func (d *Dispatcher) resolve(p *Pending, r Result) {
	p.once.Do(func() {
		p.result = r
		close(p.done)
		if d.sink != nil {
			d.sink.Publish(r)
		}
		logger.Printf("Notification %s resolved: %s via %s", r.ID, r.Outcome, r.Channel)
	})
}

// Close releases backends that hold resources, such as alert processes
// still waiting for an answer
func (d *Dispatcher) Close() error {
	var err error
	if c, ok := d.alerter.(io.Closer); ok {
		err = multierr.Append(err, c.Close())
	}
	if c, ok := d.dialoger.(io.Closer); ok {
		err = multierr.Append(err, c.Close())
	}
	return err
}
