package notify

import (
	"context"
	"errors"
	"os/exec"
	"sync"
	"testing"

	dbusnotify "github.com/esiqveland/notify"
	"github.com/ncruces/zenity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoButtons() Dialog {
	return Dialog{Title: "t", Message: "m", Buttons: []string{"Okay", "Cancel"}, DefaultID: 0, CancelID: 1}
}

func TestZenityAnswers(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		want      int
		wantErr   error
		wantOther bool
	}{
		{"okay", nil, 0, nil, false},
		{"cancel button", zenity.ErrCanceled, 1, nil, false},
		{"window killed", &exec.ExitError{}, 0, ErrDismissed, false},
		{"context ended", context.Canceled, 0, ErrDismissed, false},
		{"deadline", context.DeadlineExceeded, 0, ErrDismissed, false},
		{"tool missing", exec.ErrNotFound, 0, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			z := Zenity{question: func(string, ...zenity.Option) error { return tt.err }}

			index, err := z.ShowDialog(context.Background(), twoButtons())
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantOther:
				require.Error(t, err)
				assert.NotErrorIs(t, err, ErrDismissed)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, index)
			}
		})
	}
}

func TestZenityPassesMessage(t *testing.T) {
	var gotText string
	var gotOpts int
	z := Zenity{question: func(text string, opts ...zenity.Option) error {
		gotText, gotOpts = text, len(opts)
		return nil
	}}

	_, err := z.ShowDialog(context.Background(), twoButtons())
	require.NoError(t, err)
	assert.Equal(t, "m", gotText)
	assert.Equal(t, 4, gotOpts)
}

func TestZenityRejectsOtherButtonCounts(t *testing.T) {
	d := twoButtons()
	d.Buttons = []string{"Only"}

	called := false
	z := Zenity{question: func(string, ...zenity.Option) error { called = true; return nil }}

	_, err := z.ShowDialog(context.Background(), d)
	assert.Error(t, err)
	assert.False(t, called)
}

// fakeServer stands in for the session bus notification service
type fakeServer struct {
	mu       sync.Mutex
	caps     []string
	capsErr  error
	sendErr  error
	nextID   uint32
	sent     []dbusnotify.Notification
	withdrew []uint32
	closed   bool

	onAction dbusnotify.ActionInvokedHandler
	onClosed dbusnotify.NotificationClosedHandler
}

func (f *fakeServer) SendNotification(n dbusnotify.Notification) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	f.nextID++
	f.sent = append(f.sent, n)
	return f.nextID, nil
}

func (f *fakeServer) GetCapabilities() ([]string, error) {
	return f.caps, f.capsErr
}

func (f *fakeServer) CloseNotification(id uint32) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.withdrew = append(f.withdrew, id)
	return true, nil
}

func (f *fakeServer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeServer) action(id uint32, key string) {
	f.onAction(&dbusnotify.ActionInvokedSignal{ID: id, ActionKey: key})
}

func (f *fakeServer) close(id uint32) {
	f.onClosed(&dbusnotify.NotificationClosedSignal{ID: id})
}

func newFakeAlerts(server *fakeServer) (*DesktopAlerts, *int) {
	dials := new(int)
	alerts := newDesktopAlerts("focusnudge", func(onAction dbusnotify.ActionInvokedHandler, onClosed dbusnotify.NotificationClosedHandler) (notificationServer, error) {
		*dials++
		server.onAction, server.onClosed = onAction, onClosed
		return server, nil
	})
	return alerts, dials
}

// recordCallbacks reports the chosen index, or -1 for a close
func recordCallbacks() (AlertCallbacks, <-chan int) {
	got := make(chan int, 2)
	return AlertCallbacks{
		OnAction: func(i int) { got <- i },
		OnClose:  func() { got <- -1 },
	}, got
}

func TestDesktopAlertsAction(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want int
	}{
		{"okay", "0", 0},
		{"cancel", "1", 1},
		{"body click", "default", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := &fakeServer{caps: []string{"body", "actions"}}
			alerts, _ := newFakeAlerts(server)

			cb, got := recordCallbacks()
			require.NoError(t, alerts.ShowAlert(context.Background(), Alert{Title: "t", Body: "b", Actions: choiceLabels}, cb))

			server.action(1, tt.key)
			server.close(1)

			assert.Equal(t, tt.want, <-got)
			assert.Empty(t, got, "only the first signal may fire a callback")
		})
	}
}

func TestDesktopAlertsSendsActions(t *testing.T) {
	server := &fakeServer{caps: []string{"actions"}}
	alerts, _ := newFakeAlerts(server)

	cb, _ := recordCallbacks()
	require.NoError(t, alerts.ShowAlert(context.Background(), Alert{Title: "t", Body: "b", Actions: choiceLabels}, cb))

	require.Len(t, server.sent, 1)
	n := server.sent[0]
	assert.Equal(t, "focusnudge", n.AppName)
	assert.Equal(t, "t", n.Summary)
	assert.Equal(t, "b", n.Body)
	assert.Equal(t, []dbusnotify.Action{{Key: "0", Label: "Okay"}, {Key: "1", Label: "Cancel"}}, n.Actions)
}

func TestDesktopAlertsClosedWithoutAction(t *testing.T) {
	server := &fakeServer{caps: []string{"actions"}}
	alerts, _ := newFakeAlerts(server)

	cb, got := recordCallbacks()
	require.NoError(t, alerts.ShowAlert(context.Background(), Alert{Title: "t", Actions: choiceLabels}, cb))

	server.close(1)
	assert.Equal(t, -1, <-got)
}

func TestDesktopAlertsIgnoresForeignSignals(t *testing.T) {
	server := &fakeServer{caps: []string{"actions"}}
	alerts, _ := newFakeAlerts(server)

	cb, got := recordCallbacks()
	require.NoError(t, alerts.ShowAlert(context.Background(), Alert{Title: "t", Actions: choiceLabels}, cb))

	server.action(99, "0")
	server.close(42)
	assert.Empty(t, got)
}

func TestDesktopAlertsWithoutActionSupport(t *testing.T) {
	server := &fakeServer{caps: []string{"body"}}
	alerts, _ := newFakeAlerts(server)

	err := alerts.ShowAlert(context.Background(), Alert{Title: "t"}, AlertCallbacks{})
	assert.ErrorIs(t, err, ErrActionsUnsupported)
	assert.True(t, server.closed)
}

func TestDesktopAlertsRetriesDial(t *testing.T) {
	server := &fakeServer{caps: []string{"actions"}}
	attempts := 0
	alerts := newDesktopAlerts("focusnudge", func(onAction dbusnotify.ActionInvokedHandler, onClosed dbusnotify.NotificationClosedHandler) (notificationServer, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("no session bus")
		}
		server.onAction, server.onClosed = onAction, onClosed
		return server, nil
	})

	cb, _ := recordCallbacks()
	assert.Error(t, alerts.ShowAlert(context.Background(), Alert{Title: "t"}, cb))
	require.NoError(t, alerts.ShowAlert(context.Background(), Alert{Title: "t"}, cb))
	require.NoError(t, alerts.ShowAlert(context.Background(), Alert{Title: "t"}, cb))
	assert.Equal(t, 2, attempts)
}

func TestDesktopAlertsSendFailure(t *testing.T) {
	server := &fakeServer{caps: []string{"actions"}, sendErr: errors.New("bus gone")}
	alerts, _ := newFakeAlerts(server)

	err := alerts.ShowAlert(context.Background(), Alert{Title: "t"}, AlertCallbacks{})
	assert.Error(t, err)
}

func TestDesktopAlertsCloseWithdrawsWaitingAlerts(t *testing.T) {
	server := &fakeServer{caps: []string{"actions"}}
	alerts, dials := newFakeAlerts(server)

	cb, got := recordCallbacks()
	require.NoError(t, alerts.ShowAlert(context.Background(), Alert{Title: "t", Actions: choiceLabels}, cb))

	require.NoError(t, alerts.Close())
	assert.Equal(t, -1, <-got)
	assert.Equal(t, []uint32{1}, server.withdrew)
	assert.True(t, server.closed)
	assert.Equal(t, 1, *dials)

	// a late signal after Close is ignored
	server.action(1, "0")
	assert.Empty(t, got)
}

func TestDesktopAlertsThroughDispatcher(t *testing.T) {
	server := &fakeServer{caps: []string{"actions"}}
	alerts, _ := newFakeAlerts(server)
	sink := &recordingSink{}

	d := NewDispatcher(alerts, nil, sink)
	p, err := d.Notify(context.Background(), "t", "b", false)
	require.NoError(t, err)

	server.action(1, "1")

	res, ok := p.Result()
	require.True(t, ok)
	assert.Equal(t, OutcomeCancel, res.Outcome)
	require.NotNil(t, res.RawIndex)
	assert.Equal(t, 1, *res.RawIndex)
	assert.Equal(t, []Result{res}, sink.all())
}
