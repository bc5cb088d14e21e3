package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAlerter struct {
	mu    sync.Mutex
	err   error
	shown []Alert
	cbs   []AlertCallbacks
}

func (f *fakeAlerter) ShowAlert(ctx context.Context, alert Alert, cb AlertCallbacks) error {
	f.mu.Lock()
	f.shown = append(f.shown, alert)
	f.cbs = append(f.cbs, cb)
	f.mu.Unlock()
	return f.err
}

func (f *fakeAlerter) callbacks(i int) AlertCallbacks {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cbs[i]
}

type fakeDialoger struct {
	index int
	err   error
	calls int
	last  Dialog
}

func (f *fakeDialoger) ShowDialog(ctx context.Context, dialog Dialog) (int, error) {
	f.calls++
	f.last = dialog
	return f.index, f.err
}

type recordingSink struct {
	mu      sync.Mutex
	results []Result
}

func (s *recordingSink) Publish(r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
}

func (s *recordingSink) all() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Result(nil), s.results...)
}

func TestDialogOkay(t *testing.T) {
	sink := &recordingSink{}
	dialoger := &fakeDialoger{index: 0}
	d := NewDispatcher(nil, dialoger, sink)

	p, err := d.Notify(context.Background(), "Title", "Body", true)
	require.NoError(t, err)
	assert.Equal(t, ChannelDialog, p.Channel)

	res, ok := p.Result()
	require.True(t, ok, "dialog result must be resolved on return")
	assert.Equal(t, OutcomeOkay, res.Outcome)
	require.NotNil(t, res.RawIndex)
	assert.Equal(t, 0, *res.RawIndex)
	assert.Equal(t, p.ID, res.ID)

	assert.Equal(t, []Result{res}, sink.all())
	assert.Equal(t, []string{"Okay", "Cancel"}, dialoger.last.Buttons)
	assert.Equal(t, 0, dialoger.last.DefaultID)
	assert.Equal(t, 1, dialoger.last.CancelID)
	assert.Equal(t, "Body", dialoger.last.Message)
}

func TestDialogNonZeroIndexIsCancel(t *testing.T) {
	for _, index := range []int{1, 2, 7} {
		sink := &recordingSink{}
		d := NewDispatcher(nil, &fakeDialoger{index: index}, sink)

		p, err := d.Notify(context.Background(), "t", "b", true)
		require.NoError(t, err)

		res, _ := p.Result()
		assert.Equal(t, OutcomeCancel, res.Outcome)
		require.NotNil(t, res.RawIndex)
		assert.Equal(t, index, *res.RawIndex)
		assert.Len(t, sink.all(), 1)
	}
}

func TestDialogDismissedResolvesAsCancel(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(nil, &fakeDialoger{err: ErrDismissed}, sink)

	p, err := d.Notify(context.Background(), "t", "b", true)
	require.NoError(t, err)

	res, ok := p.Result()
	require.True(t, ok)
	assert.Equal(t, OutcomeCancel, res.Outcome)
	assert.Nil(t, res.RawIndex)
	assert.Len(t, sink.all(), 1)
}

func TestDialogFailureIsDispatchError(t *testing.T) {
	sink := &recordingSink{}
	showErr := errors.New("zenity not found")
	d := NewDispatcher(nil, &fakeDialoger{err: showErr}, sink)

	p, err := d.Notify(context.Background(), "t", "b", true)
	assert.Nil(t, p)

	var dispatchErr *DispatchError
	require.ErrorAs(t, err, &dispatchErr)
	assert.ErrorIs(t, err, showErr)
	assert.Nil(t, dispatchErr.Alert)
	assert.Empty(t, sink.all(), "total failure must not emit an event")
}

func TestAlertReturnsImmediatelyAndResolvesOnAction(t *testing.T) {
	sink := &recordingSink{}
	alerter := &fakeAlerter{}
	dialoger := &fakeDialoger{}
	d := NewDispatcher(alerter, dialoger, sink)

	p, err := d.Notify(context.Background(), "You've been using code", "body", false)
	require.NoError(t, err)
	assert.Equal(t, ChannelAlert, p.Channel)
	assert.Zero(t, dialoger.calls)

	_, ok := p.Result()
	assert.False(t, ok, "alert must not block for an answer")
	assert.Empty(t, sink.all())
	assert.Equal(t, []string{"Okay", "Cancel"}, alerter.shown[0].Actions)

	alerter.callbacks(0).OnAction(0)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res, err := p.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOkay, res.Outcome)
	require.NotNil(t, res.RawIndex)
	assert.Equal(t, 0, *res.RawIndex)
	assert.Equal(t, []Result{res}, sink.all())
}

func TestAlertCloseWithoutActionIsCancelWithoutIndex(t *testing.T) {
	sink := &recordingSink{}
	alerter := &fakeAlerter{}
	d := NewDispatcher(alerter, nil, sink)

	p, err := d.Notify(context.Background(), "t", "b", false)
	require.NoError(t, err)

	alerter.callbacks(0).OnClose()

	res, ok := p.Result()
	require.True(t, ok)
	assert.Equal(t, OutcomeCancel, res.Outcome)
	assert.Nil(t, res.RawIndex)
	assert.Equal(t, ChannelAlert, res.Channel)
}

func TestAlertEmitsExactlyOnce(t *testing.T) {
	sink := &recordingSink{}
	alerter := &fakeAlerter{}
	d := NewDispatcher(alerter, nil, sink)

	p, err := d.Notify(context.Background(), "t", "b", false)
	require.NoError(t, err)

	cb := alerter.callbacks(0)
	cb.OnAction(1)
	cb.OnClose()
	cb.OnAction(0)

	results := sink.all()
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeCancel, results[0].Outcome)
	require.NotNil(t, results[0].RawIndex)
	assert.Equal(t, 1, *results[0].RawIndex)

	res, _ := p.Result()
	assert.Equal(t, results[0], res)
}

func TestAlertFailureFallsBackToDialog(t *testing.T) {
	sink := &recordingSink{}
	alerter := &fakeAlerter{err: ErrActionsUnsupported}
	dialoger := &fakeDialoger{index: 0}
	d := NewDispatcher(alerter, dialoger, sink)

	p, err := d.Notify(context.Background(), "t", "b", false)
	require.NoError(t, err)
	assert.Equal(t, ChannelDialog, p.Channel)
	assert.Equal(t, 1, dialoger.calls)

	res, ok := p.Result()
	require.True(t, ok)
	assert.Equal(t, OutcomeOkay, res.Outcome)

	// a trigger from the alert that failed to show is ignored
	alerter.callbacks(0).OnClose()
	assert.Len(t, sink.all(), 1)
}

func TestAlertAndFallbackFailure(t *testing.T) {
	sink := &recordingSink{}
	alertErr := errors.New("no notification daemon")
	dialogErr := errors.New("no display")
	d := NewDispatcher(&fakeAlerter{err: alertErr}, &fakeDialoger{err: dialogErr}, sink)

	p, err := d.Notify(context.Background(), "t", "b", false)
	assert.Nil(t, p)

	var dispatchErr *DispatchError
	require.ErrorAs(t, err, &dispatchErr)
	assert.ErrorIs(t, err, alertErr)
	assert.ErrorIs(t, err, dialogErr)
	assert.Contains(t, err.Error(), "no notification daemon")
	assert.Contains(t, err.Error(), "no display")
	assert.Empty(t, sink.all())
}

func TestNoBackends(t *testing.T) {
	d := NewDispatcher(nil, nil, nil)

	_, err := d.Notify(context.Background(), "t", "b", false)
	assert.ErrorIs(t, err, ErrNoBackend)
}

func TestConcurrentAlertsRouteIndependently(t *testing.T) {
	sink := &recordingSink{}
	alerter := &fakeAlerter{}
	d := NewDispatcher(alerter, nil, sink)

	const n = 20
	pendings := make([]*Pending, n)
	for i := range pendings {
		p, err := d.Notify(context.Background(), "t", "b", false)
		require.NoError(t, err)
		pendings[i] = p
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				alerter.callbacks(i).OnAction(0)
			} else {
				alerter.callbacks(i).OnClose()
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, sink.all(), n)
	for i, p := range pendings {
		res, ok := p.Result()
		require.True(t, ok)
		assert.Equal(t, p.ID, res.ID)
		if i%2 == 0 {
			assert.Equal(t, OutcomeOkay, res.Outcome)
		} else {
			assert.Equal(t, OutcomeCancel, res.Outcome)
			assert.Nil(t, res.RawIndex)
		}
	}
}

func TestPendingWaitHonoursContext(t *testing.T) {
	d := NewDispatcher(&fakeAlerter{}, nil, nil)

	p, err := d.Notify(context.Background(), "t", "b", false)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = p.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDispatcherWithBroadcaster(t *testing.T) {
	stream := NewBroadcaster[Result](4)
	defer stream.Stop()

	sub, err := stream.Subscribe()
	require.NoError(t, err)

	d := NewDispatcher(nil, &fakeDialoger{index: 1}, stream)
	_, err = d.Notify(context.Background(), "t", "b", true)
	require.NoError(t, err)

	select {
	case res := <-sub:
		assert.Equal(t, OutcomeCancel, res.Outcome)
		assert.Equal(t, ChannelDialog, res.Channel)
	case <-time.After(time.Second):
		t.Fatal("no result on the response stream")
	}
}
