// Package watcher polls the focused application and nudges the user once
// they have stayed on it longer than the configured threshold.
package watcher

import (
	"context"
	"fmt"
	"log"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/focusnudge/focusnudge/internal/notify"
	"github.com/focusnudge/focusnudge/pkg/utils"
	"github.com/focusnudge/focusnudge/pkg/window"
)

// UnknownApp is used when the foreground window carries no usable name
const UnknownApp = "Unknown"

// Foreground reports the currently focused window. window.Detector
// satisfies it.
type Foreground interface {
	GetFocusedWindow() (*window.WindowInfo, error)
}

// Notifier dispatches a nudge. *notify.Dispatcher satisfies it.
type Notifier interface {
	Notify(ctx context.Context, title, body string, preferDialog bool) (*notify.Pending, error)
}

// Journal records nudges that reached the user and those that could not
// be shown
type Journal interface {
	RecordDispatch(p *notify.Pending, appName, title, body string) error
	RecordFailure(appName string, err error) error
}

// Policy controls polling and when a nudge fires
type Policy struct {
	Interval  time.Duration // time between foreground queries
	Threshold time.Duration // continuous focus needed before a nudge
	Cooldown  time.Duration // minimum gap between nudges for one app
	Retention time.Duration // cooldown entries older than this are dropped
}

func DefaultPolicy() Policy {
	return Policy{
		Interval:  2 * time.Second,
		Threshold: 10 * time.Second,
		Cooldown:  5 * time.Minute,
		Retention: time.Hour,
	}
}

func (p Policy) Validate() error {
	if p.Interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", p.Interval)
	}
	if p.Threshold < 0 {
		return fmt.Errorf("threshold cannot be negative")
	}
	if p.Cooldown < 0 {
		return fmt.Errorf("cooldown cannot be negative")
	}
	if p.Retention < p.Cooldown {
		return fmt.Errorf("cooldown retention (%v) cannot be shorter than cooldown (%v)", p.Retention, p.Cooldown)
	}
	return nil
}

// Session is the application currently holding focus
type Session struct {
	AppName string    `json:"appName"`
	Since   time.Time `json:"since"`
}

// Status is a point-in-time copy of the watcher state
type Status struct {
	Running   bool                 `json:"running"`
	Session   *Session             `json:"session,omitempty"`
	Cooldowns map[string]time.Time `json:"cooldowns"`
	Interval  time.Duration        `json:"intervalNs"`
	Threshold time.Duration        `json:"thresholdNs"`
	Cooldown  time.Duration        `json:"cooldownNs"`
}

type Option func(*FocusWatcher)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(w *FocusWatcher) { w.now = now }
}

func WithJournal(j Journal) Option {
	return func(w *FocusWatcher) { w.journal = j }
}

// FocusWatcher owns the focus session and the per-app cooldown table.
// State is only changed by Tick; the mutex lets Status and SetPolicy run
// from other goroutines.
type FocusWatcher struct {
	foreground Foreground
	notifier   Notifier
	journal    Journal
	now        func() time.Time

	mu        sync.Mutex
	policy    Policy
	session   *Session
	cooldowns map[string]time.Time

	inFlight atomic.Bool
	running  atomic.Bool
}

func New(foreground Foreground, notifier Notifier, policy Policy, opts ...Option) *FocusWatcher {
	w := &FocusWatcher{
		foreground: foreground,
		notifier:   notifier,
		now:        time.Now,
		policy:     policy,
		cooldowns:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// SetPolicy takes effect from the next tick
func (w *FocusWatcher) SetPolicy(p Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	w.mu.Lock()
	w.policy = p
	w.mu.Unlock()
	log.Printf("Watcher policy updated: interval=%v threshold=%v cooldown=%v", p.Interval, p.Threshold, p.Cooldown)
	return nil
}

func (w *FocusWatcher) Policy() Policy {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.policy
}

func (w *FocusWatcher) IsRunning() bool {
	return w.running.Load()
}

// Status returns a copy of the current session and cooldown table
func (w *FocusWatcher) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()

	st := Status{
		Running:   w.running.Load(),
		Cooldowns: maps.Clone(w.cooldowns),
		Interval:  w.policy.Interval,
		Threshold: w.policy.Threshold,
		Cooldown:  w.policy.Cooldown,
	}
	if w.session != nil {
		s := *w.session
		st.Session = &s
	}
	return st
}

// Run polls until ctx is cancelled. Each tick runs on its own goroutine so
// a slow foreground query cannot delay shutdown; a tick that fires while
// the previous one is still running is skipped.
func (w *FocusWatcher) Run(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return fmt.Errorf("watcher is already running")
	}
	defer w.running.Store(false)

	interval := w.Policy().Interval
	log.Printf("Starting focus watcher with %v poll interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var ticks conc.WaitGroup
	defer ticks.Wait()

	for {
		select {
		case <-ctx.Done():
			log.Println("Focus watcher stopped")
			return nil

		case <-ticker.C:
			ticks.Go(func() { w.Tick(ctx) })

			if next := w.Policy().Interval; next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

// Tick runs one poll. It reports false when it was skipped because
// another tick was in flight.
func (w *FocusWatcher) Tick(ctx context.Context) bool {
	if !w.inFlight.CompareAndSwap(false, true) {
		return false
	}
	defer w.inFlight.Store(false)

	info, err := w.foreground.GetFocusedWindow()
	if err != nil || info == nil {
		return true
	}

	appName := resolveAppName(info)

	w.mu.Lock()
	now := w.now()
	if w.session == nil || w.session.AppName != appName {
		w.session = &Session{AppName: appName, Since: now}
	}
	elapsed := now.Sub(w.session.Since)
	w.evict(now)

	fire := elapsed > w.policy.Threshold
	if last, ok := w.cooldowns[appName]; ok && now.Sub(last) <= w.policy.Cooldown {
		fire = false
	}
	if fire {
		w.cooldowns[appName] = now
	}
	w.mu.Unlock()

	if fire {
		w.nudge(ctx, appName, elapsed)
	}
	return true
}

func (w *FocusWatcher) nudge(ctx context.Context, appName string, elapsed time.Duration) {
	title := fmt.Sprintf("You've been using %s", appName)
	body := fmt.Sprintf("You are on %s for %s. Let's get back to work.", appName, utils.HumanizeElapsed(elapsed))

	p, err := w.notifier.Notify(ctx, title, body, false)
	if err != nil {
		log.Printf("Failed to nudge about %s: %v", appName, err)
		if w.journal != nil {
			if jErr := w.journal.RecordFailure(appName, err); jErr != nil {
				log.Printf("Failed to store error in journal: %v (original error: %v)", jErr, err)
			}
		}
		return
	}
	log.Printf("Nudged about %s after %v", appName, elapsed.Truncate(time.Second))

	if w.journal != nil {
		if err := w.journal.RecordDispatch(p, appName, title, body); err != nil {
			log.Printf("Failed to journal nudge %s: %v", p.ID, err)
		}
	}
}

// evict drops cooldown entries that can no longer suppress a nudge; the
// caller holds w.mu
func (w *FocusWatcher) evict(now time.Time) {
	retention := max(w.policy.Retention, w.policy.Cooldown)
	for app, last := range w.cooldowns {
		if now.Sub(last) > retention {
			delete(w.cooldowns, app)
		}
	}
}

func resolveAppName(info *window.WindowInfo) string {
	switch {
	case info.ProcessName != "":
		return info.ProcessName
	case info.OwnerName != "":
		return info.OwnerName
	case info.WindowTitle != "":
		return info.WindowTitle
	default:
		return UnknownApp
	}
}
