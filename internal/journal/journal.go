// Package journal keeps an in-memory record of the notifications shown
// during this process lifetime and the answers they received.
package journal

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/focusnudge/focusnudge/internal/database"
	"github.com/focusnudge/focusnudge/internal/models"
	"github.com/focusnudge/focusnudge/internal/notify"
)

// answers that arrive before their dispatch is recorded are parked; this
// caps how many are kept
const maxEarly = 256

type Journal struct {
	repo *database.Repository
	now  func() time.Time

	mu    sync.Mutex
	early map[string]notify.Result
}

func New(repo *database.Repository) *Journal {
	return &Journal{
		repo:  repo,
		now:   time.Now,
		early: make(map[string]notify.Result),
	}
}

// RecordDispatch stores a nudge raised by the focus watcher
func (j *Journal) RecordDispatch(p *notify.Pending, appName, title, body string) error {
	return j.record(p, models.SourceWatcher, appName, title, body)
}

// RecordManual stores a notification requested through the API
func (j *Journal) RecordManual(p *notify.Pending, title, body string) error {
	return j.record(p, models.SourceAPI, "", title, body)
}

func (j *Journal) record(p *notify.Pending, source, appName, title, body string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	entry := &models.NotificationLog{
		ID:           p.ID,
		AppName:      appName,
		Title:        title,
		Body:         body,
		Source:       source,
		Channel:      string(p.Channel),
		DispatchedAt: now,
	}

	res, ok := p.Result()
	if !ok {
		res, ok = j.early[p.ID]
	}
	delete(j.early, p.ID)
	if ok {
		entry.Outcome = string(res.Outcome)
		entry.ResponseIndex = res.RawIndex
		entry.RespondedAt = &now
	}

	if err := j.repo.CreateNotification(entry); err != nil {
		return fmt.Errorf("failed to record notification %s: %w", p.ID, err)
	}
	return nil
}

// RecordFailure stores a notification that could not be shown
func (j *Journal) RecordFailure(appName string, err error) error {
	return j.repo.CreateErrorLog(&models.ErrorLog{
		Timestamp: j.now(),
		AppName:   appName,
		ErrorMsg:  err.Error(),
	})
}

// RecordResult stores the user's answer to a notification
func (j *Journal) RecordResult(r notify.Result) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	err := j.repo.RecordResponse(r.ID, string(r.Outcome), r.RawIndex, j.now())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if len(j.early) >= maxEarly {
			for id := range j.early {
				delete(j.early, id)
				break
			}
		}
		j.early[r.ID] = r
		return nil
	}
	return err
}

// Follow records every result received on results until the channel is
// closed or ctx ends
func (j *Journal) Follow(ctx context.Context, results <-chan notify.Result) {
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-results:
			if !ok {
				return
			}
			if err := j.RecordResult(r); err != nil {
				log.Printf("Failed to record response to %s: %v", r.ID, err)
			}
		}
	}
}

// Recent returns up to limit notifications, newest first
func (j *Journal) Recent(limit int) ([]*models.NotificationLog, error) {
	return j.repo.ListNotifications(limit)
}

func (j *Journal) Errors(limit int) ([]*models.ErrorLog, error) {
	return j.repo.ListErrorLogs(limit)
}

// Prune drops notifications dispatched more than maxAge ago
func (j *Journal) Prune(maxAge time.Duration) (int64, error) {
	return j.repo.DeleteNotificationsBefore(j.now().Add(-maxAge))
}
