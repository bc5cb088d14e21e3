package database

import (
	"time"

	"github.com/focusnudge/focusnudge/internal/models"

	"github.com/pkg/errors"

	"gorm.io/gorm"
)

// Repository handles all database operations for the notification journal
type Repository struct {
	db *DB
}

// NewRepository creates a new repository instance
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// CreateNotification inserts a dispatched notification
func (r *Repository) CreateNotification(n *models.NotificationLog) error {
	result := r.db.Create(n)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert notification")
	}
	return nil
}

// RecordResponse stores the user's answer. It returns gorm.ErrRecordNotFound
// when the notification was never recorded.
func (r *Repository) RecordResponse(id, outcome string, index *int, at time.Time) error {
	result := r.db.Model(&models.NotificationLog{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"outcome":        outcome,
			"response_index": index,
			"responded_at":   at,
		})
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to record response")
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GetNotification retrieves a notification by its ID
func (r *Repository) GetNotification(id string) (*models.NotificationLog, error) {
	var n models.NotificationLog
	result := r.db.First(&n, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, errors.Wrap(result.Error, "failed to get notification")
	}
	return &n, nil
}

// ListNotifications returns the most recent notifications first. A limit
// of zero or less returns all of them.
func (r *Repository) ListNotifications(limit int) ([]*models.NotificationLog, error) {
	var logs []*models.NotificationLog
	query := r.db.Order("dispatched_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if result := query.Find(&logs); result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query notifications")
	}
	return logs, nil
}

// GetAppSummarySince counts watcher nudges per application
func (r *Repository) GetAppSummarySince(since time.Time) ([]models.AppSummary, error) {
	var summaries []models.AppSummary

	result := r.db.Model(&models.NotificationLog{}).
		Select(`app_name,
			COUNT(*) as nudge_count,
			SUM(CASE WHEN outcome = 'okay' THEN 1 ELSE 0 END) as okay_count,
			SUM(CASE WHEN outcome = 'cancel' THEN 1 ELSE 0 END) as cancel_count,
			SUM(CASE WHEN outcome = '' OR outcome IS NULL THEN 1 ELSE 0 END) as pending_count`).
		Where("source = ? AND dispatched_at >= ?", models.SourceWatcher, since).
		Group("app_name").
		Order("nudge_count DESC, app_name ASC").
		Scan(&summaries)

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query app summary")
	}

	return summaries, nil
}

// DeleteNotificationsBefore drops notifications dispatched before the given time
func (r *Repository) DeleteNotificationsBefore(before time.Time) (int64, error) {
	result := r.db.Where("dispatched_at < ?", before).Delete(&models.NotificationLog{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to delete old notifications")
	}
	return result.RowsAffected, nil
}

// CreateErrorLog inserts a new error log into the database
func (r *Repository) CreateErrorLog(errorLog *models.ErrorLog) error {
	result := r.db.Create(errorLog)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert error log")
	}
	return nil
}

// ListErrorLogs returns the most recent error logs first
func (r *Repository) ListErrorLogs(limit int) ([]*models.ErrorLog, error) {
	var logs []*models.ErrorLog
	query := r.db.Order("timestamp DESC").Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if result := query.Find(&logs); result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query error logs")
	}
	return logs, nil
}
