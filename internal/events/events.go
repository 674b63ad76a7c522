// Package events is the device audit log. Every state transition the
// orchestrator makes lands here so the history survives restarts and the
// dashboard can stream it.
package events

import (
	"fmt"
	"log"
	"time"

	"github.com/mwillard/beacon/internal/models"
	"gorm.io/gorm"
)

// Logger writes and queries audit events.
type Logger struct {
	db *gorm.DB
}

// New creates a Logger backed by db.
func New(db *gorm.DB) (*Logger, error) {
	if db == nil {
		return nil, fmt.Errorf("events: db is required")
	}
	return &Logger{db: db}, nil
}

// Log records one audit event. Failures are logged and swallowed: the audit
// trail must never block or fail an alert in flight.
func (l *Logger) Log(kind, alertID, detail string) {
	ev := models.Event{
		Kind:      kind,
		AlertID:   alertID,
		Detail:    detail,
		CreatedAt: time.Now(),
	}
	if err := l.db.Create(&ev).Error; err != nil {
		log.Printf("events: record %s: %v", kind, err)
	}
}

// Recent returns up to limit events, newest first. limit <= 0 means no limit.
func (l *Logger) Recent(limit int) ([]models.Event, error) {
	q := l.db.Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []models.Event
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("events: recent: %w", err)
	}
	return out, nil
}

// Since returns events created at or after the watermark ID, oldest first.
// The dashboard stream uses it to pick up where the last poll left off.
func (l *Logger) Since(afterID uint) ([]models.Event, error) {
	var out []models.Event
	if err := l.db.Where("id > ?", afterID).Order("id asc").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("events: since %d: %w", afterID, err)
	}
	return out, nil
}

// ForAlert returns the audit trail of one alert, oldest first.
func (l *Logger) ForAlert(alertID string) ([]models.Event, error) {
	var out []models.Event
	if err := l.db.Where("alert_id = ?", alertID).Order("id asc").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("events: for alert %s: %w", alertID, err)
	}
	return out, nil
}

// Prune deletes events older than the cutoff and returns how many went.
func (l *Logger) Prune(olderThan time.Time) (int64, error) {
	res := l.db.Where("created_at < ?", olderThan).Delete(&models.Event{})
	if res.Error != nil {
		return 0, fmt.Errorf("events: prune: %w", res.Error)
	}
	return res.RowsAffected, nil
}
