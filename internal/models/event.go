package models

import "time"

// Event kinds recorded in the audit log.
const (
	EventTriggered = "alert_triggered"
	EventConfirmed = "alert_confirmed"
	EventCancelled = "alert_cancelled"
	EventDispatch  = "messages_sent"
	EventRejected  = "trigger_rejected"
	EventSystem    = "system"
)

// Event is one row in the device audit log. Events outlive alert retention
// pruning only up to the configured retention window.
type Event struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Kind      string    `gorm:"size:32;index" json:"kind"`
	AlertID   string    `gorm:"size:64;index" json:"alert_id,omitempty"`
	Detail    string    `gorm:"size:1024" json:"detail"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
