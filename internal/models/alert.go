package models

import "time"

// Alert statuses. An alert is created as pending when a trigger opens the
// confirmation window and ends as confirmed or cancelled; it is never mutated
// after it lands in history.
const (
	AlertPending   = "pending"
	AlertConfirmed = "confirmed"
	AlertCancelled = "cancelled"
)

// Alert is one emergency alert instance, from trigger through resolution.
// Location fields are populated best-effort; unresolved location leaves them
// zero with HasLocation false.
type Alert struct {
	ID          string  `gorm:"primaryKey;size:64" json:"id"`
	TriggerKind string  `gorm:"size:16;index" json:"trigger_kind"`
	TriggerData string  `gorm:"size:512" json:"trigger_data"`
	Confidence  float64 `json:"confidence"`

	HasLocation bool    `json:"has_location"`
	Latitude    float64 `json:"latitude,omitempty"`
	Longitude   float64 `json:"longitude,omitempty"`
	Address     string  `gorm:"size:256" json:"address,omitempty"`
	City        string  `gorm:"size:128" json:"city,omitempty"`
	Country     string  `gorm:"size:128" json:"country,omitempty"`
	LocSource   string  `gorm:"size:16" json:"loc_source,omitempty"`

	Confirmed  bool       `json:"confirmed"`
	TimedOut   bool       `json:"timed_out"`
	Status     string     `gorm:"size:16;index" json:"status"`
	Deliveries []Delivery `gorm:"foreignKey:AlertID" json:"deliveries"`

	TriggeredAt time.Time `json:"triggered_at"`
	ResolvedAt  time.Time `json:"resolved_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Delivery records one message delivery attempt to one contact.
type Delivery struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	AlertID      string    `gorm:"size:64;index" json:"alert_id"`
	ContactName  string    `gorm:"size:128" json:"contact_name"`
	ContactPhone string    `gorm:"size:32" json:"contact_phone"`
	Channel      string    `gorm:"size:16" json:"channel"`
	Success      bool      `json:"success"`
	ProviderID   string    `gorm:"size:64" json:"provider_id,omitempty"`
	Error        string    `gorm:"size:512" json:"error,omitempty"`
	Status       string    `gorm:"size:32" json:"status"`
	SentAt       time.Time `json:"sent_at"`
}
