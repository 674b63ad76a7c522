package models

import "time"

// Contact is one person on the emergency notification list. Priority orders
// delivery only (1 = highest); it never gates it — every enabled contact is
// attempted.
type Contact struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string `gorm:"size:128;not null" json:"name"`
	Phone        string `gorm:"size:32;not null" json:"phone"`
	Relationship string `gorm:"size:64" json:"relationship"`
	Priority     int    `gorm:"default:1;index" json:"priority"`
	Enabled      bool   `gorm:"default:true" json:"enabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Template is a message template with {variable} placeholders.
type Template struct {
	ID        string `gorm:"primaryKey;size:64" json:"id"`
	Subject   string `gorm:"size:128" json:"subject"`
	Body      string `gorm:"type:text" json:"body"`
	Variables string `gorm:"size:256" json:"variables"` // comma-separated required variable names
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
