// Package store persists resolved alerts. The orchestrator depends on the
// AlertStore abstraction so persistence can be swapped: in-memory for tests,
// a database for the device.
package store

import "github.com/mwillard/beacon/internal/models"

// AlertStore is the alert history repository. Alerts are append-only: once
// appended they are never mutated.
type AlertStore interface {
	// Append records a fully resolved alert, deliveries included.
	Append(alert *models.Alert) error

	// History returns up to limit alerts, newest first, with deliveries.
	// limit <= 0 means no limit.
	History(limit int) ([]models.Alert, error)

	// Get returns one alert by ID, with deliveries.
	Get(id string) (*models.Alert, error)

	// Count returns the total number of recorded alerts.
	Count() (int64, error)
}
