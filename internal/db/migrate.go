package db

import (
	"fmt"

	"github.com/mwillard/beacon/internal/models"
	"gorm.io/gorm"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Alert{},
		&models.Delivery{},
		&models.Contact{},
		&models.Template{},
		&models.Event{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedDefaults inserts placeholder contacts and the stock message templates
// when the respective tables are empty, so the device never runs with an
// undefined contact set. Placeholder contacts are disabled until the owner
// fills in real numbers.
func SeedDefaults(db *gorm.DB) error {
	var contactCount int64
	if err := db.Model(&models.Contact{}).Count(&contactCount).Error; err != nil {
		return fmt.Errorf("db: count contacts: %w", err)
	}
	if contactCount == 0 {
		defaults := []models.Contact{
			{Name: "Emergency Contact 1", Phone: "+1234567890", Relationship: "Family", Priority: 1, Enabled: false},
			{Name: "Emergency Contact 2", Phone: "+1234567891", Relationship: "Friend", Priority: 2, Enabled: false},
		}
		if err := db.Create(&defaults).Error; err != nil {
			return fmt.Errorf("db: seed contacts: %w", err)
		}
	}

	var templateCount int64
	if err := db.Model(&models.Template{}).Count(&templateCount).Error; err != nil {
		return fmt.Errorf("db: count templates: %w", err)
	}
	if templateCount == 0 {
		defaults := []models.Template{
			{
				ID:        "emergency_alert",
				Subject:   "Beacon Emergency Alert",
				Body:      "EMERGENCY ALERT from Beacon user!\n\nLocation: {location}\nTime: {timestamp}\nTrigger: {trigger_type}\n\nPlease check on the user immediately!",
				Variables: "location,timestamp,trigger_type",
			},
			{
				ID:        "location_update",
				Subject:   "Beacon Location Update",
				Body:      "Location update from Beacon user:\n\nCurrent location: {location}\nCoordinates: {coordinates}\nTime: {timestamp}",
				Variables: "location,coordinates,timestamp",
			},
		}
		if err := db.Create(&defaults).Error; err != nil {
			return fmt.Errorf("db: seed templates: %w", err)
		}
	}

	return nil
}
