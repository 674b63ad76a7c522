// Package contacts manages the emergency contact list and message templates.
package contacts

import (
	"fmt"

	"github.com/mwillard/beacon/internal/models"
	"gorm.io/gorm"
)

// Directory exposes the persisted contact list and message templates.
// Contacts are configuration, not runtime state: mutations go straight to
// the database.
type Directory struct {
	db *gorm.DB
}

// New creates a Directory.
func New(db *gorm.DB) (*Directory, error) {
	if db == nil {
		return nil, fmt.Errorf("contacts: db is required")
	}
	return &Directory{db: db}, nil
}

// List returns contacts sorted by priority (1 = highest, first). With
// enabledOnly, disabled contacts are filtered out.
func (d *Directory) List(enabledOnly bool) ([]models.Contact, error) {
	q := d.db.Order("priority asc, id asc")
	if enabledOnly {
		q = q.Where("enabled = ?", true)
	}
	var out []models.Contact
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("contacts: list: %w", err)
	}
	return out, nil
}

// Get returns one contact by ID.
func (d *Directory) Get(id uint) (*models.Contact, error) {
	var c models.Contact
	if err := d.db.First(&c, id).Error; err != nil {
		return nil, fmt.Errorf("contacts: get %d: %w", id, err)
	}
	return &c, nil
}

// Add inserts a new contact.
func (d *Directory) Add(c *models.Contact) error {
	if c.Name == "" {
		return fmt.Errorf("contacts: name is required")
	}
	if c.Phone == "" {
		return fmt.Errorf("contacts: phone is required")
	}
	if c.Priority <= 0 {
		c.Priority = 1
	}
	if err := d.db.Create(c).Error; err != nil {
		return fmt.Errorf("contacts: add %s: %w", c.Name, err)
	}
	return nil
}

// Update applies field changes to an existing contact.
func (d *Directory) Update(id uint, updates map[string]interface{}) error {
	result := d.db.Model(&models.Contact{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("contacts: update %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("contacts: update %d: contact not found", id)
	}
	return nil
}

// SetEnabled flips a contact's enabled flag.
func (d *Directory) SetEnabled(id uint, enabled bool) error {
	return d.Update(id, map[string]interface{}{"enabled": enabled})
}

// Delete removes a contact.
func (d *Directory) Delete(id uint) error {
	result := d.db.Delete(&models.Contact{}, id)
	if result.Error != nil {
		return fmt.Errorf("contacts: delete %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("contacts: delete %d: contact not found", id)
	}
	return nil
}

// GetTemplate returns a message template by ID.
func (d *Directory) GetTemplate(id string) (*models.Template, error) {
	var t models.Template
	if err := d.db.First(&t, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("contacts: template %q: %w", id, err)
	}
	return &t, nil
}

// Counts reports total and enabled contact counts for status endpoints.
func (d *Directory) Counts() (total, enabled int64, err error) {
	if err := d.db.Model(&models.Contact{}).Count(&total).Error; err != nil {
		return 0, 0, fmt.Errorf("contacts: count: %w", err)
	}
	if err := d.db.Model(&models.Contact{}).Where("enabled = ?", true).Count(&enabled).Error; err != nil {
		return 0, 0, fmt.Errorf("contacts: count enabled: %w", err)
	}
	return total, enabled, nil
}
