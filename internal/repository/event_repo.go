package repository

import (
	"gorm.io/gorm"

	"resellerd/internal/models"
)

// EventRepository handles provision event records.
type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Record appends a provision event row.
func (r *EventRepository) Record(ev *models.ProvisionEvent) error {
	return r.db.Create(ev).Error
}

// FindByConfigID returns events for a config, newest first.
func (r *EventRepository) FindByConfigID(configID uint, limit int) ([]models.ProvisionEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var events []models.ProvisionEvent
	err := r.db.Where("config_id = ?", configID).Order("id DESC").Limit(limit).Find(&events).Error
	return events, err
}
