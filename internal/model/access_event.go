package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AccessEvent records one terminal scan decision (granted or denied).
// Written asynchronously by the worker pool; append-only.
type AccessEvent struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	AccountID     uuid.UUID  `gorm:"type:uuid;not null;index"`
	GymID         *uuid.UUID `gorm:"type:uuid;index"`
	Granted       bool       `gorm:"not null"`
	State         string     `gorm:"type:varchar(20);not null"`
	Reason        string
	QRToken       string
	DeviceInfo    string
	Location      string
	TransactionID *uuid.UUID `gorm:"type:uuid"`
	DecidedAt     time.Time  `gorm:"not null"`
	CreatedAt     time.Time
}

func (e *AccessEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
