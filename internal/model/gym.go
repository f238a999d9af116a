package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Gym is a physical location gated by QR access.
// CurrentSessionID points at the only QR session that can verify; issuing a
// new one overwrites it.
type Gym struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Name             string     `gorm:"not null"`
	Address          string
	PointsRequired   int64      `gorm:"not null;default:0"`
	CurrentSessionID *uuid.UUID `gorm:"type:uuid"`
	Active           bool       `gorm:"not null;default:true"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (g *Gym) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

// GymAdmin links an administering account to a gym.
type GymAdmin struct {
	GymID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	AccountID uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	CreatedAt time.Time
}
