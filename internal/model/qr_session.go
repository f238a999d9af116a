package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// QRSession is one issued access code for a gym. Rows are kept after
// supersession for audit; only the gym's CurrentSessionID is verifiable.
type QRSession struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	GymID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Token  string    `gorm:"uniqueIndex;not null"`
	// PointsRequired is the gym price frozen at issuance.
	PointsRequired int64     `gorm:"not null"`
	IssuedAt       time.Time `gorm:"not null"`
	ExpiresAt      time.Time `gorm:"not null"`
	IssuedBy       uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt      time.Time
}

func (s *QRSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// TableName overrides GORM's default pluralization (q_r_sessions → qr_sessions).
func (QRSession) TableName() string { return "qr_sessions" }
