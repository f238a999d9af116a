package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Direction tags the sign of a point movement.
type Direction string

const (
	DirectionEarn  Direction = "EARN"
	DirectionSpend Direction = "SPEND"
)

func (d Direction) Valid() bool { return d == DirectionEarn || d == DirectionSpend }

// TransactionStatus: PENDING → COMPLETED | FAILED. CANCELLED is reserved.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "PENDING"
	StatusCompleted TransactionStatus = "COMPLETED"
	StatusFailed    TransactionStatus = "FAILED"
	StatusCancelled TransactionStatus = "CANCELLED"
)

// Terminal reports whether no further transition is allowed.
func (s TransactionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Transaction is an immutable entry in the points log.
// Amount is always a positive magnitude; Direction carries the sign.
// The only write after insert is the single PENDING → terminal flip.
type Transaction struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey"`
	AccountID    uuid.UUID         `gorm:"type:uuid;not null;index"`
	GymID        *uuid.UUID        `gorm:"type:uuid;index"`
	Amount       int64             `gorm:"not null"`
	Direction    Direction         `gorm:"type:varchar(10);not null"`
	Status       TransactionStatus `gorm:"type:varchar(20);not null"`
	Description  string            `gorm:"not null"`
	Metadata     datatypes.JSON
	BalanceAfter int64     `gorm:"not null"`
	CreatedBy    uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt    time.Time `gorm:"index"`
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Signed returns the amount with the direction applied.
func (t *Transaction) Signed() int64 {
	if t.Direction == DirectionSpend {
		return -t.Amount
	}
	return t.Amount
}
