package dto

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

// ScanRequest is posted by a member's device after reading a gym's QR code.
type ScanRequest struct {
	Payload    string `json:"payload"     validate:"required"`
	DeviceInfo string `json:"device_info" validate:"max=255"`
	Location   string `json:"location"    validate:"max=255"`
}

// AdjustPointsRequest is a manual grant (EARN) or charge (SPEND).
// Amount is decoded as a decimal so fractional input can be rejected as an
// invalid amount instead of a binding error.
type AdjustPointsRequest struct {
	AccountID   string          `json:"account_id"  validate:"required,uuid"`
	GymID       *string         `json:"gym_id"      validate:"omitempty,uuid"`
	Amount      decimal.Decimal `json:"amount"`
	Direction   string          `json:"direction"   validate:"required,oneof=EARN SPEND"`
	Description string          `json:"description" validate:"required,min=1,max=255"`
}

// ─── Filter / List ──────────────────────────────────────────────────────────

// TransactionFilter is bound from the query string of GET /v1/transactions.
type TransactionFilter struct {
	AccountID string `form:"account_id" validate:"omitempty,uuid"`
	GymID     string `form:"gym_id"     validate:"omitempty,uuid"`
	Direction string `form:"direction"  validate:"omitempty,oneof=EARN SPEND"`
	Page      int    `form:"page,default=1"   validate:"min=1"`
	Limit     int    `form:"limit,default=50" validate:"min=1,max=200"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ScanResponse struct {
	Granted       bool   `json:"granted"`
	NewBalance    int64  `json:"new_balance"`
	TransactionID string `json:"transaction_id"`
	GymName       string `json:"gym_name"`
}

type TransactionResponse struct {
	ID           string          `json:"id"`
	AccountID    string          `json:"account_id"`
	GymID        *string         `json:"gym_id"`
	Amount       int64           `json:"amount"`
	Direction    string          `json:"direction"`
	Status       string          `json:"status"`
	Description  string          `json:"description"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	BalanceAfter int64           `json:"balance_after"`
	CreatedBy    string          `json:"created_by"`
	CreatedAt    time.Time       `json:"created_at"`
}

type TransactionListResponse struct {
	Data  []TransactionResponse `json:"data"`
	Total int64                 `json:"total"`
	Page  int                   `json:"page"`
	Limit int                   `json:"limit"`
}
