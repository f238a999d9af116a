package dto

import "time"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CreateGymRequest struct {
	Name           string `json:"name"            validate:"required,min=2,max=120"`
	Address        string `json:"address"         validate:"max=255"`
	PointsRequired int64  `json:"points_required" validate:"min=0"`
}

type UpdateGymRequest struct {
	Name           string  `json:"name"            validate:"omitempty,min=2,max=120"`
	Address        *string `json:"address"         validate:"omitempty,max=255"`
	PointsRequired *int64  `json:"points_required" validate:"omitempty,min=0"`
}

type AddGymAdminRequest struct {
	AccountID string `json:"account_id" validate:"required,uuid"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type GymResponse struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Address        string   `json:"address"`
	PointsRequired int64    `json:"points_required"`
	Active         bool     `json:"active"`
	AdminIDs       []string `json:"admin_ids"`
}

// ─── QR ──────────────────────────────────────────────────────────────────────

// QRPayload is the canonical content encoded in an entry QR code.
type QRPayload struct {
	Token          string    `json:"token"`
	GymID          string    `json:"gym_id"`
	PointsRequired int64     `json:"points_required"`
	IssuedAt       time.Time `json:"issued_at"`
}

type IssueQRResponse struct {
	Payload   string    `json:"payload"`
	ImagePNG  string    `json:"image_png"` // base64
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type QRStatusResponse struct {
	Present   bool       `json:"present"`
	Expired   bool       `json:"expired"`
	ExpiresAt *time.Time `json:"expires_at"`
}
