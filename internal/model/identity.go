package model

import "github.com/google/uuid"

// Identity is the authenticated caller as asserted by the auth service.
type Identity struct {
	AccountID uuid.UUID
	Role      Role
	IsActive  bool
}
