// Package permission maps (role, action) pairs to a yes/no answer.
// It holds no state and performs no I/O; gym ownership is checked by the
// services that know which gym a request targets.
package permission

import "github.com/Khaledxab/mygym-backend/internal/model"

// Action names an operation subject to role gating.
type Action string

const (
	AccessScan          Action = "access:scan"
	QRIssue             Action = "qr:issue"
	QRStatus            Action = "qr:status"
	PointsAdjust        Action = "points:adjust"
	TransactionsReadOwn Action = "transactions:read_own"
	TransactionsReadAny Action = "transactions:read_any"
	GymsRead            Action = "gyms:read"
	GymsManage          Action = "gyms:manage"
	AccountsManage      Action = "accounts:manage"
)

// Allowed reports whether role may perform action. Unknown roles and actions
// are denied.
func Allowed(role model.Role, action Action) bool {
	switch role {
	case model.RoleSuperAdmin, model.RoleAdmin:
		return action.valid()
	case model.RoleGymOperator:
		switch action {
		case AccessScan, QRIssue, QRStatus, GymsRead, TransactionsReadOwn:
			return true
		}
	case model.RoleMember:
		switch action {
		case AccessScan, GymsRead, TransactionsReadOwn:
			return true
		}
	}
	return false
}

// BypassesOwnership reports whether role may act on any gym without being
// one of its administrators.
func BypassesOwnership(role model.Role) bool {
	return role == model.RoleSuperAdmin
}

func (a Action) valid() bool {
	switch a {
	case AccessScan, QRIssue, QRStatus, PointsAdjust,
		TransactionsReadOwn, TransactionsReadAny,
		GymsRead, GymsManage, AccountsManage:
		return true
	}
	return false
}
