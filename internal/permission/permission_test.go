package permission

import (
	"testing"

	"github.com/Khaledxab/mygym-backend/internal/model"

	"github.com/stretchr/testify/assert"
)

var allActions = []Action{
	AccessScan, QRIssue, QRStatus, PointsAdjust,
	TransactionsReadOwn, TransactionsReadAny,
	GymsRead, GymsManage, AccountsManage,
}

func TestAllowed_Table(t *testing.T) {
	granted := map[model.Role][]Action{
		model.RoleSuperAdmin:  allActions,
		model.RoleAdmin:       allActions,
		model.RoleGymOperator: {AccessScan, QRIssue, QRStatus, GymsRead, TransactionsReadOwn},
		model.RoleMember:      {AccessScan, GymsRead, TransactionsReadOwn},
	}

	for role, actions := range granted {
		set := map[Action]bool{}
		for _, a := range actions {
			set[a] = true
		}
		for _, a := range allActions {
			assert.Equal(t, set[a], Allowed(role, a), "%s / %s", role, a)
		}
	}
}

func TestAllowed_UnknownDenied(t *testing.T) {
	assert.False(t, Allowed(model.Role("guest"), AccessScan))
	assert.False(t, Allowed(model.RoleSuperAdmin, Action("gyms:burn")))
}

func TestBypassesOwnership(t *testing.T) {
	assert.True(t, BypassesOwnership(model.RoleSuperAdmin))
	assert.False(t, BypassesOwnership(model.RoleAdmin))
	assert.False(t, BypassesOwnership(model.RoleGymOperator))
}
