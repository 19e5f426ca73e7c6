package service_test

import (
	"testing"

	"feepay-backend/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var (
	masterAdmin = domain.Identity{UserID: "user-root", Role: domain.RoleMasterAdmin}
	schoolAdmin = domain.Identity{UserID: "user-admin", Role: domain.RoleAdmin, SchoolID: "school-1"}
	schoolStaff = domain.Identity{UserID: "user-staff", Role: domain.RoleStaff, SchoolID: "school-1"}
	otherStaff  = domain.Identity{UserID: "user-staff-2", Role: domain.RoleStaff, SchoolID: "school-2"}
)

func studentIdentity(studentID, schoolID string) domain.Identity {
	return domain.Identity{UserID: "user-" + studentID, Role: domain.RoleStudent, StudentID: studentID, SchoolID: schoolID}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got.String())
}

func strPtr(s string) *string {
	return &s
}
