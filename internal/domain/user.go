package domain

import "time"

type Role string

const (
	RoleStudent     Role = "STUDENT"
	RoleStaff       Role = "STAFF"
	RoleAdmin       Role = "ADMIN"
	RoleMasterAdmin Role = "MASTER_ADMIN"
)

// IsAdmin reports whether the role may act without the deletion approval workflow.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleMasterAdmin
}

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleStaff, RoleAdmin, RoleMasterAdmin:
		return true
	}
	return false
}

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	SchoolID  *string   `json:"school_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type School struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Student struct {
	ID              string `json:"id"`
	UserID          string `json:"user_id"`
	SchoolID        string `json:"school_id"`
	StudentIDNumber string `json:"student_id_number"`
	Grade           string `json:"grade"`
}

// Identity is the verified caller of a request as resolved by the identity provider.
// StudentID is set only for STUDENT callers; SchoolID is set for STUDENT and STAFF/ADMIN
// callers bound to a school.
type Identity struct {
	UserID    string
	Role      Role
	StudentID string
	SchoolID  string
}
