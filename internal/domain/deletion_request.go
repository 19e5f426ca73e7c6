package domain

import "time"

type ResourceType string

const (
	ResourceTypeFee     ResourceType = "FEE"
	ResourceTypeStudent ResourceType = "STUDENT"
)

func (t ResourceType) Valid() bool {
	return t == ResourceTypeFee || t == ResourceTypeStudent
}

type DeletionRequestStatus string

const (
	DeletionRequestStatusPending  DeletionRequestStatus = "PENDING"
	DeletionRequestStatusApproved DeletionRequestStatus = "APPROVED"
	DeletionRequestStatusRejected DeletionRequestStatus = "REJECTED"
)

// DeletionRequest is a staff-initiated delete awaiting admin approval. TargetID holds the
// fee structure id or student id depending on ResourceType; it is not a foreign key so the
// request outlives the resource it deleted.
type DeletionRequest struct {
	ID           string                `json:"id"`
	ResourceType ResourceType          `json:"resource_type"`
	TargetID     string                `json:"target_id"`
	Status       DeletionRequestStatus `json:"status"`
	StaffID      string                `json:"staff_id"`
	Reason       string                `json:"reason"`
	ResolvedBy   *string               `json:"resolved_by,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}
