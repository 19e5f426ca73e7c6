package service

import (
	"fmt"

	"feepay-backend/internal/domain"
	"feepay-backend/internal/repository"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// BuildTransactionFilter turns a listing request into a filter the caller is allowed to run.
// MASTER_ADMIN sees everything, ADMIN and STAFF see their school and a STUDENT sees their own
// wallet. Asking for anything wider is Forbidden rather than silently narrowed.
func BuildTransactionFilter(caller domain.Identity, query TransactionQuery) (repository.TransactionFilter, error) {
	filter := repository.TransactionFilter{
		StudentID: query.StudentID,
		SchoolID:  query.SchoolID,
	}

	switch caller.Role {
	case domain.RoleMasterAdmin:
	case domain.RoleAdmin, domain.RoleStaff:
		if caller.SchoolID == "" {
			return filter, fmt.Errorf("%w: %s is not bound to a school", domain.ErrForbidden, caller.Role)
		}
		if query.SchoolID != "" && query.SchoolID != caller.SchoolID {
			return filter, fmt.Errorf("%w: school %s is outside the caller's scope", domain.ErrForbidden, query.SchoolID)
		}
		filter.SchoolID = caller.SchoolID
	case domain.RoleStudent:
		if caller.StudentID == "" {
			return filter, fmt.Errorf("%w: student identity has no student id", domain.ErrForbidden)
		}
		if query.StudentID != "" && query.StudentID != caller.StudentID {
			return filter, fmt.Errorf("%w: transactions of another student", domain.ErrForbidden)
		}
		filter.StudentID = caller.StudentID
		filter.SchoolID = ""
	default:
		return filter, fmt.Errorf("%w: unknown role %q", domain.ErrForbidden, caller.Role)
	}

	for _, t := range query.Types {
		if t != domain.TransactionTypeTuition && t != domain.TransactionTypeTopUp {
			return filter, fmt.Errorf("%w: unknown transaction type %q", domain.ErrInvalidInput, t)
		}
	}
	for _, st := range query.Statuses {
		switch st {
		case domain.TransactionStatusPending, domain.TransactionStatusCompleted, domain.TransactionStatusFailed:
		default:
			return filter, fmt.Errorf("%w: unknown transaction status %q", domain.ErrInvalidInput, st)
		}
	}
	filter.Types = query.Types
	filter.Statuses = query.Statuses

	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	page := query.Page
	if page < 1 {
		page = 1
	}
	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize
	return filter, nil
}
