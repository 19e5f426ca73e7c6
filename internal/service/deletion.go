package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"feepay-backend/internal/domain"
	"feepay-backend/internal/logger"
	"feepay-backend/internal/repository"
)

const defaultDeletionReason = "Staff requested deletion"

type deletionService struct {
	store repository.Store
}

func NewDeletionService(store repository.Store) DeletionService {
	return &deletionService{store: store}
}

// DeleteFee removes a fee structure and its invoices when an admin asks, and files a
// PENDING deletion request when staff ask.
func (s *deletionService) DeleteFee(ctx context.Context, caller domain.Identity, feeID, reason string) (*DeletionOutcome, error) {
	logger.EnterMethod("deletionService.DeleteFee", "feeID", feeID, "role", caller.Role)

	fee, err := s.store.Fees().GetByID(ctx, feeID)
	if err != nil {
		logger.ExitMethodWithError("deletionService.DeleteFee", err)
		return nil, err
	}
	if err := checkSchoolScope(caller, fee.SchoolID); err != nil {
		logger.ExitMethodWithError("deletionService.DeleteFee", err)
		return nil, err
	}

	outcome, err := s.deleteOrRequest(ctx, caller, domain.ResourceTypeFee, fee.ID, reason)
	if err != nil {
		logger.ExitMethodWithError("deletionService.DeleteFee", err, "feeID", feeID)
		return nil, err
	}
	logger.ExitMethod("deletionService.DeleteFee", "feeID", feeID, "deleted", outcome.Deleted)
	return outcome, nil
}

// DeleteStudent removes a student with their wallet, ledger and invoices when an admin asks,
// and files a PENDING deletion request when staff ask.
func (s *deletionService) DeleteStudent(ctx context.Context, caller domain.Identity, studentID, reason string) (*DeletionOutcome, error) {
	logger.EnterMethod("deletionService.DeleteStudent", "studentID", studentID, "role", caller.Role)

	if _, err := authorizeStudent(ctx, s.store, caller, studentID); err != nil {
		logger.ExitMethodWithError("deletionService.DeleteStudent", err)
		return nil, err
	}

	outcome, err := s.deleteOrRequest(ctx, caller, domain.ResourceTypeStudent, studentID, reason)
	if err != nil {
		logger.ExitMethodWithError("deletionService.DeleteStudent", err, "studentID", studentID)
		return nil, err
	}
	logger.ExitMethod("deletionService.DeleteStudent", "studentID", studentID, "deleted", outcome.Deleted)
	return outcome, nil
}

func (s *deletionService) deleteOrRequest(ctx context.Context, caller domain.Identity, resource domain.ResourceType, targetID, reason string) (*DeletionOutcome, error) {
	switch {
	case caller.Role.IsAdmin():
		err := s.store.RunInTx(ctx, func(repos repository.Repositories) error {
			return deleteResource(ctx, repos, resource, targetID)
		})
		if err != nil {
			return nil, err
		}
		return &DeletionOutcome{Deleted: true}, nil

	case caller.Role == domain.RoleStaff:
		reason = strings.TrimSpace(reason)
		if reason == "" {
			reason = defaultDeletionReason
		}
		req := &domain.DeletionRequest{
			ResourceType: resource,
			TargetID:     targetID,
			Status:       domain.DeletionRequestStatusPending,
			StaffID:      caller.UserID,
			Reason:       reason,
		}
		if err := s.store.DeletionRequests().Create(ctx, req); err != nil {
			return nil, err
		}
		logger.Info("Deletion request filed", "requestID", req.ID, "resourceType", resource, "targetID", targetID, "staffID", caller.UserID)
		return &DeletionOutcome{Request: req}, nil
	}
	return nil, fmt.Errorf("%w: %s cannot delete a %s", domain.ErrForbidden, caller.Role, strings.ToLower(string(resource)))
}

func (s *deletionService) ListPending(ctx context.Context, caller domain.Identity) ([]domain.DeletionRequest, error) {
	if !caller.Role.IsAdmin() {
		return nil, fmt.Errorf("%w: only admins review deletion requests", domain.ErrForbidden)
	}
	return s.store.DeletionRequests().ListPending(ctx)
}

func (s *deletionService) Approve(ctx context.Context, caller domain.Identity, requestID string) (*domain.DeletionRequest, error) {
	return s.resolve(ctx, caller, requestID, domain.DeletionRequestStatusApproved)
}

func (s *deletionService) Reject(ctx context.Context, caller domain.Identity, requestID string) (*domain.DeletionRequest, error) {
	return s.resolve(ctx, caller, requestID, domain.DeletionRequestStatusRejected)
}

func (s *deletionService) resolve(ctx context.Context, caller domain.Identity, requestID string, status domain.DeletionRequestStatus) (*domain.DeletionRequest, error) {
	logger.EnterMethod("deletionService.resolve", "requestID", requestID, "status", status)

	if !caller.Role.IsAdmin() {
		err := fmt.Errorf("%w: only admins review deletion requests", domain.ErrForbidden)
		logger.ExitMethodWithError("deletionService.resolve", err)
		return nil, err
	}

	var req *domain.DeletionRequest
	err := s.store.RunInTx(ctx, func(repos repository.Repositories) error {
		var err error
		req, err = repos.DeletionRequests().GetByIDForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != domain.DeletionRequestStatusPending {
			return fmt.Errorf("%w: deletion request %s is already %s", domain.ErrConflict, requestID, req.Status)
		}
		if status == domain.DeletionRequestStatusApproved {
			err := deleteResource(ctx, repos, req.ResourceType, req.TargetID)
			// the target may have been removed directly since the request was filed
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return err
			}
		}
		resolvedBy := caller.UserID
		req.Status = status
		req.ResolvedBy = &resolvedBy
		return repos.DeletionRequests().UpdateStatus(ctx, req)
	})
	if err != nil {
		logger.ExitMethodWithError("deletionService.resolve", err, "requestID", requestID)
		return nil, err
	}

	logger.ExitMethod("deletionService.resolve", "requestID", requestID, "status", req.Status)
	return req, nil
}

func deleteResource(ctx context.Context, repos repository.Repositories, resource domain.ResourceType, targetID string) error {
	switch resource {
	case domain.ResourceTypeFee:
		return deleteFee(ctx, repos, targetID)
	case domain.ResourceTypeStudent:
		return deleteStudent(ctx, repos, targetID)
	}
	return fmt.Errorf("%w: unknown resource type %q", domain.ErrInvalidInput, resource)
}

func deleteFee(ctx context.Context, repos repository.Repositories, feeID string) error {
	n, err := repos.Invoices().DeleteByFeeStructureID(ctx, feeID)
	if err != nil {
		return err
	}
	deleted, err := repos.Fees().Delete(ctx, feeID)
	if err != nil {
		return err
	}
	logger.Info("Fee structure deleted", "feeID", feeID, "invoices", n, "feeFound", deleted)
	return nil
}

// deleteStudent removes everything hanging off a student, children first: ledger rows,
// wallet, invoices, the student and finally their user account.
func deleteStudent(ctx context.Context, repos repository.Repositories, studentID string) error {
	student, err := repos.Students().GetByID(ctx, studentID)
	if err != nil {
		return err
	}

	wallet, err := repos.Wallets().GetByStudentIDForUpdate(ctx, studentID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return err
	default:
		if err := repos.Transactions().DeleteByWalletID(ctx, wallet.ID); err != nil {
			return err
		}
		if err := repos.Wallets().DeleteByStudentID(ctx, studentID); err != nil {
			return err
		}
	}

	if _, err := repos.Invoices().DeleteByStudentID(ctx, studentID); err != nil {
		return err
	}
	if err := repos.Students().Delete(ctx, studentID); err != nil {
		return err
	}
	if err := repos.Users().Delete(ctx, student.UserID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	logger.Info("Student deleted", "studentID", studentID, "userID", student.UserID)
	return nil
}
