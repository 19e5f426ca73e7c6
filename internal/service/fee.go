package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"feepay-backend/internal/domain"
	"feepay-backend/internal/events"
	"feepay-backend/internal/logger"
	"feepay-backend/internal/metrics"
	"feepay-backend/internal/repository"
)

// BroadcastAllSchools targets every school in a broadcast.
const BroadcastAllSchools = "ALL"

type feeService struct {
	store     repository.Store
	publisher events.Publisher
}

func NewFeeService(store repository.Store, publisher events.Publisher) FeeService {
	return &feeService{store: store, publisher: publisher}
}

func validateFeeDetails(details FeeDetails) error {
	if strings.TrimSpace(details.Name) == "" {
		return fmt.Errorf("%w: fee name is required", domain.ErrInvalidInput)
	}
	if !details.Amount.IsPositive() {
		return fmt.Errorf("%w: fee amount must be positive", domain.ErrInvalidInput)
	}
	if hasSubCent(details.Amount) {
		return fmt.Errorf("%w: fee amount %s has more than two decimal places", domain.ErrInvalidInput, details.Amount)
	}
	if details.DueDate.IsZero() {
		return fmt.Errorf("%w: due date is required", domain.ErrInvalidInput)
	}
	for _, item := range details.Breakdown {
		if strings.TrimSpace(item.Item) == "" || item.Amount.IsNegative() {
			return fmt.Errorf("%w: breakdown items need a name and a non-negative amount", domain.ErrInvalidInput)
		}
		if hasSubCent(item.Amount) {
			return fmt.Errorf("%w: breakdown item %q has more than two decimal places", domain.ErrInvalidInput, item.Item)
		}
	}
	return nil
}

// BroadcastFee creates the fee structure and one PENDING invoice per enrolled student for a
// single school or, with target ALL, for every school. Each school commits on its own; with
// ALL a failing school is reported in the results and the others still go through.
func (s *feeService) BroadcastFee(ctx context.Context, caller domain.Identity, target string, details FeeDetails) (*BroadcastResult, error) {
	logger.EnterMethod("feeService.BroadcastFee", "target", target, "name", details.Name, "amount", details.Amount.StringFixed(2))

	if err := validateFeeDetails(details); err != nil {
		logger.ExitMethodWithError("feeService.BroadcastFee", err)
		return nil, err
	}

	var schoolIDs []string
	if target == BroadcastAllSchools {
		if caller.Role != domain.RoleMasterAdmin {
			err := fmt.Errorf("%w: only a master admin can broadcast to all schools", domain.ErrForbidden)
			logger.ExitMethodWithError("feeService.BroadcastFee", err)
			return nil, err
		}
		schools, err := s.store.Schools().List(ctx)
		if err != nil {
			logger.ExitMethodWithError("feeService.BroadcastFee", err)
			return nil, err
		}
		for _, sc := range schools {
			schoolIDs = append(schoolIDs, sc.ID)
		}
	} else {
		if target == "" {
			err := fmt.Errorf("%w: school id is required", domain.ErrInvalidInput)
			logger.ExitMethodWithError("feeService.BroadcastFee", err)
			return nil, err
		}
		if err := checkSchoolScope(caller, target); err != nil {
			logger.ExitMethodWithError("feeService.BroadcastFee", err)
			return nil, err
		}
		if _, err := s.store.Schools().GetByID(ctx, target); err != nil {
			logger.ExitMethodWithError("feeService.BroadcastFee", err)
			return nil, err
		}
		schoolIDs = []string{target}
	}

	result := &BroadcastResult{Results: make([]SchoolBroadcast, 0, len(schoolIDs))}
	var evs []events.Event
	for _, schoolID := range schoolIDs {
		outcome, fee, err := s.broadcastToSchool(ctx, schoolID, details)
		if err != nil {
			if target != BroadcastAllSchools {
				logger.ExitMethodWithError("feeService.BroadcastFee", err, "schoolID", schoolID)
				return nil, err
			}
			logger.Warn("Fee broadcast failed for school", "schoolID", schoolID, "error", err)
			result.Results = append(result.Results, SchoolBroadcast{SchoolID: schoolID, Error: err.Error()})
			continue
		}
		result.Results = append(result.Results, outcome)
		result.FeeStructuresCreated++
		result.InvoicesCreated += outcome.InvoicesCreated
		evs = append(evs, events.Event{
			Type:       events.FeeBroadcast,
			Key:        fee.ID,
			OccurredAt: fee.CreatedAt,
			Payload:    map[string]any{"fee": fee, "invoices_created": outcome.InvoicesCreated},
		})
	}

	publish(ctx, s.publisher, evs)
	logger.ExitMethod("feeService.BroadcastFee", "feeStructures", result.FeeStructuresCreated, "invoices", result.InvoicesCreated)
	return result, nil
}

func (s *feeService) broadcastToSchool(ctx context.Context, schoolID string, details FeeDetails) (SchoolBroadcast, *domain.FeeStructure, error) {
	start := time.Now()
	fee := &domain.FeeStructure{
		Name:      strings.TrimSpace(details.Name),
		Amount:    details.Amount,
		DueDate:   details.DueDate,
		Breakdown: details.Breakdown,
		SchoolID:  schoolID,
	}
	var created int64
	err := s.store.RunInTx(ctx, func(repos repository.Repositories) error {
		if err := repos.Fees().Create(ctx, fee); err != nil {
			return err
		}
		n, err := repos.Invoices().CreateForSchool(ctx, fee.ID, schoolID)
		if err != nil {
			return err
		}
		created = n
		return nil
	})
	metrics.ObserveLedger("broadcast_fee", start, err)
	if err != nil {
		return SchoolBroadcast{}, nil, err
	}
	return SchoolBroadcast{SchoolID: schoolID, FeeStructureID: fee.ID, InvoicesCreated: created}, fee, nil
}

// UpdateFee edits a fee structure in place. Invoices keep their amount paid and have their
// status re-derived against the new amount.
func (s *feeService) UpdateFee(ctx context.Context, caller domain.Identity, feeID string, details FeeDetails) (*domain.FeeStructure, error) {
	logger.EnterMethod("feeService.UpdateFee", "feeID", feeID)

	if err := validateFeeDetails(details); err != nil {
		logger.ExitMethodWithError("feeService.UpdateFee", err)
		return nil, err
	}

	var fee *domain.FeeStructure
	err := s.store.RunInTx(ctx, func(repos repository.Repositories) error {
		var err error
		fee, err = repos.Fees().GetByID(ctx, feeID)
		if err != nil {
			return err
		}
		if err := checkSchoolScope(caller, fee.SchoolID); err != nil {
			return err
		}
		amountChanged := !fee.Amount.Equal(details.Amount)
		fee.Name = strings.TrimSpace(details.Name)
		fee.Amount = details.Amount
		fee.DueDate = details.DueDate
		fee.Breakdown = details.Breakdown
		if err := repos.Fees().Update(ctx, fee); err != nil {
			return err
		}
		if amountChanged {
			if _, err := repos.Invoices().RecomputeStatuses(ctx, fee.ID, fee.Amount); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("feeService.UpdateFee", err, "feeID", feeID)
		return nil, err
	}

	logger.ExitMethod("feeService.UpdateFee", "feeID", fee.ID)
	return fee, nil
}
