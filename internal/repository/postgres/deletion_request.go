package postgres

import (
	"context"
	"database/sql"
	"time"

	"feepay-backend/internal/domain"
	"feepay-backend/internal/logger"
	"feepay-backend/internal/repository"
)

type deletionRequestRepository struct {
	db DBTX
}

func NewDeletionRequestRepository(db DBTX) repository.DeletionRequestRepository {
	return &deletionRequestRepository{db: db}
}

const deletionRequestColumns = `id, resource_type, target_id, status, staff_id, reason, resolved_by, created_at, updated_at`

func scanDeletionRequest(row rowScanner) (*domain.DeletionRequest, error) {
	req := &domain.DeletionRequest{}
	err := row.Scan(&req.ID, &req.ResourceType, &req.TargetID, &req.Status, &req.StaffID, &req.Reason,
		&req.ResolvedBy, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (r *deletionRequestRepository) Create(ctx context.Context, req *domain.DeletionRequest) error {
	logger.EnterMethod("deletionRequestRepository.Create", "resourceType", req.ResourceType, "targetID", req.TargetID)

	query := `INSERT INTO deletion_requests (resource_type, target_id, status, staff_id, reason, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	now := time.Now()
	req.CreatedAt = now
	req.UpdatedAt = now
	err := r.db.QueryRowContext(ctx, query, req.ResourceType, req.TargetID, req.Status, req.StaffID, req.Reason, now, now).Scan(&req.ID)
	if err != nil {
		logger.ExitMethodWithError("deletionRequestRepository.Create", err)
		return translate(err, "create deletion request")
	}

	logger.ExitMethod("deletionRequestRepository.Create", "requestID", req.ID)
	return nil
}

func (r *deletionRequestRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.DeletionRequest, error) {
	query := `SELECT ` + deletionRequestColumns + ` FROM deletion_requests WHERE id = $1 FOR UPDATE`
	req, err := scanDeletionRequest(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translate(err, "deletion request "+id)
	}
	return req, nil
}

func (r *deletionRequestRepository) UpdateStatus(ctx context.Context, req *domain.DeletionRequest) error {
	query := `UPDATE deletion_requests SET status = $1, resolved_by = $2, updated_at = $3 WHERE id = $4`
	req.UpdatedAt = time.Now()
	res, err := r.db.ExecContext(ctx, query, req.Status, req.ResolvedBy, req.UpdatedAt, req.ID)
	if err != nil {
		return translate(err, "update deletion request")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return translate(sql.ErrNoRows, "deletion request "+req.ID)
	}
	return nil
}

func (r *deletionRequestRepository) ListPending(ctx context.Context) ([]domain.DeletionRequest, error) {
	query := `SELECT ` + deletionRequestColumns + ` FROM deletion_requests WHERE status = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, domain.DeletionRequestStatusPending)
	if err != nil {
		return nil, translate(err, "list deletion requests")
	}
	defer rows.Close()

	reqs := []domain.DeletionRequest{}
	for rows.Next() {
		req, err := scanDeletionRequest(rows)
		if err != nil {
			return nil, translate(err, "list deletion requests")
		}
		reqs = append(reqs, *req)
	}
	return reqs, translate(rows.Err(), "list deletion requests")
}
