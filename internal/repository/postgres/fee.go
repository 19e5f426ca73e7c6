package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"feepay-backend/internal/domain"
	"feepay-backend/internal/logger"
	"feepay-backend/internal/repository"
)

type feeRepository struct {
	db DBTX
}

func NewFeeRepository(db DBTX) repository.FeeRepository {
	return &feeRepository{db: db}
}

const feeColumns = `id, name, amount, due_date, breakdown, school_id, created_at`

func (r *feeRepository) Create(ctx context.Context, fee *domain.FeeStructure) error {
	logger.EnterMethod("feeRepository.Create", "schoolID", fee.SchoolID, "name", fee.Name)

	breakdown, err := marshalBreakdown(fee.Breakdown)
	if err != nil {
		return err
	}
	query := `INSERT INTO fee_structures (name, amount, due_date, breakdown, school_id, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	fee.CreatedAt = time.Now()
	err = r.db.QueryRowContext(ctx, query, fee.Name, fee.Amount, fee.DueDate, breakdown, fee.SchoolID, fee.CreatedAt).Scan(&fee.ID)
	if err != nil {
		logger.ExitMethodWithError("feeRepository.Create", err, "schoolID", fee.SchoolID)
		return translate(err, "create fee structure")
	}

	logger.ExitMethod("feeRepository.Create", "feeStructureID", fee.ID)
	return nil
}

func (r *feeRepository) GetByID(ctx context.Context, id string) (*domain.FeeStructure, error) {
	query := `SELECT ` + feeColumns + ` FROM fee_structures WHERE id = $1`
	fee, err := scanFee(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translate(err, "fee structure "+id)
	}
	return fee, nil
}

func (r *feeRepository) Update(ctx context.Context, fee *domain.FeeStructure) error {
	breakdown, err := marshalBreakdown(fee.Breakdown)
	if err != nil {
		return err
	}
	query := `UPDATE fee_structures SET name = $1, amount = $2, due_date = $3, breakdown = $4 WHERE id = $5`
	res, err := r.db.ExecContext(ctx, query, fee.Name, fee.Amount, fee.DueDate, breakdown, fee.ID)
	if err != nil {
		return translate(err, "update fee structure")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return translate(sql.ErrNoRows, "fee structure "+fee.ID)
	}
	return nil
}

func (r *feeRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM fee_structures WHERE id = $1`, id)
	if err != nil {
		return false, translate(err, "delete fee structure")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, translate(err, "delete fee structure")
	}
	return n > 0, nil
}

func (r *feeRepository) ListBySchool(ctx context.Context, schoolID string) ([]domain.FeeStructure, error) {
	query := `SELECT ` + feeColumns + ` FROM fee_structures WHERE school_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, schoolID)
	if err != nil {
		return nil, translate(err, "list fee structures")
	}
	defer rows.Close()

	fees := []domain.FeeStructure{}
	for rows.Next() {
		fee, err := scanFee(rows)
		if err != nil {
			return nil, translate(err, "list fee structures")
		}
		fees = append(fees, *fee)
	}
	return fees, translate(rows.Err(), "list fee structures")
}

func scanFee(row rowScanner) (*domain.FeeStructure, error) {
	fee := &domain.FeeStructure{}
	var breakdown []byte
	if err := row.Scan(&fee.ID, &fee.Name, &fee.Amount, &fee.DueDate, &breakdown, &fee.SchoolID, &fee.CreatedAt); err != nil {
		return nil, err
	}
	fee.Breakdown = []domain.BreakdownItem{}
	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &fee.Breakdown); err != nil {
			return nil, err
		}
	}
	return fee, nil
}

// marshalBreakdown returns the JSONB text for items. lib/pq sends []byte as bytea, so the
// document goes over the wire as a string.
func marshalBreakdown(items []domain.BreakdownItem) (string, error) {
	if items == nil {
		items = []domain.BreakdownItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", translate(err, "encode fee breakdown")
	}
	return string(b), nil
}
