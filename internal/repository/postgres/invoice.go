package postgres

import (
	"context"
	"database/sql"
	"time"

	"feepay-backend/internal/domain"
	"feepay-backend/internal/logger"
	"feepay-backend/internal/repository"

	"github.com/shopspring/decimal"
)

type invoiceRepository struct {
	db DBTX
}

func NewInvoiceRepository(db DBTX) repository.InvoiceRepository {
	return &invoiceRepository{db: db}
}

const invoiceColumns = `id, student_id, fee_structure_id, amount_paid, status, created_at, updated_at`

func scanInvoice(row rowScanner) (*domain.Invoice, error) {
	inv := &domain.Invoice{}
	err := row.Scan(&inv.ID, &inv.StudentID, &inv.FeeStructureID, &inv.AmountPaid, &inv.Status, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *invoiceRepository) CreateForSchool(ctx context.Context, feeStructureID, schoolID string) (int64, error) {
	query := `INSERT INTO invoices (student_id, fee_structure_id, amount_paid, status)
	          SELECT s.id, $1, 0, $2 FROM students s WHERE s.school_id = $3
	          ON CONFLICT (student_id, fee_structure_id) DO NOTHING`
	logger.DatabaseCall("CreateForSchool", query, "feeStructureID", feeStructureID, "schoolID", schoolID)
	res, err := r.db.ExecContext(ctx, query, feeStructureID, domain.InvoiceStatusPending, schoolID)
	if err != nil {
		logger.DatabaseResult("CreateForSchool", 0, err)
		return 0, translate(err, "create invoices for school")
	}
	n, err := res.RowsAffected()
	logger.DatabaseResult("CreateForSchool", n, err)
	if err != nil {
		return 0, translate(err, "create invoices for school")
	}
	return n, nil
}

func (r *invoiceRepository) GetOrCreateForUpdate(ctx context.Context, studentID, feeStructureID string) (*domain.Invoice, bool, error) {
	// Two first payments for the same pair race on the unique key: the loser's insert
	// blocks until the winner commits and then becomes a no-op, so both end up locking
	// the same row below.
	insert := `INSERT INTO invoices (student_id, fee_structure_id, amount_paid, status)
	           VALUES ($1, $2, 0, $3)
	           ON CONFLICT (student_id, fee_structure_id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, insert, studentID, feeStructureID, domain.InvoiceStatusPending)
	if err != nil {
		return nil, false, translate(err, "create invoice")
	}
	created := false
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		created = true
	}

	query := `SELECT ` + invoiceColumns + ` FROM invoices
	          WHERE student_id = $1 AND fee_structure_id = $2 FOR UPDATE`
	inv, err := scanInvoice(r.db.QueryRowContext(ctx, query, studentID, feeStructureID))
	if err != nil {
		return nil, false, translate(err, "invoice for student "+studentID)
	}
	return inv, created, nil
}

func (r *invoiceRepository) GetByID(ctx context.Context, id string) (*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	inv, err := scanInvoice(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translate(err, "invoice "+id)
	}
	return inv, nil
}

func (r *invoiceRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1 FOR UPDATE`
	inv, err := scanInvoice(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translate(err, "invoice "+id)
	}
	return inv, nil
}

// UpdatePayment writes amount_paid and status. The amount_paid guard keeps the column
// monotonic even if a caller hands in a stale invoice.
func (r *invoiceRepository) UpdatePayment(ctx context.Context, inv *domain.Invoice) error {
	query := `UPDATE invoices SET amount_paid = $1, status = $2, updated_at = $3
	          WHERE id = $4 AND amount_paid <= $1`
	inv.UpdatedAt = time.Now()
	res, err := r.db.ExecContext(ctx, query, inv.AmountPaid, inv.Status, inv.UpdatedAt, inv.ID)
	if err != nil {
		return translate(err, "update invoice")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return translate(err, "update invoice")
	}
	if n == 0 {
		return translate(sql.ErrNoRows, "invoice "+inv.ID)
	}
	return nil
}

func (r *invoiceRepository) RecomputeStatuses(ctx context.Context, feeStructureID string, feeAmount decimal.Decimal) (int64, error) {
	query := `UPDATE invoices SET
	            status = CASE WHEN amount_paid >= $1 THEN $2
	                          WHEN amount_paid > 0 THEN $3
	                          ELSE $4 END,
	            updated_at = $5
	          WHERE fee_structure_id = $6`
	logger.DatabaseCall("RecomputeStatuses", query, "feeStructureID", feeStructureID)
	res, err := r.db.ExecContext(ctx, query, feeAmount, domain.InvoiceStatusPaid, domain.InvoiceStatusPartiallyPaid,
		domain.InvoiceStatusPending, time.Now(), feeStructureID)
	if err != nil {
		logger.DatabaseResult("RecomputeStatuses", 0, err)
		return 0, translate(err, "recompute invoice statuses")
	}
	n, _ := res.RowsAffected()
	logger.DatabaseResult("RecomputeStatuses", n, nil)
	return n, nil
}

func (r *invoiceRepository) DeleteByFeeStructureID(ctx context.Context, feeStructureID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM invoices WHERE fee_structure_id = $1`, feeStructureID)
	if err != nil {
		return 0, translate(err, "delete invoices for fee structure")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *invoiceRepository) DeleteByStudentID(ctx context.Context, studentID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM invoices WHERE student_id = $1`, studentID)
	if err != nil {
		return 0, translate(err, "delete invoices for student")
	}
	n, _ := res.RowsAffected()
	return n, nil
}
