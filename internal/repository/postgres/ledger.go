package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"feepay-backend/internal/domain"
	"feepay-backend/internal/logger"
	"feepay-backend/internal/repository"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type transactionRepository struct {
	db DBTX
}

func NewTransactionRepository(db DBTX) repository.TransactionRepository {
	return &transactionRepository{db: db}
}

const transactionColumns = `t.id, t.wallet_id, t.amount, t.type, t.status, t.method, t.reference,
	t.description, t.balance_before, t.balance_after, t.date`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*domain.LedgerTransaction, error) {
	tx := &domain.LedgerTransaction{}
	err := row.Scan(&tx.ID, &tx.WalletID, &tx.Amount, &tx.Type, &tx.Status, &tx.Method, &tx.Reference,
		&tx.Description, &tx.BalanceBefore, &tx.BalanceAfter, &tx.Date)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (r *transactionRepository) Create(ctx context.Context, tx *domain.LedgerTransaction) error {
	logger.EnterMethod("transactionRepository.Create", "walletID", tx.WalletID, "type", tx.Type, "amount", tx.Amount.StringFixed(2))

	query := `INSERT INTO transactions (wallet_id, amount, type, status, method, reference, description, balance_before, balance_after, date)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`
	if tx.Date.IsZero() {
		tx.Date = time.Now()
	}
	err := r.db.QueryRowContext(ctx, query,
		tx.WalletID, tx.Amount, tx.Type, tx.Status, tx.Method, tx.Reference, tx.Description,
		tx.BalanceBefore, tx.BalanceAfter, tx.Date,
	).Scan(&tx.ID)
	if err != nil {
		logger.ExitMethodWithError("transactionRepository.Create", err, "walletID", tx.WalletID)
		return translate(err, "create transaction")
	}

	logger.ExitMethod("transactionRepository.Create", "transactionID", tx.ID)
	return nil
}

func (r *transactionRepository) GetByReferenceForUpdate(ctx context.Context, reference string) (*domain.LedgerTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions t WHERE t.reference = $1 FOR UPDATE`
	tx, err := scanTransaction(r.db.QueryRowContext(ctx, query, reference))
	if err != nil {
		return nil, translate(err, "transaction with reference "+reference)
	}
	return tx, nil
}

func (r *transactionRepository) MarkCompleted(ctx context.Context, id string, balanceBefore, balanceAfter decimal.Decimal) (bool, error) {
	query := `UPDATE transactions SET status = $1, balance_before = $2, balance_after = $3
	          WHERE id = $4 AND status = $5`
	res, err := r.db.ExecContext(ctx, query, domain.TransactionStatusCompleted, balanceBefore, balanceAfter, id, domain.TransactionStatusPending)
	if err != nil {
		return false, translate(err, "complete transaction")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, translate(err, "complete transaction")
	}
	return n == 1, nil
}

func (r *transactionRepository) MarkFailed(ctx context.Context, id string) (bool, error) {
	query := `UPDATE transactions SET status = $1 WHERE id = $2 AND status = $3`
	res, err := r.db.ExecContext(ctx, query, domain.TransactionStatusFailed, id, domain.TransactionStatusPending)
	if err != nil {
		return false, translate(err, "fail transaction")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, translate(err, "fail transaction")
	}
	return n == 1, nil
}

func (r *transactionRepository) ListRecentByWallet(ctx context.Context, walletID string, limit int) ([]domain.LedgerTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions t WHERE t.wallet_id = $1 ORDER BY t.date DESC LIMIT $2`
	return r.query(ctx, "list wallet transactions", query, walletID, limit)
}

func (r *transactionRepository) List(ctx context.Context, filter repository.TransactionFilter) ([]domain.LedgerTransaction, int, error) {
	logger.EnterMethod("transactionRepository.List", "studentID", filter.StudentID, "schoolID", filter.SchoolID)

	from := ` FROM transactions t
		JOIN wallets w ON w.id = t.wallet_id
		JOIN students s ON s.id = w.student_id`

	var conds []string
	args := []any{}
	argIndex := 1

	if filter.StudentID != "" {
		conds = append(conds, fmt.Sprintf("s.id = $%d", argIndex))
		args = append(args, filter.StudentID)
		argIndex++
	}
	if filter.SchoolID != "" {
		conds = append(conds, fmt.Sprintf("s.school_id = $%d", argIndex))
		args = append(args, filter.SchoolID)
		argIndex++
	}
	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		conds = append(conds, fmt.Sprintf("t.type = ANY($%d)", argIndex))
		args = append(args, pq.Array(types))
		argIndex++
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		conds = append(conds, fmt.Sprintf("t.status = ANY($%d)", argIndex))
		args = append(args, pq.Array(statuses))
		argIndex++
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*)`+from+where, args...).Scan(&total); err != nil {
		logger.ExitMethodWithError("transactionRepository.List", err)
		return nil, 0, translate(err, "count transactions")
	}

	query := `SELECT ` + transactionColumns + from + where +
		fmt.Sprintf(" ORDER BY t.date DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, filter.Limit, filter.Offset)

	txs, err := r.query(ctx, "list transactions", query, args...)
	if err != nil {
		logger.ExitMethodWithError("transactionRepository.List", err)
		return nil, 0, err
	}

	logger.ExitMethod("transactionRepository.List", "count", len(txs), "total", total)
	return txs, total, nil
}

func (r *transactionRepository) ListStalePending(ctx context.Context, method domain.PaymentMethod, createdBefore time.Time, limit int) ([]domain.LedgerTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions t
	          WHERE t.status = $1 AND t.method = $2 AND t.date < $3 AND t.reference IS NOT NULL
	          ORDER BY t.date ASC LIMIT $4`
	return r.query(ctx, "list stale pending transactions", query, domain.TransactionStatusPending, method, createdBefore, limit)
}

func (r *transactionRepository) DeleteByWalletID(ctx context.Context, walletID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE wallet_id = $1`, walletID)
	return translate(err, "delete wallet transactions")
}

func (r *transactionRepository) query(ctx context.Context, what, query string, args ...any) ([]domain.LedgerTransaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err, what)
	}
	defer rows.Close()

	txs := []domain.LedgerTransaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, translate(err, what)
		}
		txs = append(txs, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err, what)
	}
	return txs, nil
}
