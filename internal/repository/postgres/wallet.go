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

type walletRepository struct {
	db DBTX
}

func NewWalletRepository(db DBTX) repository.WalletRepository {
	return &walletRepository{db: db}
}

const walletColumns = `id, student_id, balance, updated_at`

func (r *walletRepository) Create(ctx context.Context, w *domain.Wallet) error {
	query := `INSERT INTO wallets (student_id, balance, updated_at) VALUES ($1, $2, $3) RETURNING id`
	w.UpdatedAt = time.Now()
	err := r.db.QueryRowContext(ctx, query, w.StudentID, w.Balance, w.UpdatedAt).Scan(&w.ID)
	return translate(err, "create wallet")
}

func (r *walletRepository) GetByStudentID(ctx context.Context, studentID string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE student_id = $1`
	return r.scanOne(ctx, "wallet for student "+studentID, query, studentID)
}

func (r *walletRepository) GetByStudentIDForUpdate(ctx context.Context, studentID string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE student_id = $1 FOR UPDATE`
	return r.scanOne(ctx, "wallet for student "+studentID, query, studentID)
}

func (r *walletRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1 FOR UPDATE`
	return r.scanOne(ctx, "wallet "+id, query, id)
}

func (r *walletRepository) scanOne(ctx context.Context, what, query string, args ...any) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&w.ID, &w.StudentID, &w.Balance, &w.UpdatedAt)
	if err != nil {
		return nil, translate(err, what)
	}
	return w, nil
}

func (r *walletRepository) UpdateBalance(ctx context.Context, walletID string, balance decimal.Decimal) error {
	query := `UPDATE wallets SET balance = $1, updated_at = $2 WHERE id = $3`
	logger.DatabaseCall("UpdateBalance", query, "walletID", walletID, "balance", balance.StringFixed(2))
	res, err := r.db.ExecContext(ctx, query, balance, time.Now(), walletID)
	if err != nil {
		logger.DatabaseResult("UpdateBalance", 0, err)
		return translate(err, "update wallet balance")
	}
	n, _ := res.RowsAffected()
	logger.DatabaseResult("UpdateBalance", n, nil)
	if n == 0 {
		return translate(sql.ErrNoRows, "wallet "+walletID)
	}
	return nil
}

func (r *walletRepository) DeleteByStudentID(ctx context.Context, studentID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM wallets WHERE student_id = $1`, studentID)
	return translate(err, "delete wallet")
}
