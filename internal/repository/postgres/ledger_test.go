package postgres_test

import (
	"context"
	"testing"
	"time"

	"feepay-backend/internal/domain"
	"feepay-backend/internal/repository"
	"feepay-backend/internal/repository/postgres"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var transactionCols = []string{"id", "wallet_id", "amount", "type", "status", "method", "reference",
	"description", "balance_before", "balance_after", "date"}

func TestTransactionRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := postgres.NewTransactionRepository(db)
	ref := "MOMO-REF-1"
	tx := &domain.LedgerTransaction{
		WalletID:      "w-1",
		Amount:        decimal.NewFromInt(500),
		Type:          domain.TransactionTypeTopUp,
		Status:        domain.TransactionStatusPending,
		Method:        domain.PaymentMethodMomo,
		Reference:     &ref,
		Description:   "Wallet top-up",
		BalanceBefore: decimal.NewFromInt(100),
		BalanceAfter:  decimal.NewFromInt(100),
	}

	mock.ExpectQuery("INSERT INTO transactions").
		WithArgs("w-1", tx.Amount, tx.Type, tx.Status, tx.Method, ref, tx.Description,
			tx.BalanceBefore, tx.BalanceAfter, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("tx-1"))

	require.NoError(t, repo.Create(context.Background(), tx))
	assert.Equal(t, "tx-1", tx.ID)
	assert.False(t, tx.Date.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_MarkCompleted(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := postgres.NewTransactionRepository(db)
	ctx := context.Background()

	t.Run("TransitionsPending", func(t *testing.T) {
		mock.ExpectExec("UPDATE transactions SET status = \\$1, balance_before = \\$2, balance_after = \\$3 WHERE id = \\$4 AND status = \\$5").
			WithArgs(domain.TransactionStatusCompleted, decimal.NewFromInt(100), decimal.NewFromInt(600), "tx-1", domain.TransactionStatusPending).
			WillReturnResult(sqlmock.NewResult(0, 1))

		changed, err := repo.MarkCompleted(ctx, "tx-1", decimal.NewFromInt(100), decimal.NewFromInt(600))
		require.NoError(t, err)
		assert.True(t, changed)
	})

	t.Run("AlreadyFinal", func(t *testing.T) {
		mock.ExpectExec("UPDATE transactions SET status").
			WillReturnResult(sqlmock.NewResult(0, 0))

		changed, err := repo.MarkCompleted(ctx, "tx-1", decimal.NewFromInt(100), decimal.NewFromInt(600))
		require.NoError(t, err)
		assert.False(t, changed)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := postgres.NewTransactionRepository(db)
	ctx := context.Background()
	now := time.Now()

	t.Run("ScopedToSchool", func(t *testing.T) {
		filter := repository.TransactionFilter{
			SchoolID: "sch-1",
			Types:    []domain.TransactionType{domain.TransactionTypeTuition},
			Limit:    10,
		}

		mock.ExpectQuery("SELECT count\\(\\*\\) FROM transactions t JOIN wallets w .* WHERE s.school_id = \\$1 AND t.type = ANY\\(\\$2\\)").
			WithArgs("sch-1", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectQuery("SELECT t.id, .* WHERE s.school_id = \\$1 AND t.type = ANY\\(\\$2\\) ORDER BY t.date DESC LIMIT \\$3 OFFSET \\$4").
			WithArgs("sch-1", sqlmock.AnyArg(), 10, 0).
			WillReturnRows(sqlmock.NewRows(transactionCols).
				AddRow("tx-1", "w-1", "150.00", "TUITION", "COMPLETED", "WALLET", nil, "Tuition", "200.00", "50.00", now))

		txs, total, err := repo.List(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, txs, 1)
		assert.Equal(t, domain.TransactionTypeTuition, txs[0].Type)
		assert.Nil(t, txs[0].Reference)
		assert.True(t, txs[0].BalanceAfter.Equal(decimal.NewFromInt(50)))
	})

	t.Run("Unfiltered", func(t *testing.T) {
		mock.ExpectQuery("SELECT count\\(\\*\\) FROM transactions t").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery("ORDER BY t.date DESC LIMIT \\$1 OFFSET \\$2").
			WithArgs(20, 40).
			WillReturnRows(sqlmock.NewRows(transactionCols))

		txs, total, err := repo.List(ctx, repository.TransactionFilter{Limit: 20, Offset: 40})
		require.NoError(t, err)
		assert.Equal(t, 0, total)
		assert.Empty(t, txs)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_GetByReferenceForUpdate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := postgres.NewTransactionRepository(db)

	mock.ExpectQuery("FROM transactions t WHERE t.reference = \\$1 FOR UPDATE").
		WithArgs("ref-9").
		WillReturnRows(sqlmock.NewRows(transactionCols).
			AddRow("tx-9", "w-1", "80", "TOPUP", "PENDING", "MOMO", "ref-9", "Wallet top-up", "0", "0", time.Now()))

	tx, err := repo.GetByReferenceForUpdate(context.Background(), "ref-9")
	require.NoError(t, err)
	require.NotNil(t, tx.Reference)
	assert.Equal(t, "ref-9", *tx.Reference)
	assert.Equal(t, domain.TransactionStatusPending, tx.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
