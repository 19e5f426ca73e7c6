package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"feepay-backend/internal/domain"
	"feepay-backend/internal/logger"
	"feepay-backend/internal/repository"

	"github.com/lib/pq"
)

//go:embed schema.sql
var schema string

// DBTX is satisfied by both *sql.DB and *sql.Tx so every repository can run inside or
// outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type repos struct {
	wallets          repository.WalletRepository
	transactions     repository.TransactionRepository
	fees             repository.FeeRepository
	invoices         repository.InvoiceRepository
	students         repository.StudentRepository
	users            repository.UserRepository
	schools          repository.SchoolRepository
	deletionRequests repository.DeletionRequestRepository
}

func newRepos(q DBTX) *repos {
	return &repos{
		wallets:          NewWalletRepository(q),
		transactions:     NewTransactionRepository(q),
		fees:             NewFeeRepository(q),
		invoices:         NewInvoiceRepository(q),
		students:         NewStudentRepository(q),
		users:            NewUserRepository(q),
		schools:          NewSchoolRepository(q),
		deletionRequests: NewDeletionRequestRepository(q),
	}
}

func (r *repos) Wallets() repository.WalletRepository                   { return r.wallets }
func (r *repos) Transactions() repository.TransactionRepository         { return r.transactions }
func (r *repos) Fees() repository.FeeRepository                         { return r.fees }
func (r *repos) Invoices() repository.InvoiceRepository                 { return r.invoices }
func (r *repos) Students() repository.StudentRepository                 { return r.students }
func (r *repos) Users() repository.UserRepository                       { return r.users }
func (r *repos) Schools() repository.SchoolRepository                   { return r.schools }
func (r *repos) DeletionRequests() repository.DeletionRequestRepository { return r.deletionRequests }

type Store struct {
	db *sql.DB
	*repos
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:    db,
		repos: newRepos(db),
	}
}

// RunInTx runs fn in a READ COMMITTED transaction. Ledger reads that feed arithmetic use
// SELECT ... FOR UPDATE, so concurrent writers to the same wallet or invoice block until
// the first one commits.
func (s *Store) RunInTx(ctx context.Context, fn func(repos repository.Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", domain.ErrInternal, err)
	}
	defer tx.Rollback()

	if err := fn(newRepos(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		logger.Error("Failed to commit transaction", "error", err)
		return fmt.Errorf("%w: commit transaction: %v", domain.ErrInternal, err)
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	logger.DatabaseCall("migrate", "schema.sql")
	_, err := db.ExecContext(ctx, schema)
	logger.DatabaseResult("migrate", 0, err)
	return err
}

// translate maps driver errors onto the domain error taxonomy.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, what)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Name() {
		case "unique_violation":
			return fmt.Errorf("%w: %s: %s", domain.ErrConflict, what, pqErr.Detail)
		case "check_violation":
			return fmt.Errorf("%w: %s: %s", domain.ErrInvalidInput, what, pqErr.Constraint)
		}
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrInternal, what, err)
}
