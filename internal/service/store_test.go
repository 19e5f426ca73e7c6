package service_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"feepay-backend/internal/domain"
	"feepay-backend/internal/repository"

	"github.com/shopspring/decimal"
)

// memStore is an in-memory repository.Store. RunInTx holds one lock for the whole callback,
// which serializes transactions the way row locks serialize them on the same wallet, and
// restores a snapshot when the callback fails.
type memStore struct {
	mu sync.Mutex
	st *memState
}

type memState struct {
	wallets  map[string]*domain.Wallet
	txs      []*domain.LedgerTransaction
	fees     map[string]*domain.FeeStructure
	invoices map[string]*domain.Invoice
	students map[string]*domain.Student
	users    map[string]*domain.User
	schools  map[string]*domain.School
	requests map[string]*domain.DeletionRequest
	seq      int
	// faults makes the named operation fail, e.g. "Invoices.CreateForSchool/school-2"
	faults map[string]error
}

func newMemStore() *memStore {
	return &memStore{st: &memState{
		wallets:  map[string]*domain.Wallet{},
		fees:     map[string]*domain.FeeStructure{},
		invoices: map[string]*domain.Invoice{},
		students: map[string]*domain.Student{},
		users:    map[string]*domain.User{},
		schools:  map[string]*domain.School{},
		requests: map[string]*domain.DeletionRequest{},
		faults:   map[string]error{},
	}}
}

func (s *memState) clone() *memState {
	c := &memState{
		wallets:  make(map[string]*domain.Wallet, len(s.wallets)),
		txs:      make([]*domain.LedgerTransaction, 0, len(s.txs)),
		fees:     make(map[string]*domain.FeeStructure, len(s.fees)),
		invoices: make(map[string]*domain.Invoice, len(s.invoices)),
		students: make(map[string]*domain.Student, len(s.students)),
		users:    make(map[string]*domain.User, len(s.users)),
		schools:  make(map[string]*domain.School, len(s.schools)),
		requests: make(map[string]*domain.DeletionRequest, len(s.requests)),
		seq:      s.seq,
		faults:   s.faults,
	}
	for k, v := range s.wallets {
		cp := *v
		c.wallets[k] = &cp
	}
	for _, v := range s.txs {
		cp := *v
		c.txs = append(c.txs, &cp)
	}
	for k, v := range s.fees {
		cp := *v
		c.fees[k] = &cp
	}
	for k, v := range s.invoices {
		cp := *v
		c.invoices[k] = &cp
	}
	for k, v := range s.students {
		cp := *v
		c.students[k] = &cp
	}
	for k, v := range s.users {
		cp := *v
		c.users[k] = &cp
	}
	for k, v := range s.schools {
		cp := *v
		c.schools[k] = &cp
	}
	for k, v := range s.requests {
		cp := *v
		c.requests[k] = &cp
	}
	return c
}

func (s *memState) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *memState) fault(op string) error {
	return s.faults[op]
}

func (m *memStore) RunInTx(ctx context.Context, fn func(repos repository.Repositories) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	if err := fn(m); err != nil {
		*m.st = *snapshot
		return err
	}
	return nil
}

func (m *memStore) Wallets() repository.WalletRepository           { return memWallets{m.st} }
func (m *memStore) Transactions() repository.TransactionRepository { return memTransactions{m.st} }
func (m *memStore) Fees() repository.FeeRepository                 { return memFees{m.st} }
func (m *memStore) Invoices() repository.InvoiceRepository         { return memInvoices{m.st} }
func (m *memStore) Students() repository.StudentRepository         { return memStudents{m.st} }
func (m *memStore) Users() repository.UserRepository               { return memUsers{m.st} }
func (m *memStore) Schools() repository.SchoolRepository           { return memSchools{m.st} }
func (m *memStore) DeletionRequests() repository.DeletionRequestRepository {
	return memDeletionRequests{m.st}
}

func notFound(what string) error {
	return fmt.Errorf("%w: %s", domain.ErrNotFound, what)
}

// fixtures

func (m *memStore) addSchool(id, name string) {
	m.st.schools[id] = &domain.School{ID: id, Name: name}
}

// addStudent enrolls a student with a user account and a wallet holding balance.
func (m *memStore) addStudent(id, schoolID, balance string) *domain.Wallet {
	userID := "user-" + id
	m.st.users[userID] = &domain.User{ID: userID, Email: id + "@school.test", Name: id, Role: domain.RoleStudent, SchoolID: &schoolID}
	m.st.students[id] = &domain.Student{ID: id, UserID: userID, SchoolID: schoolID, StudentIDNumber: "SN-" + id}
	w := &domain.Wallet{ID: "wallet-" + id, StudentID: id, Balance: decimal.RequireFromString(balance)}
	m.st.wallets[w.ID] = w
	return w
}

func (m *memStore) addFee(id, schoolID, amount string) *domain.FeeStructure {
	f := &domain.FeeStructure{ID: id, Name: "Fee " + id, Amount: decimal.RequireFromString(amount),
		DueDate: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), SchoolID: schoolID}
	m.st.fees[id] = f
	return f
}

func (m *memStore) addInvoice(id, studentID, feeID, paid string) *domain.Invoice {
	inv := &domain.Invoice{ID: id, StudentID: studentID, FeeStructureID: feeID, AmountPaid: decimal.RequireFromString(paid),
		Status: domain.InvoiceStatusPending}
	if inv.AmountPaid.IsPositive() {
		inv.Status = domain.InvoiceStatusPartiallyPaid
	}
	m.st.invoices[id] = inv
	return inv
}

func (m *memStore) addTransaction(tx domain.LedgerTransaction) *domain.LedgerTransaction {
	if tx.ID == "" {
		tx.ID = m.st.nextID("tx")
	}
	m.st.txs = append(m.st.txs, &tx)
	return &tx
}

// inspection

func (m *memStore) balance(walletID string) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.wallets[walletID].Balance
}

func (m *memStore) invoice(studentID, feeID string) *domain.Invoice {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.st.invoices {
		if inv.StudentID == studentID && inv.FeeStructureID == feeID {
			cp := *inv
			return &cp
		}
	}
	return nil
}

func (m *memStore) transactions(walletID string) []domain.LedgerTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.LedgerTransaction
	for _, tx := range m.st.txs {
		if tx.WalletID == walletID {
			out = append(out, *tx)
		}
	}
	return out
}

// wallets

type memWallets struct{ st *memState }

func (r memWallets) Create(_ context.Context, w *domain.Wallet) error {
	for _, existing := range r.st.wallets {
		if existing.StudentID == w.StudentID {
			return fmt.Errorf("%w: wallet for student %s exists", domain.ErrConflict, w.StudentID)
		}
	}
	w.ID = r.st.nextID("wallet")
	cp := *w
	r.st.wallets[w.ID] = &cp
	return nil
}

func (r memWallets) GetByStudentID(_ context.Context, studentID string) (*domain.Wallet, error) {
	for _, w := range r.st.wallets {
		if w.StudentID == studentID {
			cp := *w
			return &cp, nil
		}
	}
	return nil, notFound("wallet for student " + studentID)
}

func (r memWallets) GetByStudentIDForUpdate(ctx context.Context, studentID string) (*domain.Wallet, error) {
	return r.GetByStudentID(ctx, studentID)
}

func (r memWallets) GetByIDForUpdate(_ context.Context, id string) (*domain.Wallet, error) {
	w, ok := r.st.wallets[id]
	if !ok {
		return nil, notFound("wallet " + id)
	}
	cp := *w
	return &cp, nil
}

func (r memWallets) UpdateBalance(_ context.Context, walletID string, balance decimal.Decimal) error {
	if err := r.st.fault("Wallets.UpdateBalance"); err != nil {
		return err
	}
	w, ok := r.st.wallets[walletID]
	if !ok {
		return notFound("wallet " + walletID)
	}
	if balance.IsNegative() {
		return fmt.Errorf("%w: wallet balance cannot be negative", domain.ErrInvalidInput)
	}
	w.Balance = balance
	return nil
}

func (r memWallets) DeleteByStudentID(_ context.Context, studentID string) error {
	for id, w := range r.st.wallets {
		if w.StudentID == studentID {
			delete(r.st.wallets, id)
		}
	}
	return nil
}

// transactions

type memTransactions struct{ st *memState }

func (r memTransactions) Create(_ context.Context, tx *domain.LedgerTransaction) error {
	if err := r.st.fault("Transactions.Create"); err != nil {
		return err
	}
	if tx.Reference != nil {
		for _, existing := range r.st.txs {
			if existing.Reference != nil && *existing.Reference == *tx.Reference {
				return fmt.Errorf("%w: duplicate reference %s", domain.ErrConflict, *tx.Reference)
			}
		}
	}
	tx.ID = r.st.nextID("tx")
	cp := *tx
	r.st.txs = append(r.st.txs, &cp)
	return nil
}

func (r memTransactions) GetByReferenceForUpdate(_ context.Context, reference string) (*domain.LedgerTransaction, error) {
	for _, tx := range r.st.txs {
		if tx.Reference != nil && *tx.Reference == reference {
			cp := *tx
			return &cp, nil
		}
	}
	return nil, notFound("transaction with reference " + reference)
}

func (r memTransactions) find(id string) *domain.LedgerTransaction {
	for _, tx := range r.st.txs {
		if tx.ID == id {
			return tx
		}
	}
	return nil
}

func (r memTransactions) MarkCompleted(_ context.Context, id string, before, after decimal.Decimal) (bool, error) {
	tx := r.find(id)
	if tx == nil || tx.Status != domain.TransactionStatusPending {
		return false, nil
	}
	tx.Status, tx.BalanceBefore, tx.BalanceAfter = domain.TransactionStatusCompleted, before, after
	return true, nil
}

func (r memTransactions) MarkFailed(_ context.Context, id string) (bool, error) {
	tx := r.find(id)
	if tx == nil || tx.Status != domain.TransactionStatusPending {
		return false, nil
	}
	tx.Status = domain.TransactionStatusFailed
	return true, nil
}

func (r memTransactions) ListRecentByWallet(_ context.Context, walletID string, limit int) ([]domain.LedgerTransaction, error) {
	out := []domain.LedgerTransaction{}
	for _, tx := range r.st.txs {
		if tx.WalletID == walletID {
			out = append(out, *tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memTransactions) List(_ context.Context, f repository.TransactionFilter) ([]domain.LedgerTransaction, int, error) {
	matches := []domain.LedgerTransaction{}
	for _, tx := range r.st.txs {
		w := r.st.wallets[tx.WalletID]
		if w == nil {
			continue
		}
		student := r.st.students[w.StudentID]
		if f.StudentID != "" && w.StudentID != f.StudentID {
			continue
		}
		if f.SchoolID != "" && (student == nil || student.SchoolID != f.SchoolID) {
			continue
		}
		if len(f.Types) > 0 && !containsType(f.Types, tx.Type) {
			continue
		}
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, tx.Status) {
			continue
		}
		matches = append(matches, *tx)
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Date.After(matches[j].Date) })
	total := len(matches)
	if f.Offset >= len(matches) {
		return []domain.LedgerTransaction{}, total, nil
	}
	matches = matches[f.Offset:]
	if f.Limit > 0 && len(matches) > f.Limit {
		matches = matches[:f.Limit]
	}
	return matches, total, nil
}

func containsType(types []domain.TransactionType, t domain.TransactionType) bool {
	for _, v := range types {
		if v == t {
			return true
		}
	}
	return false
}

func containsStatus(statuses []domain.TransactionStatus, s domain.TransactionStatus) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}

func (r memTransactions) ListStalePending(_ context.Context, method domain.PaymentMethod, createdBefore time.Time, limit int) ([]domain.LedgerTransaction, error) {
	out := []domain.LedgerTransaction{}
	for _, tx := range r.st.txs {
		if tx.Status == domain.TransactionStatusPending && tx.Method == method && tx.Reference != nil && tx.Date.Before(createdBefore) {
			out = append(out, *tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memTransactions) DeleteByWalletID(_ context.Context, walletID string) error {
	kept := r.st.txs[:0]
	for _, tx := range r.st.txs {
		if tx.WalletID != walletID {
			kept = append(kept, tx)
		}
	}
	r.st.txs = kept
	return nil
}

// fees

type memFees struct{ st *memState }

func (r memFees) Create(_ context.Context, fee *domain.FeeStructure) error {
	if err := r.st.fault("Fees.Create/" + fee.SchoolID); err != nil {
		return err
	}
	fee.ID = r.st.nextID("fee")
	fee.CreatedAt = time.Now()
	cp := *fee
	r.st.fees[fee.ID] = &cp
	return nil
}

func (r memFees) GetByID(_ context.Context, id string) (*domain.FeeStructure, error) {
	f, ok := r.st.fees[id]
	if !ok {
		return nil, notFound("fee structure " + id)
	}
	cp := *f
	return &cp, nil
}

func (r memFees) Update(_ context.Context, fee *domain.FeeStructure) error {
	if _, ok := r.st.fees[fee.ID]; !ok {
		return notFound("fee structure " + fee.ID)
	}
	cp := *fee
	r.st.fees[fee.ID] = &cp
	return nil
}

func (r memFees) Delete(_ context.Context, id string) (bool, error) {
	_, ok := r.st.fees[id]
	delete(r.st.fees, id)
	return ok, nil
}

func (r memFees) ListBySchool(_ context.Context, schoolID string) ([]domain.FeeStructure, error) {
	out := []domain.FeeStructure{}
	for _, f := range r.st.fees {
		if f.SchoolID == schoolID {
			out = append(out, *f)
		}
	}
	return out, nil
}

// invoices

type memInvoices struct{ st *memState }

func (r memInvoices) lookup(studentID, feeID string) *domain.Invoice {
	for _, inv := range r.st.invoices {
		if inv.StudentID == studentID && inv.FeeStructureID == feeID {
			return inv
		}
	}
	return nil
}

func (r memInvoices) CreateForSchool(_ context.Context, feeID, schoolID string) (int64, error) {
	if err := r.st.fault("Invoices.CreateForSchool/" + schoolID); err != nil {
		return 0, err
	}
	var n int64
	for _, s := range r.st.students {
		if s.SchoolID != schoolID || r.lookup(s.ID, feeID) != nil {
			continue
		}
		id := r.st.nextID("inv")
		r.st.invoices[id] = &domain.Invoice{ID: id, StudentID: s.ID, FeeStructureID: feeID,
			AmountPaid: decimal.Zero, Status: domain.InvoiceStatusPending, CreatedAt: time.Now()}
		n++
	}
	return n, nil
}

func (r memInvoices) GetOrCreateForUpdate(_ context.Context, studentID, feeID string) (*domain.Invoice, bool, error) {
	if inv := r.lookup(studentID, feeID); inv != nil {
		cp := *inv
		return &cp, false, nil
	}
	id := r.st.nextID("inv")
	inv := &domain.Invoice{ID: id, StudentID: studentID, FeeStructureID: feeID, AmountPaid: decimal.Zero,
		Status: domain.InvoiceStatusPending, CreatedAt: time.Now()}
	r.st.invoices[id] = inv
	cp := *inv
	return &cp, true, nil
}

func (r memInvoices) GetByID(_ context.Context, id string) (*domain.Invoice, error) {
	inv, ok := r.st.invoices[id]
	if !ok {
		return nil, notFound("invoice " + id)
	}
	cp := *inv
	return &cp, nil
}

func (r memInvoices) GetByIDForUpdate(ctx context.Context, id string) (*domain.Invoice, error) {
	return r.GetByID(ctx, id)
}

func (r memInvoices) UpdatePayment(_ context.Context, inv *domain.Invoice) error {
	stored, ok := r.st.invoices[inv.ID]
	if !ok || inv.AmountPaid.LessThan(stored.AmountPaid) {
		return notFound("invoice " + inv.ID)
	}
	stored.AmountPaid, stored.Status, stored.UpdatedAt = inv.AmountPaid, inv.Status, inv.UpdatedAt
	return nil
}

func (r memInvoices) RecomputeStatuses(_ context.Context, feeID string, amount decimal.Decimal) (int64, error) {
	var n int64
	for _, inv := range r.st.invoices {
		if inv.FeeStructureID != feeID {
			continue
		}
		switch {
		case inv.AmountPaid.GreaterThanOrEqual(amount):
			inv.Status = domain.InvoiceStatusPaid
		case inv.AmountPaid.IsPositive():
			inv.Status = domain.InvoiceStatusPartiallyPaid
		default:
			inv.Status = domain.InvoiceStatusPending
		}
		n++
	}
	return n, nil
}

func (r memInvoices) DeleteByFeeStructureID(_ context.Context, feeID string) (int64, error) {
	var n int64
	for id, inv := range r.st.invoices {
		if inv.FeeStructureID == feeID {
			delete(r.st.invoices, id)
			n++
		}
	}
	return n, nil
}

func (r memInvoices) DeleteByStudentID(_ context.Context, studentID string) (int64, error) {
	var n int64
	for id, inv := range r.st.invoices {
		if inv.StudentID == studentID {
			delete(r.st.invoices, id)
			n++
		}
	}
	return n, nil
}

// students, users, schools

type memStudents struct{ st *memState }

func (r memStudents) GetByID(_ context.Context, id string) (*domain.Student, error) {
	s, ok := r.st.students[id]
	if !ok {
		return nil, notFound("student " + id)
	}
	cp := *s
	return &cp, nil
}

func (r memStudents) GetByUserID(_ context.Context, userID string) (*domain.Student, error) {
	for _, s := range r.st.students {
		if s.UserID == userID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, notFound("student for user " + userID)
}

func (r memStudents) Delete(_ context.Context, id string) error {
	delete(r.st.students, id)
	return nil
}

type memUsers struct{ st *memState }

func (r memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := r.st.users[id]
	if !ok {
		return nil, notFound("user " + id)
	}
	cp := *u
	return &cp, nil
}

func (r memUsers) Delete(_ context.Context, id string) error {
	if _, ok := r.st.users[id]; !ok {
		return notFound("user " + id)
	}
	delete(r.st.users, id)
	return nil
}

type memSchools struct{ st *memState }

func (r memSchools) GetByID(_ context.Context, id string) (*domain.School, error) {
	s, ok := r.st.schools[id]
	if !ok {
		return nil, notFound("school " + id)
	}
	cp := *s
	return &cp, nil
}

func (r memSchools) List(_ context.Context) ([]domain.School, error) {
	out := []domain.School{}
	for _, s := range r.st.schools {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// deletion requests

type memDeletionRequests struct{ st *memState }

func (r memDeletionRequests) Create(_ context.Context, req *domain.DeletionRequest) error {
	req.ID = r.st.nextID("req")
	req.CreatedAt = time.Now()
	req.UpdatedAt = req.CreatedAt
	cp := *req
	r.st.requests[req.ID] = &cp
	return nil
}

func (r memDeletionRequests) GetByIDForUpdate(_ context.Context, id string) (*domain.DeletionRequest, error) {
	req, ok := r.st.requests[id]
	if !ok {
		return nil, notFound("deletion request " + id)
	}
	cp := *req
	return &cp, nil
}

func (r memDeletionRequests) UpdateStatus(_ context.Context, req *domain.DeletionRequest) error {
	stored, ok := r.st.requests[req.ID]
	if !ok {
		return notFound("deletion request " + req.ID)
	}
	stored.Status, stored.ResolvedBy, stored.UpdatedAt = req.Status, req.ResolvedBy, time.Now()
	return nil
}

func (r memDeletionRequests) ListPending(_ context.Context) ([]domain.DeletionRequest, error) {
	out := []domain.DeletionRequest{}
	for _, req := range r.st.requests {
		if req.Status == domain.DeletionRequestStatusPending {
			out = append(out, *req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
