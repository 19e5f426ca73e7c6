package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"feepay-backend/internal/domain"
	"feepay-backend/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

type WalletHandler struct {
	walletSvc service.WalletService
	topUpSvc  service.TopUpService
	validate  *validator.Validate
}

func NewWalletHandler(walletSvc service.WalletService, topUpSvc service.TopUpService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc, topUpSvc: topUpSvc, validate: newValidator()}
}

func (h *WalletHandler) TopUp(w http.ResponseWriter, r *http.Request) {
	caller, err := IdentityFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req topUpRequest
	if err := decodeBody(r, h.validate, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	studentID := strings.TrimSpace(req.StudentID)
	if studentID == "" && caller.Role == domain.RoleStudent {
		studentID = caller.StudentID
	}
	res, err := h.topUpSvc.TopUp(r.Context(), caller, service.TopUpRequest{
		StudentID: studentID,
		Amount:    req.Amount,
		Reference: req.Reference,
		Method:    domain.PaymentMethod(req.Method),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// MobileMoneyTopUp starts a collection from the student's phone. The top-up stays pending
// until the provider reports its outcome.
func (h *WalletHandler) MobileMoneyTopUp(w http.ResponseWriter, r *http.Request) {
	caller, err := IdentityFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req momoTopUpRequest
	if err := decodeBody(r, h.validate, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.topUpSvc.InitiateMobileMoneyTopUp(r.Context(), caller, service.MobileMoneyTopUpRequest{
		Amount: req.Amount,
		Payer:  req.Phone,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

// GetWallet returns the calling student's own wallet.
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	h.getWallet(w, r, "")
}

func (h *WalletHandler) GetStudentWallet(w http.ResponseWriter, r *http.Request) {
	h.getWallet(w, r, mux.Vars(r)["studentId"])
}

func (h *WalletHandler) getWallet(w http.ResponseWriter, r *http.Request, studentID string) {
	caller, err := IdentityFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := h.walletSvc.GetWallet(r.Context(), caller, studentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *WalletHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	caller, err := IdentityFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	query, err := parseTransactionQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	txs, total, err := h.walletSvc.ListTransactions(r.Context(), caller, query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if txs == nil {
		txs = []domain.LedgerTransaction{}
	}
	page, size := query.Page, query.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = service.DefaultPageSize
	}
	if size > service.MaxPageSize {
		size = service.MaxPageSize
	}
	writeJSON(w, http.StatusOK, transactionListResponse{Transactions: txs, Total: total, Page: page, PageSize: size})
}

func parseTransactionQuery(r *http.Request) (service.TransactionQuery, error) {
	q := r.URL.Query()
	query := service.TransactionQuery{
		StudentID: strings.TrimSpace(q.Get("student_id")),
		SchoolID:  strings.TrimSpace(q.Get("school_id")),
	}
	for _, t := range splitList(q.Get("type")) {
		query.Types = append(query.Types, domain.TransactionType(strings.ToUpper(t)))
	}
	for _, s := range splitList(q.Get("status")) {
		query.Statuses = append(query.Statuses, domain.TransactionStatus(strings.ToUpper(s)))
	}
	var err error
	if query.Page, err = intParam(q.Get("page")); err != nil {
		return query, fmt.Errorf("%w: page: %v", domain.ErrInvalidInput, err)
	}
	if query.PageSize, err = intParam(q.Get("page_size")); err != nil {
		return query, fmt.Errorf("%w: page_size: %v", domain.ErrInvalidInput, err)
	}
	return query, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
