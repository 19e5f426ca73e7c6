package http

import (
	"context"
	"net/http"
	"time"

	"feepay-backend/internal/metrics"
	"feepay-backend/internal/security"
	"feepay-backend/internal/service"

	"github.com/gorilla/mux"
)

// Pinger reports whether the ledger database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Services struct {
	Settlement service.SettlementService
	TopUp      service.TopUpService
	Wallet     service.WalletService
	Fee        service.FeeService
	Deletion   service.DeletionService
}

// NewRouter wires every endpoint. Route templates are the keys of the endpoint security table.
func NewRouter(svcs Services, tm security.TokenManager, webhookSecret string, db Pinger) *mux.Router {
	fees := NewFeeHandler(svcs.Fee)
	deletions := NewDeletionHandler(svcs.Deletion)
	payments := NewPaymentHandler(svcs.Settlement, svcs.Wallet)
	wallets := NewWalletHandler(svcs.Wallet, svcs.TopUp)
	webhook := NewWebhookHandler(svcs.TopUp, webhookSecret)

	r := mux.NewRouter()
	r.Use(Instrument, NewAuthMiddleware(tm).Handler)

	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", healthz(db)).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/momo/collect/webhook", webhook.MomoCollection).Methods(http.MethodPost)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/fees", fees.BroadcastFee).Methods(http.MethodPost)
	api.HandleFunc("/fees/{id}", fees.UpdateFee).Methods(http.MethodPut)
	api.HandleFunc("/fees/{id}", deletions.DeleteFee).Methods(http.MethodDelete)
	api.HandleFunc("/students/{id}", deletions.DeleteStudent).Methods(http.MethodDelete)

	api.HandleFunc("/deletion-requests", deletions.ListPending).Methods(http.MethodGet)
	api.HandleFunc("/deletion-requests/{id}/approve", deletions.Approve).Methods(http.MethodPost)
	api.HandleFunc("/deletion-requests/{id}/reject", deletions.Reject).Methods(http.MethodPost)

	api.HandleFunc("/payments", payments.SettlePayment).Methods(http.MethodPost)
	api.HandleFunc("/invoices/{id}", payments.GetInvoice).Methods(http.MethodGet)
	api.HandleFunc("/invoices/{id}/pay", payments.PayInvoice).Methods(http.MethodPost)

	api.HandleFunc("/wallet", wallets.GetWallet).Methods(http.MethodGet)
	api.HandleFunc("/wallet/topup", wallets.TopUp).Methods(http.MethodPost)
	api.HandleFunc("/wallet/topup/momo", wallets.MobileMoneyTopUp).Methods(http.MethodPost)
	api.HandleFunc("/wallets/{studentId}", wallets.GetStudentWallet).Methods(http.MethodGet)
	api.HandleFunc("/transactions", wallets.ListTransactions).Methods(http.MethodGet)

	return r
}

func healthz(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db == nil {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
