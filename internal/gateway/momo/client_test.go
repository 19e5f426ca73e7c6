package momo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"feepay-backend/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	tokenCalls   atomic.Int32
	lastBody     requestToPayBody
	lastHeaders  http.Header
	rejectBearer string
	statusCode   int
}

func (p *fakeProvider) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /collection/token/", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "api-user" || pass != "api-key" || r.Header.Get("Ocp-Apim-Subscription-Key") != "sub-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		n := p.tokenCalls.Add(1)
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-" + string(rune('0'+n)),
			"token_type":   "access_token",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("POST /collection/v1_0/requesttopay", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer "+p.rejectBearer {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		p.lastHeaders = r.Header.Clone()
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&p.lastBody))
		if p.statusCode != 0 {
			w.WriteHeader(p.statusCode)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("GET /collection/v1_0/requesttopay/{ref}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("ref") == "unknown" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"amount":                 "50",
			"currency":               "GHS",
			"financialTransactionId": "fin-1",
			"externalId":             "tx-1",
			"payer":                  map[string]string{"partyIdType": "MSISDN", "partyId": "233240000000"},
			"status":                 "SUCCESSFUL",
		})
	})
	return mux
}

func newTestClient(srv *httptest.Server, store TokenStore) *Client {
	return NewClient(Config{
		BaseURL:     srv.URL,
		Environment: "sandbox",
		Currency:    "GHS",
		CallbackURL: "https://feepay.example.com/api/v1/momo/collect/webhook",
		TokenTTL:    55 * time.Minute,
		Products: map[string]Credentials{
			ProductCollection: {SubscriptionKey: "sub-key", APIUser: "api-user", APIKey: "api-key"},
		},
	}, store, srv.Client())
}

func TestClient_RequestToPay(t *testing.T) {
	p := &fakeProvider{}
	srv := httptest.NewServer(p.handler(t))
	defer srv.Close()

	c := newTestClient(srv, nil)
	req := PaymentRequest{
		ReferenceID:  "0b9b7c4e-6f0e-4a43-9d2f-3f3f1c0d2a11",
		Amount:       decimal.RequireFromString("50"),
		ExternalID:   "tx-1",
		Payer:        Party{PartyIDType: "MSISDN", PartyID: "233240000000"},
		PayerMessage: "Wallet top-up",
		PayeeNote:    "feepay",
	}

	t.Run("Accepted", func(t *testing.T) {
		require.NoError(t, c.RequestToPay(context.Background(), req))

		assert.Equal(t, req.ReferenceID, p.lastHeaders.Get("X-Reference-Id"))
		assert.Equal(t, "sandbox", p.lastHeaders.Get("X-Target-Environment"))
		assert.Equal(t, "sub-key", p.lastHeaders.Get("Ocp-Apim-Subscription-Key"))
		assert.Equal(t, "Bearer tok-1", p.lastHeaders.Get("Authorization"))
		assert.NotEmpty(t, p.lastHeaders.Get("X-Callback-Url"))
		assert.Equal(t, "50.00", p.lastBody.Amount)
		assert.Equal(t, "GHS", p.lastBody.Currency)
		assert.Equal(t, "233240000000", p.lastBody.Payer.PartyID)
	})

	t.Run("TokenReused", func(t *testing.T) {
		require.NoError(t, c.RequestToPay(context.Background(), req))
		assert.Equal(t, int32(1), p.tokenCalls.Load())
	})

	t.Run("ProviderRejects", func(t *testing.T) {
		p.statusCode = http.StatusConflict
		defer func() { p.statusCode = 0 }()

		err := c.RequestToPay(context.Background(), req)
		assert.True(t, errors.Is(err, domain.ErrGateway))
	})
}

func TestClient_TokenInvalidatedOnUnauthorized(t *testing.T) {
	p := &fakeProvider{rejectBearer: "tok-1"}
	srv := httptest.NewServer(p.handler(t))
	defer srv.Close()

	c := newTestClient(srv, nil)
	req := PaymentRequest{ReferenceID: "ref-1", Amount: decimal.NewFromInt(5), Payer: Party{PartyIDType: "MSISDN", PartyID: "1"}}

	err := c.RequestToPay(context.Background(), req)
	assert.True(t, errors.Is(err, domain.ErrGateway))

	require.NoError(t, c.RequestToPay(context.Background(), req))
	assert.Equal(t, int32(2), p.tokenCalls.Load())
}

func TestClient_TokenExpiresLocally(t *testing.T) {
	p := &fakeProvider{}
	srv := httptest.NewServer(p.handler(t))
	defer srv.Close()

	store := NewMemoryTokenStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	c := newTestClient(srv, store)
	c.now = func() time.Time { return now }

	_, err := c.token(context.Background(), ProductCollection)
	require.NoError(t, err)

	// 56 minutes later the provider would still accept the token, the client must not
	now = now.Add(56 * time.Minute)
	tok, err := c.token(context.Background(), ProductCollection)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok)
	assert.Equal(t, int32(2), p.tokenCalls.Load())
}

func TestClient_MissingCredentials(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:0", TokenTTL: time.Minute}, nil, nil)
	err := c.RequestToPay(context.Background(), PaymentRequest{ReferenceID: "r"})
	assert.True(t, errors.Is(err, domain.ErrGateway))
}

func TestClient_GetRequestToPayStatus(t *testing.T) {
	p := &fakeProvider{}
	srv := httptest.NewServer(p.handler(t))
	defer srv.Close()

	c := newTestClient(srv, nil)

	t.Run("Successful", func(t *testing.T) {
		st, err := c.GetRequestToPayStatus(context.Background(), "ref-1")
		require.NoError(t, err)
		assert.Equal(t, StatusSuccessful, st.Status)
		assert.Equal(t, "fin-1", st.FinancialTransactionID)
		assert.Equal(t, "ref-1", st.ReferenceID)
	})

	t.Run("Unknown", func(t *testing.T) {
		_, err := c.GetRequestToPayStatus(context.Background(), "unknown")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}

func TestMemoryTokenStore(t *testing.T) {
	s := NewMemoryTokenStore()
	now := time.Now()
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, ProductCollection, Token{Value: "a", ExpiresAt: now.Add(time.Minute)}))
	tok, ok, err := s.Get(ctx, ProductCollection)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a", tok.Value)

	now = now.Add(time.Minute)
	_, ok, _ = s.Get(ctx, ProductCollection)
	assert.False(t, ok, "a token at its expiry instant is stale")

	require.NoError(t, s.Put(ctx, ProductCollection, Token{Value: "b", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, s.Invalidate(ctx, ProductCollection))
	_, ok, _ = s.Get(ctx, ProductCollection)
	assert.False(t, ok)
}
