// Package momo is a client for the MTN Mobile Money collection API.
package momo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"feepay-backend/internal/domain"
	"feepay-backend/internal/logger"
	"feepay-backend/internal/metrics"

	"github.com/shopspring/decimal"
)

const ProductCollection = "collection"

// Request-to-pay statuses reported by the provider.
const (
	StatusPending    = "PENDING"
	StatusSuccessful = "SUCCESSFUL"
	StatusFailed     = "FAILED"
)

// Credentials identify an API user on one product.
type Credentials struct {
	SubscriptionKey string
	APIUser         string
	APIKey          string
}

type Config struct {
	BaseURL     string
	Environment string
	Currency    string
	CallbackURL string
	TokenTTL    time.Duration
	Products    map[string]Credentials
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	tokens     TokenStore
	now        func() time.Time

	// serializes token refresh so concurrent callers do not each fetch one
	refreshMu sync.Mutex
}

func NewClient(cfg Config, tokens TokenStore, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if tokens == nil {
		tokens = NewMemoryTokenStore()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		tokens:     tokens,
		now:        time.Now,
	}
}

// Party is a payer or payee account.
type Party struct {
	PartyIDType string `json:"partyIdType"`
	PartyID     string `json:"partyId"`
}

// PaymentRequest asks a payer to approve a collection. ReferenceID becomes X-Reference-Id
// and is how the callback and status poll are correlated.
type PaymentRequest struct {
	ReferenceID  string
	Amount       decimal.Decimal
	ExternalID   string
	Payer        Party
	PayerMessage string
	PayeeNote    string
}

type requestToPayBody struct {
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	ExternalID   string `json:"externalId"`
	Payer        Party  `json:"payer"`
	PayerMessage string `json:"payerMessage"`
	PayeeNote    string `json:"payeeNote"`
}

// PaymentStatus is the provider's view of a request-to-pay.
type PaymentStatus struct {
	ReferenceID            string          `json:"-"`
	Amount                 string          `json:"amount"`
	Currency               string          `json:"currency"`
	FinancialTransactionID string          `json:"financialTransactionId"`
	ExternalID             string          `json:"externalId"`
	Payer                  Party           `json:"payer"`
	Status                 string          `json:"status"`
	Reason                 json.RawMessage `json:"reason,omitempty"`
}

// RequestToPay submits a collection request. The provider answers 202 and reports the
// outcome later through the callback URL.
func (c *Client) RequestToPay(ctx context.Context, req PaymentRequest) error {
	logger.ExternalServiceCall("momo", "RequestToPay", "referenceID", req.ReferenceID, "amount", req.Amount.StringFixed(2))

	body := requestToPayBody{
		Amount:       req.Amount.StringFixed(2),
		Currency:     c.cfg.Currency,
		ExternalID:   req.ExternalID,
		Payer:        req.Payer,
		PayerMessage: req.PayerMessage,
		PayeeNote:    req.PayeeNote,
	}
	headers := map[string]string{"X-Reference-Id": req.ReferenceID}
	if c.cfg.CallbackURL != "" {
		headers["X-Callback-Url"] = c.cfg.CallbackURL
	}

	resp, err := c.do(ctx, ProductCollection, http.MethodPost, "requesttopay", body, headers)
	if err != nil {
		metrics.ObserveGateway("request_to_pay", err)
		logger.ExternalServiceResult("momo", "RequestToPay", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		err = unexpectedStatus("request to pay", resp)
	}
	metrics.ObserveGateway("request_to_pay", err)
	logger.ExternalServiceResult("momo", "RequestToPay", err, "status", resp.StatusCode)
	return err
}

// GetRequestToPayStatus fetches the current status of a request-to-pay.
func (c *Client) GetRequestToPayStatus(ctx context.Context, referenceID string) (*PaymentStatus, error) {
	logger.ExternalServiceCall("momo", "GetRequestToPayStatus", "referenceID", referenceID)

	resp, err := c.do(ctx, ProductCollection, http.MethodGet, "requesttopay/"+referenceID, nil, nil)
	if err != nil {
		metrics.ObserveGateway("request_to_pay_status", err)
		logger.ExternalServiceResult("momo", "GetRequestToPayStatus", err)
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		err = fmt.Errorf("%w: request to pay %s", domain.ErrNotFound, referenceID)
		metrics.ObserveGateway("request_to_pay_status", err)
		logger.ExternalServiceResult("momo", "GetRequestToPayStatus", err)
		return nil, err
	default:
		err = unexpectedStatus("request to pay status", resp)
		metrics.ObserveGateway("request_to_pay_status", err)
		logger.ExternalServiceResult("momo", "GetRequestToPayStatus", err)
		return nil, err
	}

	var status PaymentStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		err = fmt.Errorf("%w: decode status: %v", domain.ErrGateway, err)
		metrics.ObserveGateway("request_to_pay_status", err)
		return nil, err
	}
	status.ReferenceID = referenceID

	metrics.ObserveGateway("request_to_pay_status", nil)
	logger.ExternalServiceResult("momo", "GetRequestToPayStatus", nil, "status", status.Status)
	return &status, nil
}

// token returns a cached token for product or fetches a new one.
func (c *Client) token(ctx context.Context, product string) (string, error) {
	if tok, ok, err := c.tokens.Get(ctx, product); err == nil && ok {
		return tok.Value, nil
	} else if err != nil {
		logger.WarnContext(ctx, "MoMo token cache read failed", "product", product, "error", err)
	}

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// another caller may have refreshed while we waited
	if tok, ok, err := c.tokens.Get(ctx, product); err == nil && ok {
		return tok.Value, nil
	}

	issuedAt := c.now()
	value, err := c.fetchToken(ctx, product)
	if err != nil {
		return "", err
	}
	tok := Token{Value: value, ExpiresAt: issuedAt.Add(c.cfg.TokenTTL)}
	logger.DebugContext(ctx, "MoMo token refreshed", "product", product, "expires_at", tok.ExpiresAt)
	if err := c.tokens.Put(ctx, product, tok); err != nil {
		logger.WarnContext(ctx, "MoMo token cache write failed", "product", product, "error", err)
	}
	return value, nil
}

func (c *Client) fetchToken(ctx context.Context, product string) (string, error) {
	creds, ok := c.cfg.Products[product]
	if !ok || creds.APIUser == "" || creds.APIKey == "" || creds.SubscriptionKey == "" {
		return "", fmt.Errorf("%w: missing credentials for %s", domain.ErrGateway, product)
	}

	url := fmt.Sprintf("%s/%s/token/", c.cfg.BaseURL, product)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}
	auth := base64.StdEncoding.EncodeToString([]byte(creds.APIUser + ":" + creds.APIKey))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Ocp-Apim-Subscription-Key", creds.SubscriptionKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token request: %v", domain.ErrGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", unexpectedStatus("token", resp)
	}

	var result struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: decode token: %v", domain.ErrGateway, err)
	}
	if result.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", domain.ErrGateway)
	}
	return result.AccessToken, nil
}

// do sends an authenticated request to {base}/{product}/v1_0/{endpoint}.
func (c *Client) do(ctx context.Context, product, method, endpoint string, payload any, headers map[string]string) (*http.Response, error) {
	token, err := c.token(ctx, product)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: encode request: %v", domain.ErrGateway, err)
		}
		body = bytes.NewReader(data)
	}

	url := fmt.Sprintf("%s/%s/v1_0/%s", c.cfg.BaseURL, product, endpoint)
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Target-Environment", c.cfg.Environment)
	req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.Products[product].SubscriptionKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", domain.ErrGateway, method, endpoint, err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		// the provider revoked the token early; drop it so the next call refreshes
		if err := c.tokens.Invalidate(ctx, product); err != nil {
			logger.WarnContext(ctx, "MoMo token invalidation failed", "product", product, "error", err)
		}
	}
	return resp, nil
}

func unexpectedStatus(operation string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("%w: %s: status %d: %s", domain.ErrGateway, operation, resp.StatusCode, strings.TrimSpace(string(data)))
}
