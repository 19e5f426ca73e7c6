package momo

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"feepay-backend/internal/domain"
)

// Callback is a request-to-pay outcome delivered to the webhook.
type Callback struct {
	ReferenceID            string
	ExternalID             string
	Status                 string
	Amount                 string
	FinancialTransactionID string
}

type callbackBody struct {
	ExternalID             string `json:"externalId"`
	Status                 string `json:"status"`
	Amount                 string `json:"amount"`
	FinancialTransactionID string `json:"financialTransactionId"`
	ReferenceID            string `json:"referenceId"`
}

// ParseCallback reads a webhook delivery. The reference comes from the X-Reference-Id header
// and falls back to the body's externalId.
func ParseCallback(header http.Header, body []byte) (*Callback, error) {
	var b callbackBody
	if err := json.Unmarshal(body, &b); err != nil {
		return nil, fmt.Errorf("%w: callback body: %v", domain.ErrInvalidInput, err)
	}

	ref := header.Get("X-Reference-Id")
	if ref == "" {
		ref = b.ReferenceID
	}
	if ref == "" {
		ref = b.ExternalID
	}
	if ref == "" {
		return nil, fmt.Errorf("%w: missing reference id", domain.ErrInvalidInput)
	}

	return &Callback{
		ReferenceID:            ref,
		ExternalID:             b.ExternalID,
		Status:                 strings.ToUpper(b.Status),
		Amount:                 b.Amount,
		FinancialTransactionID: b.FinancialTransactionID,
	}, nil
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks an X-Callback-Signature value against the raw body.
func VerifySignature(secret string, body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	expected := Sign(secret, body)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}
