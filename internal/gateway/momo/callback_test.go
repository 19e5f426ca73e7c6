package momo

import (
	"errors"
	"net/http"
	"testing"

	"feepay-backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCallback(t *testing.T) {
	body := []byte(`{"financialTransactionId":"fin-9","externalId":"tx-9","amount":"80","currency":"GHS","status":"successful"}`)

	t.Run("HeaderReference", func(t *testing.T) {
		h := http.Header{}
		h.Set("X-Reference-Id", "ref-9")
		cb, err := ParseCallback(h, body)
		require.NoError(t, err)
		assert.Equal(t, "ref-9", cb.ReferenceID)
		assert.Equal(t, StatusSuccessful, cb.Status)
		assert.Equal(t, "fin-9", cb.FinancialTransactionID)
	})

	t.Run("ExternalIDFallback", func(t *testing.T) {
		cb, err := ParseCallback(http.Header{}, body)
		require.NoError(t, err)
		assert.Equal(t, "tx-9", cb.ReferenceID)
	})

	t.Run("NoReference", func(t *testing.T) {
		_, err := ParseCallback(http.Header{}, []byte(`{"status":"FAILED"}`))
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})

	t.Run("Malformed", func(t *testing.T) {
		_, err := ParseCallback(http.Header{}, []byte(`{`))
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"status":"SUCCESSFUL"}`)
	sig := Sign("s3cret", body)

	assert.True(t, VerifySignature("s3cret", body, sig))
	assert.False(t, VerifySignature("other", body, sig))
	assert.False(t, VerifySignature("s3cret", []byte(`{"status":"FAILED"}`), sig))
	assert.False(t, VerifySignature("s3cret", body, ""))
}
