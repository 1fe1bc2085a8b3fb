package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/http"
	"testing"
	"time"

	"github.com/santuri/tikiti/internal/config"
	gatewaydomain "github.com/santuri/tikiti/internal/gateway/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func webhookAdapter() *Adapter {
	return NewAdapter(config.PaystackConfig{SecretKey: "sk_test_abc"}, nil, zap.NewNop())
}

func sign(secret string, payload []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhook(t *testing.T) {
	adapter := webhookAdapter()
	payload := []byte(`{"event":"charge.success"}`)

	headers := http.Header{}
	headers.Set("x-paystack-signature", sign("sk_test_abc", payload))
	assert.NoError(t, adapter.VerifyWebhook(payload, headers))

	headers.Set("x-paystack-signature", sign("wrong_key", payload))
	assert.ErrorIs(t, adapter.VerifyWebhook(payload, headers), gatewaydomain.ErrInvalidSignature)

	assert.ErrorIs(t, adapter.VerifyWebhook(payload, http.Header{}), gatewaydomain.ErrInvalidSignature)
}

func TestParseWebhook_ChargeSuccess(t *testing.T) {
	adapter := webhookAdapter()
	payload := []byte(`{
		"event": "charge.success",
		"data": {
			"status": "success",
			"reference": "TKT-01ABC",
			"gateway_response": "Successful",
			"paid_at": "2026-03-14T15:05:30+03:00",
			"channel": "card"
		}
	}`)

	ev, err := adapter.ParseWebhook(payload)
	require.NoError(t, err)

	assert.Equal(t, gatewaydomain.GatewayPaystack, ev.Gateway)
	assert.Equal(t, "TKT-01ABC", ev.CorrelationID)
	assert.Equal(t, gatewaydomain.StatusSuccess, ev.Status)
	assert.Equal(t, "TKT-01ABC", ev.ReceiptNumber)
	assert.Equal(t, "card", ev.Channel)
	require.NotNil(t, ev.PaidAt)
	assert.Equal(t, time.Date(2026, 3, 14, 12, 5, 30, 0, time.UTC), *ev.PaidAt)
}

func TestParseWebhook_ChargeFailed(t *testing.T) {
	adapter := webhookAdapter()
	payload := []byte(`{
		"event": "charge.failed",
		"data": {"status": "failed", "reference": "TKT-01ABC", "gateway_response": "Declined"}
	}`)

	ev, err := adapter.ParseWebhook(payload)
	require.NoError(t, err)
	assert.Equal(t, gatewaydomain.StatusFailed, ev.Status)
	assert.Equal(t, "Declined", ev.ResultDesc)
}

func TestParseWebhook_IgnoredAndInvalid(t *testing.T) {
	adapter := webhookAdapter()

	_, err := adapter.ParseWebhook([]byte(`{"event":"transfer.success","data":{"reference":"TKT-01ABC"}}`))
	assert.ErrorIs(t, err, gatewaydomain.ErrEventIgnored)

	_, err = adapter.ParseWebhook([]byte(`{"event":"charge.success","data":{}}`))
	assert.ErrorIs(t, err, gatewaydomain.ErrInvalidCallback)

	_, err = adapter.ParseWebhook([]byte(`{bad`))
	assert.ErrorIs(t, err, gatewaydomain.ErrInvalidCallback)
}
