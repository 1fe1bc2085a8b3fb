package mpesa

import (
	"testing"
	"time"

	gatewaydomain "github.com/santuri/tikiti/internal/gateway/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const successCallback = `{
  "Body": {
    "stkCallback": {
      "MerchantRequestID": "29115-34620561-1",
      "CheckoutRequestID": "ws_CO_191220191020363925",
      "ResultCode": 0,
      "ResultDesc": "The service request is processed successfully.",
      "CallbackMetadata": {
        "Item": [
          {"Name": "Amount", "Value": 1500.00},
          {"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
          {"Name": "TransactionDate", "Value": 20260314150530},
          {"Name": "PhoneNumber", "Value": 254700000001}
        ]
      }
    }
  }
}`

const failedCallback = `{
  "Body": {
    "stkCallback": {
      "MerchantRequestID": "29115-34620561-1",
      "CheckoutRequestID": "ws_CO_191220191020363925",
      "ResultCode": 1032,
      "ResultDesc": "Request cancelled by user"
    }
  }
}`

func TestParseCallback_Success(t *testing.T) {
	ev, err := ParseCallback([]byte(successCallback))
	require.NoError(t, err)

	assert.Equal(t, gatewaydomain.SourceWebhook, ev.Source)
	assert.Equal(t, gatewaydomain.GatewayMpesa, ev.Gateway)
	assert.Equal(t, "ws_CO_191220191020363925", ev.CorrelationID)
	assert.Equal(t, gatewaydomain.StatusSuccess, ev.Status)
	assert.Equal(t, "NLJ7RT61SV", ev.ReceiptNumber)

	// TransactionDate is Nairobi local time (UTC+3).
	require.NotNil(t, ev.PaidAt)
	assert.Equal(t, time.Date(2026, 3, 14, 12, 5, 30, 0, time.UTC), *ev.PaidAt)
}

func TestParseCallback_FailureCode(t *testing.T) {
	ev, err := ParseCallback([]byte(failedCallback))
	require.NoError(t, err)

	assert.Equal(t, gatewaydomain.StatusFailed, ev.Status)
	assert.Equal(t, "1032", ev.ResultCode)
	assert.Equal(t, "Request cancelled by user", ev.ResultDesc)
	assert.Empty(t, ev.ReceiptNumber)
}

func TestParseCallback_Malformed(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"not json", `{"Body": `},
		{"missing stkCallback", `{"Body": {}}`},
		{"empty checkout request id", `{"Body": {"stkCallback": {"CheckoutRequestID": " ", "ResultCode": 0}}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseCallback([]byte(tc.payload))
			assert.ErrorIs(t, err, gatewaydomain.ErrInvalidCallback)
		})
	}
}
