package mpesa

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/santuri/tikiti/internal/clock"
	"github.com/santuri/tikiti/internal/config"
	gatewaydomain "github.com/santuri/tikiti/internal/gateway/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newDarajaStub(t *testing.T, pushHandler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "key", user)
		assert.Equal(t, "secret", pass)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token": "token-123",
			"expires_in":   "3599",
		})
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", pushHandler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testAdapter(srvURL string) *Adapter {
	return NewAdapter(config.MpesaConfig{
		BaseURL:        srvURL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		ShortCode:      "174379",
		Passkey:        "passkey",
		CallbackURL:    "https://example.com/webhooks/mpesa",
	}, nil, zap.NewNop(), clock.NewFakeClock(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)))
}

func TestInitiate_SendsWholeUnitsAndReturnsCheckoutRequestID(t *testing.T) {
	var captured stkPushRequest
	srv := newDarajaStub(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(stkPushResponse{
			ResponseCode:      "0",
			MerchantRequestID: "29115-34620561-1",
			CheckoutRequestID: "ws_CO_191220191020363925",
			CustomerMessage:   "Success. Request accepted for processing",
		})
	})

	adapter := testAdapter(srv.URL)
	resp, err := adapter.Initiate(context.Background(), gatewaydomain.InitiateRequest{
		Reference: "TKT-01ABC",
		Amount:    1500.50,
		Currency:  "KES",
		Phone:     "254700000001",
	})
	require.NoError(t, err)

	assert.Equal(t, "ws_CO_191220191020363925", resp.CorrelationID)
	// STK amounts are whole shillings, rounded half-up.
	assert.EqualValues(t, 1501, captured.Amount)
	assert.Equal(t, "174379", captured.BusinessShortCode)
	assert.Equal(t, "254700000001", captured.PhoneNumber)
	assert.Equal(t, "TKT-01ABC", captured.AccountReference)
	assert.Equal(t, "20260314120000", captured.Timestamp)
}

func TestInitiate_RejectedResponseCode(t *testing.T) {
	srv := newDarajaStub(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(stkPushResponse{
			ResponseCode:        "1",
			ResponseDescription: "Invalid shortcode",
		})
	})

	adapter := testAdapter(srv.URL)
	_, err := adapter.Initiate(context.Background(), gatewaydomain.InitiateRequest{
		Reference: "TKT-01ABC",
		Amount:    100,
		Phone:     "254700000001",
	})
	assert.ErrorIs(t, err, gatewaydomain.ErrInitiateRejected)
}

func TestInitiate_GatewayDown(t *testing.T) {
	srv := newDarajaStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	adapter := testAdapter(srv.URL)
	_, err := adapter.Initiate(context.Background(), gatewaydomain.InitiateRequest{
		Reference: "TKT-01ABC",
		Amount:    100,
		Phone:     "254700000001",
	})
	assert.ErrorIs(t, err, gatewaydomain.ErrGatewayUnavailable)
}

func TestAccessToken_Cached(t *testing.T) {
	tokenCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token": "token-123",
			"expires_in":   "3599",
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	adapter := testAdapter(srv.URL)
	for i := 0; i < 3; i++ {
		_, err := adapter.accessToken(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, tokenCalls)
}
