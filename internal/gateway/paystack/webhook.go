package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	gatewaydomain "github.com/santuri/tikiti/internal/gateway/domain"
)

type webhookEnvelope struct {
	Event string `json:"event"`
	Data  struct {
		Status          string `json:"status"`
		Reference       string `json:"reference"`
		GatewayResponse string `json:"gateway_response"`
		PaidAt          string `json:"paid_at"`
		Channel         string `json:"channel"`
	} `json:"data"`
}

// VerifyWebhook checks the x-paystack-signature header, an HMAC-SHA512 of the
// raw body keyed with the account secret.
func (a *Adapter) VerifyWebhook(payload []byte, headers http.Header) error {
	signature := strings.TrimSpace(headers.Get("x-paystack-signature"))
	if signature == "" {
		return gatewaydomain.ErrInvalidSignature
	}

	mac := hmac.New(sha512.New, []byte(a.cfg.SecretKey))
	_, _ = mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return gatewaydomain.ErrInvalidSignature
	}
	return nil
}

// ParseWebhook normalizes charge events; everything else is ignored.
func (a *Adapter) ParseWebhook(payload []byte) (*gatewaydomain.ConfirmationEvent, error) {
	var envelope webhookEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", gatewaydomain.ErrInvalidCallback, err)
	}
	if strings.TrimSpace(envelope.Data.Reference) == "" {
		return nil, fmt.Errorf("%w: missing reference", gatewaydomain.ErrInvalidCallback)
	}

	event := &gatewaydomain.ConfirmationEvent{
		Source:        gatewaydomain.SourceWebhook,
		Gateway:       gatewaydomain.GatewayPaystack,
		CorrelationID: envelope.Data.Reference,
		ResultCode:    envelope.Data.Status,
		ResultDesc:    envelope.Data.GatewayResponse,
		Channel:       envelope.Data.Channel,
	}

	switch envelope.Event {
	case "charge.success":
		event.Status = gatewaydomain.StatusSuccess
		event.ReceiptNumber = envelope.Data.Reference
		if ts, err := time.Parse(time.RFC3339, envelope.Data.PaidAt); err == nil {
			utc := ts.UTC()
			event.PaidAt = &utc
		}
	case "charge.failed":
		event.Status = gatewaydomain.StatusFailed
	default:
		return nil, gatewaydomain.ErrEventIgnored
	}
	return event, nil
}
