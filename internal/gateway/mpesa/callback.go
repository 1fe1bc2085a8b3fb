package mpesa

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	gatewaydomain "github.com/santuri/tikiti/internal/gateway/domain"
)

type stkCallbackEnvelope struct {
	Body struct {
		StkCallback *stkCallback `json:"stkCallback"`
	} `json:"Body"`
}

type stkCallback struct {
	MerchantRequestID string           `json:"MerchantRequestID"`
	CheckoutRequestID string           `json:"CheckoutRequestID"`
	ResultCode        int              `json:"ResultCode"`
	ResultDesc        string           `json:"ResultDesc"`
	CallbackMetadata  *stkCallbackMeta `json:"CallbackMetadata"`
}

type stkCallbackMeta struct {
	Item []stkCallbackItem `json:"Item"`
}

type stkCallbackItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value"`
}

// ParseCallback turns the Daraja STK callback body into a normalized
// confirmation event. ResultCode 0 is success and carries receipt metadata;
// every other code is a terminal failure for this checkout attempt.
func ParseCallback(payload []byte) (*gatewaydomain.ConfirmationEvent, error) {
	var envelope stkCallbackEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", gatewaydomain.ErrInvalidCallback, err)
	}

	cb := envelope.Body.StkCallback
	if cb == nil || strings.TrimSpace(cb.CheckoutRequestID) == "" {
		return nil, fmt.Errorf("%w: missing stkCallback", gatewaydomain.ErrInvalidCallback)
	}

	event := &gatewaydomain.ConfirmationEvent{
		Source:        gatewaydomain.SourceWebhook,
		Gateway:       gatewaydomain.GatewayMpesa,
		CorrelationID: cb.CheckoutRequestID,
		ResultCode:    strconv.Itoa(cb.ResultCode),
		ResultDesc:    cb.ResultDesc,
	}

	if cb.ResultCode != resultCodeSuccess {
		event.Status = gatewaydomain.StatusFailed
		return event, nil
	}

	event.Status = gatewaydomain.StatusSuccess
	event.Channel = "mpesa"
	if cb.CallbackMetadata != nil {
		for _, item := range cb.CallbackMetadata.Item {
			switch item.Name {
			case "MpesaReceiptNumber":
				event.ReceiptNumber = metaString(item.Value)
			case "TransactionDate":
				if ts, ok := metaTransactionDate(item.Value); ok {
					event.PaidAt = &ts
				}
			}
		}
	}
	return event, nil
}

func metaString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// metaTransactionDate parses Daraja's numeric yyyyMMddHHmmss timestamp,
// which is reported in Nairobi local time.
func metaTransactionDate(raw json.RawMessage) (time.Time, bool) {
	value := metaString(raw)
	if len(value) != 14 {
		return time.Time{}, false
	}
	loc := time.FixedZone("EAT", 3*60*60)
	ts, err := time.ParseInLocation("20060102150405", value, loc)
	if err != nil {
		return time.Time{}, false
	}
	return ts.UTC(), true
}
