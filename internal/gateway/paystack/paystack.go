package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/santuri/tikiti/internal/config"
	gatewaydomain "github.com/santuri/tikiti/internal/gateway/domain"
	"go.uber.org/zap"
)

// Adapter drives the Paystack redirect flow. The reference is client-chosen
// at initialize time, which makes a genuine pull verify possible — the
// fallback path when the charge webhook is dropped.
type Adapter struct {
	cfg        config.PaystackConfig
	httpClient *http.Client
	log        *zap.Logger
}

func NewAdapter(cfg config.PaystackConfig, httpClient *http.Client, log *zap.Logger) *Adapter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Adapter{
		cfg:        cfg,
		httpClient: httpClient,
		log:        log.Named("gateway.paystack"),
	}
}

func (a *Adapter) Gateway() string {
	return gatewaydomain.GatewayPaystack
}

type initializeRequest struct {
	Email       string `json:"email"`
	Amount      int64  `json:"amount"`
	Reference   string `json:"reference"`
	Currency    string `json:"currency,omitempty"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type initializeResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

// Initiate creates a Paystack transaction. Amount is converted to integer
// minor units (kobo/cents) here and nowhere else.
func (a *Adapter) Initiate(ctx context.Context, req gatewaydomain.InitiateRequest) (*gatewaydomain.InitiateResponse, error) {
	body := initializeRequest{
		Email:       req.Email,
		Amount:      gatewaydomain.MinorUnits(req.Amount),
		Reference:   req.Reference,
		Currency:    req.Currency,
		CallbackURL: a.cfg.CallbackURL,
	}

	var resp initializeResponse
	if err := a.doJSON(ctx, http.MethodPost, "/transaction/initialize", body, &resp); err != nil {
		return nil, err
	}
	if !resp.Status {
		return nil, fmt.Errorf("%w: %s", gatewaydomain.ErrInitiateRejected, resp.Message)
	}

	return &gatewaydomain.InitiateResponse{
		Gateway:          gatewaydomain.GatewayPaystack,
		CorrelationID:    resp.Data.Reference,
		AuthorizationURL: resp.Data.AuthorizationURL,
		AccessCode:       resp.Data.AccessCode,
	}, nil
}

type verifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Status          string `json:"status"`
		Reference       string `json:"reference"`
		GatewayResponse string `json:"gateway_response"`
		PaidAt          string `json:"paid_at"`
		Channel         string `json:"channel"`
		Amount          int64  `json:"amount"`
	} `json:"data"`
}

// Verify pulls the authoritative transaction state by reference.
func (a *Adapter) Verify(ctx context.Context, reference string) (*gatewaydomain.Result, error) {
	var resp verifyResponse
	if err := a.doJSON(ctx, http.MethodGet, "/transaction/verify/"+reference, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Status {
		return nil, fmt.Errorf("%w: %s", gatewaydomain.ErrGatewayUnavailable, resp.Message)
	}

	result := &gatewaydomain.Result{
		Channel:    resp.Data.Channel,
		ResultDesc: resp.Data.GatewayResponse,
	}

	switch resp.Data.Status {
	case "success":
		result.Status = gatewaydomain.StatusSuccess
		result.ReceiptNumber = resp.Data.Reference
		if ts, err := time.Parse(time.RFC3339, resp.Data.PaidAt); err == nil {
			utc := ts.UTC()
			result.PaidAt = &utc
		}
	case "failed", "abandoned":
		result.Status = gatewaydomain.StatusFailed
	default:
		result.Status = gatewaydomain.StatusPending
	}
	return result, nil
}

func (a *Adapter) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.cfg.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.cfg.SecretKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", gatewaydomain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: gateway returned %d", gatewaydomain.ErrGatewayUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", gatewaydomain.ErrGatewayUnavailable, err)
	}
	return nil
}
