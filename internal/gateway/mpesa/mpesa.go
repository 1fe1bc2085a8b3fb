package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/santuri/tikiti/internal/clock"
	"github.com/santuri/tikiti/internal/config"
	gatewaydomain "github.com/santuri/tikiti/internal/gateway/domain"
	"go.uber.org/zap"
)

// resultCodeSuccess is the Daraja result code for a completed payment.
// Any other code is a terminal failure (cancelled, timed out, insufficient
// funds); the description travels in ResultDesc.
const resultCodeSuccess = 0

// Adapter drives the M-Pesa STK push flow. Confirmation is push-only: the
// gateway calls back asynchronously and there is no verify endpoint, so
// correlation happens solely through CheckoutRequestID.
type Adapter struct {
	cfg        config.MpesaConfig
	httpClient *http.Client
	log        *zap.Logger
	clock      clock.Clock

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewAdapter(cfg config.MpesaConfig, httpClient *http.Client, log *zap.Logger, clk clock.Clock) *Adapter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Adapter{
		cfg:        cfg,
		httpClient: httpClient,
		log:        log.Named("gateway.mpesa"),
		clock:      clk,
	}
}

func (a *Adapter) Gateway() string {
	return gatewaydomain.GatewayMpesa
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// Initiate sends the STK push prompt to the customer's phone. A "0" response
// code means the request was accepted, not that payment happened; the real
// outcome arrives later on the callback URL.
func (a *Adapter) Initiate(ctx context.Context, req gatewaydomain.InitiateRequest) (*gatewaydomain.InitiateResponse, error) {
	token, err := a.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := a.clock.Now().Format("20060102150405")
	password := base64.StdEncoding.EncodeToString(
		[]byte(a.cfg.ShortCode + a.cfg.Passkey + timestamp),
	)

	body := stkPushRequest{
		BusinessShortCode: a.cfg.ShortCode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            gatewaydomain.WholeUnits(req.Amount),
		PartyA:            req.Phone,
		PartyB:            a.cfg.ShortCode,
		PhoneNumber:       req.Phone,
		CallBackURL:       a.cfg.CallbackURL,
		AccountReference:  req.Reference,
		TransactionDesc:   req.Description,
	}

	var resp stkPushResponse
	if err := a.postJSON(ctx, "/mpesa/stkpush/v1/processrequest", token, body, &resp); err != nil {
		return nil, err
	}

	if resp.ResponseCode != "0" {
		a.log.Warn("stk push rejected",
			zap.String("response_code", resp.ResponseCode),
			zap.String("description", resp.ResponseDescription),
		)
		return nil, fmt.Errorf("%w: %s", gatewaydomain.ErrInitiateRejected, resp.ResponseDescription)
	}

	return &gatewaydomain.InitiateResponse{
		Gateway:           gatewaydomain.GatewayMpesa,
		CorrelationID:     resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		CustomerMessage:   resp.CustomerMessage,
	}, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// accessToken returns a cached OAuth bearer token, refreshing it through the
// client-credentials endpoint shortly before expiry.
func (a *Adapter) accessToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()
	if a.token != "" && now.Before(a.tokenExpiry) {
		return a.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		a.cfg.BaseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(a.cfg.ConsumerKey, a.cfg.ConsumerSecret)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", gatewaydomain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token endpoint returned %d", gatewaydomain.ErrGatewayUnavailable, resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("%w: %v", gatewaydomain.ErrGatewayUnavailable, err)
	}
	if strings.TrimSpace(tok.AccessToken) == "" {
		return "", fmt.Errorf("%w: empty access token", gatewaydomain.ErrGatewayUnavailable)
	}

	expiresIn, err := strconv.Atoi(strings.TrimSpace(tok.ExpiresIn))
	if err != nil || expiresIn <= 0 {
		expiresIn = 3600
	}

	a.token = tok.AccessToken
	// refresh one minute early to avoid using a token that dies in flight
	a.tokenExpiry = now.Add(time.Duration(expiresIn-60) * time.Second)

	return a.token, nil
}

func (a *Adapter) postJSON(ctx context.Context, path, token string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

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
