package status

import (
	"context"
	"errors"
	"time"

	"github.com/santuri/tikiti/internal/config"
	"github.com/santuri/tikiti/internal/gateway"
	gatewaydomain "github.com/santuri/tikiti/internal/gateway/domain"
	"github.com/santuri/tikiti/internal/observability/metrics"
	orderdomain "github.com/santuri/tikiti/internal/order/domain"
	"github.com/santuri/tikiti/internal/reconcile"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PaymentStatus is the client-facing view of an order's payment state. It is
// deliberately coarser than the internal status machine.
type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusPaid      PaymentStatus = "paid"
	StatusFailed    PaymentStatus = "failed"
	StatusCancelled PaymentStatus = "cancelled"
	StatusNotFound  PaymentStatus = "not_found"
)

// Response is the unified status payload. Found is false only when the
// correlation key matches no order, which clients treat the same as pending
// during the settle window.
type Response struct {
	Found          bool          `json:"found"`
	OrderID        string        `json:"order_id,omitempty"`
	Status         PaymentStatus `json:"status"`
	PaidAt         *time.Time    `json:"paid_at,omitempty"`
	ReceiptNumber  string        `json:"receipt_number,omitempty"`
	PaymentGateway string        `json:"payment_gateway,omitempty"`
	FailureReason  string        `json:"failure_reason,omitempty"`
	// Poll tells the client how to keep asking.
	Poll PollPolicy `json:"poll"`
}

// PollPolicy is the client backoff contract for the status endpoint.
type PollPolicy struct {
	IntervalSeconds int `json:"interval_seconds"`
	MaxAttempts     int `json:"max_attempts"`
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Orders   orderdomain.Repository
	Gateways *gateway.Registry
	Engine   *reconcile.Engine
	Payments *config.PaymentsConfigHolder
	Metrics  *metrics.Metrics `optional:"true"`
}

// Service answers "has my payment landed yet" across both gateways with one
// lookup shape, and can pull a verdict from gateways that support verification.
type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	orders   orderdomain.Repository
	gateways *gateway.Registry
	engine   *reconcile.Engine
	payments *config.PaymentsConfigHolder
	metrics  *metrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("status.service"),
		orders:   p.Orders,
		gateways: p.Gateways,
		engine:   p.Engine,
		payments: p.Payments,
		metrics:  p.Metrics,
	}
}

// Get resolves a gateway correlation key to the unified payment status.
// Unknown keys are reported as not_found with found=false rather than an
// error: during the settle window the client cannot tell "not yet recorded"
// from "never existed", and the poll policy covers both.
func (s *Service) Get(ctx context.Context, correlationID string) (*Response, error) {
	policy := s.payments.Get()
	poll := PollPolicy{
		IntervalSeconds: policy.StatusPoll.IntervalSeconds,
		MaxAttempts:     policy.StatusPoll.MaxAttempts,
	}

	order, err := s.orders.FindByCorrelationID(ctx, s.db, correlationID)
	if err != nil {
		if errors.Is(err, orderdomain.ErrNotFound) {
			s.metrics.RecordStatusPoll(ctx, string(StatusNotFound))
			return &Response{Found: false, Status: StatusNotFound, Poll: poll}, nil
		}
		return nil, err
	}

	resp := &Response{
		Found:          true,
		OrderID:        order.ID.String(),
		Status:         mapStatus(order.Status),
		PaymentGateway: order.Gateway,
		Poll:           poll,
	}
	switch order.Status {
	case orderdomain.StatusPaid:
		resp.PaidAt = order.PaidAt
		resp.ReceiptNumber = order.ReceiptNumber
	case orderdomain.StatusFailed:
		resp.FailureReason = order.FailureReason
	}

	s.metrics.RecordStatusPoll(ctx, string(resp.Status))
	return resp, nil
}

// Refresh asks the gateway for the current verdict on a still-pending order
// and feeds the answer through the reconciliation engine, then reports the
// resulting status. Gateways without a verify API return the stored view.
func (s *Service) Refresh(ctx context.Context, correlationID string) (*Response, error) {
	order, err := s.orders.FindByCorrelationID(ctx, s.db, correlationID)
	if err != nil {
		if errors.Is(err, orderdomain.ErrNotFound) {
			return s.Get(ctx, correlationID)
		}
		return nil, err
	}

	if !order.Status.Terminal() {
		// Verification is best-effort: a gateway without a verify API (or one
		// disabled since checkout) just means the stored view stands.
		verifier, err := s.gateways.Verifier(order.Gateway)
		if err == nil {
			result, verr := verifier.Verify(ctx, correlationID)
			if verr != nil {
				s.log.Warn("gateway verify failed",
					zap.String("order_id", order.ID.String()),
					zap.String("gateway", order.Gateway),
					zap.Error(verr),
				)
			} else {
				ev := gatewaydomain.ConfirmationEvent{
					Source:        gatewaydomain.SourcePoll,
					Gateway:       order.Gateway,
					CorrelationID: correlationID,
					Status:        result.Status,
					ResultDesc:    result.ResultDesc,
					ReceiptNumber: result.ReceiptNumber,
					PaidAt:        result.PaidAt,
					Channel:       result.Channel,
				}
				if err := s.engine.Handle(ctx, ev); err != nil {
					return nil, err
				}
			}
		} else if !errors.Is(err, gatewaydomain.ErrVerifyUnsupported) &&
			!errors.Is(err, gatewaydomain.ErrGatewayNotFound) {
			return nil, err
		}
	}

	return s.Get(ctx, correlationID)
}

func mapStatus(st orderdomain.Status) PaymentStatus {
	switch st {
	case orderdomain.StatusPaid:
		return StatusPaid
	case orderdomain.StatusFailed:
		return StatusFailed
	case orderdomain.StatusCancelled:
		return StatusCancelled
	default:
		return StatusPending
	}
}
