package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	auditdomain "github.com/santuri/tikiti/internal/audit/domain"
	"github.com/santuri/tikiti/internal/clock"
	"github.com/santuri/tikiti/internal/config"
	"github.com/santuri/tikiti/internal/gateway"
	gatewaydomain "github.com/santuri/tikiti/internal/gateway/domain"
	"github.com/santuri/tikiti/internal/observability/metrics"
	"github.com/santuri/tikiti/internal/order/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Gateways *gateway.Registry
	Payments *config.PaymentsConfigHolder
	Audit    auditdomain.Recorder
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	gateways *gateway.Registry
	payments *config.PaymentsConfigHolder
	audit    auditdomain.Recorder
	metrics  *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("order.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		gateways: p.Gateways,
		payments: p.Payments,
		audit:    p.Audit,
		metrics:  p.Metrics,
	}
}

// Checkout creates the order, asks the chosen gateway to start collecting
// payment and records the correlation key the confirmation will arrive under.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutResponse, error) {
	policy := s.payments.Get()

	gatewayName, err := s.validateGateway(req.Gateway, policy)
	if err != nil {
		return nil, err
	}
	if err := validateItems(req.Items); err != nil {
		return nil, err
	}
	if err := validateHolders(req.TicketHolders); err != nil {
		return nil, err
	}
	if err := validateContact(gatewayName, req.Contact); err != nil {
		return nil, err
	}

	initiator, err := s.gateways.Initiator(gatewayName)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	order := &domain.Order{
		ID:            s.genID.Generate(),
		Gateway:       gatewayName,
		Status:        domain.StatusCreated,
		Currency:      policy.Currency,
		Items:         req.Items,
		TicketHolders: req.TicketHolders,
		ContactName:   strings.TrimSpace(req.Contact.FullName),
		ContactEmail:  strings.TrimSpace(req.Contact.Email),
		ContactPhone:  strings.TrimSpace(req.Contact.Phone),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	order.Amount = order.TotalAmount()

	if err := s.repo.Insert(ctx, s.db, order); err != nil {
		return nil, err
	}

	reference := "TKT-" + ulid.Make().String()
	initiated, err := initiator.Initiate(ctx, gatewaydomain.InitiateRequest{
		Reference:   reference,
		Amount:      order.Amount,
		Currency:    order.Currency,
		Phone:       order.ContactPhone,
		Email:       order.ContactEmail,
		Description: fmt.Sprintf("tikiti order %s", order.ID),
	})
	if err != nil {
		s.log.Warn("gateway initiate failed",
			zap.String("order_id", order.ID.String()),
			zap.String("gateway", gatewayName),
			zap.Error(err),
		)
		if errors.Is(err, gatewaydomain.ErrGatewayUnavailable) {
			// Transient: the order stays created and the caller decides
			// whether to retry.
			s.metrics.RecordGatewayInitiation(ctx, gatewayName, "unavailable")
			return nil, err
		}
		// The gateway answered and refused; park the order as failed so
		// the client starts over with a fresh checkout.
		s.metrics.RecordGatewayInitiation(ctx, gatewayName, "rejected")
		if _, trErr := s.repo.Transition(ctx, s.db, order.ID, domain.StatusCreated, domain.StatusFailed,
			domain.TransitionPatch{FailureReason: "gateway rejected initiation"}); trErr != nil {
			s.log.Error("failed to park order after initiate rejection", zap.Error(trErr))
		}
		return nil, err
	}
	s.metrics.RecordGatewayInitiation(ctx, gatewayName, "accepted")

	attached, err := s.repo.AttachCorrelation(ctx, s.db, order.ID, gatewayName, initiated.CorrelationID)
	if err != nil {
		return nil, err
	}
	if !attached {
		// Only possible if the order was cancelled between insert and now.
		s.log.Warn("correlation attach lost the race",
			zap.String("order_id", order.ID.String()),
		)
	}

	s.log.Info("checkout initiated",
		zap.String("order_id", order.ID.String()),
		zap.String("gateway", gatewayName),
		zap.String("correlation_id", initiated.CorrelationID),
		zap.Float64("amount", order.Amount),
	)

	return &domain.CheckoutResponse{
		OrderID:          order.ID.String(),
		Gateway:          gatewayName,
		CorrelationID:    initiated.CorrelationID,
		AuthorizationURL: initiated.AuthorizationURL,
		CustomerMessage:  initiated.CustomerMessage,
		Amount:           order.Amount,
		Currency:         order.Currency,
	}, nil
}

// Cancel moves a not-yet-resolved order to cancelled. Terminal orders are
// left untouched.
func (s *Service) Cancel(ctx context.Context, id snowflake.ID) error {
	order, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if order.Status.Terminal() {
		return domain.ErrNotCancellable
	}

	ok, err := s.repo.Transition(ctx, s.db, id, order.Status, domain.StatusCancelled, domain.TransitionPatch{})
	if err != nil {
		return err
	}
	if !ok {
		// Resolved concurrently; re-read to report the right error.
		current, err := s.repo.FindByID(ctx, s.db, id)
		if err != nil {
			return err
		}
		if current.Status != domain.StatusCancelled {
			return domain.ErrNotCancellable
		}
		return nil
	}

	s.audit.Record(ctx, auditdomain.ActionOrderCancelled, "order", id.String(), map[string]interface{}{
		"previous_status": string(order.Status),
	})
	return nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Order, error) {
	return s.repo.FindByID(ctx, s.db, id)
}

func (s *Service) validateGateway(name string, policy config.PaymentsConfig) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case gatewaydomain.GatewayMpesa:
		if !policy.Gateways.Mpesa {
			return "", domain.ErrGatewayDisabled
		}
	case gatewaydomain.GatewayPaystack:
		if !policy.Gateways.Paystack {
			return "", domain.ErrGatewayDisabled
		}
	default:
		return "", domain.ErrInvalidGateway
	}
	return name, nil
}

func validateItems(items []domain.OrderItem) error {
	if len(items) == 0 {
		return domain.ErrInvalidItems
	}
	for _, item := range items {
		if strings.TrimSpace(item.EventID) == "" || strings.TrimSpace(item.TierID) == "" {
			return domain.ErrInvalidItems
		}
		if item.Quantity <= 0 || item.UnitPrice < 0 {
			return domain.ErrInvalidItems
		}
	}
	return nil
}

func validateHolders(holders []domain.TicketHolder) error {
	for _, holder := range holders {
		if strings.TrimSpace(holder.FullName) == "" {
			return domain.ErrInvalidHolders
		}
	}
	return nil
}

func validateContact(gatewayName string, contact domain.CheckoutContact) error {
	if strings.TrimSpace(contact.FullName) == "" || strings.TrimSpace(contact.Email) == "" {
		return domain.ErrInvalidContact
	}
	if gatewayName == gatewaydomain.GatewayMpesa && strings.TrimSpace(contact.Phone) == "" {
		return domain.ErrInvalidContact
	}
	return nil
}
