package reconcile

import (
	"context"
	"errors"

	auditdomain "github.com/santuri/tikiti/internal/audit/domain"
	gatewaydomain "github.com/santuri/tikiti/internal/gateway/domain"
	"github.com/santuri/tikiti/internal/observability/metrics"
	orderdomain "github.com/santuri/tikiti/internal/order/domain"
	ticketdomain "github.com/santuri/tikiti/internal/ticket/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Orders  orderdomain.Repository
	Tickets ticketdomain.Issuer
	Audit   auditdomain.Recorder
	Metrics *metrics.Metrics `optional:"true"`
}

// Engine applies payment confirmations to orders. It is the only writer of
// the awaiting_payment → paid and awaiting_payment → failed transitions, and
// it treats every event as potentially duplicated, late, or concurrent.
type Engine struct {
	db      *gorm.DB
	log     *zap.Logger
	orders  orderdomain.Repository
	tickets ticketdomain.Issuer
	audit   auditdomain.Recorder
	metrics *metrics.Metrics
}

func NewEngine(p Params) *Engine {
	return &Engine{
		db:      p.DB,
		log:     p.Log.Named("reconcile.engine"),
		orders:  p.Orders,
		tickets: p.Tickets,
		audit:   p.Audit,
		metrics: p.Metrics,
	}
}

// Handle processes one confirmation event. It returns an error only when the
// store is unreachable; every business outcome — orphan, duplicate, lost
// race — is resolved internally so transports can acknowledge.
func (e *Engine) Handle(ctx context.Context, ev gatewaydomain.ConfirmationEvent) error {
	log := e.log.With(
		zap.String("gateway", ev.Gateway),
		zap.String("source", string(ev.Source)),
		zap.String("correlation_id", ev.CorrelationID),
		zap.String("status", string(ev.Status)),
	)

	e.metrics.RecordConfirmationEvent(ctx, ev.Gateway, string(ev.Source), string(ev.Status))

	order, err := e.orders.FindByCorrelationID(ctx, e.db, ev.CorrelationID)
	if err != nil {
		if errors.Is(err, orderdomain.ErrNotFound) {
			return e.handleOrphan(ctx, log, ev)
		}
		return err
	}
	log = log.With(zap.String("order_id", order.ID.String()))

	if order.Status.Terminal() {
		// Duplicate or late event. The only work left for a paid order is
		// making sure its tickets exist.
		if order.Status == orderdomain.StatusPaid && ev.Status == gatewaydomain.StatusSuccess {
			e.ensureTickets(ctx, log, order)
		} else {
			log.Info("confirmation for resolved order ignored",
				zap.String("order_status", string(order.Status)),
			)
		}
		return nil
	}

	switch ev.Status {
	case gatewaydomain.StatusSuccess:
		return e.applySuccess(ctx, log, order, ev)
	case gatewaydomain.StatusFailed:
		return e.applyFailure(ctx, log, order, ev)
	default:
		log.Debug("confirmation still pending")
		return nil
	}
}

// handleOrphan records a confirmation that matched no order. The event is
// acknowledged so the gateway stops retrying; the audit trail is the
// follow-up surface.
func (e *Engine) handleOrphan(ctx context.Context, log *zap.Logger, ev gatewaydomain.ConfirmationEvent) error {
	log.Warn("orphan confirmation",
		zap.String("receipt_number", ev.ReceiptNumber),
	)
	e.metrics.RecordOrphanConfirmation(ctx, ev.Gateway)
	e.audit.Record(ctx, auditdomain.ActionOrphanConfirmation, "confirmation", ev.CorrelationID, map[string]interface{}{
		"gateway":        ev.Gateway,
		"source":         string(ev.Source),
		"status":         string(ev.Status),
		"result_code":    ev.ResultCode,
		"result_desc":    ev.ResultDesc,
		"receipt_number": ev.ReceiptNumber,
	})
	return nil
}

func (e *Engine) applySuccess(ctx context.Context, log *zap.Logger, order *orderdomain.Order, ev gatewaydomain.ConfirmationEvent) error {
	won, err := e.orders.Transition(ctx, e.db, order.ID, order.Status, orderdomain.StatusPaid, orderdomain.TransitionPatch{
		ReceiptNumber:  ev.ReceiptNumber,
		PaidAt:         ev.PaidAt,
		PaymentChannel: ev.Channel,
	})
	if err != nil {
		return err
	}
	if !won {
		// Another worker resolved the order between our read and write.
		e.metrics.RecordTransitionConflict(ctx, ev.Gateway)
		current, err := e.orders.FindByID(ctx, e.db, order.ID)
		if err != nil {
			return err
		}
		log.Info("lost transition race",
			zap.String("resolved_status", string(current.Status)),
		)
		if current.Status == orderdomain.StatusPaid {
			e.ensureTickets(ctx, log, current)
		}
		return nil
	}

	log.Info("order paid",
		zap.String("receipt_number", ev.ReceiptNumber),
	)
	e.audit.Record(ctx, auditdomain.ActionOrderPaid, "order", order.ID.String(), map[string]interface{}{
		"gateway":        ev.Gateway,
		"source":         string(ev.Source),
		"receipt_number": ev.ReceiptNumber,
		"channel":        ev.Channel,
	})

	order.Status = orderdomain.StatusPaid
	e.ensureTickets(ctx, log, order)
	return nil
}

func (e *Engine) applyFailure(ctx context.Context, log *zap.Logger, order *orderdomain.Order, ev gatewaydomain.ConfirmationEvent) error {
	reason := ev.ResultDesc
	if reason == "" {
		reason = "payment failed"
	}
	won, err := e.orders.Transition(ctx, e.db, order.ID, order.Status, orderdomain.StatusFailed, orderdomain.TransitionPatch{
		FailureReason: reason,
	})
	if err != nil {
		return err
	}
	if !won {
		e.metrics.RecordTransitionConflict(ctx, ev.Gateway)
		log.Info("failure confirmation lost transition race")
		return nil
	}
	log.Info("order failed", zap.String("reason", reason))
	e.audit.Record(ctx, auditdomain.ActionOrderFailed, "order", order.ID.String(), map[string]interface{}{
		"gateway":     ev.Gateway,
		"source":      string(ev.Source),
		"result_code": ev.ResultCode,
		"result_desc": reason,
	})
	return nil
}

// ensureTickets runs the idempotent issuer for a paid order. Issuance is
// deliberately decoupled from the status write: if it fails here, the next
// duplicate confirmation or status poll retries it.
func (e *Engine) ensureTickets(ctx context.Context, log *zap.Logger, order *orderdomain.Order) {
	if _, err := e.tickets.Issue(ctx, order); err != nil {
		log.Error("ticket issuance incomplete", zap.Error(err))
	}
}
