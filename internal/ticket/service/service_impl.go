package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/santuri/tikiti/internal/clock"
	"github.com/santuri/tikiti/internal/observability/metrics"
	orderdomain "github.com/santuri/tikiti/internal/order/domain"
	"github.com/santuri/tikiti/internal/ticket/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Repo    domain.Repository
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	repo    domain.Repository
	metrics *metrics.Metrics
}

func NewService(p Params) domain.Issuer {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("ticket.service"),
		clock:   p.Clock,
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

// Issue materializes the order's tickets. The ticket set is derived entirely
// from the order, with deterministic IDs, so a repeat call after a crash or a
// duplicate confirmation inserts only the rows that are still missing.
func (s *Service) Issue(ctx context.Context, order *orderdomain.Order) ([]domain.Ticket, error) {
	tickets := buildTickets(order, s.clock.Now())

	inserted, err := s.repo.InsertIgnore(ctx, s.db, tickets)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTicketsIssued(ctx, int(inserted))
	if inserted > 0 && inserted < int64(len(tickets)) {
		s.log.Info("filled ticket issuance gap",
			zap.String("order_id", order.ID.String()),
			zap.Int64("inserted", inserted),
			zap.Int("expected", len(tickets)),
		)
	}

	// Read back so callers see the stored rows, including QR tokens minted
	// by an earlier attempt.
	issued, err := s.repo.ListByOrder(ctx, s.db, order.ID)
	if err != nil {
		return nil, err
	}
	if len(issued) != len(tickets) {
		return issued, domain.ErrPartialIssuance
	}
	return issued, nil
}

// buildTickets expands the order's line items into one ticket per admission.
// The sequence index runs cumulatively across items: an order with 2+3 seats
// numbers them 0..4, and the holder list is consumed in that same order.
func buildTickets(order *orderdomain.Order, now time.Time) []domain.Ticket {
	tickets := make([]domain.Ticket, 0, order.TicketCount())
	seq := 0
	for _, item := range order.Items {
		for i := 0; i < item.Quantity; i++ {
			name, email := holderAt(order, seq)
			tickets = append(tickets, domain.Ticket{
				ID:          domain.TicketID(order.ID, seq),
				OrderID:     order.ID,
				Seq:         seq,
				EventID:     item.EventID,
				TierID:      item.TierID,
				VariantName: item.VariantName,
				HolderName:  name,
				HolderEmail: email,
				Price:       item.UnitPrice,
				QRToken:     uuid.NewString(),
				CreatedAt:   now,
			})
			seq++
		}
	}
	return tickets
}

// holderAt picks the named holder for a seat, falling back to the purchase
// contact when fewer holders than seats were supplied.
func holderAt(order *orderdomain.Order, seq int) (name, email string) {
	if seq < len(order.TicketHolders) {
		h := order.TicketHolders[seq]
		if h.FullName != "" {
			return h.FullName, h.Email
		}
	}
	return order.ContactName, order.ContactEmail
}

func (s *Service) ListByOrder(ctx context.Context, orderID snowflake.ID) ([]domain.Ticket, error) {
	return s.repo.ListByOrder(ctx, s.db, orderID)
}

func (s *Service) FindByID(ctx context.Context, id string) (*domain.Ticket, error) {
	return s.repo.FindByID(ctx, s.db, id)
}

func (s *Service) FindByQRToken(ctx context.Context, token string) (*domain.Ticket, error) {
	return s.repo.FindByQRToken(ctx, s.db, token)
}

// CheckIn marks a ticket as used exactly once.
func (s *Service) CheckIn(ctx context.Context, id string, at time.Time) (*domain.Ticket, error) {
	ok, err := s.repo.MarkCheckedIn(ctx, s.db, id, at)
	if err != nil {
		return nil, err
	}
	if !ok {
		ticket, err := s.repo.FindByID(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		return ticket, domain.ErrAlreadyCheckedIn
	}
	return s.repo.FindByID(ctx, s.db, id)
}
