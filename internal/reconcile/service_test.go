package reconcile

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/santuri/tikiti/internal/audit/domain"
	auditservice "github.com/santuri/tikiti/internal/audit/service"
	"github.com/santuri/tikiti/internal/clock"
	gatewaydomain "github.com/santuri/tikiti/internal/gateway/domain"
	orderdomain "github.com/santuri/tikiti/internal/order/domain"
	orderrepository "github.com/santuri/tikiti/internal/order/repository"
	ticketdomain "github.com/santuri/tikiti/internal/ticket/domain"
	ticketrepository "github.com/santuri/tikiti/internal/ticket/repository"
	ticketservice "github.com/santuri/tikiti/internal/ticket/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type engineFixture struct {
	engine *Engine
	db     *gorm.DB
	orders orderdomain.Repository
}

func newEngineFixture(t *testing.T, name string) *engineFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&orderdomain.Order{}, &ticketdomain.Ticket{}, &auditdomain.Entry{}))

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	fakeClock := clock.NewFakeClock(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	orders := orderrepository.Provide()
	tickets := ticketservice.NewService(ticketservice.Params{
		DB:    db,
		Log:   log,
		Clock: fakeClock,
		Repo:  ticketrepository.Provide(),
	})
	audit := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: fakeClock,
	})

	engine := NewEngine(Params{
		DB:      db,
		Log:     log,
		Orders:  orders,
		Tickets: tickets,
		Audit:   audit,
	})

	return &engineFixture{engine: engine, db: db, orders: orders}
}

func (f *engineFixture) seedAwaitingOrder(t *testing.T, id int64, correlationID string) *orderdomain.Order {
	t.Helper()
	order := &orderdomain.Order{
		ID:       snowflake.ID(id),
		Gateway:  "mpesa",
		Status:   orderdomain.StatusCreated,
		Amount:   2000,
		Currency: "KES",
		Items: []orderdomain.OrderItem{
			{EventID: "ev-1", TierID: "vip", Quantity: 2, UnitPrice: 1000},
		},
		ContactName:  "Amina Odhiambo",
		ContactEmail: "amina@example.com",
	}
	require.NoError(t, f.orders.Insert(context.Background(), f.db, order))
	ok, err := f.orders.AttachCorrelation(context.Background(), f.db, order.ID, "mpesa", correlationID)
	require.NoError(t, err)
	require.True(t, ok)
	return order
}

func successEvent(correlationID string) gatewaydomain.ConfirmationEvent {
	paidAt := time.Date(2026, 3, 14, 12, 3, 0, 0, time.UTC)
	return gatewaydomain.ConfirmationEvent{
		Source:        gatewaydomain.SourceWebhook,
		Gateway:       gatewaydomain.GatewayMpesa,
		CorrelationID: correlationID,
		Status:        gatewaydomain.StatusSuccess,
		ResultCode:    "0",
		ResultDesc:    "The service request is processed successfully.",
		ReceiptNumber: "SBL12XYZ",
		PaidAt:        &paidAt,
		Channel:       "mpesa",
	}
}

func TestHandle_SuccessPaysOrderAndIssuesTickets(t *testing.T) {
	f := newEngineFixture(t, "engine_success")
	order := f.seedAwaitingOrder(t, 3001, "ws_CO_3001")

	require.NoError(t, f.engine.Handle(context.Background(), successEvent("ws_CO_3001")))

	stored, err := f.orders.FindByID(context.Background(), f.db, order.ID)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusPaid, stored.Status)
	assert.Equal(t, "SBL12XYZ", stored.ReceiptNumber)
	require.NotNil(t, stored.PaidAt)

	var count int64
	require.NoError(t, f.db.Model(&ticketdomain.Ticket{}).Where("order_id = ?", order.ID).Count(&count).Error)
	assert.EqualValues(t, 2, count)

	var entries []auditdomain.Entry
	require.NoError(t, f.db.Where("action = ?", auditdomain.ActionOrderPaid).Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, order.ID.String(), entries[0].TargetID)
	assert.Contains(t, string(entries[0].Metadata), "SBL12XYZ")
}

func TestHandle_DuplicateConfirmationIsIdempotent(t *testing.T) {
	f := newEngineFixture(t, "engine_duplicate")
	order := f.seedAwaitingOrder(t, 3002, "ws_CO_3002")

	ev := successEvent("ws_CO_3002")
	require.NoError(t, f.engine.Handle(context.Background(), ev))
	require.NoError(t, f.engine.Handle(context.Background(), ev))
	require.NoError(t, f.engine.Handle(context.Background(), ev))

	var count int64
	require.NoError(t, f.db.Model(&ticketdomain.Ticket{}).Where("order_id = ?", order.ID).Count(&count).Error)
	assert.EqualValues(t, 2, count)

	stored, err := f.orders.FindByID(context.Background(), f.db, order.ID)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusPaid, stored.Status)
}

func TestHandle_FailureRecordsReason(t *testing.T) {
	f := newEngineFixture(t, "engine_failure")
	order := f.seedAwaitingOrder(t, 3003, "ws_CO_3003")

	ev := gatewaydomain.ConfirmationEvent{
		Source:        gatewaydomain.SourceWebhook,
		Gateway:       gatewaydomain.GatewayMpesa,
		CorrelationID: "ws_CO_3003",
		Status:        gatewaydomain.StatusFailed,
		ResultCode:    "1032",
		ResultDesc:    "Request cancelled by user",
	}
	require.NoError(t, f.engine.Handle(context.Background(), ev))

	stored, err := f.orders.FindByID(context.Background(), f.db, order.ID)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusFailed, stored.Status)
	assert.Equal(t, "Request cancelled by user", stored.FailureReason)

	var count int64
	require.NoError(t, f.db.Model(&ticketdomain.Ticket{}).Where("order_id = ?", order.ID).Count(&count).Error)
	assert.Zero(t, count)

	// The gateway's description survives in the audit trail.
	var entries []auditdomain.Entry
	require.NoError(t, f.db.Where("action = ?", auditdomain.ActionOrderFailed).Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, order.ID.String(), entries[0].TargetID)
	assert.Contains(t, string(entries[0].Metadata), "Request cancelled by user")
}

func TestHandle_OrphanConfirmationIsAuditedAndAcked(t *testing.T) {
	f := newEngineFixture(t, "engine_orphan")

	require.NoError(t, f.engine.Handle(context.Background(), successEvent("ws_CO_unknown")))

	var entries []auditdomain.Entry
	require.NoError(t, f.db.Where("action = ?", auditdomain.ActionOrphanConfirmation).Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, "ws_CO_unknown", entries[0].TargetID)
}

func TestHandle_SuccessAfterCancelLeavesOrderCancelled(t *testing.T) {
	f := newEngineFixture(t, "engine_cancelled")
	order := f.seedAwaitingOrder(t, 3004, "ws_CO_3004")

	won, err := f.orders.Transition(context.Background(), f.db, order.ID, orderdomain.StatusAwaitingPayment, orderdomain.StatusCancelled, orderdomain.TransitionPatch{})
	require.NoError(t, err)
	require.True(t, won)

	require.NoError(t, f.engine.Handle(context.Background(), successEvent("ws_CO_3004")))

	stored, err := f.orders.FindByID(context.Background(), f.db, order.ID)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusCancelled, stored.Status)

	var count int64
	require.NoError(t, f.db.Model(&ticketdomain.Ticket{}).Where("order_id = ?", order.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestHandle_ConcurrentSuccessEventsSettleOnce(t *testing.T) {
	f := newEngineFixture(t, "engine_concurrent")
	order := f.seedAwaitingOrder(t, 3006, "ws_CO_3006")

	// One connection keeps the in-memory store from answering busy while the
	// two handlers race through the engine.
	sqlDB, err := f.db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	ev := successEvent("ws_CO_3006")
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.engine.Handle(context.Background(), ev)
		}(i)
	}
	wg.Wait()

	for _, handleErr := range errs {
		require.NoError(t, handleErr)
	}

	stored, err := f.orders.FindByID(context.Background(), f.db, order.ID)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusPaid, stored.Status)
	assert.Equal(t, "SBL12XYZ", stored.ReceiptNumber)

	var count int64
	require.NoError(t, f.db.Model(&ticketdomain.Ticket{}).Where("order_id = ?", order.ID).Count(&count).Error)
	assert.EqualValues(t, 2, count)

	// Exactly one of the two won the transition.
	var entries []auditdomain.Entry
	require.NoError(t, f.db.Where("action = ? AND target_id = ?", auditdomain.ActionOrderPaid, order.ID.String()).Find(&entries).Error)
	assert.Len(t, entries, 1)
}

func TestHandle_PaidOrderWithoutTicketsIsHealed(t *testing.T) {
	f := newEngineFixture(t, "engine_heal")
	order := f.seedAwaitingOrder(t, 3005, "ws_CO_3005")

	// A competing worker lands the paid transition first, but crashes before
	// issuing tickets.
	paidAt := time.Date(2026, 3, 14, 12, 4, 0, 0, time.UTC)
	won, err := f.orders.Transition(context.Background(), f.db, order.ID, orderdomain.StatusAwaitingPayment, orderdomain.StatusPaid, orderdomain.TransitionPatch{
		ReceiptNumber:  "SBL12XYZ",
		PaidAt:         &paidAt,
		PaymentChannel: "mpesa",
	})
	require.NoError(t, err)
	require.True(t, won)

	// Our event now loses the CAS yet must leave the system fully settled.
	require.NoError(t, f.engine.Handle(context.Background(), successEvent("ws_CO_3005")))

	var count int64
	require.NoError(t, f.db.Model(&ticketdomain.Ticket{}).Where("order_id = ?", order.ID).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}
