package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/santuri/tikiti/internal/clock"
	orderdomain "github.com/santuri/tikiti/internal/order/domain"
	"github.com/santuri/tikiti/internal/ticket/domain"
	"github.com/santuri/tikiti/internal/ticket/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T, name string) (*Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Ticket{}))

	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: clock.NewFakeClock(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	}).(*Service)
	return svc, db
}

func paidOrder(id int64) *orderdomain.Order {
	return &orderdomain.Order{
		ID:       snowflake.ID(id),
		Gateway:  "mpesa",
		Status:   orderdomain.StatusPaid,
		Currency: "KES",
		Items: []orderdomain.OrderItem{
			{EventID: "ev-1", TierID: "vip", Quantity: 2, UnitPrice: 1500},
			{EventID: "ev-1", TierID: "regular", Quantity: 3, UnitPrice: 500},
		},
		TicketHolders: []orderdomain.TicketHolder{
			{FullName: "Amina Odhiambo", Email: "amina@example.com"},
			{FullName: "Brian Mwangi", Email: "brian@example.com"},
			{FullName: "Cynthia Njeri", Email: "cynthia@example.com"},
		},
		ContactName:  "Amina Odhiambo",
		ContactEmail: "amina@example.com",
		ContactPhone: "254700000001",
	}
}

func TestIssue_CountMatchesQuantities(t *testing.T) {
	svc, _ := newTestService(t, "issue_count")
	order := paidOrder(1001)

	tickets, err := svc.Issue(context.Background(), order)
	require.NoError(t, err)
	assert.Len(t, tickets, 5)
}

func TestIssue_HolderMappingUsesCumulativeIndex(t *testing.T) {
	svc, _ := newTestService(t, "issue_holders")
	order := paidOrder(1002)

	tickets, err := svc.Issue(context.Background(), order)
	require.NoError(t, err)
	require.Len(t, tickets, 5)

	// Seats 0-1 are the VIP item, 2-4 the regular one; holders are consumed
	// across that whole sequence, not per item.
	assert.Equal(t, "Amina Odhiambo", tickets[0].HolderName)
	assert.Equal(t, "vip", tickets[0].TierID)
	assert.Equal(t, "Brian Mwangi", tickets[1].HolderName)
	assert.Equal(t, "vip", tickets[1].TierID)
	assert.Equal(t, "Cynthia Njeri", tickets[2].HolderName)
	assert.Equal(t, "regular", tickets[2].TierID)

	// Seats beyond the holder list fall back to the purchase contact.
	assert.Equal(t, "Amina Odhiambo", tickets[3].HolderName)
	assert.Equal(t, "Amina Odhiambo", tickets[4].HolderName)

	for i, ticket := range tickets {
		assert.Equal(t, i, ticket.Seq)
		assert.Equal(t, "ev-1", ticket.EventID)
		assert.Equal(t, domain.TicketID(order.ID, i), ticket.ID)
	}
}

func TestIssue_Idempotent(t *testing.T) {
	svc, _ := newTestService(t, "issue_idempotent")
	order := paidOrder(1003)

	first, err := svc.Issue(context.Background(), order)
	require.NoError(t, err)

	second, err := svc.Issue(context.Background(), order)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		// QR tokens are minted once; a repeat issue must not rotate them.
		assert.Equal(t, first[i].QRToken, second[i].QRToken)
	}
}

func TestIssue_FillsPartialIssuanceGap(t *testing.T) {
	svc, db := newTestService(t, "issue_gap")
	order := paidOrder(1004)

	first, err := svc.Issue(context.Background(), order)
	require.NoError(t, err)
	require.Len(t, first, 5)

	// Simulate a crash that lost two rows mid-batch.
	require.NoError(t, db.Delete(&domain.Ticket{}, "seq IN ?", []int{1, 3}).Error)

	healed, err := svc.Issue(context.Background(), order)
	require.NoError(t, err)
	require.Len(t, healed, 5)

	for i := range healed {
		assert.Equal(t, domain.TicketID(order.ID, i), healed[i].ID)
	}
	// Untouched rows keep their original tokens.
	assert.Equal(t, first[0].QRToken, healed[0].QRToken)
	assert.Equal(t, first[2].QRToken, healed[2].QRToken)
	assert.Equal(t, first[4].QRToken, healed[4].QRToken)
}

func TestCheckIn_SecondAttemptConflicts(t *testing.T) {
	svc, _ := newTestService(t, "checkin")
	order := paidOrder(1005)

	tickets, err := svc.Issue(context.Background(), order)
	require.NoError(t, err)

	at := time.Date(2026, 3, 15, 19, 30, 0, 0, time.UTC)
	checked, err := svc.CheckIn(context.Background(), tickets[0].ID, at)
	require.NoError(t, err)
	assert.True(t, checked.CheckedIn)
	require.NotNil(t, checked.CheckedInAt)

	_, err = svc.CheckIn(context.Background(), tickets[0].ID, at.Add(time.Minute))
	assert.ErrorIs(t, err, domain.ErrAlreadyCheckedIn)
}
