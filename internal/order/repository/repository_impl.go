package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/santuri/tikiti/internal/order/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	if err := db.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	var order domain.Order
	err := db.WithContext(ctx).First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return &order, nil
}

// FindByCorrelationID looks up by either gateway correlation field. The
// M-Pesa field is tried first, matching the unified status endpoint contract.
func (r *repo) FindByCorrelationID(ctx context.Context, db *gorm.DB, correlationID string) (*domain.Order, error) {
	var order domain.Order
	err := db.WithContext(ctx).
		Where("checkout_request_id = ?", correlationID).
		Or("paystack_reference = ?", correlationID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return &order, nil
}

func (r *repo) AttachCorrelation(ctx context.Context, db *gorm.DB, id snowflake.ID, gateway string, correlationID string) (bool, error) {
	column := "checkout_request_id"
	if gateway == "paystack" {
		column = "paystack_reference"
	}
	res := db.WithContext(ctx).Exec(
		fmt.Sprintf(`UPDATE orders
		 SET %s = ?, status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`, column),
		correlationID,
		domain.StatusAwaitingPayment,
		time.Now().UTC(),
		id,
		domain.StatusCreated,
	)
	if res.Error != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Transition performs the compare-and-swap status advance. The WHERE clause
// re-checks the expected status at write time; zero rows affected means a
// concurrent worker got there first, which is reported as false, not an error.
func (r *repo) Transition(ctx context.Context, db *gorm.DB, id snowflake.ID, expected domain.Status, next domain.Status, patch domain.TransitionPatch) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET status = ?, receipt_number = ?, paid_at = ?, payment_channel = ?, failure_reason = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		next,
		patch.ReceiptNumber,
		patch.PaidAt,
		patch.PaymentChannel,
		patch.FailureReason,
		time.Now().UTC(),
		id,
		expected,
	)
	if res.Error != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, res.Error)
	}
	return res.RowsAffected > 0, nil
}
