package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/santuri/tikiti/internal/ticket/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// InsertIgnore writes the batch with ON CONFLICT DO NOTHING on the primary
// key. Returns how many rows were actually inserted.
func (r *repo) InsertIgnore(ctx context.Context, db *gorm.DB, tickets []domain.Ticket) (int64, error) {
	if len(tickets) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(&tickets)
	if res.Error != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, res.Error)
	}
	return res.RowsAffected, nil
}

func (r *repo) ListByOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]domain.Ticket, error) {
	var tickets []domain.Ticket
	err := db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("seq ASC").
		Find(&tickets).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return tickets, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id string) (*domain.Ticket, error) {
	var ticket domain.Ticket
	err := db.WithContext(ctx).First(&ticket, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return &ticket, nil
}

func (r *repo) FindByQRToken(ctx context.Context, db *gorm.DB, token string) (*domain.Ticket, error) {
	var ticket domain.Ticket
	err := db.WithContext(ctx).First(&ticket, "qr_token = ?", token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return &ticket, nil
}

func (r *repo) MarkCheckedIn(ctx context.Context, db *gorm.DB, id string, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE tickets SET checked_in = ?, checked_in_at = ? WHERE id = ? AND checked_in = ?`,
		true, at, id, false,
	)
	if res.Error != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, res.Error)
	}
	return res.RowsAffected > 0, nil
}
