package repository

import (
	"context"
	"errors"
	"time"

	"bingoledger/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrSalesNotFound = errors.New("sales record not found")

type SalesRepository struct {
	db *gorm.DB
}

func NewSalesRepository(db *gorm.DB) *SalesRepository {
	return &SalesRepository{db: db}
}

// Create appends a ledger row. A second row for the same game violates the
// unique game_id index and fails.
func (r *SalesRepository) Create(ctx context.Context, tx *gorm.DB, record *model.SalesRecord) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(record).Error
}

func (r *SalesRepository) GetByGameID(ctx context.Context, gameID int64) (*model.SalesRecord, error) {
	var record model.SalesRecord
	err := r.db.WithContext(ctx).Where("game_id = ?", gameID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSalesNotFound
		}
		return nil, err
	}
	return &record, nil
}

// SalesFilter bounds are inclusive on From and exclusive on To.
type SalesFilter struct {
	UserID int64
	From   *time.Time
	To     *time.Time
	Limit  int
}

func (r *SalesRepository) scoped(ctx context.Context, filter SalesFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&model.SalesRecord{})
	if filter.UserID > 0 {
		query = query.Where("sales.user_id = ?", filter.UserID)
	}
	if filter.From != nil {
		query = query.Where("sales.created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("sales.created_at < ?", *filter.To)
	}
	return query
}

// SalesEntry is a ledger row joined with the host's display name.
type SalesEntry struct {
	model.SalesRecord
	UserName string `json:"user_name"`
}

func (r *SalesRepository) List(ctx context.Context, filter SalesFilter) ([]*SalesEntry, error) {
	query := r.scoped(ctx, filter).
		Select("sales.*, users.name AS user_name").
		Joins("LEFT JOIN users ON users.id = sales.user_id").
		Order("sales.created_at DESC").
		Order("sales.id DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var entries []*SalesEntry
	err := query.Scan(&entries).Error
	return entries, err
}

type SalesStats struct {
	TotalGames            int64           `json:"total_games"`
	TotalPool             decimal.Decimal `json:"total_pool"`
	TotalPrize            decimal.Decimal `json:"total_prize"`
	TotalCommission       decimal.Decimal `json:"total_commission"`
	TotalUserCommission   decimal.Decimal `json:"total_user_commission"`
	AvgUserCommissionRate decimal.Decimal `json:"avg_user_commission_rate"`
}

func (r *SalesRepository) Stats(ctx context.Context, filter SalesFilter) (*SalesStats, error) {
	var stats SalesStats
	err := r.scoped(ctx, filter).
		Select(`COUNT(*) AS total_games,
			COALESCE(SUM(sales.total_pool), 0) AS total_pool,
			COALESCE(SUM(sales.prize_amount), 0) AS total_prize,
			COALESCE(SUM(sales.commission), 0) AS total_commission,
			COALESCE(SUM(sales.user_commission), 0) AS total_user_commission,
			COALESCE(AVG(sales.user_commission_rate), 0) AS avg_user_commission_rate`).
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	stats.AvgUserCommissionRate = stats.AvgUserCommissionRate.Round(2)
	return &stats, nil
}
