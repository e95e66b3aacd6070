package service

import (
	"context"
	"time"

	"bingoledger/internal/config"
	"bingoledger/internal/model"
	"bingoledger/internal/repository"
	appErr "bingoledger/pkg/errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

// QueryService serves the read-only listings. It never writes.
type QueryService struct {
	gameRepo  *repository.GameRepository
	salesRepo *repository.SalesRepository
	cfg       *config.Config
	log       *zap.Logger
}

func NewQueryService(db *gorm.DB, cfg *config.Config, log *zap.Logger) *QueryService {
	return &QueryService{
		gameRepo:  repository.NewGameRepository(db),
		salesRepo: repository.NewSalesRepository(db),
		cfg:       cfg,
		log:       log.Named("query"),
	}
}

type GameQuery struct {
	UserID int64
	Status string
	Limit  int
}

func (s *QueryService) ListGames(ctx context.Context, q GameQuery) ([]*model.Game, error) {
	if q.UserID < 0 {
		return nil, appErr.InvalidInput("user_id must not be negative")
	}
	switch q.Status {
	case "", model.GameStatusActive, model.GameStatusCompleted, model.GameStatusCancelled:
	default:
		return nil, appErr.InvalidInput("unknown status %q", q.Status)
	}

	games, err := s.gameRepo.List(ctx, repository.GameFilter{
		UserID: q.UserID,
		Status: q.Status,
		Limit:  s.limit(q.Limit),
	})
	if err != nil {
		s.log.Error("list games", zap.Error(err))
		return nil, appErr.Store(err)
	}
	return games, nil
}

// SalesQuery dates are calendar days (YYYY-MM-DD) in server local time;
// both ends are inclusive.
type SalesQuery struct {
	UserID   int64
	FromDate string
	ToDate   string
	Limit    int
}

func (s *QueryService) ListSales(ctx context.Context, q SalesQuery) ([]*repository.SalesEntry, error) {
	filter, err := s.salesFilter(q)
	if err != nil {
		return nil, err
	}

	entries, err := s.salesRepo.List(ctx, filter)
	if err != nil {
		s.log.Error("list sales", zap.Error(err))
		return nil, appErr.Store(err)
	}
	return entries, nil
}

func (s *QueryService) SalesStats(ctx context.Context, q SalesQuery) (*repository.SalesStats, error) {
	filter, err := s.salesFilter(q)
	if err != nil {
		return nil, err
	}
	filter.Limit = 0

	stats, err := s.salesRepo.Stats(ctx, filter)
	if err != nil {
		s.log.Error("sales stats", zap.Error(err))
		return nil, appErr.Store(err)
	}
	return stats, nil
}

func (s *QueryService) salesFilter(q SalesQuery) (repository.SalesFilter, error) {
	filter := repository.SalesFilter{UserID: q.UserID, Limit: s.limit(q.Limit)}
	if q.UserID < 0 {
		return filter, appErr.InvalidInput("user_id must not be negative")
	}

	if q.FromDate != "" {
		from, err := time.ParseInLocation(dateLayout, q.FromDate, time.Local)
		if err != nil {
			return filter, appErr.InvalidInput("from_date must be YYYY-MM-DD")
		}
		filter.From = &from
	}
	if q.ToDate != "" {
		to, err := time.ParseInLocation(dateLayout, q.ToDate, time.Local)
		if err != nil {
			return filter, appErr.InvalidInput("to_date must be YYYY-MM-DD")
		}
		end := to.AddDate(0, 0, 1)
		filter.To = &end
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return filter, appErr.InvalidInput("from_date must not be after to_date")
	}
	return filter, nil
}

func (s *QueryService) limit(requested int) int {
	ceiling := s.cfg.Business.MaxListLimit
	if requested <= 0 || (ceiling > 0 && requested > ceiling) {
		return ceiling
	}
	return requested
}
