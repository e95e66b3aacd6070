package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bingoledger/internal/config"
	"bingoledger/internal/infrastructure/lock"
	"bingoledger/internal/model"
	"bingoledger/internal/repository"
	appErr "bingoledger/pkg/errors"
	"bingoledger/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	settleLockRetryInterval = 100 * time.Millisecond
	settleLockMaxRetries    = 50
)

var (
	hundred = decimal.NewFromInt(100)
	// smallest value a decimal(20,2) column cannot hold
	maxAmount = decimal.New(1, 18)
)

// validateAmount accepts what the money columns store exactly: non-negative,
// at most two decimal places, below 10^18.
func validateAmount(field string, d decimal.Decimal) error {
	switch {
	case d.IsNegative():
		return appErr.InvalidInput("%s must not be negative", field)
	case !d.Equal(d.Truncate(2)):
		return appErr.InvalidInput("%s must have at most two decimal places", field)
	case d.GreaterThanOrEqual(maxAmount):
		return appErr.InvalidInput("%s is out of range", field)
	}
	return nil
}

type SettlementService struct {
	store       *repository.Store
	redisClient *redis.Client
	cfg         *config.Config
	log         *zap.Logger
	gameRepo    *repository.GameRepository
	userRepo    *repository.UserRepository
	salesRepo   *repository.SalesRepository
	outboxRepo  *repository.OutboxRepository
}

// NewSettlementService wires the settlement engine. redisClient may be nil,
// in which case only the database row lock serialises settlements.
func NewSettlementService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, log *zap.Logger) *SettlementService {
	return &SettlementService{
		store:       repository.NewStore(db, cfg.Database.Isolation),
		redisClient: redisClient,
		cfg:         cfg,
		log:         log.Named("settlement"),
		gameRepo:    repository.NewGameRepository(db),
		userRepo:    repository.NewUserRepository(db),
		salesRepo:   repository.NewSalesRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
	}
}

type SettleRequest struct {
	GameID             int64           `json:"game_id"`
	OwnerID            int64           `json:"user_id"`
	WinnerCard         int             `json:"winner_card"`
	WinnerPattern      string          `json:"winner_pattern"`
	WinnerPrize        decimal.Decimal `json:"winner_prize"`
	CalledNumbers      []int           `json:"called_numbers"`
	TotalPool          decimal.Decimal `json:"total_pool"`
	Commission         decimal.Decimal `json:"commission"`
	UserCommission     decimal.Decimal `json:"user_commission"`
	UserCommissionRate decimal.Decimal `json:"user_commission_rate"`
}

// Validate checks the request shape only; it never touches the store.
func (r *SettleRequest) Validate() error {
	switch {
	case r.GameID <= 0:
		return appErr.InvalidInput("game_id must be positive")
	case r.OwnerID <= 0:
		return appErr.InvalidInput("user_id must be positive")
	case r.WinnerCard <= 0:
		return appErr.InvalidInput("winner_card must be positive")
	case strings.TrimSpace(r.WinnerPattern) == "":
		return appErr.InvalidInput("winner_pattern is required")
	case r.CalledNumbers == nil:
		return appErr.InvalidInput("called_numbers is required")
	case r.UserCommissionRate.GreaterThan(hundred):
		return appErr.InvalidInput("user_commission_rate must be within 0-100")
	}
	for _, a := range []struct {
		field string
		value decimal.Decimal
	}{
		{"winner_prize", r.WinnerPrize},
		{"total_pool", r.TotalPool},
		{"commission", r.Commission},
		{"user_commission", r.UserCommission},
		{"user_commission_rate", r.UserCommissionRate},
	} {
		if err := validateAmount(a.field, a.value); err != nil {
			return err
		}
	}
	for i, n := range r.CalledNumbers {
		if n <= 0 {
			return appErr.InvalidInput("called_numbers[%d] must be positive", i)
		}
	}
	return nil
}

type SettleResult struct {
	GameID         int64           `json:"game_id"`
	SettlementNo   string          `json:"settlement_no"`
	Status         string          `json:"status"`
	UserCommission decimal.Decimal `json:"user_commission"`
}

// Settle completes an active game and books its sale in one transaction:
// the game row becomes completed, the host's commission_earned grows by
// UserCommission, one sales row and one outbox event are inserted. Either
// all of that commits or none of it does. A game settles at most once; later
// attempts fail with an invalid-state error and change nothing.
func (s *SettlementService) Settle(ctx context.Context, req *SettleRequest) (*SettleResult, error) {
	if err := req.Validate(); err != nil {
		s.log.Info("settle rejected", zap.Int64("game_id", req.GameID), zap.Error(err))
		return nil, err
	}

	release, err := s.acquireLock(ctx, req.GameID)
	if err != nil {
		return nil, err
	}
	defer release()

	settlementNo := idgen.GenerateSettlementNo()

	err = s.store.WithTx(ctx, func(tx *gorm.DB) error {
		game, err := s.gameRepo.FindForUpdate(ctx, tx, req.GameID, req.OwnerID)
		if err != nil {
			if errors.Is(err, repository.ErrGameNotFound) {
				return appErr.ErrGameNotFound
			}
			return fmt.Errorf("lock game: %w", err)
		}

		if !game.IsActive() {
			return appErr.ErrGameNotActive
		}

		err = s.gameRepo.TransitionToCompleted(ctx, tx, repository.CompletedGame{
			GameID:        game.ID,
			WinnerCard:    req.WinnerCard,
			WinnerPattern: req.WinnerPattern,
			WinnerPrize:   req.WinnerPrize,
			CalledNumbers: req.CalledNumbers,
		})
		if err != nil {
			return fmt.Errorf("complete game: %w", err)
		}

		if err := s.userRepo.CreditCommission(ctx, tx, req.OwnerID, req.UserCommission); err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return appErr.ErrUserNotFound
			}
			return fmt.Errorf("credit commission: %w", err)
		}

		record := &model.SalesRecord{
			SettlementNo:       settlementNo,
			GameID:             game.ID,
			UserID:             req.OwnerID,
			TotalPool:          req.TotalPool,
			PrizeAmount:        req.WinnerPrize,
			Commission:         req.Commission,
			UserCommission:     req.UserCommission,
			UserCommissionRate: req.UserCommissionRate,
		}
		if err := s.salesRepo.Create(ctx, tx, record); err != nil {
			return fmt.Errorf("insert sales record: %w", err)
		}

		msg, err := s.settledMessage(req, settlementNo)
		if err != nil {
			return err
		}
		if err := s.outboxRepo.Create(ctx, tx, msg); err != nil {
			return fmt.Errorf("insert outbox message: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, s.classify(req, err)
	}

	s.log.Info("game settled",
		zap.Int64("game_id", req.GameID),
		zap.Int64("user_id", req.OwnerID),
		zap.String("settlement_no", settlementNo),
		zap.String("user_commission", req.UserCommission.String()),
	)

	return &SettleResult{
		GameID:         req.GameID,
		SettlementNo:   settlementNo,
		Status:         model.GameStatusCompleted,
		UserCommission: req.UserCommission,
	}, nil
}

// classify keeps expected outcomes as they are and turns everything else
// into a generic store error after logging the cause.
func (s *SettlementService) classify(req *SettleRequest, err error) error {
	fields := []zap.Field{zap.Int64("game_id", req.GameID), zap.Int64("user_id", req.OwnerID)}

	switch appErr.KindOf(err) {
	case appErr.KindNotFound, appErr.KindInvalidState, appErr.KindInvalidInput:
		s.log.Info("settle refused", append(fields, zap.Error(err))...)
		return err
	}

	s.log.Error("settle failed, transaction rolled back", append(fields, zap.Error(err))...)
	return appErr.Store(err)
}

func (s *SettlementService) settledMessage(req *SettleRequest, settlementNo string) (*model.OutboxMessage, error) {
	payload, err := json.Marshal(model.GameSettledEvent{
		GameID:             req.GameID,
		UserID:             req.OwnerID,
		SettlementNo:       settlementNo,
		WinnerCard:         req.WinnerCard,
		WinnerPattern:      req.WinnerPattern,
		WinnerPrize:        req.WinnerPrize,
		TotalPool:          req.TotalPool,
		Commission:         req.Commission,
		UserCommission:     req.UserCommission,
		UserCommissionRate: req.UserCommissionRate,
		SettledAt:          time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode settled event: %w", err)
	}

	return &model.OutboxMessage{
		MessageKey: strconv.FormatInt(req.GameID, 10),
		Topic:      s.cfg.Kafka.Topic.GameSettled,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	}, nil
}

// acquireLock takes the per-game Redis mutex when Redis is configured. An
// unreachable Redis is logged and skipped; contention past the retry budget
// is reported to the caller as busy.
func (s *SettlementService) acquireLock(ctx context.Context, gameID int64) (func(), error) {
	noop := func() {}
	if s.redisClient == nil {
		return noop, nil
	}

	l := lock.NewSettleLock(s.redisClient, gameID, uuid.NewString(), s.cfg.Business.SettleLockTTL())
	err := l.Lock(ctx, settleLockRetryInterval, settleLockMaxRetries)
	switch {
	case err == nil:
		return func() {
			if err := l.Unlock(context.Background()); err != nil {
				s.log.Warn("release settle lock", zap.String("key", l.Key()), zap.Error(err))
			}
		}, nil
	case errors.Is(err, lock.ErrLockFailed):
		s.log.Warn("settle lock contended", zap.Int64("game_id", gameID))
		return nil, appErr.ErrSettlementBusy
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, appErr.Store(err)
	default:
		s.log.Warn("settle lock unavailable, relying on row lock", zap.Int64("game_id", gameID), zap.Error(err))
		return noop, nil
	}
}
