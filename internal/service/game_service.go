package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"bingoledger/internal/config"
	"bingoledger/internal/model"
	"bingoledger/internal/repository"
	appErr "bingoledger/pkg/errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type GameService struct {
	store    *repository.Store
	gameRepo *repository.GameRepository
	userRepo *repository.UserRepository
	cfg      *config.Config
	log      *zap.Logger
}

func NewGameService(db *gorm.DB, cfg *config.Config, log *zap.Logger) *GameService {
	return &GameService{
		store:    repository.NewStore(db, cfg.Database.Isolation),
		gameRepo: repository.NewGameRepository(db),
		userRepo: repository.NewUserRepository(db),
		cfg:      cfg,
		log:      log.Named("game"),
	}
}

type CreateGameRequest struct {
	UserID              int64           `json:"user_id"`
	SelectedCards       []int           `json:"selected_cards"`
	PatternRequirements json.RawMessage `json:"pattern_requirements"`
	WinningStrategy     string          `json:"winning_strategy"`
	CustomStrategy      string          `json:"custom_strategy"`
	BetAmount           decimal.Decimal `json:"bet_amount"`
	TotalPool           decimal.Decimal `json:"total_pool"`
	PrizePool           decimal.Decimal `json:"prize_pool"`
	Commission          decimal.Decimal `json:"commission"`
	UserCommission      decimal.Decimal `json:"user_commission"`
}

func (r *CreateGameRequest) Validate() error {
	switch {
	case r.UserID <= 0:
		return appErr.InvalidInput("user_id must be positive")
	case len(r.SelectedCards) == 0:
		return appErr.InvalidInput("selected_cards must not be empty")
	case len(r.PatternRequirements) == 0 || !json.Valid(r.PatternRequirements):
		return appErr.InvalidInput("pattern_requirements must be valid JSON")
	case strings.TrimSpace(r.WinningStrategy) == "":
		return appErr.InvalidInput("winning_strategy is required")
	case r.WinningStrategy == model.StrategyCustom && strings.TrimSpace(r.CustomStrategy) == "":
		return appErr.InvalidInput("custom_strategy is required for the custom strategy")
	case !r.BetAmount.IsPositive():
		return appErr.InvalidInput("bet_amount must be positive")
	case !r.TotalPool.IsPositive():
		return appErr.InvalidInput("total_pool must be positive")
	}
	for _, a := range []struct {
		field string
		value decimal.Decimal
	}{
		{"bet_amount", r.BetAmount},
		{"total_pool", r.TotalPool},
		{"prize_pool", r.PrizePool},
		{"commission", r.Commission},
		{"user_commission", r.UserCommission},
	} {
		if err := validateAmount(a.field, a.value); err != nil {
			return err
		}
	}
	for i, card := range r.SelectedCards {
		if card <= 0 {
			return appErr.InvalidInput("selected_cards[%d] must be positive", i)
		}
	}
	return nil
}

// Create opens a new active game for an existing host.
func (s *GameService) Create(ctx context.Context, req *CreateGameRequest) (*model.Game, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.userRepo.GetByID(ctx, req.UserID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, appErr.ErrUserNotFound
		}
		s.log.Error("load host", zap.Int64("user_id", req.UserID), zap.Error(err))
		return nil, appErr.Store(err)
	}

	game := &model.Game{
		UserID:              req.UserID,
		SelectedCards:       datatypes.JSONSlice[int](req.SelectedCards),
		PatternRequirements: datatypes.JSON(req.PatternRequirements),
		WinningStrategy:     req.WinningStrategy,
		CustomStrategy:      req.CustomStrategy,
		BetAmount:           req.BetAmount,
		TotalPool:           req.TotalPool,
		PrizePool:           req.PrizePool,
		Commission:          req.Commission,
		UserCommission:      req.UserCommission,
		Status:              model.GameStatusActive,
		CalledNumbers:       datatypes.JSONSlice[int]{},
	}

	if err := s.gameRepo.Create(ctx, nil, game); err != nil {
		s.log.Error("create game", zap.Int64("user_id", req.UserID), zap.Error(err))
		return nil, appErr.Store(err)
	}

	s.log.Info("game created", zap.Int64("game_id", game.ID), zap.Int64("user_id", game.UserID))
	return game, nil
}

// UpdateGameRequest is a partial update; nil fields are left alone. Only the
// called numbers of an active game and cancellation are allowed here,
// completion goes through settlement.
type UpdateGameRequest struct {
	GameID        int64   `json:"game_id"`
	Status        *string `json:"status"`
	CalledNumbers *[]int  `json:"called_numbers"`
}

func (r *UpdateGameRequest) Validate() error {
	if r.GameID <= 0 {
		return appErr.InvalidInput("game_id must be positive")
	}
	if r.Status == nil && r.CalledNumbers == nil {
		return appErr.InvalidInput("no fields to update")
	}
	if r.Status != nil {
		switch *r.Status {
		case model.GameStatusCancelled:
		case model.GameStatusCompleted:
			return appErr.InvalidInput("games are completed through settlement")
		default:
			return appErr.InvalidInput("status can only be set to %s", model.GameStatusCancelled)
		}
	}
	if r.CalledNumbers != nil {
		for i, n := range *r.CalledNumbers {
			if n <= 0 {
				return appErr.InvalidInput("called_numbers[%d] must be positive", i)
			}
		}
	}
	return nil
}

func (s *GameService) Update(ctx context.Context, req *UpdateGameRequest) (*model.Game, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var game *model.Game
	err := s.store.WithTx(ctx, func(tx *gorm.DB) error {
		if req.CalledNumbers != nil {
			if err := s.gameRepo.UpdateCalledNumbers(ctx, tx, req.GameID, *req.CalledNumbers); err != nil {
				return err
			}
		}
		if req.Status != nil {
			if err := s.gameRepo.UpdateStatus(ctx, tx, req.GameID, model.GameStatusActive, *req.Status); err != nil {
				return err
			}
		}

		var err error
		game, err = s.gameRepo.GetByID(ctx, tx, req.GameID)
		return err
	})

	switch {
	case err == nil:
		s.log.Info("game updated", zap.Int64("game_id", req.GameID), zap.String("status", game.Status))
		return game, nil
	case errors.Is(err, repository.ErrGameNotFound):
		return nil, appErr.ErrGameNotFound
	case errors.Is(err, repository.ErrGameStatusInvalid):
		return nil, appErr.ErrGameNotActive
	default:
		s.log.Error("update game", zap.Int64("game_id", req.GameID), zap.Error(err))
		return nil, appErr.Store(fmt.Errorf("update game %d: %w", req.GameID, err))
	}
}
