package repository

import (
	"context"
	"errors"
	"time"

	"bingoledger/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrGameNotFound      = errors.New("game not found")
	ErrGameStatusInvalid = errors.New("game status does not allow this change")
)

type GameRepository struct {
	db *gorm.DB
}

func NewGameRepository(db *gorm.DB) *GameRepository {
	return &GameRepository{db: db}
}

func (r *GameRepository) Create(ctx context.Context, tx *gorm.DB, game *model.Game) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(game).Error
}

func (r *GameRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.Game, error) {
	if tx == nil {
		tx = r.db
	}
	var game model.Game
	err := tx.WithContext(ctx).Where("id = ?", id).First(&game).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, err
	}
	return &game, nil
}

// FindForUpdate reads the game owned by ownerID and holds its row lock until
// tx ends. A game owned by someone else is reported as not found.
func (r *GameRepository) FindForUpdate(ctx context.Context, tx *gorm.DB, gameID, ownerID int64) (*model.Game, error) {
	var game model.Game
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND user_id = ?", gameID, ownerID).
		First(&game).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, err
	}
	return &game, nil
}

// CompletedGame carries the terminal fields written by settlement.
type CompletedGame struct {
	GameID        int64
	WinnerCard    int
	WinnerPattern string
	WinnerPrize   decimal.Decimal
	CalledNumbers []int
}

// TransitionToCompleted writes the terminal state. It does not check the
// current status; callers hold the row lock from FindForUpdate and have
// already checked it.
func (r *GameRepository) TransitionToCompleted(ctx context.Context, tx *gorm.DB, c CompletedGame) error {
	result := tx.WithContext(ctx).
		Model(&model.Game{}).
		Where("id = ?", c.GameID).
		Updates(map[string]interface{}{
			"status":         model.GameStatusCompleted,
			"winner_card":    c.WinnerCard,
			"winner_pattern": c.WinnerPattern,
			"winner_prize":   decimal.NewNullDecimal(c.WinnerPrize),
			"called_numbers": datatypes.JSONSlice[int](c.CalledNumbers),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrGameNotFound
	}
	return nil
}

// UpdateStatus moves a game from one status to another only if it is still
// in fromStatus.
func (r *GameRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id int64, fromStatus, toStatus string) error {
	if !model.CanTransitionTo(fromStatus, toStatus) {
		return ErrGameStatusInvalid
	}

	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Game{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Update("status", toStatus)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.missOrConflict(ctx, tx, id)
	}
	return nil
}

// UpdateCalledNumbers replaces the called-number list of an active game.
func (r *GameRepository) UpdateCalledNumbers(ctx context.Context, tx *gorm.DB, id int64, numbers []int) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Game{}).
		Where("id = ? AND status = ?", id, model.GameStatusActive).
		Update("called_numbers", datatypes.JSONSlice[int](numbers))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.missOrConflict(ctx, tx, id)
	}
	return nil
}

func (r *GameRepository) missOrConflict(ctx context.Context, tx *gorm.DB, id int64) error {
	var count int64
	if err := tx.WithContext(ctx).Model(&model.Game{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrGameNotFound
	}
	return ErrGameStatusInvalid
}

type GameFilter struct {
	UserID int64
	Status string
	Limit  int
}

func (r *GameRepository) List(ctx context.Context, filter GameFilter) ([]*model.Game, error) {
	query := r.db.WithContext(ctx).Model(&model.Game{})
	if filter.UserID > 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var games []*model.Game
	err := query.Order("created_at DESC").Order("id DESC").Find(&games).Error
	return games, err
}

// GetStaleActive returns active games created before the cutoff, oldest first.
func (r *GameRepository) GetStaleActive(ctx context.Context, before time.Time, limit int) ([]*model.Game, error) {
	var games []*model.Game
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", model.GameStatusActive, before).
		Order("created_at ASC").
		Limit(limit).
		Find(&games).Error
	return games, err
}

// GetCompletedWithoutSale finds completed games that have no sales record.
// Settlement writes both in one transaction, so any hit points at data that
// was modified outside the service.
func (r *GameRepository) GetCompletedWithoutSale(ctx context.Context, limit int) ([]*model.Game, error) {
	var games []*model.Game
	err := r.db.WithContext(ctx).
		Model(&model.Game{}).
		Select("games.*").
		Joins("LEFT JOIN sales ON sales.game_id = games.id").
		Where("games.status = ? AND sales.id IS NULL", model.GameStatusCompleted).
		Order("games.id ASC").
		Limit(limit).
		Find(&games).Error
	return games, err
}
