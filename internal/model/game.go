package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	GameStatusActive    = "active"
	GameStatusCompleted = "completed"
	GameStatusCancelled = "cancelled"
)

// A game leaves active exactly once; completed and cancelled are terminal.
var ValidStatusTransitions = map[string][]string{
	GameStatusActive: {GameStatusCompleted, GameStatusCancelled},
}

func CanTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidStatusTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

const (
	StrategyFirstWins = "first_wins"
	StrategySplit     = "split"
	StrategyCustom    = "custom"
)

// Game is one round of bingo run by a host. The winner fields stay null
// until the game is settled.
type Game struct {
	ID                  int64                    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID              int64                    `gorm:"index;not null" json:"user_id"`
	SelectedCards       datatypes.JSONSlice[int] `gorm:"not null" json:"selected_cards"`
	PatternRequirements datatypes.JSON           `json:"pattern_requirements"`
	WinningStrategy     string                   `gorm:"type:varchar(32);not null" json:"winning_strategy"`
	CustomStrategy      string                   `gorm:"type:varchar(255)" json:"custom_strategy,omitempty"`
	BetAmount           decimal.Decimal          `gorm:"type:decimal(20,2);not null" json:"bet_amount"`
	TotalPool           decimal.Decimal          `gorm:"type:decimal(20,2);not null" json:"total_pool"`
	PrizePool           decimal.Decimal          `gorm:"type:decimal(20,2);not null" json:"prize_pool"`
	Commission          decimal.Decimal          `gorm:"type:decimal(20,2);not null" json:"commission"`
	UserCommission      decimal.Decimal          `gorm:"type:decimal(20,2);not null" json:"user_commission"`
	Status              string                   `gorm:"type:varchar(20);index;not null;default:active" json:"status"`
	CalledNumbers       datatypes.JSONSlice[int] `json:"called_numbers"`
	WinnerCard          *int                     `json:"winner_card"`
	WinnerPattern       *string                  `gorm:"type:varchar(64)" json:"winner_pattern"`
	WinnerPrize         decimal.NullDecimal      `gorm:"type:decimal(20,2)" json:"winner_prize"`
	CreatedAt           time.Time                `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt           time.Time                `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Game) TableName() string {
	return "games"
}

func (g *Game) IsActive() bool {
	return g.Status == GameStatusActive
}
