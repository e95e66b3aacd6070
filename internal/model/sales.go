package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// Sales ledger
// ============================================================================

// SalesRecord is the append-only ledger row written when a game settles.
//
// Rules:
//  1. rows are only ever inserted, never updated or deleted
//  2. at most one row per game (unique game_id)
//  3. the host's commission rate is copied at settlement time so later
//     changes to the host's terms do not rewrite history
type SalesRecord struct {
	ID                 int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	SettlementNo       string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"settlement_no"`
	GameID             int64           `gorm:"uniqueIndex;not null" json:"game_id"`
	UserID             int64           `gorm:"index;not null" json:"user_id"`
	TotalPool          decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"total_pool"`
	PrizeAmount        decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"prize_amount"`
	Commission         decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"commission"`
	UserCommission     decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"user_commission"`
	UserCommissionRate decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"user_commission_rate"`
	CreatedAt          time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (SalesRecord) TableName() string {
	return "sales"
}

// GameSettledEvent is the outbox payload published after a settlement commits.
type GameSettledEvent struct {
	GameID             int64           `json:"game_id"`
	UserID             int64           `json:"user_id"`
	SettlementNo       string          `json:"settlement_no"`
	WinnerCard         int             `json:"winner_card"`
	WinnerPattern      string          `json:"winner_pattern"`
	WinnerPrize        decimal.Decimal `json:"winner_prize"`
	TotalPool          decimal.Decimal `json:"total_pool"`
	Commission         decimal.Decimal `json:"commission"`
	UserCommission     decimal.Decimal `json:"user_commission"`
	UserCommissionRate decimal.Decimal `json:"user_commission_rate"`
	SettledAt          time.Time       `json:"settled_at"`
}
