package testutil

import (
	"fmt"
	"testing"
	"time"

	"bingoledger/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CreateTestUser inserts a host whose stored password is the given raw value
// (plaintext or a bcrypt hash).
func CreateTestUser(t *testing.T, db *gorm.DB, id int64, username, storedPassword string) *model.User {
	t.Helper()

	user := &model.User{
		ID:                id,
		Username:          username,
		Password:          storedPassword,
		Name:              "Host " + username,
		ShopName:          fmt.Sprintf("Shop %d", id),
		CommissionPercent: decimal.NewFromInt(10),
		Role:              model.RoleUser,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to insert user: %v", err)
	}
	return user
}

// CreateTestGame inserts a game with a 100.00 pool in the given status.
func CreateTestGame(t *testing.T, db *gorm.DB, id, ownerID int64, status string) *model.Game {
	t.Helper()

	game := &model.Game{
		ID:                  id,
		UserID:              ownerID,
		SelectedCards:       datatypes.JSONSlice[int]{1, 2, 3, 4},
		PatternRequirements: datatypes.JSON(`{"patterns":["line"]}`),
		WinningStrategy:     model.StrategyFirstWins,
		BetAmount:           decimal.NewFromInt(25),
		TotalPool:           decimal.NewFromInt(100),
		PrizePool:           decimal.NewFromInt(80),
		Commission:          decimal.NewFromInt(20),
		UserCommission:      decimal.NewFromInt(10),
		Status:              status,
		CalledNumbers:       datatypes.JSONSlice[int]{},
	}
	if err := db.Create(game).Error; err != nil {
		t.Fatalf("failed to insert game: %v", err)
	}
	return game
}

// AgeGame backdates created_at, for expiry and filter tests.
func AgeGame(t *testing.T, db *gorm.DB, id int64, age time.Duration) {
	t.Helper()
	err := db.Model(&model.Game{}).Where("id = ?", id).
		UpdateColumn("created_at", time.Now().Add(-age)).Error
	if err != nil {
		t.Fatalf("failed to age game: %v", err)
	}
}

func ReloadGame(t *testing.T, db *gorm.DB, id int64) *model.Game {
	t.Helper()
	var game model.Game
	if err := db.First(&game, id).Error; err != nil {
		t.Fatalf("failed to reload game %d: %v", id, err)
	}
	return &game
}

func ReloadUser(t *testing.T, db *gorm.DB, id int64) *model.User {
	t.Helper()
	var user model.User
	if err := db.First(&user, id).Error; err != nil {
		t.Fatalf("failed to reload user %d: %v", id, err)
	}
	return &user
}

func CountSales(t *testing.T, db *gorm.DB, gameID int64) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&model.SalesRecord{}).Where("game_id = ?", gameID).Count(&n).Error; err != nil {
		t.Fatalf("failed to count sales: %v", err)
	}
	return n
}

func CountOutbox(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&model.OutboxMessage{}).Count(&n).Error; err != nil {
		t.Fatalf("failed to count outbox: %v", err)
	}
	return n
}
