package repository_test

import (
	"context"
	"testing"
	"time"

	"bingoledger/internal/model"
	"bingoledger/internal/repository"
	"bingoledger/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func insertSale(t *testing.T, db *gorm.DB, gameID, userID int64, pool, prize, commission, userCommission, rate string) {
	t.Helper()
	err := repository.NewSalesRepository(db).Create(context.Background(), nil, &model.SalesRecord{
		SettlementNo:       "STL-" + decimal.NewFromInt(gameID).String(),
		GameID:             gameID,
		UserID:             userID,
		TotalPool:          decimal.RequireFromString(pool),
		PrizeAmount:        decimal.RequireFromString(prize),
		Commission:         decimal.RequireFromString(commission),
		UserCommission:     decimal.RequireFromString(userCommission),
		UserCommissionRate: decimal.RequireFromString(rate),
	})
	require.NoError(t, err)
}

func TestSalesCreateRejectsSecondRowForGame(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewSalesRepository(db)

	insertSale(t, db, 42, 7, "100", "80", "20", "10", "10")

	err := repo.Create(context.Background(), nil, &model.SalesRecord{
		SettlementNo: "STL-other",
		GameID:       42,
		UserID:       7,
	})
	assert.Error(t, err)
	assert.Equal(t, int64(1), testutil.CountSales(t, db, 42))

	record, err := repo.GetByGameID(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "STL-42", record.SettlementNo)

	_, err = repo.GetByGameID(context.Background(), 43)
	assert.ErrorIs(t, err, repository.ErrSalesNotFound)
}

func TestSalesListJoinsHostName(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewSalesRepository(db)

	testutil.CreateTestUser(t, db, 7, "alice", "pw")
	testutil.CreateTestUser(t, db, 8, "bob", "pw")
	insertSale(t, db, 1, 7, "100", "80", "20", "10", "10")
	insertSale(t, db, 2, 8, "50", "40", "10", "5", "10")
	insertSale(t, db, 3, 7, "10", "8", "2", "1", "10")

	entries, err := repo.List(context.Background(), repository.SalesFilter{UserID: 7})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, int64(7), e.UserID)
		assert.Equal(t, "Host alice", e.UserName)
	}

	all, err := repo.List(context.Background(), repository.SalesFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSalesListDateWindow(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewSalesRepository(db)

	insertSale(t, db, 1, 7, "100", "80", "20", "10", "10")

	past := time.Now().Add(-72 * time.Hour)
	yesterday := time.Now().Add(-24 * time.Hour)
	tomorrow := time.Now().Add(24 * time.Hour)

	inside, err := repo.List(context.Background(), repository.SalesFilter{From: &yesterday, To: &tomorrow})
	require.NoError(t, err)
	assert.Len(t, inside, 1)

	before, err := repo.List(context.Background(), repository.SalesFilter{From: &past, To: &yesterday})
	require.NoError(t, err)
	assert.Empty(t, before)
}

func TestSalesStats(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewSalesRepository(db)

	empty, err := repo.Stats(context.Background(), repository.SalesFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), empty.TotalGames)
	assert.True(t, empty.TotalPool.IsZero())
	assert.True(t, empty.AvgUserCommissionRate.IsZero())

	insertSale(t, db, 1, 7, "100", "80", "20", "10", "10")
	insertSale(t, db, 2, 7, "50.50", "40", "10.50", "5", "15")
	insertSale(t, db, 3, 8, "10", "8", "2", "1", "50")

	stats, err := repo.Stats(context.Background(), repository.SalesFilter{UserID: 7})
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalGames)
	assert.True(t, stats.TotalPool.Equal(decimal.RequireFromString("150.5")), stats.TotalPool.String())
	assert.True(t, stats.TotalPrize.Equal(decimal.NewFromInt(120)))
	assert.True(t, stats.TotalCommission.Equal(decimal.RequireFromString("30.5")))
	assert.True(t, stats.TotalUserCommission.Equal(decimal.NewFromInt(15)))
	assert.True(t, stats.AvgUserCommissionRate.Equal(decimal.RequireFromString("12.5")), stats.AvgUserCommissionRate.String())
}
