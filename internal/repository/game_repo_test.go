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

func TestFindForUpdateMatchesOwner(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewGameRepository(db)
	ctx := context.Background()

	testutil.CreateTestGame(t, db, 42, 7, model.GameStatusActive)

	err := db.Transaction(func(tx *gorm.DB) error {
		game, err := repo.FindForUpdate(ctx, tx, 42, 7)
		require.NoError(t, err)
		assert.Equal(t, int64(42), game.ID)
		assert.Equal(t, model.GameStatusActive, game.Status)
		assert.False(t, game.WinnerPrize.Valid)

		_, err = repo.FindForUpdate(ctx, tx, 42, 8)
		assert.ErrorIs(t, err, repository.ErrGameNotFound)

		_, err = repo.FindForUpdate(ctx, tx, 43, 7)
		assert.ErrorIs(t, err, repository.ErrGameNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestTransitionToCompleted(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewGameRepository(db)
	ctx := context.Background()

	testutil.CreateTestGame(t, db, 42, 7, model.GameStatusActive)

	err := repo.TransitionToCompleted(ctx, db, repository.CompletedGame{
		GameID:        42,
		WinnerCard:    3,
		WinnerPattern: "line",
		WinnerPrize:   decimal.RequireFromString("80.50"),
		CalledNumbers: []int{5, 12, 33},
	})
	require.NoError(t, err)

	game := testutil.ReloadGame(t, db, 42)
	assert.Equal(t, model.GameStatusCompleted, game.Status)
	require.NotNil(t, game.WinnerCard)
	assert.Equal(t, 3, *game.WinnerCard)
	require.NotNil(t, game.WinnerPattern)
	assert.Equal(t, "line", *game.WinnerPattern)
	assert.True(t, game.WinnerPrize.Valid)
	assert.True(t, game.WinnerPrize.Decimal.Equal(decimal.RequireFromString("80.50")))
	assert.Equal(t, []int{5, 12, 33}, []int(game.CalledNumbers))

	err = repo.TransitionToCompleted(ctx, db, repository.CompletedGame{GameID: 99, CalledNumbers: []int{}})
	assert.ErrorIs(t, err, repository.ErrGameNotFound)
}

func TestUpdateStatusIsGated(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewGameRepository(db)
	ctx := context.Background()

	testutil.CreateTestGame(t, db, 1, 7, model.GameStatusActive)
	testutil.CreateTestGame(t, db, 2, 7, model.GameStatusCompleted)

	require.NoError(t, repo.UpdateStatus(ctx, nil, 1, model.GameStatusActive, model.GameStatusCancelled))
	assert.Equal(t, model.GameStatusCancelled, testutil.ReloadGame(t, db, 1).Status)

	// already left active
	err := repo.UpdateStatus(ctx, nil, 2, model.GameStatusActive, model.GameStatusCancelled)
	assert.ErrorIs(t, err, repository.ErrGameStatusInvalid)
	assert.Equal(t, model.GameStatusCompleted, testutil.ReloadGame(t, db, 2).Status)

	// terminal states have no outgoing transitions
	err = repo.UpdateStatus(ctx, nil, 2, model.GameStatusCompleted, model.GameStatusActive)
	assert.ErrorIs(t, err, repository.ErrGameStatusInvalid)

	err = repo.UpdateStatus(ctx, nil, 99, model.GameStatusActive, model.GameStatusCancelled)
	assert.ErrorIs(t, err, repository.ErrGameNotFound)
}

func TestUpdateCalledNumbers(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewGameRepository(db)
	ctx := context.Background()

	testutil.CreateTestGame(t, db, 1, 7, model.GameStatusActive)
	testutil.CreateTestGame(t, db, 2, 7, model.GameStatusCancelled)

	require.NoError(t, repo.UpdateCalledNumbers(ctx, nil, 1, []int{9, 18}))
	assert.Equal(t, []int{9, 18}, []int(testutil.ReloadGame(t, db, 1).CalledNumbers))

	assert.ErrorIs(t, repo.UpdateCalledNumbers(ctx, nil, 2, []int{1}), repository.ErrGameStatusInvalid)
	assert.ErrorIs(t, repo.UpdateCalledNumbers(ctx, nil, 3, []int{1}), repository.ErrGameNotFound)
}

func TestListGames(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewGameRepository(db)
	ctx := context.Background()

	testutil.CreateTestGame(t, db, 1, 7, model.GameStatusActive)
	testutil.CreateTestGame(t, db, 2, 7, model.GameStatusCompleted)
	testutil.CreateTestGame(t, db, 3, 8, model.GameStatusActive)

	all, err := repo.List(ctx, repository.GameFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := repo.List(ctx, repository.GameFilter{UserID: 7})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	active, err := repo.List(ctx, repository.GameFilter{UserID: 7, Status: model.GameStatusActive})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, int64(1), active[0].ID)

	limited, err := repo.List(ctx, repository.GameFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestGetStaleActive(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewGameRepository(db)

	testutil.CreateTestGame(t, db, 1, 7, model.GameStatusActive)
	testutil.CreateTestGame(t, db, 2, 7, model.GameStatusActive)
	testutil.CreateTestGame(t, db, 3, 7, model.GameStatusCompleted)
	testutil.AgeGame(t, db, 1, 48*time.Hour)
	testutil.AgeGame(t, db, 3, 48*time.Hour)

	games, err := repo.GetStaleActive(context.Background(), time.Now().Add(-24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, int64(1), games[0].ID)
}

func TestGetCompletedWithoutSale(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewGameRepository(db)
	sales := repository.NewSalesRepository(db)
	ctx := context.Background()

	testutil.CreateTestGame(t, db, 1, 7, model.GameStatusCompleted)
	testutil.CreateTestGame(t, db, 2, 7, model.GameStatusCompleted)
	testutil.CreateTestGame(t, db, 3, 7, model.GameStatusActive)

	require.NoError(t, sales.Create(ctx, nil, &model.SalesRecord{
		SettlementNo: "STL-1",
		GameID:       1,
		UserID:       7,
	}))

	games, err := repo.GetCompletedWithoutSale(ctx, 10)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, int64(2), games[0].ID)
}
