package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"bingoledger/internal/model"
	"bingoledger/internal/repository"
	"bingoledger/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestOutboxLifecycle(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewOutboxRepository(db)
	ctx := context.Background()

	for _, key := range []string{"1", "2"} {
		require.NoError(t, repo.Create(ctx, nil, &model.OutboxMessage{
			MessageKey: key,
			Topic:      "bingo.game.settled",
			Payload:    `{}`,
			Status:     model.OutboxStatusPending,
		}))
	}

	pending, err := repo.GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	require.NoError(t, repo.MarkSent(ctx, pending[0].ID))
	require.NoError(t, repo.RecordFailure(ctx, pending[1].ID, errors.New(strings.Repeat("x", 600)), false))

	pending, err = repo.GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].RetryCount)
	assert.Len(t, pending[0].LastError, 512)

	require.NoError(t, repo.RecordFailure(ctx, pending[0].ID, errors.New("broker down"), true))

	failed, err := repo.GetFailedMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, 2, failed[0].RetryCount)
	assert.Equal(t, "broker down", failed[0].LastError)

	byKey, err := repo.GetByMessageKey(ctx, "1")
	require.NoError(t, err)
	require.Len(t, byKey, 1)
	assert.Equal(t, model.OutboxStatusSent, byKey[0].Status)
}

func TestStoreWithTxRollsBack(t *testing.T) {
	db := testutil.NewTestDB(t)
	store := repository.NewStore(db, "")
	outbox := repository.NewOutboxRepository(db)
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(tx *gorm.DB) error {
		require.NoError(t, outbox.Create(ctx, tx, &model.OutboxMessage{MessageKey: "k", Topic: "t", Payload: "{}"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(0), testutil.CountOutbox(t, db))

	err = store.WithTx(ctx, func(tx *gorm.DB) error {
		return outbox.Create(ctx, tx, &model.OutboxMessage{MessageKey: "k", Topic: "t", Payload: "{}"})
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), testutil.CountOutbox(t, db))
}

func TestParseIsolation(t *testing.T) {
	assert.Equal(t, sql.LevelDefault, repository.ParseIsolation(""))
	assert.Equal(t, sql.LevelReadCommitted, repository.ParseIsolation("read_committed"))
	assert.Equal(t, sql.LevelRepeatableRead, repository.ParseIsolation("repeatable_read"))
	assert.Equal(t, sql.LevelSerializable, repository.ParseIsolation("serializable"))
}

func TestRecordFailureKeepsLastErrorValidUTF8(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewOutboxRepository(db)
	ctx := context.Background()

	msg := &model.OutboxMessage{MessageKey: "42", Topic: "t", Payload: "{}", Status: model.OutboxStatusPending}
	require.NoError(t, repo.Create(ctx, nil, msg))

	// the two-byte "é" straddles the 512-byte cut
	cause := errors.New(strings.Repeat("x", 511) + "é broker said no")
	require.NoError(t, repo.RecordFailure(ctx, msg.ID, cause, false))

	stored, err := repo.GetByMessageKey(ctx, "42")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.True(t, utf8.ValidString(stored[0].LastError))
	assert.Equal(t, strings.Repeat("x", 511), stored[0].LastError)
	assert.Equal(t, 1, stored[0].RetryCount)
}
