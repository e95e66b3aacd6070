package job

import (
	"context"
	"testing"

	"bingoledger/internal/config"
	"bingoledger/internal/model"
	"bingoledger/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestLedgerAuditReportsDrift(t *testing.T) {
	db := testutil.NewTestDB(t)

	// completed with a sales row: consistent
	testutil.CreateTestGame(t, db, 1, 7, model.GameStatusCompleted)
	require.NoError(t, db.Create(&model.SalesRecord{SettlementNo: "STL-1", GameID: 1, UserID: 7}).Error)
	// completed without one: drift
	testutil.CreateTestGame(t, db, 2, 7, model.GameStatusCompleted)
	testutil.CreateTestGame(t, db, 3, 7, model.GameStatusActive)
	// completed with an event but no sales row: the row went missing after commit
	testutil.CreateTestGame(t, db, 4, 7, model.GameStatusCompleted)
	insertOutbox(t, db, "4", 0)

	parked := insertOutbox(t, db, "9", 5)
	require.NoError(t, db.Model(parked).Update("status", model.OutboxStatusFailed).Error)
	insertOutbox(t, db, "10", 0)

	job := NewLedgerAuditJob(db, config.Default(), zaptest.NewLogger(t))
	report := job.audit(context.Background())

	assert.False(t, report.Clean())
	assert.Equal(t, []int64{2, 4}, report.OrphanedGames)
	assert.Equal(t, []int64{4}, report.OrphansWithEvent)
	assert.Equal(t, []int64{parked.ID}, report.FailedMessages)
}

func TestLedgerAuditCleanLedger(t *testing.T) {
	db := testutil.NewTestDB(t)
	testutil.CreateTestGame(t, db, 1, 7, model.GameStatusActive)

	report := NewLedgerAuditJob(db, config.Default(), zaptest.NewLogger(t)).audit(context.Background())
	assert.True(t, report.Clean())
}
