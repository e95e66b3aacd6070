package job

import (
	"context"
	"strconv"
	"time"

	"bingoledger/internal/config"
	"bingoledger/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AuditReport is the outcome of one LedgerAuditJob pass.
type AuditReport struct {
	OrphanedGames  []int64
	FailedMessages []int64

	// orphaned games whose settled event was written, so the sales row was
	// removed after the settlement committed
	OrphansWithEvent []int64
}

func (r AuditReport) Clean() bool {
	return len(r.OrphanedGames) == 0 && len(r.FailedMessages) == 0
}

// LedgerAuditJob looks for ledger drift: completed games without a sales row
// and outbox events that exhausted their retries. It only reports; repairs
// are manual.
type LedgerAuditJob struct {
	gameRepo   *repository.GameRepository
	outboxRepo *repository.OutboxRepository
	log        *zap.Logger
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
}

func NewLedgerAuditJob(db *gorm.DB, cfg *config.Config, log *zap.Logger) *LedgerAuditJob {
	return &LedgerAuditJob{
		gameRepo:   repository.NewGameRepository(db),
		outboxRepo: repository.NewOutboxRepository(db),
		log:        log.Named("ledger_audit"),
		stopCh:     make(chan struct{}),
		interval:   intervalOrDefault(cfg.Business.AuditIntervalSecs, 5*time.Minute),
		batchSize:  50,
	}
}

func (j *LedgerAuditJob) Start(ctx context.Context) {
	j.log.Info("ledger audit job started", zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.log.Info("context done, ledger audit job exiting")
			return
		case <-j.stopCh:
			j.log.Info("ledger audit job stopped")
			return
		case <-ticker.C:
			j.audit(ctx)
		}
	}
}

func (j *LedgerAuditJob) Stop() {
	close(j.stopCh)
}

func (j *LedgerAuditJob) audit(ctx context.Context) AuditReport {
	var report AuditReport

	games, err := j.gameRepo.GetCompletedWithoutSale(ctx, j.batchSize)
	if err != nil {
		j.log.Error("scan completed games", zap.Error(err))
	}
	for _, game := range games {
		report.OrphanedGames = append(report.OrphanedGames, game.ID)

		events, err := j.outboxRepo.GetByMessageKey(ctx, strconv.FormatInt(game.ID, 10))
		if err != nil {
			j.log.Error("load game events", zap.Int64("game_id", game.ID), zap.Error(err))
		}
		if len(events) > 0 {
			report.OrphansWithEvent = append(report.OrphansWithEvent, game.ID)
		}

		statuses := make([]string, 0, len(events))
		for _, e := range events {
			statuses = append(statuses, e.Status)
		}
		j.log.Warn("completed game has no sales record",
			zap.Int64("game_id", game.ID),
			zap.Int64("user_id", game.UserID),
			zap.Strings("event_statuses", statuses),
		)
	}

	messages, err := j.outboxRepo.GetFailedMessages(ctx, j.batchSize)
	if err != nil {
		j.log.Error("scan failed outbox messages", zap.Error(err))
	}
	for _, msg := range messages {
		report.FailedMessages = append(report.FailedMessages, msg.ID)
		j.log.Warn("outbox message gave up",
			zap.Int64("id", msg.ID),
			zap.String("key", msg.MessageKey),
			zap.Int("retry_count", msg.RetryCount),
			zap.String("last_error", msg.LastError),
		)
	}

	if !report.Clean() {
		j.log.Warn("ledger audit found issues",
			zap.Int("orphaned_games", len(report.OrphanedGames)),
			zap.Int("failed_messages", len(report.FailedMessages)),
		)
	}
	return report
}
