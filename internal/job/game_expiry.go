package job

import (
	"context"
	"errors"
	"time"

	"bingoledger/internal/config"
	"bingoledger/internal/model"
	"bingoledger/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GameExpiryJob cancels games left active longer than business.game_ttl_hours.
// The cancel is a status-guarded update, so a game settled between the scan
// and the update keeps its completed status.
type GameExpiryJob struct {
	gameRepo  *repository.GameRepository
	cfg       *config.Config
	log       *zap.Logger
	stopCh    chan struct{}
	interval  time.Duration
	batchSize int
}

func NewGameExpiryJob(db *gorm.DB, cfg *config.Config, log *zap.Logger) *GameExpiryJob {
	return &GameExpiryJob{
		gameRepo:  repository.NewGameRepository(db),
		cfg:       cfg,
		log:       log.Named("game_expiry"),
		stopCh:    make(chan struct{}),
		interval:  intervalOrDefault(cfg.Business.ExpiryIntervalSecs, time.Minute),
		batchSize: 100,
	}
}

func (j *GameExpiryJob) Start(ctx context.Context) {
	j.log.Info("game expiry job started", zap.Duration("interval", j.interval), zap.Duration("ttl", j.cfg.Business.GameTTL()))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.log.Info("context done, game expiry job exiting")
			return
		case <-j.stopCh:
			j.log.Info("game expiry job stopped")
			return
		case <-ticker.C:
			j.cancelStaleGames(ctx)
		}
	}
}

func (j *GameExpiryJob) Stop() {
	close(j.stopCh)
}

func (j *GameExpiryJob) cancelStaleGames(ctx context.Context) int {
	cutoff := time.Now().Add(-j.cfg.Business.GameTTL())
	games, err := j.gameRepo.GetStaleActive(ctx, cutoff, j.batchSize)
	if err != nil {
		j.log.Error("load stale games", zap.Error(err))
		return 0
	}
	if len(games) == 0 {
		return 0
	}

	cancelled := 0
	for _, game := range games {
		err := j.gameRepo.UpdateStatus(ctx, nil, game.ID, model.GameStatusActive, model.GameStatusCancelled)
		switch {
		case err == nil:
			cancelled++
			j.log.Info("stale game cancelled",
				zap.Int64("game_id", game.ID),
				zap.Int64("user_id", game.UserID),
				zap.Time("created_at", game.CreatedAt),
			)
		case errors.Is(err, repository.ErrGameStatusInvalid):
			j.log.Debug("game left active state before expiry", zap.Int64("game_id", game.ID))
		default:
			j.log.Error("cancel stale game", zap.Int64("game_id", game.ID), zap.Error(err))
		}
	}

	j.log.Info("expiry sweep done", zap.Int("found", len(games)), zap.Int("cancelled", cancelled))
	return cancelled
}

func intervalOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
