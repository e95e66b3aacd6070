package job

import (
	"context"
	"time"

	"bingoledger/internal/config"
	"bingoledger/internal/model"
	"bingoledger/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Publisher is what OutboxSender needs from the message bus; *mq.Producer
// satisfies it.
type Publisher interface {
	Send(topic, key, value string) error
}

// OutboxSender drains PENDING outbox rows to Kafka. Delivery is at least
// once: a crash between Send and MarkSent republishes the message, and
// consumers dedupe on the settlement number.
type OutboxSender struct {
	outboxRepo *repository.OutboxRepository
	publisher  Publisher
	cfg        *config.Config
	log        *zap.Logger
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
}

func NewOutboxSender(db *gorm.DB, publisher Publisher, cfg *config.Config, log *zap.Logger) *OutboxSender {
	return &OutboxSender{
		outboxRepo: repository.NewOutboxRepository(db),
		publisher:  publisher,
		cfg:        cfg,
		log:        log.Named("outbox_sender"),
		stopCh:     make(chan struct{}),
		interval:   100 * time.Millisecond,
		batchSize:  100,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	s.log.Info("outbox sender started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("context done, outbox sender exiting")
			return
		case <-s.stopCh:
			s.log.Info("outbox sender stopped")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

func (s *OutboxSender) processPendingMessages(ctx context.Context) {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		s.log.Error("load pending messages", zap.Error(err))
		return
	}

	for _, msg := range messages {
		s.sendMessage(ctx, msg)
	}
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) {
	fields := []zap.Field{
		zap.Int64("id", msg.ID),
		zap.String("topic", msg.Topic),
		zap.String("key", msg.MessageKey),
	}

	err := s.publisher.Send(msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		if err := s.outboxRepo.MarkSent(ctx, msg.ID); err != nil {
			s.log.Error("mark message sent", append(fields, zap.Error(err))...)
			return
		}
		s.log.Debug("message sent", fields...)
		return
	}

	failed := msg.Exhausted(s.cfg.Business.MaxRetryCount)
	if recErr := s.outboxRepo.RecordFailure(ctx, msg.ID, err, failed); recErr != nil {
		s.log.Error("record send failure", append(fields, zap.Error(recErr))...)
		return
	}

	if failed {
		s.log.Error("message parked after max retries",
			append(fields, zap.Int("retry_count", msg.RetryCount+1), zap.Error(err))...)
		return
	}
	s.log.Warn("send failed, will retry", append(fields, zap.Int("retry_count", msg.RetryCount+1), zap.Error(err))...)
}
