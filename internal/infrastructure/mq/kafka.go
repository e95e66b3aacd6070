package mq

import (
	"fmt"

	"bingoledger/internal/config"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// Producer publishes outbox messages. It wraps a sarama.SyncProducer so tests
// can substitute sarama/mocks.
type Producer struct {
	producer sarama.SyncProducer
	log      *zap.Logger
}

func NewKafkaProducer(cfg *config.KafkaConfig, log *zap.Logger) (*Producer, error) {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll
	kafkaConfig.Producer.Retry.Max = 3
	kafkaConfig.Producer.Return.Successes = true
	kafkaConfig.Producer.Idempotent = true
	kafkaConfig.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(cfg.Brokers, kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	log.Info("kafka producer ready", zap.Strings("brokers", cfg.Brokers))
	return NewProducer(producer, log), nil
}

func NewProducer(producer sarama.SyncProducer, log *zap.Logger) *Producer {
	return &Producer{producer: producer, log: log}
}

// Send publishes value under key and returns once the brokers acknowledged it.
func (p *Producer) Send(topic, key, value string) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.StringEncoder(value),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return err
	}

	p.log.Debug("kafka message sent",
		zap.String("topic", topic),
		zap.String("key", key),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

func (p *Producer) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}
