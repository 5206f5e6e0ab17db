package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/IBM/sarama"
	"github.com/game-leaderboard/internal/domain"
	"github.com/google/uuid"
)

// Message headers set on published summaries
const (
	HeaderSubject        = "subject"
	HeaderGamesProcessed = "games-processed"
)

// Publisher sends stats summaries to a Kafka topic
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

// NewPublisher connects a synchronous producer to the brokers
func NewPublisher(brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating producer: %w", err)
	}
	return NewPublisherWithProducer(producer, topic, logger), nil
}

// NewPublisherWithProducer wraps an existing producer
func NewPublisherWithProducer(producer sarama.SyncProducer, topic string, logger *slog.Logger) *Publisher {
	return &Publisher{producer: producer, topic: topic, logger: logger}
}

// Notify publishes the summary as JSON keyed by a fresh run ID
func (p *Publisher) Notify(ctx context.Context, summary domain.StatsSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(uuid.New().String()),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte(HeaderSubject), Value: []byte(summary.Subject)},
			{Key: []byte(HeaderGamesProcessed), Value: []byte(strconv.Itoa(summary.Result.GamesProcessed))},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("publishing summary: %w", err)
	}

	p.logger.Debug("published stats summary", "topic", p.topic, "partition", partition, "offset", offset)
	return nil
}

// Close closes the producer
func (p *Publisher) Close() error {
	return p.producer.Close()
}
