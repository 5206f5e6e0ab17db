package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/game-leaderboard/internal/config"
	"github.com/game-leaderboard/internal/domain"
)

const (
	// submitTimeout bounds each submission taken from a batch
	submitTimeout = 10 * time.Second
	// startTimeout bounds the wait for the first group session
	startTimeout = 30 * time.Second
	retryBackoff = time.Second
)

// Submitter accepts score submissions
type Submitter interface {
	Submit(ctx context.Context, req domain.SubmitRequest) (*domain.SubmissionResult, error)
}

// Consumer feeds score submissions from Kafka into the submission service
type Consumer struct {
	config        *config.KafkaConfig
	submitter     Submitter
	logger        *slog.Logger
	consumerGroup sarama.ConsumerGroup
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg *config.KafkaConfig, submitter Submitter, logger *slog.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("creating consumer group: %w", err)
	}

	return newConsumer(cfg, submitter, logger, consumerGroup), nil
}

func newConsumer(cfg *config.KafkaConfig, submitter Submitter, logger *slog.Logger, group sarama.ConsumerGroup) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		config:        cfg,
		submitter:     submitter,
		logger:        logger,
		consumerGroup: group,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start begins consuming and returns once the first session is set up
func (c *Consumer) Start() error {
	c.logger.Info("starting Kafka consumer",
		"brokers", c.config.Brokers,
		"topic", c.config.Topic,
		"group_id", c.config.GroupID,
	)

	first := make(chan bool)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ready := first
		for {
			handler := &consumerGroupHandler{
				consumer: c,
				ready:    ready,
			}

			if err := c.consumerGroup.Consume(c.ctx, []string{c.config.Topic}, handler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.logger.Error("error from consumer", "error", err)
				select {
				case <-c.ctx.Done():
				case <-time.After(retryBackoff):
				}
			}

			if c.ctx.Err() != nil {
				return
			}

			// Setup closes ready once per session
			select {
			case <-ready:
				ready = make(chan bool)
			default:
			}
		}
	}()

	select {
	case <-first:
	case <-c.ctx.Done():
		return c.ctx.Err()
	case <-time.After(startTimeout):
		c.cancel()
		c.wg.Wait()
		_ = c.consumerGroup.Close()
		return fmt.Errorf("no consumer group session after %s", startTimeout)
	}
	c.logger.Info("Kafka consumer ready")

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				return
			case err, ok := <-c.consumerGroup.Errors():
				if !ok {
					return
				}
				c.logger.Error("consumer group error", "error", err)
			}
		}
	}()

	return nil
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	c.logger.Info("stopping Kafka consumer")
	c.cancel()
	c.wg.Wait()
	return c.consumerGroup.Close()
}

// DecodeSubmission parses a message value in the same JSON shape the HTTP
// submit endpoint accepts
func DecodeSubmission(value []byte) (domain.SubmitRequest, error) {
	var sub domain.ScoreSubmission
	if err := json.Unmarshal(value, &sub); err != nil {
		return domain.SubmitRequest{}, fmt.Errorf("decoding submission: %w", err)
	}
	return sub.ToRequest()
}

// submitBatch submits each request independently; one failure does not stop the rest
func (c *Consumer) submitBatch(batch []domain.SubmitRequest) (accepted, failed int) {
	for _, req := range batch {
		ctx, cancel := context.WithTimeout(c.ctx, submitTimeout)
		res, err := c.submitter.Submit(ctx, req)
		cancel()
		if err != nil {
			failed++
			c.logger.Warn("failed to submit score",
				"player_id", req.PlayerID,
				"game_id", req.GameID,
				"kind", domain.KindOf(err),
				"error", err,
			)
			continue
		}
		if res.Accepted {
			accepted++
		}
	}
	return accepted, failed
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	consumer *Consumer
	ready    chan bool
}

// Setup is called at the beginning of a new session
func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	close(h.ready)
	return nil
}

// Cleanup is called at the end of a session
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim collects submissions into batches bounded by size and time
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	cfg := h.consumer.config
	logger := h.consumer.logger
	batch := make([]domain.SubmitRequest, 0, cfg.BatchSize)
	batchTimer := time.NewTimer(cfg.BatchTimeout)
	defer batchTimer.Stop()

	processBatch := func() {
		if len(batch) == 0 {
			return
		}
		accepted, failed := h.consumer.submitBatch(batch)
		logger.Debug("processed batch", "batch_size", len(batch), "accepted", accepted, "failed", failed)
		batch = batch[:0]
	}

	for {
		select {
		case <-session.Context().Done():
			processBatch()
			return nil

		case <-batchTimer.C:
			processBatch()
			batchTimer.Reset(cfg.BatchTimeout)

		case message, ok := <-claim.Messages():
			if !ok {
				processBatch()
				return nil
			}

			req, err := DecodeSubmission(message.Value)
			if err != nil {
				logger.Warn("skipping undecodable message",
					"error", err,
					"offset", message.Offset,
					"partition", message.Partition,
				)
				session.MarkMessage(message, "")
				continue
			}

			batch = append(batch, req)
			session.MarkMessage(message, "")

			if len(batch) >= cfg.BatchSize {
				processBatch()
				batchTimer.Reset(cfg.BatchTimeout)
			}
		}
	}
}
