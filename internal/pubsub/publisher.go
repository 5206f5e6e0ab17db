package pubsub

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"cloud.google.com/go/pubsub"
	"github.com/game-leaderboard/internal/domain"
	"google.golang.org/api/option"
)

// Message attributes set on published summaries
const (
	AttrSubject        = "subject"
	AttrGamesProcessed = "gamesProcessed"
	AttrTotalScores    = "totalScores"
)

// Publisher sends stats summaries to a Pub/Sub topic
type Publisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	logger *slog.Logger
}

// NewPublisher opens a client for the project and binds it to the topic
func NewPublisher(ctx context.Context, projectID, topicID string, logger *slog.Logger, opts ...option.ClientOption) (*Publisher, error) {
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	return &Publisher{
		client: client,
		topic:  client.Topic(topicID),
		logger: logger,
	}, nil
}

// Notify publishes the summary text and waits for the server ID
func (p *Publisher) Notify(ctx context.Context, summary domain.StatsSummary) error {
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: []byte(summary.Body),
		Attributes: map[string]string{
			AttrSubject:        summary.Subject,
			AttrGamesProcessed: strconv.Itoa(summary.Result.GamesProcessed),
			AttrTotalScores:    strconv.Itoa(summary.Result.TotalScores),
		},
	})
	serverID, err := result.Get(ctx)
	if err != nil {
		return fmt.Errorf("publishing summary to %s: %w", p.topic.ID(), err)
	}

	p.logger.Debug("published stats summary", "topic", p.topic.ID(), "server_id", serverID)
	return nil
}

// Close flushes pending messages and closes the client
func (p *Publisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
