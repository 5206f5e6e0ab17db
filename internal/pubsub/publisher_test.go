package pubsub

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/game-leaderboard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	testProject = "leaderboard-test"
	testTopic   = "leaderboard-stats"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFakeServer(t *testing.T, createTopic bool) (*pstest.Server, []option.ClientOption) {
	t.Helper()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	opts := []option.ClientOption{option.WithGRPCConn(conn)}

	if createTopic {
		admin, err := pubsub.NewClient(context.Background(), testProject, opts...)
		require.NoError(t, err)
		t.Cleanup(func() { _ = admin.Close() })
		_, err = admin.CreateTopic(context.Background(), testTopic)
		require.NoError(t, err)
	}
	return srv, opts
}

func testSummary() domain.StatsSummary {
	return domain.StatsSummary{
		Subject: "GameLeaderboard - Ranking Update",
		Body:    "Rankings calculated successfully!",
		Result: domain.BatchStatsResult{
			GamesProcessed: 1,
			TotalScores:    3,
			GameStats: map[string]domain.GameStats{
				"g1": {TotalPlayers: 3, TopScore: 90, TopPlayer: "Alice", TopPlayerID: "p1", AverageScore: 50},
			},
		},
	}
}

func TestPublisher_PublishesSummary(t *testing.T) {
	srv, opts := newFakeServer(t, true)
	ctx := context.Background()

	p, err := NewPublisher(ctx, testProject, testTopic, discardLogger(), opts...)
	require.NoError(t, err)
	require.NoError(t, p.Notify(ctx, testSummary()))
	require.NoError(t, p.Close())

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "GameLeaderboard - Ranking Update", msgs[0].Attributes[AttrSubject])
	assert.Equal(t, "1", msgs[0].Attributes[AttrGamesProcessed])
	assert.Equal(t, "3", msgs[0].Attributes[AttrTotalScores])
	assert.Equal(t, "Rankings calculated successfully!", string(msgs[0].Data))
}

func TestPublisher_MissingTopic(t *testing.T) {
	_, opts := newFakeServer(t, false)
	ctx := context.Background()

	p, err := NewPublisher(ctx, testProject, testTopic, discardLogger(), opts...)
	require.NoError(t, err)
	defer p.Close()

	assert.Error(t, p.Notify(ctx, testSummary()))
}
