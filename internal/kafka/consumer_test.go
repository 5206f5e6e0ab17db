package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/game-leaderboard/internal/config"
	"github.com/game-leaderboard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSubmitter struct {
	mu   sync.Mutex
	reqs []domain.SubmitRequest
	err  error
}

func (f *fakeSubmitter) Submit(_ context.Context, req domain.SubmitRequest) (*domain.SubmissionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &domain.SubmissionResult{Accepted: true, Score: *req.Score}, nil
}

func (f *fakeSubmitter) submitted() []domain.SubmitRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.SubmitRequest(nil), f.reqs...)
}

type fakeSession struct {
	sarama.ConsumerGroupSession
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *fakeSession) Context() context.Context { return s.ctx }

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	sarama.ConsumerGroupClaim
	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

func testConsumer(sub Submitter, batchSize int) *Consumer {
	cfg := &config.KafkaConfig{Topic: "game-scores", BatchSize: batchSize, BatchTimeout: time.Hour}
	return newConsumer(cfg, sub, discardLogger(), nil)
}

func TestDecodeSubmission(t *testing.T) {
	req, err := DecodeSubmission([]byte(`{"playerId":"p1","gameId":"g1","score":500,"playerName":"Alice"}`))
	require.NoError(t, err)
	assert.Equal(t, "p1", req.PlayerID)
	assert.Equal(t, "g1", req.GameID)
	assert.Equal(t, "Alice", req.PlayerName)
	require.NotNil(t, req.Score)
	assert.Equal(t, int64(500), *req.Score)

	req, err = DecodeSubmission([]byte(`{"playerId":"p1","gameId":"g1","playerName":"Alice"}`))
	require.NoError(t, err)
	assert.Nil(t, req.Score, "missing score is left for validation")

	_, err = DecodeSubmission([]byte(`{"playerId":"p1","gameId":"g1","score":1.5,"playerName":"Alice"}`))
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = DecodeSubmission([]byte(`not json`))
	assert.Error(t, err)
}

func TestConsumeClaim_SubmitsDecodedMessages(t *testing.T) {
	sub := &fakeSubmitter{}
	c := testConsumer(sub, 10)
	session := &fakeSession{ctx: context.Background()}
	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 4)}

	claim.messages <- &sarama.ConsumerMessage{Offset: 1, Value: []byte(`{"playerId":"p1","gameId":"g1","score":10,"playerName":"A"}`)}
	claim.messages <- &sarama.ConsumerMessage{Offset: 2, Value: []byte(`garbage`)}
	claim.messages <- &sarama.ConsumerMessage{Offset: 3, Value: []byte(`{"playerId":"p2","gameId":"g1","score":-1,"playerName":"B"}`)}
	claim.messages <- &sarama.ConsumerMessage{Offset: 4, Value: []byte(`{"playerId":"p3","gameId":"g2","score":30,"playerName":"C"}`)}
	close(claim.messages)

	h := &consumerGroupHandler{consumer: c, ready: make(chan bool)}
	require.NoError(t, h.ConsumeClaim(session, claim))

	reqs := sub.submitted()
	require.Len(t, reqs, 3, "undecodable messages never reach the submitter")
	assert.Equal(t, "p1", reqs[0].PlayerID)
	assert.Equal(t, "p2", reqs[1].PlayerID)
	assert.Equal(t, "p3", reqs[2].PlayerID)
	assert.Equal(t, []int64{1, 2, 3, 4}, session.marked)
}

func TestConsumeClaim_FlushesFullBatches(t *testing.T) {
	sub := &fakeSubmitter{}
	c := testConsumer(sub, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session := &fakeSession{ctx: ctx}
	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage)}

	done := make(chan error, 1)
	h := &consumerGroupHandler{consumer: c, ready: make(chan bool)}
	go func() { done <- h.ConsumeClaim(session, claim) }()

	claim.messages <- &sarama.ConsumerMessage{Value: []byte(`{"playerId":"p1","gameId":"g1","score":1,"playerName":"A"}`)}
	claim.messages <- &sarama.ConsumerMessage{Value: []byte(`{"playerId":"p2","gameId":"g1","score":2,"playerName":"B"}`)}
	assert.Eventually(t, func() bool { return len(sub.submitted()) == 2 }, time.Second, 5*time.Millisecond)

	claim.messages <- &sarama.ConsumerMessage{Value: []byte(`{"playerId":"p3","gameId":"g1","score":3,"playerName":"C"}`)}
	cancel()
	require.NoError(t, <-done)
	assert.Len(t, sub.submitted(), 3, "pending batch is flushed on shutdown")
}

func TestSubmitBatch_ContinuesPastFailures(t *testing.T) {
	sub := &fakeSubmitter{err: &domain.StoreError{Op: "put_if_higher", Err: errors.New("down")}}
	c := testConsumer(sub, 10)

	score := int64(5)
	accepted, failed := c.submitBatch([]domain.SubmitRequest{
		{PlayerID: "p1", GameID: "g1", PlayerName: "A", Score: &score},
		{PlayerID: "p2", GameID: "g1", PlayerName: "B", Score: &score},
	})
	assert.Zero(t, accepted)
	assert.Equal(t, 2, failed)
	assert.Len(t, sub.submitted(), 2)
}

type fakeGroup struct {
	sarama.ConsumerGroup
	errs   chan error
	closed bool
}

func (g *fakeGroup) Consume(ctx context.Context, _ []string, handler sarama.ConsumerGroupHandler) error {
	if err := handler.Setup(nil); err != nil {
		return err
	}
	<-ctx.Done()
	return handler.Cleanup(nil)
}

func (g *fakeGroup) Errors() <-chan error { return g.errs }

func (g *fakeGroup) Close() error {
	g.closed = true
	return nil
}

func TestConsumer_StartStop(t *testing.T) {
	group := &fakeGroup{errs: make(chan error)}
	cfg := &config.KafkaConfig{Topic: "game-scores", BatchSize: 10, BatchTimeout: time.Second}
	c := newConsumer(cfg, &fakeSubmitter{}, discardLogger(), group)

	require.NoError(t, c.Start())
	require.NoError(t, c.Stop())
	assert.True(t, group.closed)
}
