package redis

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/game-leaderboard/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewStoreWithClient(client, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func record(playerID, gameID string, score int64, ts int64) domain.ScoreRecord {
	return domain.NewScoreRecord(playerID, gameID, score, "name-"+playerID, time.UnixMilli(ts))
}

func TestStore_GetMissing(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Get(context.Background(), "p1", "g1")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestStore_PutAndGet(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	rec := record("p1", "g1", 500, 1_700_000_000_000)

	require.NoError(t, s.Put(ctx, rec))

	got, err := s.Get(ctx, "p1", "g1")
	require.NoError(t, err)
	assert.Equal(t, rec, *got)

	assert.True(t, mr.Exists("score:p1:g1"))
	members, err := mr.ZMembers("game:g1:rankings")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, members)
}

func TestStore_PutIfHigher(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	res, err := s.PutIfHigher(ctx, record("p1", "g1", 500, 1))
	require.NoError(t, err)
	assert.Equal(t, domain.WriteResult{Written: true}, res)

	res, err = s.PutIfHigher(ctx, record("p1", "g1", 750, 2))
	require.NoError(t, err)
	assert.Equal(t, domain.WriteResult{Written: true, Existed: true, Previous: 500}, res)

	res, err = s.PutIfHigher(ctx, record("p1", "g1", 750, 3))
	require.NoError(t, err)
	assert.Equal(t, domain.WriteResult{Existed: true, Previous: 750}, res, "equal score is not an improvement")

	res, err = s.PutIfHigher(ctx, record("p1", "g1", 100, 4))
	require.NoError(t, err)
	assert.False(t, res.Written)

	got, err := s.Get(ctx, "p1", "g1")
	require.NoError(t, err)
	assert.Equal(t, int64(750), got.Score)
	assert.Equal(t, int64(2), got.Timestamp)
}

func TestStore_PutIfHigherZeroScore(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	res, err := s.PutIfHigher(ctx, record("p1", "g1", 0, 1))
	require.NoError(t, err)
	assert.True(t, res.Written)

	res, err = s.PutIfHigher(ctx, record("p1", "g1", 0, 2))
	require.NoError(t, err)
	assert.False(t, res.Written)
	assert.True(t, res.Existed)
}

func TestStore_QueryByGameOrdering(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for _, r := range []domain.ScoreRecord{
		record("carol", "g1", 300, 1),
		record("bob", "g1", 900, 2),
		record("alice", "g1", 300, 3),
		record("dave", "g1", 100, 4),
		record("erin", "g2", 999, 5),
	} {
		_, err := s.PutIfHigher(ctx, r)
		require.NoError(t, err)
	}

	got, err := s.QueryByGame(ctx, "g1", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "bob", got[0].PlayerID)
	assert.Equal(t, "alice", got[1].PlayerID)
	assert.Equal(t, "carol", got[2].PlayerID)

	got, err = s.QueryByGame(ctx, "g1", 100)
	require.NoError(t, err)
	assert.Len(t, got, 4)

	got, err = s.QueryByGame(ctx, "missing", 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.QueryByGame(ctx, "g1", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_QueryByGameReflectsImprovement(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.PutIfHigher(ctx, record("a", "g1", 500, 1))
	require.NoError(t, err)
	_, err = s.PutIfHigher(ctx, record("b", "g1", 600, 2))
	require.NoError(t, err)
	_, err = s.PutIfHigher(ctx, record("a", "g1", 700, 3))
	require.NoError(t, err)

	got, err := s.QueryByGame(ctx, "g1", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].PlayerID)
	assert.Equal(t, int64(700), got[0].Score)
}

func TestStore_QueryByPlayer(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, record("p1", "g1", 10, 1)))
	require.NoError(t, s.Put(ctx, record("p1", "g2", 20, 2)))
	require.NoError(t, s.Put(ctx, record("p2", "g1", 30, 3)))

	got, err := s.QueryByPlayer(ctx, "p1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"g1", "g2"}, []string{got[0].GameID, got[1].GameID})

	got, err = s.QueryByPlayer(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_KeysDoNotCollide(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, record("a:b", "c", 10, 1)))
	require.NoError(t, s.Put(ctx, record("a", "b:c", 20, 2)))

	first, err := s.Get(ctx, "a:b", "c")
	require.NoError(t, err)
	second, err := s.Get(ctx, "a", "b:c")
	require.NoError(t, err)
	assert.Equal(t, int64(10), first.Score)
	assert.Equal(t, int64(20), second.Score)
}

func TestStore_ScanAllVisitsEveryRecordOnce(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	const n = 57
	for i := 0; i < n; i++ {
		require.NoError(t, s.Put(ctx, record(fmt.Sprintf("p%02d", i), fmt.Sprintf("g%d", i%3), int64(i), int64(i))))
	}

	seen := make(map[string]int)
	err := s.ScanAll(ctx, 10, func(page []domain.ScoreRecord) error {
		for _, r := range page {
			seen[r.PlayerID+"/"+r.GameID]++
		}
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, seen, n)
	for k, c := range seen {
		assert.Equal(t, 1, c, k)
	}
}

func TestStore_ScanAllStopsOnCallbackError(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, record("p1", "g1", 1, 1)))

	stop := fmt.Errorf("stop")
	err := s.ScanAll(ctx, 10, func([]domain.ScoreRecord) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestStore_ScanAllEmpty(t *testing.T) {
	s, _ := newTestStore(t)

	called := false
	err := s.ScanAll(context.Background(), 0, func([]domain.ScoreRecord) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}

// Two submissions that both read "no record" and then write unconditionally
// leave the lower score behind. PutIfHigher closes that window.
func TestStore_ReadThenWriteLosesUpdate(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, errLow := s.Get(ctx, "p1", "g1")
	_, errHigh := s.Get(ctx, "p1", "g1")
	require.ErrorIs(t, errLow, domain.ErrRecordNotFound)
	require.ErrorIs(t, errHigh, domain.ErrRecordNotFound)

	require.NoError(t, s.Put(ctx, record("p1", "g1", 900, 1)))
	require.NoError(t, s.Put(ctx, record("p1", "g1", 500, 2)))

	got, err := s.Get(ctx, "p1", "g1")
	require.NoError(t, err)
	assert.Equal(t, int64(500), got.Score, "unconditional writes keep the last writer")

	_, err = s.PutIfHigher(ctx, record("p2", "g1", 900, 1))
	require.NoError(t, err)
	_, err = s.PutIfHigher(ctx, record("p2", "g1", 500, 2))
	require.NoError(t, err)

	got, err = s.Get(ctx, "p2", "g1")
	require.NoError(t, err)
	assert.Equal(t, int64(900), got.Score)
}

func TestStore_PutIfHigherConcurrent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	const workers = 40
	var wg sync.WaitGroup
	var mu sync.Mutex
	written := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(score int64) {
			defer wg.Done()
			res, err := s.PutIfHigher(ctx, record("p1", "g1", score, score))
			assert.NoError(t, err)
			if res.Written {
				mu.Lock()
				written++
				mu.Unlock()
			}
		}(int64((i * 7919) % 1000))
	}
	wg.Wait()

	got, err := s.Get(ctx, "p1", "g1")
	require.NoError(t, err)
	assert.Equal(t, int64(975), got.Score)
	assert.GreaterOrEqual(t, written, 1)

	ranked, err := s.QueryByGame(ctx, "g1", 10)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, int64(975), ranked[0].Score)
}
