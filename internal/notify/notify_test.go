package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/game-leaderboard/internal/domain"
	"github.com/game-leaderboard/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMulti_DeliversToAllSinks(t *testing.T) {
	m := metrics.NewMock()
	var got []string
	record := func(name string) Notifier {
		return Func(func(_ context.Context, s domain.StatsSummary) error {
			got = append(got, name+":"+s.Subject)
			return nil
		})
	}

	multi := NewMulti(m, slog.New(slog.NewTextHandler(io.Discard, nil)), Sink{Name: "a", Notifier: record("a")})
	multi.Add("b", record("b"))

	err := multi.Notify(context.Background(), domain.StatsSummary{Subject: "s"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a:s", "b:s"}, got)
	assert.Equal(t, 2, multi.Len())
	assert.Equal(t, 1, m.NotifSent("a"))
	assert.Equal(t, 1, m.NotifSent("b"))
}

func TestMulti_FailureDoesNotStopOthers(t *testing.T) {
	m := metrics.NewMock()
	cause := errors.New("broker down")
	delivered := false

	multi := NewMulti(m, slog.New(slog.NewTextHandler(io.Discard, nil)),
		Sink{Name: "kafka", Notifier: Func(func(context.Context, domain.StatsSummary) error { return cause })},
		Sink{Name: "ws", Notifier: Func(func(context.Context, domain.StatsSummary) error { delivered = true; return nil })},
	)

	err := multi.Notify(context.Background(), domain.StatsSummary{})
	require.Error(t, err)
	assert.True(t, delivered)
	assert.ErrorIs(t, err, cause)

	var ne *domain.NotificationError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, "kafka", ne.Sink)
	assert.Equal(t, 1, m.NotifFailed("kafka"))
	assert.Equal(t, 1, m.NotifSent("ws"))
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.Notify(context.Background(), domain.StatsSummary{}))
}
