package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yakoovad/finflow/internal/events"
	"github.com/yakoovad/finflow/internal/mocks"
	"go.uber.org/zap"
)

type stubLocker struct {
	taken map[string]bool
	err   error
}

func (s *stubLocker) Acquire(_ context.Context, key string, _ time.Duration) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if s.taken[key] {
		return false, nil
	}
	s.taken[key] = true
	return true, nil
}

func TestSchedulerFire(t *testing.T) {
	sc := DefaultSchedules[0]
	at := time.Date(2024, 6, 1, 8, 0, 12, 0, time.UTC)

	tests := []struct {
		name      string
		locker    Locker
		fires     []time.Time
		wantEmits int
		wantErr   bool
	}{
		{
			name:      "no locker always emits",
			fires:     []time.Time{at, at},
			wantEmits: 2,
		},
		{
			name:      "same minute fires once",
			locker:    &stubLocker{taken: map[string]bool{}},
			fires:     []time.Time{at, at.Add(30 * time.Second)},
			wantEmits: 1,
		},
		{
			name:      "next minute fires again",
			locker:    &stubLocker{taken: map[string]bool{}},
			fires:     []time.Time{at, at.Add(time.Minute)},
			wantEmits: 2,
		},
		{
			name:    "lock failure",
			locker:  &stubLocker{err: errors.New("redis down")},
			fires:   []time.Time{at},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emitter := &mocks.MockEmitter{}
			s, err := NewScheduler(emitter, tt.locker, DefaultSchedules, zap.NewNop())
			require.NoError(t, err)

			for _, f := range tt.fires {
				err = s.Fire(context.Background(), sc, f)
			}

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Len(t, emitter.Emitted, tt.wantEmits)
			for _, e := range emitter.Emitted {
				assert.Equal(t, events.CheckConnectionHealth, e.Name)
			}
		})
	}
}

func TestNewSchedulerRejectsBadCron(t *testing.T) {
	_, err := NewScheduler(&mocks.MockEmitter{}, nil, []Schedule{{Name: "bad", Event: "x", Cron: "every day"}}, zap.NewNop())
	assert.Error(t, err)
}

func TestUpcoming(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 10, 0, 0, time.UTC)

	runs, err := Upcoming(DefaultSchedules, now)
	require.NoError(t, err)
	require.Len(t, runs, 3)

	want := map[string]time.Time{
		"bank-connection-health":  time.Date(2024, 6, 1, 16, 0, 0, 0, time.UTC),
		"bank-sync-scheduler":     time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		"transaction-categorizer": time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC),
	}
	for _, r := range runs {
		assert.Equal(t, want[r.Name], r.Next, r.Name)
	}
}

func TestRedisLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l := NewRedisLocker(client)
	ctx := context.Background()

	ok, err := l.Acquire(ctx, "cron:x:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Acquire(ctx, "cron:x:1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(2 * time.Minute)

	ok, err = l.Acquire(ctx, "cron:x:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
