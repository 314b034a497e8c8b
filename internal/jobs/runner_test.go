package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type sweeper struct{ n, calls int }

func (s *sweeper) Sweep() int {
	s.calls++
	return s.n
}

func TestRunner_RecoversPanic(t *testing.T) {
	r := New(context.Background(), nil)
	assert.NotPanics(t, func() {
		r.run("boom", func(context.Context) error { panic("oops") })
	})
}

func TestRunner_ErrorDoesNotStopLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var calls atomic.Int32
	New(ctx, nil).Every(5*time.Millisecond, "fail", func(context.Context) error {
		calls.Add(1)
		return errors.New("x")
	})
	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestRunner_EveryStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	New(ctx, nil).Every(5*time.Millisecond, "tick", func(context.Context) error {
		calls.Add(1)
		return nil
	})
	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	time.Sleep(20 * time.Millisecond)
	n := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, calls.Load())
}

func TestSweepSessions(t *testing.T) {
	s := &sweeper{n: 3}
	job := SweepSessions(s, zap.NewNop())
	assert.NoError(t, job(context.Background()))
	assert.NoError(t, job(context.Background()))
	assert.Equal(t, 2, s.calls)
}

type notes struct{ got map[int64][]string }

func (n *notes) Notify(_ context.Context, chatID int64, text string) error {
	if n.got == nil {
		n.got = map[int64][]string{}
	}
	n.got[chatID] = append(n.got[chatID], text)
	return nil
}

func TestPeriodRollover(t *testing.T) {
	key := "2026-Q3"
	n := &notes{}
	job := PeriodRollover(
		func() string { return key },
		func(context.Context) (string, error) { return "Сводка", nil },
		n, []int64{1, 2}, zap.NewNop(),
	)
	ctx := context.Background()

	assert.NoError(t, job(ctx))
	assert.NoError(t, job(ctx))
	assert.Empty(t, n.got)

	key = "2026-Q4"
	assert.NoError(t, job(ctx))
	assert.Equal(t, []string{"Начался период 2026-Q4 (закрыт 2026-Q3).\n\nСводка"}, n.got[1])
	assert.Len(t, n.got[2], 1)

	assert.NoError(t, job(ctx))
	assert.Len(t, n.got[1], 1)
}

func TestPeriodRollover_RetriesAfterSummaryError(t *testing.T) {
	key := "2026-Q3"
	failing := true
	n := &notes{}
	job := PeriodRollover(
		func() string { return key },
		func(context.Context) (string, error) {
			if failing {
				return "", errors.New("db down")
			}
			return "Сводка", nil
		},
		n, []int64{1}, zap.NewNop(),
	)
	ctx := context.Background()
	assert.NoError(t, job(ctx))

	key = "2026-Q4"
	assert.Error(t, job(ctx))
	assert.Empty(t, n.got)

	failing = false
	assert.NoError(t, job(ctx))
	assert.Equal(t, []string{"Начался период 2026-Q4 (закрыт 2026-Q3).\n\nСводка"}, n.got[1])
}
