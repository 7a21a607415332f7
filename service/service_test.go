package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/outofforest/qa"
)

func collect(ch <-chan Event) []State {
	var states []State
	for {
		select {
		case e := <-ch:
			states = append(states, e.State)
		default:
			return states
		}
	}
}

func TestLifecycle(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	var started, stopped atomic.Int32
	s := New("test", Hooks{
		Start: func(ctx context.Context) error {
			started.Add(1)
			return nil
		},
		Stop: func(ctx context.Context) error {
			stopped.Add(1)
			return nil
		},
	})
	events := s.Subscribe(100)
	requireT.Equal(StateNew, s.State())

	requireT.NoError(s.Start(ctx))
	requireT.NoError(s.Start(ctx))
	requireT.Equal(StateRunning, s.State())
	requireT.EqualValues(1, started.Load())

	requireT.NoError(s.Stop(ctx))
	requireT.NoError(s.Stop(ctx))
	requireT.Equal(StateStopped, s.State())
	requireT.EqualValues(1, stopped.Load())

	requireT.Equal([]State{StateStarting, StateRunning, StateStopping, StateStopped}, collect(events))

	requireT.NoError(s.Start(ctx))
	requireT.Equal(StateRunning, s.State())
	requireT.EqualValues(2, started.Load())
	requireT.NoError(s.Stop(ctx))
}

func TestStopNew(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	var stopped atomic.Int32
	s := New("test", Hooks{
		Stop: func(ctx context.Context) error {
			stopped.Add(1)
			return nil
		},
	})
	events := s.Subscribe(10)

	requireT.NoError(s.Stop(ctx))
	requireT.Equal(StateStopped, s.State())
	requireT.Zero(stopped.Load())
	requireT.Equal([]State{StateStopped}, collect(events))
}

func TestFailedStartStops(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	errStart := errors.New("start failed")
	var stopped atomic.Int32
	s := New("test", Hooks{
		Start: func(ctx context.Context) error {
			return errStart
		},
		Stop: func(ctx context.Context) error {
			stopped.Add(1)
			return nil
		},
	})
	events := s.Subscribe(10)

	requireT.ErrorIs(s.Start(ctx), errStart)
	requireT.Equal(StateStopped, s.State())
	requireT.EqualValues(1, stopped.Load())
	requireT.Equal([]State{StateStarting, StateStartFailed, StateStopping, StateStopped}, collect(events))
}

func TestStopError(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	errStop := errors.New("stop failed")
	s := New("test", Hooks{
		Stop: func(ctx context.Context) error {
			return errStop
		},
	})

	requireT.NoError(s.Start(ctx))
	requireT.ErrorIs(s.Stop(ctx), errStop)
	requireT.Equal(StateStopped, s.State())
}

func TestHealthChecksRunOnlyWhileRunning(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	var runs atomic.Int32
	s := New("test", Hooks{}, HealthCheck{
		Name:     "counter",
		Interval: time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	time.Sleep(10 * time.Millisecond)
	requireT.Zero(runs.Load())
	requireT.Empty(s.Health())

	requireT.NoError(s.Start(ctx))
	requireT.Eventually(func() bool {
		return runs.Load() >= 3
	}, 5*time.Second, time.Millisecond)

	requireT.NoError(s.Stop(ctx))
	afterStop := runs.Load()
	time.Sleep(10 * time.Millisecond)
	requireT.Equal(afterStop, runs.Load())

	health := s.Health()
	requireT.Len(health, 1)
	requireT.Equal("counter", health[0].Name)
	requireT.Equal(Green, health[0].Status)
	requireT.True(s.Healthy())
}

func TestHealthStatuses(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	s := New("test", Hooks{},
		HealthCheck{
			Name: "green",
			Run: func(ctx context.Context) error {
				return nil
			},
		},
		HealthCheck{
			Name: "yellow",
			Run: func(ctx context.Context) error {
				return errors.Wrap(ErrDegraded, "slow")
			},
		},
		HealthCheck{
			Name:   "red",
			Impact: Low,
			Run: func(ctx context.Context) error {
				return errors.New("down")
			},
		},
	)

	requireT.NoError(s.Start(ctx))
	t.Cleanup(func() {
		_ = s.Stop(context.Background())
	})

	requireT.Eventually(func() bool {
		return len(s.Health()) == 3
	}, 5*time.Second, time.Millisecond)

	health := s.Health()
	requireT.Equal("green", health[0].Name)
	requireT.Equal(Green, health[0].Status)
	requireT.Equal("red", health[1].Name)
	requireT.Equal(Red, health[1].Status)
	requireT.Equal(Low, health[1].Impact)
	requireT.Error(health[1].Err)
	requireT.Equal("yellow", health[2].Name)
	requireT.Equal(Yellow, health[2].Status)
	requireT.False(s.Healthy())
}

func TestMemoryCheck(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	requireT.NoError(MemoryCheck(100, 100, time.Second).Run(ctx))
	requireT.Error(MemoryCheck(0, 0, time.Second).Run(ctx))
	requireT.ErrorIs(MemoryCheck(0, 101, time.Second).Run(ctx), ErrDegraded)
}
