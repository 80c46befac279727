package health

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tchayre/logsti/internal/gateway"
)

type fakeChecker struct {
	ok    atomic.Bool
	calls atomic.Int32
	gate  chan struct{}
}

func (f *fakeChecker) HealthCheck(ctx context.Context) gateway.HealthStatus {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return gateway.HealthStatus{Status: gateway.StatusError, Message: ctx.Err().Error()}
		}
	}
	if f.ok.Load() {
		return gateway.HealthStatus{OK: true, Status: gateway.StatusOK}
	}
	return gateway.HealthStatus{Status: gateway.StatusError, Message: "connection refused"}
}

func TestMonitorInitialState(t *testing.T) {
	m := NewMonitor(&fakeChecker{}, 0)
	assert.Equal(t, DefaultInterval, m.interval)
	assert.True(t, m.Connected())
	assert.False(t, m.Checking())
}

func TestMonitorCheck(t *testing.T) {
	f := &fakeChecker{}
	m := NewMonitor(f, time.Hour)

	var mu sync.Mutex
	var seen []bool
	cancel := m.OnChange(func(connected bool) {
		mu.Lock()
		seen = append(seen, connected)
		mu.Unlock()
	})
	defer cancel()

	assert.False(t, m.Check(context.Background()))
	assert.False(t, m.Connected())
	assert.Equal(t, "connection refused", m.Last().Message)

	f.ok.Store(true)
	assert.True(t, m.Check(context.Background()), "try again recovers")
	assert.True(t, m.Connected())

	mu.Lock()
	assert.Equal(t, []bool{true, false, false, true}, seen)
	mu.Unlock()
}

func TestMonitorCheckingFlag(t *testing.T) {
	f := &fakeChecker{gate: make(chan struct{})}
	f.ok.Store(true)
	m := NewMonitor(f, time.Hour)

	done := make(chan bool)
	go func() { done <- m.Check(context.Background()) }()
	require.Eventually(t, m.Checking, time.Second, 5*time.Millisecond)
	close(f.gate)
	assert.True(t, <-done)
	assert.False(t, m.Checking())
}

func TestMonitorSchedule(t *testing.T) {
	f := &fakeChecker{}
	f.ok.Store(true)
	m := NewMonitor(f, time.Second)
	require.NoError(t, m.Start())
	require.NoError(t, m.Start())

	require.Eventually(t, func() bool { return f.calls.Load() >= 2 }, 3*time.Second, 20*time.Millisecond,
		"initial check plus at least one scheduled check")
	m.Stop()
	m.Stop()

	after := f.calls.Load()
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, after, f.calls.Load(), "no checks after Stop")
}

func TestMonitorStopCancelsCheck(t *testing.T) {
	f := &fakeChecker{gate: make(chan struct{})}
	m := NewMonitor(f, time.Hour)
	require.NoError(t, m.Start())
	require.Eventually(t, m.Checking, time.Second, 5*time.Millisecond)

	m.Stop()
	assert.False(t, m.Checking())
	assert.False(t, m.Connected())
}
