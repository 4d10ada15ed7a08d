package waiter

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/fgeck/devicectl/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockObserver struct {
	mu          sync.Mutex
	calls       []time.Time
	inFlight    int
	maxInFlight int
	observeFunc func(call int) (models.State, error)
}

func (m *mockObserver) Observe(ctx context.Context, dev models.Device) (models.State, error) {
	m.mu.Lock()
	m.calls = append(m.calls, time.Now())
	call := len(m.calls)
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if m.observeFunc != nil {
		return m.observeFunc(call)
	}
	return models.StateUp, nil
}

func (m *mockObserver) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testDevice(interval time.Duration) models.Device {
	return models.Device{Name: "box", Address: "127.0.0.1", Interval: interval}
}

func TestWaitUp_AlreadyUp(t *testing.T) {
	observer := &mockObserver{}
	svc := NewWithObserver(testLogger(), observer)

	err := svc.WaitUp(context.Background(), testDevice(time.Hour))

	require.NoError(t, err)
	assert.Equal(t, 1, observer.callCount())
}

func TestWaitUp_AfterNIntervals(t *testing.T) {
	const n = 3
	interval := 30 * time.Millisecond

	observer := &mockObserver{
		observeFunc: func(call int) (models.State, error) {
			if call <= n {
				return models.StateDown, nil
			}
			return models.StateUp, nil
		},
	}
	svc := NewWithObserver(testLogger(), observer)

	start := time.Now()
	err := svc.WaitUp(context.Background(), testDevice(interval))
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, n+1, observer.callCount())
	assert.GreaterOrEqual(t, elapsed, n*interval)
	assert.Less(t, elapsed, (n+1)*interval+interval/2)
}

func TestWaitUp_ProbeErrorsKeepPolling(t *testing.T) {
	observer := &mockObserver{
		observeFunc: func(call int) (models.State, error) {
			if call < 3 {
				return models.StateDown, models.ErrResolution
			}
			return models.StateUp, nil
		},
	}
	svc := NewWithObserver(testLogger(), observer)

	err := svc.WaitUp(context.Background(), testDevice(5*time.Millisecond))

	require.NoError(t, err)
	assert.Equal(t, 3, observer.callCount())
}

func TestWaitDown(t *testing.T) {
	observer := &mockObserver{
		observeFunc: func(call int) (models.State, error) {
			if call < 2 {
				return models.StateUp, nil
			}
			return models.StateDown, nil
		},
	}
	svc := NewWithObserver(testLogger(), observer)

	err := svc.WaitDown(context.Background(), testDevice(5*time.Millisecond))

	require.NoError(t, err)
	assert.Equal(t, 2, observer.callCount())
}

func TestWaitFor_OnlyExternalDeadlineStopsIt(t *testing.T) {
	observer := &mockObserver{
		observeFunc: func(call int) (models.State, error) {
			return models.StateDown, errors.New("still booting")
		},
	}
	svc := NewWithObserver(testLogger(), observer)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	err := svc.WaitUp(ctx, testDevice(10*time.Millisecond))

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, observer.callCount(), 3)
}

func TestWaitFor_ProbesNeverOverlap(t *testing.T) {
	observer := &mockObserver{
		observeFunc: func(call int) (models.State, error) {
			time.Sleep(15 * time.Millisecond)
			if call < 4 {
				return models.StateDown, nil
			}
			return models.StateUp, nil
		},
	}
	svc := NewWithObserver(testLogger(), observer)

	err := svc.WaitUp(context.Background(), testDevice(time.Millisecond))

	require.NoError(t, err)
	assert.Equal(t, 1, observer.maxInFlight)

	// each probe starts after the previous one returned
	for i := 1; i < len(observer.calls); i++ {
		assert.GreaterOrEqual(t, observer.calls[i].Sub(observer.calls[i-1]), 15*time.Millisecond)
	}
}
