package errors

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(maxFailures int, reset time.Duration) *CircuitBreaker {
	return NewCircuitBreaker("embed-test",
		WithMaxFailures(maxFailures),
		WithResetTimeout(reset),
	)
}

func TestCircuitBreaker_StartsClosed(t *testing.T) {
	cb := NewCircuitBreaker("openai-embed")

	assert.Equal(t, "openai-embed", cb.Name())
	assert.Equal(t, StateClosed, cb.State())
	assert.True(t, cb.Allow())
	assert.Zero(t, cb.Failures())
}

func TestCircuitBreaker_TripsAtThreshold(t *testing.T) {
	cb := newTestBreaker(3, time.Minute)

	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State(), "below threshold stays closed")
	assert.True(t, cb.Allow())

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
	assert.Equal(t, 3, cb.Failures())
}

func TestCircuitBreaker_SuccessClearsFailureStreak(t *testing.T) {
	cb := newTestBreaker(3, time.Minute)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()

	// The streak restarted after the success, so two more failures do
	// not reach the threshold of three.
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 2, cb.Failures())
}

func TestCircuitBreaker_OpenRefusesWithoutCalling(t *testing.T) {
	cb := newTestBreaker(1, time.Minute)
	cb.RecordFailure()

	called := false
	err := cb.Execute(func() error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called, "open circuit must not invoke the function")
}

func TestCircuitBreaker_HalfOpenAfterResetTimeout(t *testing.T) {
	cb := newTestBreaker(1, 20*time.Millisecond)
	cb.RecordFailure()
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(35 * time.Millisecond)

	assert.Equal(t, StateHalfOpen, cb.State())
	assert.True(t, cb.Allow(), "half-open admits a probe")
}

func TestCircuitBreaker_ProbeSuccessCloses(t *testing.T) {
	cb := newTestBreaker(1, 20*time.Millisecond)
	cb.RecordFailure()
	time.Sleep(35 * time.Millisecond)

	err := cb.Execute(func() error { return nil })

	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
	assert.Zero(t, cb.Failures())
}

func TestCircuitBreaker_ProbeFailureRearmsTimeout(t *testing.T) {
	cb := newTestBreaker(1, 25*time.Millisecond)
	cb.RecordFailure()
	time.Sleep(40 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	probeErr := errors.New("still unreachable")
	err := cb.Execute(func() error { return probeErr })

	assert.ErrorIs(t, err, probeErr)
	assert.Equal(t, StateOpen, cb.State(), "failed probe re-opens immediately")
	assert.False(t, cb.Allow())
}

func TestCircuitBreaker_ExecutePassesResultsThrough(t *testing.T) {
	cb := newTestBreaker(5, time.Minute)

	sentinel := errors.New("429 from endpoint")
	assert.ErrorIs(t, cb.Execute(func() error { return sentinel }), sentinel)
	assert.Equal(t, 1, cb.Failures())

	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.Zero(t, cb.Failures())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestCircuitBreaker_ConcurrentTraffic(t *testing.T) {
	cb := newTestBreaker(50, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if (worker+j)%3 == 0 {
					cb.RecordFailure()
				} else {
					cb.RecordSuccess()
				}
				cb.Allow()
				_ = cb.State()
			}
		}(i)
	}
	wg.Wait()

	// Interleaving makes the final state timing-dependent, but it must
	// be one of the defined states and the breaker must stay usable.
	final := cb.State()
	assert.Contains(t, []State{StateClosed, StateOpen, StateHalfOpen}, final)
}
