package retry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordingPoller(base time.Duration, max int) (*Poller, *[]time.Duration) {
	var sleeps []time.Duration
	p := NewPoller(base, max)
	p.Sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	return p, &sleeps
}

func Test_Poll(t *testing.T) {
	t.Run("success on the third check", func(t *testing.T) {
		p, sleeps := recordingPoller(400*time.Millisecond, 10)
		calls := 0

		value, err := Poll(p, func() (string, bool) {
			calls++
			return "done", calls == 3
		})
		require.NoError(t, err)
		assert.Equal(t, "done", value)
		assert.Equal(t, 3, calls)
		assert.Equal(t, []time.Duration{400 * time.Millisecond, 800 * time.Millisecond, 1600 * time.Millisecond}, *sleeps)
	})

	t.Run("success on the first check still waits the base delay", func(t *testing.T) {
		p, sleeps := recordingPoller(time.Second, 3)
		value, err := Poll(p, func() (int, bool) { return 7, true })
		require.NoError(t, err)
		assert.Equal(t, 7, value)
		assert.Equal(t, []time.Duration{time.Second}, *sleeps)
	})

	t.Run("never done exhausts after max plus one checks", func(t *testing.T) {
		p, sleeps := recordingPoller(10*time.Millisecond, 3)
		calls := 0

		_, err := Poll(p, func() (struct{}, bool) {
			calls++
			return struct{}{}, false
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrRetryExhausted))
		assert.Equal(t, 4, calls)
		assert.Equal(t, []time.Duration{
			10 * time.Millisecond,
			20 * time.Millisecond,
			40 * time.Millisecond,
			80 * time.Millisecond,
		}, *sleeps)

		var exhausted *ExhaustedError
		require.True(t, errors.As(err, &exhausted))
		assert.Equal(t, 4, exhausted.Attempts)
	})

	t.Run("zero attempts allows a single check", func(t *testing.T) {
		p, _ := recordingPoller(time.Millisecond, 0)
		calls := 0
		_, err := Poll(p, func() (int, bool) {
			calls++
			return 0, false
		})
		assert.ErrorIs(t, err, ErrRetryExhausted)
		assert.Equal(t, 1, calls)
	})
}

func Test_PollErr(t *testing.T) {
	t.Run("check error stops polling", func(t *testing.T) {
		p, sleeps := recordingPoller(time.Millisecond, 5)
		boom := errors.New("boom")
		calls := 0

		_, err := PollErr(p, func() (int, bool, error) {
			calls++
			if calls == 2 {
				return 0, false, boom
			}
			return 0, false, nil
		})
		assert.ErrorIs(t, err, boom)
		assert.False(t, errors.Is(err, ErrRetryExhausted))
		assert.Equal(t, 2, calls)
		assert.Len(t, *sleeps, 2)
	})
}
