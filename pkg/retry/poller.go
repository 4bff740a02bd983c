package retry

import (
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"github.com/superplanehq/gauth/pkg/logging"
)

const (
	DefaultBaseDelay   = 400 * time.Millisecond
	DefaultMaxAttempts = 10
)

var ErrRetryExhausted = errors.New("retry attempts exhausted")

type ExhaustedError struct {
	Attempts int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("condition not met after %d checks: %v", e.Attempts, ErrRetryExhausted)
}

func (e *ExhaustedError) Unwrap() error {
	return ErrRetryExhausted
}

// Poller waits BaseDelay * 2^n before the n-th check, counting from zero,
// and gives up once n exceeds MaxAttempts.
type Poller struct {
	BaseDelay   time.Duration
	MaxAttempts int

	// Sleep defaults to time.Sleep.
	Sleep  func(time.Duration)
	Logger *logrus.Entry
}

func NewPoller(baseDelay time.Duration, maxAttempts int) *Poller {
	return &Poller{BaseDelay: baseDelay, MaxAttempts: maxAttempts}
}

func Default() *Poller {
	return NewPoller(DefaultBaseDelay, DefaultMaxAttempts)
}

// schedule yields the doubling delays without jitter or an elapsed-time cap.
func (p *Poller) schedule() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = p.BaseDelay << uint(p.MaxAttempts)
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (p *Poller) sleep(d time.Duration) {
	if p.Sleep != nil {
		p.Sleep(d)
		return
	}
	time.Sleep(d)
}

func (p *Poller) logger() *logrus.Entry {
	if p.Logger != nil {
		return p.Logger
	}
	return logging.Discard()
}

// Poll calls check until it reports done.
func Poll[T any](p *Poller, check func() (T, bool)) (T, error) {
	return PollErr(p, func() (T, bool, error) {
		value, done := check()
		return value, done, nil
	})
}

// PollErr is Poll for checks that can fail. A check error stops polling
// and is returned as is.
func PollErr[T any](p *Poller, check func() (T, bool, error)) (T, error) {
	var zero T
	schedule := p.schedule()
	logger := p.logger()

	for attempt := 0; ; {
		delay := schedule.NextBackOff()
		logger.WithFields(logrus.Fields{"attempt": attempt, "delay": delay}).Debug("waiting before check")
		p.sleep(delay)

		value, done, err := check()
		if err != nil {
			return zero, err
		}
		if done {
			return value, nil
		}

		attempt++
		if attempt > p.MaxAttempts {
			return zero, &ExhaustedError{Attempts: attempt}
		}
	}
}
